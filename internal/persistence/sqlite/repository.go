package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/observability"
	"example.com/fitlog/internal/persistence"
)

// Repository implements domain.Repository on GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	model := toUserModel(user)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return r.findUser(ctx, "user_id = ?", id)
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findUser(ctx, "username = ?", username)
}

func (r *Repository) findUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var model userModel
	err := r.db.WithContext(ctx).Where(where, arg).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user := model.toDomain()
	return &user, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	var models []userModel
	if err := r.db.WithContext(ctx).Order("date_joined, user_id").Find(&models).Error; err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(models))
	for _, m := range models {
		users = append(users, m.toDomain())
	}
	return users, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user domain.User) error {
	res := r.db.WithContext(ctx).Model(&userModel{}).Where("user_id = ?", user.ID).Updates(map[string]any{
		"username":      user.Username,
		"email":         user.Email,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"password_hash": user.PasswordHash,
	})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteUser removes the account and its activities in one transaction.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&activityModel{}).Error; err != nil {
			return fmt.Errorf("delete activities: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&userModel{}).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

func (r *Repository) CountActivities(ctx context.Context, userID string) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&activityModel{}).Where("user_id = ?", userID).Count(&n).Error
	return int(n), err
}

// CreateActivity inserts the activity after checking its owner exists.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) error {
	model := toActivityModel(activity)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owners int64
		if err := tx.Model(&userModel{}).Where("user_id = ?", activity.UserID).Count(&owners).Error; err != nil {
			return err
		}
		if owners == 0 {
			return domain.ErrNotFound
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

func (r *Repository) GetActivity(ctx context.Context, userID, activityID string) (*domain.Activity, error) {
	var model activityModel
	err := r.db.WithContext(ctx).Where("user_id = ? AND activity_id = ?", userID, activityID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	activity, err := model.toDomain()
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *Repository) UpdateActivity(ctx context.Context, activity domain.Activity) error {
	model := toActivityModel(activity)
	res := r.db.WithContext(ctx).Model(&activityModel{}).
		Where("user_id = ? AND activity_id = ?", activity.UserID, activity.ID).
		Updates(map[string]any{
			"activity_type":   model.ActivityType,
			"duration_min":    model.DurationMin,
			"distance_km":     model.DistanceKm,
			"calories_burned": model.CaloriesBurned,
			"notes":           model.Notes,
			"activity_date":   model.ActivityDate,
			"updated_at":      model.UpdatedNanos,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

func (r *Repository) DeleteActivity(ctx context.Context, userID, activityID string, _ time.Time) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND activity_id = ?", userID, activityID).
		Delete(&activityModel{}).Error
}

func (r *Repository) ListActivities(ctx context.Context, query domain.ActivityQuery) ([]domain.Activity, error) {
	tx := r.db.WithContext(ctx).Where("user_id = ?", query.UserID)
	if query.ActivityType != "" {
		tx = tx.Where("activity_type = ?", query.ActivityType)
	}
	if query.From != nil {
		tx = tx.Where("activity_date >= ?", query.From.Format(domain.DateLayout))
	}
	if query.To != nil {
		tx = tx.Where("activity_date <= ?", query.To.Format(domain.DateLayout))
	}

	var models []activityModel
	if err := tx.Order(persistence.OrderClause(query.Sort)).Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Activity, 0, len(models))
	for _, m := range models {
		activity, err := m.toDomain()
		if err != nil {
			return nil, fmt.Errorf("decode activity %s: %w", m.ID, err)
		}
		out = append(out, activity)
	}
	return out, nil
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateUsername
	}
	return err
}
