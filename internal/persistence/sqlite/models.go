package sqlite

import (
	"time"

	"example.com/fitlog/internal/domain"
)

// Timestamps are kept as unix nanoseconds so that ORDER BY compares numbers
// rather than variable-width text.
type userModel struct {
	ID           string `gorm:"column:user_id;primaryKey;size:36"`
	Username     string `gorm:"size:150;uniqueIndex;not null"`
	Email        string `gorm:"size:254;not null"`
	FirstName    string `gorm:"size:150"`
	LastName     string `gorm:"size:150"`
	PasswordHash string `gorm:"not null"`
	JoinedNanos  int64  `gorm:"column:date_joined;not null"`
}

func (userModel) TableName() string { return "users" }

type activityModel struct {
	ID             string `gorm:"column:activity_id;primaryKey;size:36"`
	UserID         string `gorm:"size:36;not null;index:idx_activities_user_date,priority:1"`
	ActivityType   string `gorm:"size:20;not null"`
	DurationMin    int    `gorm:"not null"`
	DistanceKm     *float64
	CaloriesBurned *int
	Notes          string
	ActivityDate   string `gorm:"size:10;not null;index:idx_activities_user_date,priority:2"`
	CreatedNanos   int64  `gorm:"column:created_at;not null"`
	UpdatedNanos   int64  `gorm:"column:updated_at;not null"`
}

func (activityModel) TableName() string { return "activities" }

func toUserModel(u domain.User) userModel {
	return userModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		JoinedNanos:  u.DateJoined.UnixNano(),
	}
}

func (m userModel) toDomain() domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		PasswordHash: m.PasswordHash,
		DateJoined:   time.Unix(0, m.JoinedNanos).UTC(),
	}
}

func toActivityModel(a domain.Activity) activityModel {
	return activityModel{
		ID:             a.ID,
		UserID:         a.UserID,
		ActivityType:   string(a.ActivityType),
		DurationMin:    a.DurationMin,
		DistanceKm:     a.DistanceKm,
		CaloriesBurned: a.CaloriesBurned,
		Notes:          a.Notes,
		ActivityDate:   a.Date.Format(domain.DateLayout),
		CreatedNanos:   a.CreatedAt.UnixNano(),
		UpdatedNanos:   a.UpdatedAt.UnixNano(),
	}
}

func (m activityModel) toDomain() (domain.Activity, error) {
	date, err := domain.ParseDate(m.ActivityDate)
	if err != nil {
		return domain.Activity{}, err
	}
	return domain.Activity{
		ID:             m.ID,
		UserID:         m.UserID,
		ActivityType:   domain.ActivityType(m.ActivityType),
		DurationMin:    m.DurationMin,
		DistanceKm:     m.DistanceKm,
		CaloriesBurned: m.CaloriesBurned,
		Notes:          m.Notes,
		Date:           date,
		CreatedAt:      time.Unix(0, m.CreatedNanos).UTC(),
		UpdatedAt:      time.Unix(0, m.UpdatedNanos).UTC(),
	}, nil
}
