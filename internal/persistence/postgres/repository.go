// Package postgres provides PostgreSQL-backed persistence for users, activities and outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/events"
	"example.com/fitlog/internal/observability"
	"example.com/fitlog/internal/persistence"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const userColumns = `user_id, username, email, first_name, last_name, password_hash, date_joined`

const activityColumns = `activity_id, user_id, activity_type, duration_min, distance_km, calories_burned, notes, activity_date, created_at, updated_at`

// Repository implements domain.Repository on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateUser inserts a new account.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.DateJoined,
	)
	return translateError(err)
}

// GetUser retrieves an account by id.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1`, id)
	return scanOptionalUser(row)
}

// GetUserByUsername retrieves an account by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	return scanOptionalUser(row)
}

// ListUsers returns every account ordered by join date.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY date_joined, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser overwrites the mutable account fields.
func (r *Repository) UpdateUser(ctx context.Context, user domain.User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET username=$2, email=$3, first_name=$4, last_name=$5, password_hash=$6 WHERE user_id=$1`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash,
	)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteUser removes an account; activities go with it through ON DELETE CASCADE.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM users WHERE user_id=$1`, id)
	return err
}

// CountActivities returns how many activities userID owns.
func (r *Repository) CountActivities(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activities WHERE user_id=$1`, userID).Scan(&n)
	return n, err
}

// CreateActivity persists the activity and records an outbox event inside a single transaction.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) error {
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO activities (`+activityColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			activity.ID,
			activity.UserID,
			string(activity.ActivityType),
			activity.DurationMin,
			activity.DistanceKm,
			activity.CaloriesBurned,
			activity.Notes,
			activity.Date,
			activity.CreatedAt,
			activity.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return insertOutbox(ctx, tx, activity, events.ActivityCreated, recorded(activity, activity.CreatedAt))
	})
	if err != nil {
		return translateError(err)
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// GetActivity retrieves one of userID's activities.
func (r *Repository) GetActivity(ctx context.Context, userID, activityID string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE user_id=$1 AND activity_id=$2`,
		userID, activityID,
	)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

// UpdateActivity overwrites the mutable activity fields and records an outbox event.
func (r *Repository) UpdateActivity(ctx context.Context, activity domain.Activity) error {
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE activities
                SET activity_type=$3, duration_min=$4, distance_km=$5, calories_burned=$6, notes=$7, activity_date=$8, updated_at=$9
              WHERE user_id=$1 AND activity_id=$2`,
			activity.UserID,
			activity.ID,
			string(activity.ActivityType),
			activity.DurationMin,
			activity.DistanceKm,
			activity.CaloriesBurned,
			activity.Notes,
			activity.Date,
			activity.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return insertOutbox(ctx, tx, activity, events.ActivityUpdated, recorded(activity, activity.UpdatedAt))
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// DeleteActivity removes one of userID's activities and records an outbox
// event stamped with deletedAt.
func (r *Repository) DeleteActivity(ctx context.Context, userID, activityID string, deletedAt time.Time) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE user_id=$1 AND activity_id=$2`, userID, activityID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		activity := domain.Activity{ID: activityID, UserID: userID}
		return insertOutbox(ctx, tx, activity, events.ActivityDeleted, events.ActivityRemoved{
			ActivityID: activityID,
			UserID:     userID,
			OccurredAt: deletedAt.UTC(),
		})
	})
}

// ListActivities returns the activities matching query in the requested order.
func (r *Repository) ListActivities(ctx context.Context, query domain.ActivityQuery) ([]domain.Activity, error) {
	sql, args := buildListQuery(query)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, activity)
	}
	return results, rows.Err()
}

func buildListQuery(query domain.ActivityQuery) (string, []any) {
	args := []any{query.UserID}
	var sb strings.Builder
	sb.WriteString(`SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1`)

	if query.ActivityType != "" {
		args = append(args, query.ActivityType)
		fmt.Fprintf(&sb, " AND activity_type=$%d", len(args))
	}
	if query.From != nil {
		args = append(args, *query.From)
		fmt.Fprintf(&sb, " AND activity_date >= $%d", len(args))
	}
	if query.To != nil {
		args = append(args, *query.To)
		fmt.Fprintf(&sb, " AND activity_date <= $%d", len(args))
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(persistence.OrderClause(query.Sort))
	return sb.String(), args
}

func (r *Repository) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, activity domain.Activity, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6)`

	_, err = tx.Exec(ctx, stmt,
		"activity",
		activity.ID,
		eventType,
		events.TopicActivityEvents,
		activity.UserID,
		body,
	)
	return err
}

func recorded(activity domain.Activity, at time.Time) events.ActivityRecorded {
	return events.ActivityRecorded{
		ActivityID:     activity.ID,
		UserID:         activity.UserID,
		ActivityType:   string(activity.ActivityType),
		Date:           activity.Date.Format(domain.DateLayout),
		DurationMin:    activity.DurationMin,
		DistanceKm:     activity.DistanceKm,
		CaloriesBurned: activity.CaloriesBurned,
		OccurredAt:     at,
	}
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.DateJoined)
	return u, err
}

func scanOptionalUser(row pgx.Row) (*domain.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var (
		a            domain.Activity
		activityType string
	)
	err := row.Scan(&a.ID, &a.UserID, &activityType, &a.DurationMin, &a.DistanceKm, &a.CaloriesBurned, &a.Notes, &a.Date, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Activity{}, err
	}
	a.ActivityType = domain.ActivityType(activityType)
	a.Date = domain.DateOnly(a.Date)
	return a, nil
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		return domain.ErrDuplicateUsername
	case foreignKeyViolation:
		return domain.ErrNotFound
	}
	return err
}
