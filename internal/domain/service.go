// Package domain defines the business logic for the activity log service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UserRepository captures account persistence operations. Lookups return
// (nil, nil) when nothing matches.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	CountActivities(ctx context.Context, userID string) (int, error)
}

// ActivityRepository captures activity persistence operations. Every read
// and write is scoped to the owning user; GetActivity returns (nil, nil)
// when the activity does not exist or belongs to someone else.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	GetActivity(ctx context.Context, userID, activityID string) (*Activity, error)
	UpdateActivity(ctx context.Context, activity Activity) error
	DeleteActivity(ctx context.Context, userID, activityID string, deletedAt time.Time) error
	ListActivities(ctx context.Context, query ActivityQuery) ([]Activity, error)
}

// Repository is the full storage contract.
type Repository interface {
	UserRepository
	ActivityRepository
}

// StatsCache memoises per-user statistics. Implementations must treat every
// failure as a miss. Load returns a generation that is captured before the
// value is computed; Store writes only under that generation, so a value
// computed across an Invalidate is never served.
type StatsCache interface {
	Load(ctx context.Context, userID, key string, dst any) (gen string, hit bool)
	Store(ctx context.Context, userID, gen, key string, value any)
	Invalidate(ctx context.Context, userID string)
}

type noopStatsCache struct{}

func (noopStatsCache) Load(context.Context, string, string, any) (string, bool) { return "", false }
func (noopStatsCache) Store(context.Context, string, string, string, any)       {}
func (noopStatsCache) Invalidate(context.Context, string)                       {}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithClock overrides the server clock, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithStatsCache installs a statistics cache.
func WithStatsCache(cache StatsCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// Service orchestrates account and activity workflows.
type Service struct {
	repo       Repository
	cache      StatsCache
	clock      func() time.Time
	bcryptCost int
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		cache:      noopStatsCache{},
		clock:      time.Now,
		bcryptCost: defaultBcryptCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current server date.
func (s *Service) Today() time.Time {
	return DateOnly(s.clock().UTC())
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// CreateActivity validates p and stores it as a new activity owned by callerID.
func (s *Service) CreateActivity(ctx context.Context, callerID string, p ActivityPayload) (*Activity, error) {
	var activity Activity
	if err := p.Apply(&activity, s.Today(), false); err != nil {
		return nil, err
	}

	now := s.now()
	activity.ID = uuid.NewString()
	activity.UserID = callerID
	activity.CreatedAt = now
	activity.UpdatedAt = now

	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}
	s.cache.Invalidate(ctx, callerID)

	log.Ctx(ctx).Debug().
		Str("activity_id", activity.ID).
		Str("user_id", callerID).
		Str("activity_type", string(activity.ActivityType)).
		Msg("activity created")
	return &activity, nil
}

// GetActivity fetches one of the caller's activities.
func (s *Service) GetActivity(ctx context.Context, callerID, activityID string) (*Activity, error) {
	activity, err := s.repo.GetActivity(ctx, callerID, activityID)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if activity == nil {
		return nil, ErrNotFound
	}
	return activity, nil
}

// UpdateActivity applies p to one of the caller's activities. partial
// selects PATCH semantics. The owner never changes.
func (s *Service) UpdateActivity(ctx context.Context, callerID, activityID string, p ActivityPayload, partial bool) (*Activity, error) {
	activity, err := s.GetActivity(ctx, callerID, activityID)
	if err != nil {
		return nil, err
	}
	if err := p.Apply(activity, s.Today(), partial); err != nil {
		return nil, err
	}
	activity.UpdatedAt = s.now()

	if err := s.repo.UpdateActivity(ctx, *activity); err != nil {
		return nil, fmt.Errorf("update activity: %w", err)
	}
	s.cache.Invalidate(ctx, callerID)
	return activity, nil
}

// DeleteActivity removes one of the caller's activities.
func (s *Service) DeleteActivity(ctx context.Context, callerID, activityID string) error {
	if _, err := s.GetActivity(ctx, callerID, activityID); err != nil {
		return err
	}
	if err := s.repo.DeleteActivity(ctx, callerID, activityID, s.now()); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	s.cache.Invalidate(ctx, callerID)
	return nil
}

// ListActivities returns the caller's activities matching params. No date
// window is applied unless requested.
func (s *Service) ListActivities(ctx context.Context, callerID string, params Params) ([]Activity, error) {
	filter, err := BuildActivityFilter(callerID, params, s.Today(), 0)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter.Query)
}

func (s *Service) list(ctx context.Context, query ActivityQuery) ([]Activity, error) {
	activities, err := s.repo.ListActivities(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

// History is the filtered activity list together with its statistics.
type History struct {
	Statistics Statistics
	Activities []Activity
	Period     string
}

// History returns the caller's activities over the requested window
// (default: the last 30 days) along with aggregate statistics.
func (s *Service) History(ctx context.Context, callerID string, params Params) (*History, error) {
	filter, err := BuildActivityFilter(callerID, params, s.Today(), DefaultLookbackDays)
	if err != nil {
		return nil, err
	}
	activities, err := s.list(ctx, filter.Query)
	if err != nil {
		return nil, err
	}
	return &History{
		Statistics: Aggregate(activities),
		Activities: activities,
		Period:     filter.Period,
	}, nil
}

// Summary is an aggregate-only view of the caller's activities.
type Summary struct {
	Statistics
	Period string `json:"period"`
}

// Summary aggregates the caller's activities; without a range it covers all time.
func (s *Service) Summary(ctx context.Context, callerID string, params Params) (*Summary, error) {
	today := s.Today()
	filter, err := BuildActivityFilter(callerID, params, today, 0)
	if err != nil {
		return nil, err
	}

	key := "summary|" + queryKey(filter.Query) + "|" + today.Format(DateLayout)
	var cached Summary
	gen, hit := s.cache.Load(ctx, callerID, key, &cached)
	if hit {
		return &cached, nil
	}

	activities, err := s.list(ctx, filter.Query)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Statistics: Aggregate(activities), Period: filter.Period}
	s.cache.Store(ctx, callerID, gen, key, summary)
	return summary, nil
}

// Trends is a bucketed series of aggregates.
type Trends struct {
	PeriodType TrendPeriod   `json:"period_type"`
	Buckets    []TrendBucket `json:"trends"`
}

// Trends computes weekly or monthly aggregates for the caller.
func (s *Service) Trends(ctx context.Context, callerID string, params Params) (*Trends, error) {
	req, err := ParseTrendRequest(params)
	if err != nil {
		return nil, err
	}
	today := s.Today()

	key := fmt.Sprintf("trends|%s|%d|%s", req.Period, req.Count, today.Format(DateLayout))
	var cached Trends
	gen, hit := s.cache.Load(ctx, callerID, key, &cached)
	if hit {
		return &cached, nil
	}

	from, to := TrendWindow(req, today)
	activities, err := s.list(ctx, ActivityQuery{UserID: callerID, From: &from, To: &to, Sort: DefaultSort})
	if err != nil {
		return nil, err
	}
	trends := &Trends{PeriodType: req.Period, Buckets: ComputeTrends(req, activities, today)}
	s.cache.Store(ctx, callerID, gen, key, trends)
	return trends, nil
}

func queryKey(q ActivityQuery) string {
	from, to := "-", "-"
	if q.From != nil {
		from = q.From.Format(DateLayout)
	}
	if q.To != nil {
		to = q.To.Format(DateLayout)
	}
	return fmt.Sprintf("%s|%s|%s", q.ActivityType, from, to)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
