package domain_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/persistence/memory"
)

var fixedNow = time.Date(2024, time.January, 20, 15, 30, 0, 0, time.UTC)

// recordingCache is a map-backed StatsCache that counts its calls.
type recordingCache struct {
	gens        map[string]int
	entries     map[string][]byte
	loads, hits int
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{gens: make(map[string]int), entries: make(map[string][]byte)}
}

func (c *recordingCache) Load(_ context.Context, userID, key string, dst any) (string, bool) {
	c.loads++
	if _, ok := c.gens[userID]; !ok {
		c.gens[userID] = c.loads
	}
	gen := fmt.Sprintf("%d", c.gens[userID])
	raw, ok := c.entries[userID+"|"+gen+"|"+key]
	if !ok {
		return gen, false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return gen, false
	}
	c.hits++
	return gen, true
}

func (c *recordingCache) Store(_ context.Context, userID, gen, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.entries[userID+"|"+gen+"|"+key] = raw
}

func (c *recordingCache) Invalidate(_ context.Context, userID string) {
	c.invalidated = append(c.invalidated, userID)
	delete(c.gens, userID)
}

func newService(t *testing.T, cache domain.StatsCache) *domain.Service {
	t.Helper()
	return domain.NewService(memory.NewRepository(),
		domain.WithClock(func() time.Time { return fixedNow }),
		domain.WithBcryptCost(bcrypt.MinCost),
		domain.WithStatsCache(cache),
	)
}

func register(t *testing.T, svc *domain.Service, username string) *domain.User {
	t.Helper()
	user, err := svc.Register(context.Background(), domain.UserPayload{
		Username: domain.Of(username),
		Email:    domain.Of(username + "@example.com"),
		Password: domain.Of("correct-horse"),
	})
	require.NoError(t, err)
	return user
}

func logActivity(t *testing.T, svc *domain.Service, userID string, kind domain.ActivityType, minutes int, date string) *domain.Activity {
	t.Helper()
	activity, err := svc.CreateActivity(context.Background(), userID, domain.ActivityPayload{
		ActivityType: domain.Of(string(kind)),
		Duration:     domain.Of(minutes),
		Date:         domain.Of(date),
	})
	require.NoError(t, err)
	return activity
}

func validationFields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Fields
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	user := register(t, svc, "alice")
	require.NotEmpty(t, user.ID)
	require.NotEqual(t, "correct-horse", user.PasswordHash)
	require.Equal(t, fixedNow, user.DateJoined)

	got, err := svc.Authenticate(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong-password")
	require.Contains(t, validationFields(t, err), domain.NonFieldErrors)

	_, err = svc.Authenticate(ctx, "nobody", "correct-horse")
	require.Contains(t, validationFields(t, err), domain.NonFieldErrors)

	_, err = svc.Register(ctx, domain.UserPayload{
		Username: domain.Of("alice"),
		Email:    domain.Of("not-an-email"),
		Password: domain.Of("short"),
	})
	fields := validationFields(t, err)
	require.Equal(t, []string{"A user with that username already exists."}, fields["username"])
	require.Contains(t, fields, "email")
	require.Contains(t, fields, "password")
}

func TestResolveCaller(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	user := register(t, svc, "alice")

	got, err := svc.ResolveCaller(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)

	_, err = svc.ResolveCaller(ctx, "")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = svc.ResolveCaller(ctx, "deleted-user")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestActivitiesAreScopedToOwner(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := register(t, svc, "bob")

	run := logActivity(t, svc, alice.ID, domain.ActivityRunning, 30, "2024-01-15")
	require.Equal(t, alice.ID, run.UserID)
	require.Equal(t, fixedNow, run.CreatedAt)

	_, err := svc.GetActivity(ctx, bob.ID, run.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.UpdateActivity(ctx, bob.ID, run.ID, domain.ActivityPayload{Duration: domain.Of(10)}, true)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.ErrorIs(t, svc.DeleteActivity(ctx, bob.ID, run.ID), domain.ErrNotFound)

	list, err := svc.ListActivities(ctx, bob.ID, url.Values{"user_id": {alice.ID}})
	require.NoError(t, err)
	require.Empty(t, list)

	list, err = svc.ListActivities(ctx, alice.ID, url.Values{})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestUpdateActivityKeepsOwnerAndValidates(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	run := logActivity(t, svc, alice.ID, domain.ActivityRunning, 30, "2024-01-15")

	updated, err := svc.UpdateActivity(ctx, alice.ID, run.ID, domain.ActivityPayload{
		Duration: domain.Of(45),
		Notes:    domain.Of("negative split"),
	}, true)
	require.NoError(t, err)
	require.Equal(t, 45, updated.DurationMin)
	require.Equal(t, domain.ActivityRunning, updated.ActivityType)
	require.Equal(t, alice.ID, updated.UserID)

	_, err = svc.UpdateActivity(ctx, alice.ID, run.ID, domain.ActivityPayload{Duration: domain.Of(2000)}, false)
	fields := validationFields(t, err)
	require.Contains(t, fields, "duration")
	require.Contains(t, fields, "activity_type")
	require.Contains(t, fields, "date")

	stored, err := svc.GetActivity(ctx, alice.ID, run.ID)
	require.NoError(t, err)
	require.Equal(t, 45, stored.DurationMin)
}

func TestCreateActivityRejectsFutureDate(t *testing.T) {
	svc := newService(t, nil)
	alice := register(t, svc, "alice")

	_, err := svc.CreateActivity(context.Background(), alice.ID, domain.ActivityPayload{
		ActivityType: domain.Of("running"),
		Duration:     domain.Of(30),
		Date:         domain.Of("2024-01-21"),
	})
	require.Equal(t, []string{"Date cannot be in the future."}, validationFields(t, err)["date"])
}

func TestHistoryDefaultsToThirtyDays(t *testing.T) {
	svc := newService(t, nil)
	alice := register(t, svc, "alice")
	logActivity(t, svc, alice.ID, domain.ActivityRunning, 30, "2024-01-15")
	logActivity(t, svc, alice.ID, domain.ActivityYoga, 60, "2023-12-21")
	logActivity(t, svc, alice.ID, domain.ActivityYoga, 60, "2023-12-20")

	history, err := svc.History(context.Background(), alice.ID, url.Values{})
	require.NoError(t, err)
	require.Equal(t, "Last 30 days", history.Period)
	require.Len(t, history.Activities, 2)
	require.Equal(t, 90, history.Statistics.TotalDurationMinutes)

	_, err = svc.History(context.Background(), alice.ID, url.Values{"start_date": {"2024-01-10"}, "end_date": {"2024-01-01"}})
	require.Contains(t, validationFields(t, err), "start_date")
}

func TestSummaryUsesCacheUntilInvalidated(t *testing.T) {
	cache := newRecordingCache()
	svc := newService(t, cache)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	logActivity(t, svc, alice.ID, domain.ActivityRunning, 30, "2024-01-15")

	first, err := svc.Summary(ctx, alice.ID, url.Values{})
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalActivities)
	require.Equal(t, "All time", first.Period)
	require.Zero(t, cache.hits)

	second, err := svc.Summary(ctx, alice.ID, url.Values{})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, cache.hits)

	logActivity(t, svc, alice.ID, domain.ActivityRunning, 45, "2024-01-16")
	require.Contains(t, cache.invalidated, alice.ID)

	third, err := svc.Summary(ctx, alice.ID, url.Values{})
	require.NoError(t, err)
	require.Equal(t, 2, third.TotalActivities)
	require.Equal(t, 75, third.TotalDurationMinutes)
	require.InDelta(t, 37.5, third.AverageDurationMinutes, 1e-9)
	require.Equal(t, 1, cache.hits)
}

func TestTrendsCachedPerRequest(t *testing.T) {
	cache := newRecordingCache()
	svc := newService(t, cache)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	logActivity(t, svc, alice.ID, domain.ActivityCycling, 90, "2024-01-15")
	logActivity(t, svc, alice.ID, domain.ActivityCycling, 30, "2024-01-20")

	weekly, err := svc.Trends(ctx, alice.ID, url.Values{})
	require.NoError(t, err)
	require.Equal(t, domain.TrendWeekly, weekly.PeriodType)
	require.Len(t, weekly.Buckets, 4)
	require.Equal(t, 1, weekly.Buckets[3].TotalActivities)
	require.Equal(t, 90, weekly.Buckets[3].TotalDurationMinutes)

	monthly, err := svc.Trends(ctx, alice.ID, url.Values{"period": {"monthly"}, "months": {"2"}})
	require.NoError(t, err)
	require.Len(t, monthly.Buckets, 2)
	require.Zero(t, cache.hits)

	again, err := svc.Trends(ctx, alice.ID, url.Values{})
	require.NoError(t, err)
	require.Equal(t, 1, cache.hits)
	require.Equal(t, weekly.Buckets[3].Label, again.Buckets[3].Label)

	_, err = svc.Trends(ctx, alice.ID, url.Values{"period": {"daily"}})
	require.Contains(t, validationFields(t, err), "period")
}

func TestUserOwnership(t *testing.T) {
	cache := newRecordingCache()
	svc := newService(t, cache)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := register(t, svc, "bob")
	logActivity(t, svc, alice.ID, domain.ActivityWalking, 20, "2024-01-19")

	_, err := svc.UpdateUser(ctx, bob.ID, alice.ID, domain.UserPayload{FirstName: domain.Of("Mallory")}, true)
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = svc.UserActivities(ctx, bob.ID, alice.ID, url.Values{})
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = svc.UpdateUser(ctx, alice.ID, "missing", domain.UserPayload{}, true)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.UpdateUser(ctx, alice.ID, alice.ID, domain.UserPayload{Username: domain.Of("bob")}, true)
	require.Equal(t, []string{"A user with that username already exists."}, validationFields(t, err)["username"])

	updated, err := svc.UpdateUser(ctx, alice.ID, alice.ID, domain.UserPayload{
		FirstName: domain.Of("Alice"),
		Password:  domain.Of("new-password"),
	}, true)
	require.NoError(t, err)
	require.Equal(t, "Alice", updated.FirstName)
	_, err = svc.Authenticate(ctx, "alice", "new-password")
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteUser(ctx, bob.ID, alice.ID), domain.ErrPermissionDenied)
	require.NoError(t, svc.DeleteUser(ctx, alice.ID, alice.ID))
	require.Contains(t, cache.invalidated, alice.ID)

	n, err := svc.CountActivities(ctx, alice.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = svc.GetUser(ctx, alice.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// deleteRecorder captures the timestamp handed to the repository on delete.
type deleteRecorder struct {
	*memory.Repository
	deletedAt time.Time
}

func (r *deleteRecorder) DeleteActivity(ctx context.Context, userID, activityID string, deletedAt time.Time) error {
	r.deletedAt = deletedAt
	return r.Repository.DeleteActivity(ctx, userID, activityID, deletedAt)
}

func TestDeleteActivityUsesServiceClock(t *testing.T) {
	repo := &deleteRecorder{Repository: memory.NewRepository()}
	svc := domain.NewService(repo,
		domain.WithClock(func() time.Time { return fixedNow }),
		domain.WithBcryptCost(bcrypt.MinCost),
	)
	alice := register(t, svc, "alice")
	run := logActivity(t, svc, alice.ID, domain.ActivityRunning, 30, "2024-01-15")

	require.NoError(t, svc.DeleteActivity(context.Background(), alice.ID, run.ID))
	require.Equal(t, fixedNow, repo.deletedAt)
}
