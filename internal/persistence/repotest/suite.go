// Package repotest holds behaviour checks shared by every domain.Repository driver.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fitlog/internal/domain"
)

// Run exercises repo against the storage contract. newRepo must return an
// empty repository on every call.
func Run(t *testing.T, newRepo func(t *testing.T) domain.Repository) {
	t.Helper()

	t.Run("users", func(t *testing.T) { testUsers(t, newRepo(t)) })
	t.Run("duplicate username", func(t *testing.T) { testDuplicateUsername(t, newRepo(t)) })
	t.Run("activities scoped to owner", func(t *testing.T) { testActivityScope(t, newRepo(t)) })
	t.Run("list filters and ordering", func(t *testing.T) { testListActivities(t, newRepo(t)) })
	t.Run("delete user cascades", func(t *testing.T) { testCascade(t, newRepo(t)) })
}

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func user(id, username string, joined time.Time) domain.User {
	return domain.User{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		DateJoined:   joined,
	}
}

func activity(id, owner, date string, kind domain.ActivityType, duration int, calories *int, created time.Time) domain.Activity {
	d, err := domain.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return domain.Activity{
		ID:             id,
		UserID:         owner,
		ActivityType:   kind,
		DurationMin:    duration,
		CaloriesBurned: calories,
		Date:           d,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func intPtr(v int) *int { return &v }

func ids(activities []domain.Activity) []string {
	out := make([]string, 0, len(activities))
	for _, a := range activities {
		out = append(out, a.ID)
	}
	return out
}

func testUsers(t *testing.T, repo domain.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, user("u2", "bob", base.Add(time.Hour))))
	require.NoError(t, repo.CreateUser(ctx, user("u1", "alice", base)))

	got, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "alice", got.Username)
	require.True(t, got.DateJoined.Equal(base))

	byName, err := repo.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, byName)
	require.Equal(t, "u2", byName.ID)

	missing, err := repo.GetUser(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "u1", users[0].ID)

	updated := *got
	updated.FirstName = "Alice"
	updated.Email = "alice@fitlog.test"
	require.NoError(t, repo.UpdateUser(ctx, updated))
	got, err = repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Alice", got.FirstName)
	require.Equal(t, "alice@fitlog.test", got.Email)

	require.ErrorIs(t, repo.UpdateUser(ctx, user("ghost", "ghost", base)), domain.ErrNotFound)
}

func testDuplicateUsername(t *testing.T, repo domain.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, user("u1", "alice", base)))
	require.NoError(t, repo.CreateUser(ctx, user("u2", "bob", base)))

	require.ErrorIs(t, repo.CreateUser(ctx, user("u3", "alice", base)), domain.ErrDuplicateUsername)
	require.ErrorIs(t, repo.UpdateUser(ctx, user("u2", "alice", base)), domain.ErrDuplicateUsername)
}

func testActivityScope(t *testing.T, repo domain.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, user("u1", "alice", base)))
	require.NoError(t, repo.CreateUser(ctx, user("u2", "bob", base)))

	a := activity("a1", "u1", "2024-02-10", domain.ActivityRunning, 30, intPtr(300), base)
	distance := 5.25
	a.DistanceKm = &distance
	a.Notes = "tempo"
	require.NoError(t, repo.CreateActivity(ctx, a))
	require.ErrorIs(t, repo.CreateActivity(ctx, activity("a2", "ghost", "2024-02-10", domain.ActivityRunning, 30, nil, base)), domain.ErrNotFound)

	got, err := repo.GetActivity(ctx, "u1", "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, domain.ActivityRunning, got.ActivityType)
	require.Equal(t, "2024-02-10", got.Date.Format(domain.DateLayout))
	require.InDelta(t, 5.25, *got.DistanceKm, 1e-9)
	require.Equal(t, 300, *got.CaloriesBurned)
	require.Equal(t, "tempo", got.Notes)

	foreign, err := repo.GetActivity(ctx, "u2", "a1")
	require.NoError(t, err)
	require.Nil(t, foreign)

	changed := *got
	changed.UserID = "u2"
	require.ErrorIs(t, repo.UpdateActivity(ctx, changed), domain.ErrNotFound)

	changed.UserID = "u1"
	changed.DurationMin = 45
	changed.CaloriesBurned = nil
	changed.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, repo.UpdateActivity(ctx, changed))
	got, err = repo.GetActivity(ctx, "u1", "a1")
	require.NoError(t, err)
	require.Equal(t, 45, got.DurationMin)
	require.Nil(t, got.CaloriesBurned)

	require.NoError(t, repo.DeleteActivity(ctx, "u2", "a1", base.Add(2*time.Minute)))
	n, err := repo.CountActivities(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, repo.DeleteActivity(ctx, "u1", "a1", base.Add(2*time.Minute)))
	n, err = repo.CountActivities(ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, n)
}

func testListActivities(t *testing.T, repo domain.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, user("u1", "alice", base)))
	require.NoError(t, repo.CreateUser(ctx, user("u2", "bob", base)))

	seed := []domain.Activity{
		activity("a1", "u1", "2024-02-01", domain.ActivityRunning, 30, intPtr(300), base),
		activity("a2", "u1", "2024-02-05", domain.ActivityCycling, 60, nil, base.Add(time.Second)),
		activity("a3", "u1", "2024-02-05", domain.ActivityRunning, 20, intPtr(150), base.Add(2*time.Second)),
		activity("a4", "u1", "2024-02-20", domain.ActivityYoga, 45, intPtr(100), base.Add(3*time.Second)),
		activity("b1", "u2", "2024-02-05", domain.ActivityRunning, 90, intPtr(900), base),
	}
	for _, a := range seed {
		require.NoError(t, repo.CreateActivity(ctx, a))
	}

	all, err := repo.ListActivities(ctx, domain.ActivityQuery{UserID: "u1", Sort: domain.DefaultSort})
	require.NoError(t, err)
	require.Equal(t, []string{"a4", "a3", "a2", "a1"}, ids(all))

	running, err := repo.ListActivities(ctx, domain.ActivityQuery{UserID: "u1", ActivityType: "running", Sort: domain.DefaultSort})
	require.NoError(t, err)
	require.Equal(t, []string{"a3", "a1"}, ids(running))

	from, _ := domain.ParseDate("2024-02-02")
	to, _ := domain.ParseDate("2024-02-05")
	ranged, err := repo.ListActivities(ctx, domain.ActivityQuery{UserID: "u1", From: &from, To: &to, Sort: domain.DefaultSort})
	require.NoError(t, err)
	require.Equal(t, []string{"a3", "a2"}, ids(ranged))

	byDuration, err := repo.ListActivities(ctx, domain.ActivityQuery{UserID: "u1", Sort: domain.ParseSort("duration")})
	require.NoError(t, err)
	require.Equal(t, []string{"a3", "a1", "a4", "a2"}, ids(byDuration))

	byCalories, err := repo.ListActivities(ctx, domain.ActivityQuery{UserID: "u1", Sort: domain.ParseSort("-calories_burned")})
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "a3", "a4", "a2"}, ids(byCalories))

	byCreated, err := repo.ListActivities(ctx, domain.ActivityQuery{UserID: "u1", Sort: domain.ParseSort("created_at")})
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "a2", "a3", "a4"}, ids(byCreated))
}

func testCascade(t *testing.T, repo domain.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, user("u1", "alice", base)))
	require.NoError(t, repo.CreateActivity(ctx, activity("a1", "u1", "2024-02-01", domain.ActivityRunning, 30, nil, base)))
	require.NoError(t, repo.CreateActivity(ctx, activity("a2", "u1", "2024-02-02", domain.ActivityRunning, 30, nil, base)))

	require.NoError(t, repo.DeleteUser(ctx, "u1"))

	gone, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, gone)

	n, err := repo.CountActivities(ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, n)
}
