// Package memory provides an in-process repository for local development and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"example.com/fitlog/internal/domain"
)

// Repository stores users and activities in maps guarded by a mutex.
type Repository struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	activities map[string]domain.Activity
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		users:      make(map[string]domain.User),
		activities: make(map[string]domain.Activity),
	}
}

// CreateUser implements domain.UserRepository.
func (r *Repository) CreateUser(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.usernameTaken(user.Username, user.ID) {
		return domain.ErrDuplicateUsername
	}
	r.users[user.ID] = user
	return nil
}

// GetUser implements domain.UserRepository.
func (r *Repository) GetUser(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// GetUserByUsername implements domain.UserRepository.
func (r *Repository) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

// ListUsers implements domain.UserRepository, ordered by join date.
func (r *Repository) ListUsers(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateJoined.Equal(out[j].DateJoined) {
			return out[i].DateJoined.Before(out[j].DateJoined)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateUser implements domain.UserRepository.
func (r *Repository) UpdateUser(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	if r.usernameTaken(user.Username, user.ID) {
		return domain.ErrDuplicateUsername
	}
	r.users[user.ID] = user
	return nil
}

// DeleteUser implements domain.UserRepository and cascades to activities.
func (r *Repository) DeleteUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, id)
	for activityID, activity := range r.activities {
		if activity.UserID == id {
			delete(r.activities, activityID)
		}
	}
	return nil
}

// CountActivities implements domain.UserRepository.
func (r *Repository) CountActivities(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, activity := range r.activities {
		if activity.UserID == userID {
			n++
		}
	}
	return n, nil
}

// CreateActivity implements domain.ActivityRepository.
func (r *Repository) CreateActivity(_ context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[activity.UserID]; !ok {
		return domain.ErrNotFound
	}
	r.activities[activity.ID] = cloneActivity(activity)
	return nil
}

// GetActivity implements domain.ActivityRepository.
func (r *Repository) GetActivity(_ context.Context, userID, activityID string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activity, ok := r.activities[activityID]
	if !ok || activity.UserID != userID {
		return nil, nil
	}
	out := cloneActivity(activity)
	return &out, nil
}

// UpdateActivity implements domain.ActivityRepository.
func (r *Repository) UpdateActivity(_ context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.activities[activity.ID]
	if !ok || existing.UserID != activity.UserID {
		return domain.ErrNotFound
	}
	r.activities[activity.ID] = cloneActivity(activity)
	return nil
}

// DeleteActivity implements domain.ActivityRepository.
func (r *Repository) DeleteActivity(_ context.Context, userID, activityID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.activities[activityID]; ok && existing.UserID == userID {
		delete(r.activities, activityID)
	}
	return nil
}

// ListActivities implements domain.ActivityRepository.
func (r *Repository) ListActivities(_ context.Context, query domain.ActivityQuery) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Activity, 0)
	for _, activity := range r.activities {
		if query.Matches(activity) {
			out = append(out, cloneActivity(activity))
		}
	}
	slices.SortStableFunc(out, query.Sort.Compare)
	return out, nil
}

func (r *Repository) usernameTaken(username, selfID string) bool {
	for id, user := range r.users {
		if id != selfID && user.Username == username {
			return true
		}
	}
	return false
}

func cloneActivity(a domain.Activity) domain.Activity {
	if a.DistanceKm != nil {
		v := *a.DistanceKm
		a.DistanceKm = &v
	}
	if a.CaloriesBurned != nil {
		v := *a.CaloriesBurned
		a.CaloriesBurned = &v
	}
	return a
}
