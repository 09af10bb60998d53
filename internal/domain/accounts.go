package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const defaultBcryptCost = bcrypt.DefaultCost

const msgUsernameTaken = "A user with that username already exists."

// Register creates a new account from p.
func (s *Service) Register(ctx context.Context, p UserPayload) (*User, error) {
	changes, verr := p.validate(true, true)
	if err := s.checkUsername(ctx, verr, changes.username, ""); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*changes.password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     *changes.username,
		Email:        *changes.email,
		PasswordHash: string(hash),
		DateJoined:   s.now(),
	}
	if changes.firstName != nil {
		user.FirstName = *changes.firstName
	}
	if changes.lastName != nil {
		user.LastName = *changes.lastName
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, NewValidationError("username", msgUsernameTaken)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	log.Ctx(ctx).Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return &user, nil
}

// Authenticate checks a username/password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	invalid := NewValidationError(NonFieldErrors, "Unable to log in with provided credentials.")
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, invalid
	}

	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}
	return user, nil
}

// ResolveCaller maps an authenticated subject onto an existing account.
func (s *Service) ResolveCaller(ctx context.Context, userID string) (*User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.GetUser(ctx, userID)
	if isNotFound(err) {
		return nil, ErrUnauthenticated
	}
	return user, err
}

// GetUser fetches an account by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CountActivities returns how many activities userID owns.
func (s *Service) CountActivities(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.CountActivities(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return n, nil
}

// UpdateUser modifies the caller's own account. partial selects PATCH semantics.
func (s *Service) UpdateUser(ctx context.Context, callerID, id string, p UserPayload, partial bool) (*User, error) {
	user, err := s.ownedUser(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	changes, verr := p.validate(!partial, false)
	if err := s.checkUsername(ctx, verr, changes.username, user.ID); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if changes.username != nil {
		user.Username = *changes.username
	}
	if changes.email != nil {
		user.Email = *changes.email
	}
	if changes.firstName != nil {
		user.FirstName = *changes.firstName
	}
	if changes.lastName != nil {
		user.LastName = *changes.lastName
	}
	if changes.password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*changes.password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.UpdateUser(ctx, *user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, NewValidationError("username", msgUsernameTaken)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// DeleteUser removes the caller's own account and, with it, every owned activity.
func (s *Service) DeleteUser(ctx context.Context, callerID, id string) error {
	if _, err := s.ownedUser(ctx, callerID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.cache.Invalidate(ctx, id)
	log.Ctx(ctx).Info().Str("user_id", id).Msg("user deleted")
	return nil
}

// UserActivities lists the activities of user id; only the owner may read them.
func (s *Service) UserActivities(ctx context.Context, callerID, id string, params Params) ([]Activity, error) {
	if _, err := s.ownedUser(ctx, callerID, id); err != nil {
		return nil, err
	}
	return s.ListActivities(ctx, id, params)
}

// ownedUser loads id and checks that it is the caller's account. Unknown ids
// are reported before ownership so that callers get 404 rather than 403.
func (s *Service) ownedUser(ctx context.Context, callerID, id string) (*User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.ID != callerID {
		return nil, ErrPermissionDenied
	}
	return user, nil
}

// checkUsername records a field error on verr when username belongs to an
// account other than selfID.
func (s *Service) checkUsername(ctx context.Context, verr *ValidationError, username *string, selfID string) error {
	if username == nil {
		return nil
	}
	existing, err := s.repo.GetUserByUsername(ctx, *username)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		verr.Add("username", msgUsernameTaken)
	}
	return nil
}
