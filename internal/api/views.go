package api

import (
	"time"

	"example.com/fitlog/internal/domain"
)

// ActivityView is the wire form of an activity.
type ActivityView struct {
	ID             string    `json:"id"`
	User           string    `json:"user"`
	UserID         string    `json:"user_id"`
	ActivityType   string    `json:"activity_type"`
	Duration       int       `json:"duration"`
	Distance       *float64  `json:"distance"`
	CaloriesBurned *int      `json:"calories_burned"`
	Notes          string    `json:"notes"`
	Date           string    `json:"date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserView is the wire form of an account; the password hash never leaves the service.
type UserView struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	DateJoined      time.Time `json:"date_joined"`
	ActivitiesCount int       `json:"activities_count"`
}

// RegisteredUser is the abbreviated account returned by registration.
type RegisteredUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RegisterResponse is returned by POST /register/.
type RegisterResponse struct {
	Message string         `json:"message"`
	User    RegisteredUser `json:"user"`
}

// TokenRequest is the payload for POST /auth/token/.
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse describes an issued bearer token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HistoryResponse is returned by GET /activities/history/.
type HistoryResponse struct {
	Statistics domain.Statistics `json:"statistics"`
	Activities []ActivityView    `json:"activities"`
	Period     string            `json:"period"`
}

func toActivityView(a domain.Activity, owner string) ActivityView {
	return ActivityView{
		ID:             a.ID,
		User:           owner,
		UserID:         a.UserID,
		ActivityType:   string(a.ActivityType),
		Duration:       a.DurationMin,
		Distance:       a.DistanceKm,
		CaloriesBurned: a.CaloriesBurned,
		Notes:          a.Notes,
		Date:           a.Date.Format(domain.DateLayout),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toActivityViews(activities []domain.Activity, owner string) []ActivityView {
	out := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		out = append(out, toActivityView(a, owner))
	}
	return out
}

func toUserView(u domain.User, activities int) UserView {
	return UserView{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		DateJoined:      u.DateJoined,
		ActivitiesCount: activities,
	}
}
