package domain

import (
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// MaxDurationMinutes bounds a single activity to one day.
const MaxDurationMinutes = 1440

// ActivityType enumerates the supported kinds of exercise.
type ActivityType string

const (
	ActivityRunning  ActivityType = "running"
	ActivityCycling  ActivityType = "cycling"
	ActivitySwimming ActivityType = "swimming"
	ActivityWalking  ActivityType = "walking"
	ActivityGym      ActivityType = "gym"
	ActivityYoga     ActivityType = "yoga"
	ActivityHiking   ActivityType = "hiking"
	ActivityOther    ActivityType = "other"
)

// ActivityTypes lists every accepted activity type in display order.
var ActivityTypes = []ActivityType{
	ActivityRunning,
	ActivityCycling,
	ActivitySwimming,
	ActivityWalking,
	ActivityGym,
	ActivityYoga,
	ActivityHiking,
	ActivityOther,
}

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

func allowedActivityTypes() string {
	names := make([]string, 0, len(ActivityTypes))
	for _, t := range ActivityTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// Activity is a single logged exercise session owned by one user.
type Activity struct {
	ID             string
	UserID         string
	ActivityType   ActivityType
	DurationMin    int
	DistanceKm     *float64
	CaloriesBurned *int
	Notes          string
	Date           time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar date.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
}
