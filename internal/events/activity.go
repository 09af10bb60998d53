// Package events defines the activity event payloads published through the outbox.
package events

import "time"

// Event types recorded in the outbox.
const (
	ActivityCreated = "activity.created"
	ActivityUpdated = "activity.updated"
	ActivityDeleted = "activity.deleted"
)

// TopicActivityEvents is the Kafka topic carrying every activity event.
const TopicActivityEvents = "activity_events"

// ActivityRecorded is emitted when an activity is created or updated.
type ActivityRecorded struct {
	ActivityID     string    `json:"activity_id"`
	UserID         string    `json:"user_id"`
	ActivityType   string    `json:"activity_type"`
	Date           string    `json:"date"`
	DurationMin    int       `json:"duration_min"`
	DistanceKm     *float64  `json:"distance_km,omitempty"`
	CaloriesBurned *int      `json:"calories_burned,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ActivityRemoved is emitted when an owner deletes an activity.
type ActivityRemoved struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
