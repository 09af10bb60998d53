package domain

import (
	"math"
	"sort"
)

// TypeBreakdown aggregates activities of a single type.
type TypeBreakdown struct {
	ActivityType         ActivityType `json:"activity_type"`
	Count                int          `json:"count"`
	TotalDurationMinutes int          `json:"total_duration_minutes"`
	TotalDistanceKm      float64      `json:"total_distance_km"`
	TotalCaloriesBurned  int          `json:"total_calories_burned"`
}

// Statistics summarises a set of activities.
type Statistics struct {
	TotalActivities        int             `json:"total_activities"`
	TotalDurationMinutes   int             `json:"total_duration_minutes"`
	TotalDistanceKm        float64         `json:"total_distance_km"`
	TotalCaloriesBurned    int             `json:"total_calories_burned"`
	AverageDurationMinutes float64         `json:"average_duration_minutes"`
	AverageDistanceKm      float64         `json:"average_distance_km"`
	AverageCaloriesBurned  float64         `json:"average_calories_burned"`
	ActivitiesByType       []TypeBreakdown `json:"activities_by_type"`
}

// Aggregate computes Statistics over activities. Averages of optional fields
// only consider activities that carry the field. An empty input yields zeros.
func Aggregate(activities []Activity) Statistics {
	stats := Statistics{ActivitiesByType: []TypeBreakdown{}}

	var (
		distanceSum   float64
		distanceCount int
		caloriesCount int
	)
	byType := make(map[ActivityType]*TypeBreakdown)

	for _, a := range activities {
		stats.TotalActivities++
		stats.TotalDurationMinutes += a.DurationMin

		group, ok := byType[a.ActivityType]
		if !ok {
			group = &TypeBreakdown{ActivityType: a.ActivityType}
			byType[a.ActivityType] = group
		}
		group.Count++
		group.TotalDurationMinutes += a.DurationMin

		if a.DistanceKm != nil {
			distanceSum += *a.DistanceKm
			distanceCount++
			group.TotalDistanceKm += *a.DistanceKm
		}
		if a.CaloriesBurned != nil {
			stats.TotalCaloriesBurned += *a.CaloriesBurned
			caloriesCount++
			group.TotalCaloriesBurned += *a.CaloriesBurned
		}
	}

	stats.TotalDistanceKm = Round2(distanceSum)
	stats.AverageDurationMinutes = average(float64(stats.TotalDurationMinutes), stats.TotalActivities)
	stats.AverageDistanceKm = average(distanceSum, distanceCount)
	stats.AverageCaloriesBurned = average(float64(stats.TotalCaloriesBurned), caloriesCount)

	for _, group := range byType {
		group.TotalDistanceKm = Round2(group.TotalDistanceKm)
		stats.ActivitiesByType = append(stats.ActivitiesByType, *group)
	}
	sort.Slice(stats.ActivitiesByType, func(i, j int) bool {
		a, b := stats.ActivitiesByType[i], stats.ActivitiesByType[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.ActivityType < b.ActivityType
	})

	return stats
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func average(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return Round2(sum / float64(n))
}
