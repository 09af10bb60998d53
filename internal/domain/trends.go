package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TrendPeriod selects the bucket width for trend reports.
type TrendPeriod string

const (
	TrendWeekly  TrendPeriod = "weekly"
	TrendMonthly TrendPeriod = "monthly"
)

const (
	defaultTrendWeeks  = 4
	defaultTrendMonths = 6
	maxTrendWeeks      = 520
	maxTrendMonths     = 120
)

// TrendRequest is a validated trend query.
type TrendRequest struct {
	Period TrendPeriod
	Count  int
}

// TrendBucket aggregates the activities falling inside one window.
type TrendBucket struct {
	Label                string    `json:"period"`
	DateRange            string    `json:"date_range"`
	Start                time.Time `json:"-"`
	End                  time.Time `json:"-"`
	TotalActivities      int       `json:"total_activities"`
	TotalDurationMinutes int       `json:"total_duration_minutes"`
	TotalDistanceKm      float64   `json:"total_distance_km"`
	TotalCaloriesBurned  int       `json:"total_calories_burned"`
}

// ParseTrendRequest reads period, weeks and months from params.
func ParseTrendRequest(params Params) (TrendRequest, error) {
	period := TrendPeriod(strings.TrimSpace(params.Get("period")))
	if period == "" {
		period = TrendWeekly
	}

	switch period {
	case TrendWeekly:
		n, err := positiveParam(params, "weeks", defaultTrendWeeks, maxTrendWeeks)
		if err != nil {
			return TrendRequest{}, err
		}
		return TrendRequest{Period: period, Count: n}, nil
	case TrendMonthly:
		n, err := positiveParam(params, "months", defaultTrendMonths, maxTrendMonths)
		if err != nil {
			return TrendRequest{}, err
		}
		return TrendRequest{Period: period, Count: n}, nil
	default:
		return TrendRequest{}, NewValidationError("period", fmt.Sprintf("Invalid period %q. Use %q or %q.", period, TrendWeekly, TrendMonthly))
	}
}

func positiveParam(params Params, key string, fallback, limit int) (int, error) {
	raw := strings.TrimSpace(params.Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, NewValidationError(key, "Must be a positive integer.")
	}
	if n > limit {
		return 0, NewValidationError(key, fmt.Sprintf("Must be at most %d.", limit))
	}
	return n, nil
}

// TrendBuckets partitions the lookback window ending at today into req.Count
// empty buckets. Weekly buckets are 7 inclusive days walked forward from
// today-7n. Monthly buckets are calendar months walked forward from the first
// day of the month containing today-30n.
func TrendBuckets(req TrendRequest, today time.Time) []TrendBucket {
	today = DateOnly(today)
	buckets := make([]TrendBucket, 0, req.Count)

	switch req.Period {
	case TrendMonthly:
		approx := today.AddDate(0, 0, -req.Count*30)
		cursor := time.Date(approx.Year(), approx.Month(), 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < req.Count; i++ {
			start := cursor.AddDate(0, i, 0)
			end := start.AddDate(0, 1, -1)
			buckets = append(buckets, newBucket(start.Format("January 2006"), start, end))
		}
	default:
		cursor := today.AddDate(0, 0, -req.Count*7)
		for i := 0; i < req.Count; i++ {
			start := cursor.AddDate(0, 0, i*7)
			end := start.AddDate(0, 0, 6)
			buckets = append(buckets, newBucket("Week of "+start.Format(DateLayout), start, end))
		}
	}
	return buckets
}

func newBucket(label string, start, end time.Time) TrendBucket {
	return TrendBucket{
		Label:     label,
		DateRange: fmt.Sprintf("%s to %s", start.Format(DateLayout), end.Format(DateLayout)),
		Start:     start,
		End:       end,
	}
}

// ComputeTrends fills the buckets for req with the supplied activities.
// Activities outside every bucket are ignored.
func ComputeTrends(req TrendRequest, activities []Activity, today time.Time) []TrendBucket {
	buckets := TrendBuckets(req, today)
	distances := make([]float64, len(buckets))

	for _, a := range activities {
		idx := bucketIndex(buckets, a.Date)
		if idx < 0 {
			continue
		}
		b := &buckets[idx]
		b.TotalActivities++
		b.TotalDurationMinutes += a.DurationMin
		if a.DistanceKm != nil {
			distances[idx] += *a.DistanceKm
		}
		if a.CaloriesBurned != nil {
			b.TotalCaloriesBurned += *a.CaloriesBurned
		}
	}

	for i := range buckets {
		buckets[i].TotalDistanceKm = Round2(distances[i])
	}
	return buckets
}

// TrendWindow returns the inclusive date span covered by the buckets of req.
func TrendWindow(req TrendRequest, today time.Time) (time.Time, time.Time) {
	buckets := TrendBuckets(req, today)
	if len(buckets) == 0 {
		d := DateOnly(today)
		return d, d
	}
	return buckets[0].Start, buckets[len(buckets)-1].End
}

func bucketIndex(buckets []TrendBucket, date time.Time) int {
	date = DateOnly(date)
	for i, b := range buckets {
		if !date.Before(b.Start) && !date.After(b.End) {
			return i
		}
	}
	return -1
}
