package domain

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultLookbackDays is the history window applied when no range is requested.
const DefaultLookbackDays = 30

// SortField names an orderable activity column.
type SortField string

const (
	SortByDate      SortField = "date"
	SortByDuration  SortField = "duration"
	SortByCalories  SortField = "calories_burned"
	SortByCreatedAt SortField = "created_at"
)

// Sort is an allow-listed ordering over activities.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort orders newest first.
var DefaultSort = Sort{Field: SortByDate, Desc: true}

var sortFields = map[SortField]struct{}{
	SortByDate:      {},
	SortByDuration:  {},
	SortByCalories:  {},
	SortByCreatedAt: {},
}

// ParseSort maps a sort_by value such as "-duration" onto a Sort. Values
// outside the allow-list fall back to DefaultSort rather than failing.
func ParseSort(raw string) Sort {
	raw = strings.TrimSpace(raw)
	desc := strings.HasPrefix(raw, "-")
	field := SortField(strings.TrimPrefix(raw, "-"))
	if _, ok := sortFields[field]; !ok {
		return DefaultSort
	}
	return Sort{Field: field, Desc: desc}
}

func (s Sort) String() string {
	if s.Desc {
		return "-" + string(s.Field)
	}
	return string(s.Field)
}

// Compare orders a before b according to s, breaking ties with the default
// ordering and finally the id. Missing calorie values always sort last.
func (s Sort) Compare(a, b Activity) int {
	var c int
	switch s.Field {
	case SortByDuration:
		c = cmp.Compare(a.DurationMin, b.DurationMin)
	case SortByCalories:
		switch {
		case a.CaloriesBurned == nil && b.CaloriesBurned == nil:
		case a.CaloriesBurned == nil:
			return 1
		case b.CaloriesBurned == nil:
			return -1
		default:
			c = cmp.Compare(*a.CaloriesBurned, *b.CaloriesBurned)
		}
	case SortByCreatedAt:
		c = a.CreatedAt.Compare(b.CreatedAt)
	default:
		c = a.Date.Compare(b.Date)
	}
	if s.Desc {
		c = -c
	}
	if c != 0 {
		return c
	}
	if c = b.Date.Compare(a.Date); c != 0 {
		return c
	}
	if c = b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

// ActivityQuery is the repository-level filter over one user's activities.
// From and To are inclusive calendar dates; nil means unbounded.
type ActivityQuery struct {
	UserID       string
	ActivityType string
	From         *time.Time
	To           *time.Time
	Sort         Sort
}

// Matches reports whether a satisfies every predicate of q.
func (q ActivityQuery) Matches(a Activity) bool {
	if a.UserID != q.UserID {
		return false
	}
	if q.ActivityType != "" && string(a.ActivityType) != q.ActivityType {
		return false
	}
	if q.From != nil && a.Date.Before(*q.From) {
		return false
	}
	if q.To != nil && a.Date.After(*q.To) {
		return false
	}
	return true
}

// Params is the read side of url.Values.
type Params interface {
	Get(key string) string
}

// ActivityFilter is a validated query plus a human readable description of its window.
type ActivityFilter struct {
	Query  ActivityQuery
	Period string
}

// BuildActivityFilter translates request parameters into a query scoped to
// userID. Explicit start_date/end_date win over days; with neither, the
// window is the last defaultDays days, or unbounded when defaultDays is 0.
// Any user identifier present in params is ignored.
func BuildActivityFilter(userID string, params Params, today time.Time, defaultDays int) (ActivityFilter, error) {
	today = DateOnly(today)
	verr := &ValidationError{}

	start, hasStart := parseDateParam(verr, params, "start_date")
	end, hasEnd := parseDateParam(verr, params, "end_date")

	days := defaultDays
	rawDays := strings.TrimSpace(params.Get("days"))
	hasDays := rawDays != ""
	if hasDays {
		parsed, err := strconv.Atoi(rawDays)
		if err != nil || parsed < 0 {
			verr.Add("days", "Must be a non-negative integer.")
		} else {
			days = parsed
		}
	}
	if !verr.Empty() {
		return ActivityFilter{}, verr
	}

	filter := ActivityFilter{
		Query: ActivityQuery{
			UserID:       userID,
			ActivityType: strings.TrimSpace(params.Get("activity_type")),
			Sort:         ParseSort(params.Get("sort_by")),
		},
	}

	switch {
	case hasStart || hasEnd:
		if !hasEnd {
			end = today
		}
		filter.Query.To = &end
		if !hasStart && days > 0 {
			start = end.AddDate(0, 0, -days)
			hasStart = true
		}
		if hasStart {
			if start.After(end) {
				return ActivityFilter{}, NewValidationError("start_date", "start_date must be on or before end_date.")
			}
			filter.Query.From = &start
			filter.Period = fmt.Sprintf("%s to %s", start.Format(DateLayout), end.Format(DateLayout))
		} else {
			filter.Period = "Until " + end.Format(DateLayout)
		}
	case hasDays || days > 0:
		from := today.AddDate(0, 0, -days)
		to := today
		filter.Query.From = &from
		filter.Query.To = &to
		filter.Period = fmt.Sprintf("Last %d days", days)
	default:
		filter.Period = "All time"
	}

	return filter, nil
}

func parseDateParam(verr *ValidationError, params Params, key string) (time.Time, bool) {
	raw := strings.TrimSpace(params.Get(key))
	if raw == "" {
		return time.Time{}, false
	}
	date, err := ParseDate(raw)
	if err != nil {
		verr.Add(key, msgDateFormat)
		return time.Time{}, false
	}
	return date, true
}
