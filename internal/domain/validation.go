package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	msgRequired      = "This field is required."
	msgNotNull       = "This field may not be null."
	msgInvalidInt    = "A valid integer is required."
	msgInvalidNumber = "A valid number is required."
	msgInvalidString = "Not a valid string."
	msgDateFormat    = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
)

// Field records whether a JSON key was supplied, whether it was null, and
// whether its value could be decoded into T. Decoding never fails so that
// type mismatches surface as field errors instead of a rejected body.
type Field[T any] struct {
	Set     bool
	Null    bool
	Invalid bool
	Value   T
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		return nil
	}
	if n, ok := any(&f.Value).(*int); ok {
		v, valid := decodeInt(data)
		*n, f.Invalid = v, !valid
		return nil
	}
	if err := json.Unmarshal(data, &f.Value); err != nil {
		f.Invalid = true
	}
	return nil
}

var trailingZeroFraction = regexp.MustCompile(`\.0*\s*$`)

// decodeInt accepts JSON integers, integral decimals such as 30.0 and
// numeric strings such as "30".
func decodeInt(data []byte) (int, bool) {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return 0, false
		}
		raw = strings.TrimSpace(text)
	}
	n, err := strconv.Atoi(trailingZeroFraction.ReplaceAllString(raw, ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Present reports whether the key was supplied with a non-null value.
func (f Field[T]) Present() bool {
	return f.Set && !f.Null
}

// Of returns a Field holding v, convenient for building payloads in code.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// ActivityPayload is the client-supplied representation of an activity.
// Owner fields are deliberately absent: the owner always comes from the caller.
type ActivityPayload struct {
	ActivityType   Field[string]  `json:"activity_type"`
	Duration       Field[int]     `json:"duration"`
	Distance       Field[float64] `json:"distance"`
	CaloriesBurned Field[int]     `json:"calories_burned"`
	Notes          Field[string]  `json:"notes"`
	Date           Field[string]  `json:"date"`
}

// Apply validates p and writes the accepted values onto dst. When partial is
// false the mandatory fields must all be supplied. Every failing field is
// reported; dst is left untouched if any field fails.
func (p ActivityPayload) Apply(dst *Activity, today time.Time, partial bool) error {
	verr := &ValidationError{}
	next := *dst

	if required(verr, "activity_type", p.ActivityType.Set, p.ActivityType.Null, partial) {
		switch t := ActivityType(p.ActivityType.Value); {
		case p.ActivityType.Invalid:
			verr.Add("activity_type", msgInvalidString)
		case !t.Valid():
			verr.Add("activity_type", fmt.Sprintf("%q is not a valid choice. Allowed values: %s.", p.ActivityType.Value, allowedActivityTypes()))
		default:
			next.ActivityType = t
		}
	}

	if required(verr, "duration", p.Duration.Set, p.Duration.Null, partial) {
		if err := validateDuration(p.Duration); err != "" {
			verr.Add("duration", err)
		} else {
			next.DurationMin = p.Duration.Value
		}
	}

	switch {
	case p.Distance.Null:
		next.DistanceKm = nil
	case p.Distance.Invalid:
		verr.Add("distance", msgInvalidNumber)
	case p.Distance.Set && p.Distance.Value < 0:
		verr.Add("distance", "Distance cannot be negative.")
	case p.Distance.Set:
		v := p.Distance.Value
		next.DistanceKm = &v
	}

	switch {
	case p.CaloriesBurned.Null:
		next.CaloriesBurned = nil
	case p.CaloriesBurned.Invalid:
		verr.Add("calories_burned", msgInvalidInt)
	case p.CaloriesBurned.Set && p.CaloriesBurned.Value < 0:
		verr.Add("calories_burned", "Calories burned cannot be negative.")
	case p.CaloriesBurned.Set:
		v := p.CaloriesBurned.Value
		next.CaloriesBurned = &v
	}

	switch {
	case p.Notes.Null:
		next.Notes = ""
	case p.Notes.Invalid:
		verr.Add("notes", msgInvalidString)
	case p.Notes.Set:
		next.Notes = p.Notes.Value
	}

	if required(verr, "date", p.Date.Set, p.Date.Null, partial) {
		date, msg := validateDate(p.Date, today)
		if msg != "" {
			verr.Add("date", msg)
		} else {
			next.Date = date
		}
	}

	if !verr.Empty() {
		return verr
	}
	*dst = next
	return nil
}

// required records missing or null mandatory fields and reports whether the
// field carries a value worth validating further.
func required(verr *ValidationError, field string, set, null, partial bool) bool {
	switch {
	case null:
		verr.Add(field, msgNotNull)
		return false
	case !set && !partial:
		verr.Add(field, msgRequired)
		return false
	default:
		return set
	}
}

func validateDuration(f Field[int]) string {
	switch {
	case f.Invalid:
		return msgInvalidInt
	case f.Value <= 0:
		return "Duration must be greater than 0 minutes."
	case f.Value > MaxDurationMinutes:
		return fmt.Sprintf("Duration cannot exceed %d minutes (24 hours).", MaxDurationMinutes)
	default:
		return ""
	}
}

func validateDate(f Field[string], today time.Time) (time.Time, string) {
	if f.Invalid {
		return time.Time{}, msgDateFormat
	}
	date, err := ParseDate(f.Value)
	if err != nil {
		return time.Time{}, msgDateFormat
	}
	if date.After(DateOnly(today)) {
		return time.Time{}, "Date cannot be in the future."
	}
	return date, ""
}
