package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/persistence/memory"
)

var today = time.Date(2024, time.January, 20, 15, 30, 0, 0, time.UTC)

type testEnv struct {
	t      *testing.T
	router http.Handler
	repo   *memory.Repository
}

type account struct {
	id    string
	token string
}

func newTestEnv(t *testing.T, cfg RouterConfig) *testEnv {
	t.Helper()
	repo := memory.NewRepository()
	service := domain.NewService(repo,
		domain.WithClock(func() time.Time { return today }),
		domain.WithBcryptCost(bcrypt.MinCost),
	)
	handler := NewHandler(service, auth.Config{Secret: "test-secret", Issuer: "fitlog", TTL: time.Hour})
	return &testEnv{t: t, router: NewRouter(handler, cfg), repo: repo}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(e.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signUp(username string) account {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/register/", "", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var registered RegisterResponse
	decode(e.t, rec, &registered)

	rec = e.do(http.MethodPost, "/auth/token/", "", map[string]any{
		"username": username,
		"password": "correct-horse",
	})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	var token TokenResponse
	decode(e.t, rec, &token)
	return account{id: registered.User.ID, token: token.AccessToken}
}

func (e *testEnv) logActivity(acct account, body map[string]any) ActivityView {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/activities/", acct.token, body)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var view ActivityView
	decode(e.t, rec, &view)
	return view
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body struct {
		Error struct {
			StatusCode int             `json:"status_code"`
			Message    string          `json:"message"`
			Details    json.RawMessage `json:"details"`
		} `json:"error"`
	}
	decode(t, rec, &body)
	out := ErrorBody{StatusCode: body.Error.StatusCode, Message: body.Error.Message}
	var details map[string]any
	require.NoError(t, json.Unmarshal(body.Error.Details, &details))
	out.Details = details
	return out
}

func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string][]string {
	t.Helper()
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var body struct {
		Error struct {
			Message string              `json:"message"`
			Details map[string][]string `json:"details"`
		} `json:"error"`
	}
	decode(t, rec, &body)
	require.Equal(t, "Validation error", body.Error.Message)
	return body.Error.Details
}

func TestUnauthenticatedListReturnsEnvelope(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	rec := env.do(http.MethodGet, "/activities/", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":{"status_code":401,"message":"Authentication required","details":{"detail":"Authentication credentials were not provided"}}}`, rec.Body.String())
}

func TestInvalidTokenRejected(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	rec := env.do(http.MethodGet, "/activities/", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "Authentication required", body.Message)
}

func TestCreateActivityForcesOwner(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	alice := env.signUp("alice")
	bob := env.signUp("bob")

	view := env.logActivity(alice, map[string]any{
		"activity_type": "running",
		"duration":      30,
		"date":          "2024-01-15",
		"user_id":       bob.id,
		"user":          "bob",
	})
	require.Equal(t, alice.id, view.UserID)
	require.Equal(t, "alice", view.User)
	require.Equal(t, "running", view.ActivityType)
	require.Equal(t, 30, view.Duration)
	require.Equal(t, "2024-01-15", view.Date)
	require.Nil(t, view.Distance)
	require.Nil(t, view.CaloriesBurned)

	rec := env.do(http.MethodGet, "/activities/", bob.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bobs []ActivityView
	decode(t, rec, &bobs)
	require.Empty(t, bobs)
}

func TestCreateActivityValidation(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	alice := env.signUp("alice")

	errs := fieldErrors(t, env.do(http.MethodPost, "/activities/", alice.token, map[string]any{}))
	require.Equal(t, []string{"This field is required."}, errs["activity_type"])
	require.Equal(t, []string{"This field is required."}, errs["duration"])
	require.Equal(t, []string{"This field is required."}, errs["date"])

	errs = fieldErrors(t, env.do(http.MethodPost, "/activities/", alice.token, map[string]any{
		"activity_type":   "skydiving",
		"duration":        0,
		"distance":        -1.5,
		"calories_burned": -10,
		"date":            "2024-01-21",
	}))
	require.Contains(t, errs["activity_type"][0], "running")
	require.Equal(t, []string{"Duration must be greater than 0 minutes."}, errs["duration"])
	require.Equal(t, []string{"Distance cannot be negative."}, errs["distance"])
	require.Equal(t, []string{"Calories burned cannot be negative."}, errs["calories_burned"])
	require.Equal(t, []string{"Date cannot be in the future."}, errs["date"])

	errs = fieldErrors(t, env.do(http.MethodPost, "/activities/", alice.token, map[string]any{
		"activity_type": "cycling",
		"duration":      1441,
		"date":          "15/01/2024",
	}))
	require.Equal(t, []string{"Duration cannot exceed 1440 minutes (24 hours)."}, errs["duration"])
	require.Contains(t, errs["date"][0], "YYYY-MM-DD")

	env.logActivity(alice, map[string]any{"activity_type": "cycling", "duration": 1440, "date": "2024-01-20"})
}

func TestMalformedBody(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	alice := env.signUp("alice")

	rec := env.do(http.MethodPost, "/activities/", alice.token, `{"duration": `)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "Validation error", body.Message)
	require.Contains(t, body.Details.(map[string]any)["detail"], "JSON parse error")
}

func TestActivityScopedToCaller(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	alice := env.signUp("alice")
	bob := env.signUp("bob")
	run := env.logActivity(alice, map[string]any{"activity_type": "running", "duration": 30, "date": "2024-01-15"})

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		rec := env.do(method, "/activities/"+run.ID+"/", bob.token, map[string]any{"duration": 10})
		require.Equal(t, http.StatusNotFound, rec.Code, method)
		require.JSONEq(t, `{"error":{"status_code":404,"message":"Resource not found","details":{"detail":"The requested resource does not exist"}}}`, rec.Body.String())
	}

	rec := env.do(http.MethodGet, "/activities/?user_id="+alice.id, bob.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []ActivityView
	decode(t, rec, &list)
	require.Empty(t, list)

	rec = env.do(http.MethodGet, "/activities/"+run.ID+"/", alice.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateActivity(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	alice := env.signUp("alice")
	run := env.logActivity(alice, map[string]any{
		"activity_type": "running", "duration": 30, "distance": 5.0, "calories_burned": 300, "date": "2024-01-15",
	})
	path := "/activities/" + run.ID + "/"

	rec := env.do(http.MethodPatch, path, alice.token, map[string]any{"duration": 45, "distance": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var patched ActivityView
	decode(t, rec, &patched)
	require.Equal(t, 45, patched.Duration)
	require.Nil(t, patched.Distance)
	require.Equal(t, 300, *patched.CaloriesBurned)
	require.Equal(t, "running", patched.ActivityType)

	errs := fieldErrors(t, env.do(http.MethodPut, path, alice.token, map[string]any{"duration": 50}))
	require.Contains(t, errs, "activity_type")
	require.Contains(t, errs, "date")

	rec = env.do(http.MethodPut, path, alice.token, map[string]any{"activity_type": "walking", "duration": 50, "date": "2024-01-16"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var replaced ActivityView
	decode(t, rec, &replaced)
	require.Equal(t, "walking", replaced.ActivityType)
	require.Equal(t, alice.id, replaced.UserID)

	rec = env.do(http.MethodDelete, path, alice.token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(http.MethodGet, path, alice.token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListFiltersAndSort(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	alice := env.signUp("alice")
	env.logActivity(alice, map[string]any{"activity_type": "running", "duration": 30, "date": "2024-01-10"})
	env.logActivity(alice, map[string]any{"activity_type": "cycling", "duration": 90, "date": "2024-01-12"})
	env.logActivity(alice, map[string]any{"activity_type": "running", "duration": 20, "date": "2024-01-18"})

	list := func(query string) []ActivityView {
		rec := env.do(http.MethodGet, "/activities/"+query, alice.token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []ActivityView
		decode(t, rec, &out)
		return out
	}
	durations := func(views []ActivityView) []int {
		out := make([]int, 0, len(views))
		for _, v := range views {
			out = append(out, v.Duration)
		}
		return out
	}

	require.Equal(t, []int{20, 90, 30}, durations(list("")))
	require.Equal(t, []int{20, 30}, durations(list("?activity_type=running")))
	require.Equal(t, []int{90, 30}, durations(list("?start_date=2024-01-10&end_date=2024-01-12")))
	require.Equal(t, []int{20, 30, 90}, durations(list("?sort_by=duration")))
	require.Equal(t, []int{20, 90, 30}, durations(list("?sort_by=bogus")))
	require.Equal(t, []int{20}, durations(list("?days=3")))

	errs := fieldErrors(t, env.do(http.MethodGet, "/activities/?start_date=2024-01-12&end_date=2024-01-10", alice.token, nil))
	require.Contains(t, errs, "start_date")

	errs = fieldErrors(t, env.do(http.MethodGet, "/activities/?days=-2", alice.token, nil))
	require.Contains(t, errs, "days")
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	alice := env.signUp("alice")

	rec := env.do(http.MethodGet, "/activities/summary/", alice.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var empty domain.Summary
	decode(t, rec, &empty)
	require.Zero(t, empty.TotalActivities)
	require.Zero(t, empty.AverageDurationMinutes)
	require.NotNil(t, empty.ActivitiesByType)

	env.logActivity(alice, map[string]any{"activity_type": "running", "duration": 30, "date": "2024-01-15"})
	env.logActivity(alice, map[string]any{"activity_type": "cycling", "duration": 45, "date": "2023-06-01", "distance": 12.5})

	rec = env.do(http.MethodGet, "/activities/summary/", alice.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decode(t, rec, &body)
	require.EqualValues(t, 2, body["total_activities"])
	require.EqualValues(t, 75, body["total_duration_minutes"])
	require.EqualValues(t, 37.5, body["average_duration_minutes"])
	require.EqualValues(t, 12.5, body["total_distance_km"])
	require.Equal(t, "All time", body["period"])
	require.Len(t, body["activities_by_type"], 2)
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	alice := env.signUp("alice")
	env.logActivity(alice, map[string]any{"activity_type": "running", "duration": 30, "date": "2024-01-15"})
	env.logActivity(alice, map[string]any{"activity_type": "yoga", "duration": 60, "date": "2023-11-01"})

	rec := env.do(http.MethodGet, "/activities/history/", alice.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var history HistoryResponse
	decode(t, rec, &history)
	require.Equal(t, "Last 30 days", history.Period)
	require.Equal(t, 1, history.Statistics.TotalActivities)
	require.Len(t, history.Activities, 1)
	require.Equal(t, "alice", history.Activities[0].User)

	rec = env.do(http.MethodGet, "/activities/history/?days=365", alice.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &history)
	require.Equal(t, "Last 365 days", history.Period)
	require.Equal(t, 2, history.Statistics.TotalActivities)
	require.EqualValues(t, 45, history.Statistics.AverageDurationMinutes)
}

func TestTrends(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	alice := env.signUp("alice")
	env.logActivity(alice, map[string]any{"activity_type": "running", "duration": 30, "date": "2023-12-05", "distance": 5.5})
	env.logActivity(alice, map[string]any{"activity_type": "running", "duration": 40, "date": "2023-12-28", "calories_burned": 420})

	rec := env.do(http.MethodGet, "/activities/trends/?period=monthly&months=2", alice.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var monthly domain.Trends
	decode(t, rec, &monthly)
	require.Equal(t, domain.TrendMonthly, monthly.PeriodType)
	require.Len(t, monthly.Buckets, 2)
	require.Equal(t, "November 2023", monthly.Buckets[0].Label)
	require.Equal(t, "2023-11-01 to 2023-11-30", monthly.Buckets[0].DateRange)
	require.Equal(t, "December 2023", monthly.Buckets[1].Label)
	require.Equal(t, "2023-12-01 to 2023-12-31", monthly.Buckets[1].DateRange)
	require.Equal(t, 2, monthly.Buckets[1].TotalActivities)
	require.Equal(t, 70, monthly.Buckets[1].TotalDurationMinutes)
	require.InDelta(t, 5.5, monthly.Buckets[1].TotalDistanceKm, 1e-9)
	require.Equal(t, 420, monthly.Buckets[1].TotalCaloriesBurned)

	rec = env.do(http.MethodGet, "/activities/trends/?period=weekly&weeks=4", alice.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var weekly domain.Trends
	decode(t, rec, &weekly)
	require.Len(t, weekly.Buckets, 4)
	require.Equal(t, "Week of 2023-12-23", weekly.Buckets[0].Label)
	require.Equal(t, "2024-01-13 to 2024-01-19", weekly.Buckets[3].DateRange)
	require.Equal(t, 1, weekly.Buckets[0].TotalActivities)

	errs := fieldErrors(t, env.do(http.MethodGet, "/activities/trends/?period=daily", alice.token, nil))
	require.Contains(t, errs["period"][0], "weekly")
	require.Contains(t, errs["period"][0], "monthly")

	errs = fieldErrors(t, env.do(http.MethodGet, "/activities/trends/?weeks=0", alice.token, nil))
	require.Contains(t, errs, "weeks")
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	alice := env.signUp("alice")

	rec := env.do(http.MethodDelete, "/activities/summary/", alice.token, nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "Method not allowed", decodeError(t, rec).Message)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	rec := env.do(http.MethodGet, "/nope/", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Resource not found", decodeError(t, rec).Message)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	rec := env.do(http.MethodGet, "/healthz", "garbage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
