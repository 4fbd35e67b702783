package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpblatz/repeet/internal/adapter/local"
	"github.com/mpblatz/repeet/internal/adapter/sqlitekv"
	"github.com/mpblatz/repeet/internal/config"
	"github.com/mpblatz/repeet/internal/service/schedule"
	"github.com/mpblatz/repeet/internal/service/tracker"
	"github.com/mpblatz/repeet/internal/transport/middleware"
	"github.com/mpblatz/repeet/pkg/ctxutil"
)

type noAudit struct{}

func (noAudit) Float64() float64 { return 0.99 }
func (noAudit) IntN(int) int     { return 0 }

var testNow = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

// newTestServer wires the router over a tracker backed by a real local store.
func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	kv, err := sqlitekv.Open(context.Background(), filepath.Join(t.TempDir(), "repeet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := schedule.Fixed(testNow, time.UTC)
	svc := tracker.NewService(logger, local.New(kv, clock), nil,
		tracker.SessionFunc(ctxutil.SessionFromCtx),
		tracker.Options{Clock: clock, Rand: noAudit{}},
	)

	chain := middleware.Chain(
		middleware.RequestID,
		middleware.CORS(config.CORSConfig{
			AllowedOrigins: "*",
			AllowedMethods: "GET,POST,PATCH,DELETE",
			AllowedHeaders: "Authorization,Content-Type",
			MaxAge:         600,
		}),
	)
	return NewRouter(
		NewTrackerHandler(svc, clock, logger),
		NewHealthHandler("test", Component{Name: "local", Pinger: kv}),
		chain,
	)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func createProblem(t *testing.T, h http.Handler, name string) problemResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/problems", map[string]any{"name": name, "difficulty": "easy"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[problemResponse](t, rec)
}

func TestRouter_CreateAndQueue(t *testing.T) {
	t.Parallel()
	h := newTestServer(t)

	first := createProblem(t, h, "  Two Sum ")
	assert.Equal(t, "Two Sum", first.Name)
	assert.Equal(t, "Easy", first.Difficulty)
	assert.Equal(t, "queued", first.Status)
	require.NotNil(t, first.QueuePosition)
	assert.Equal(t, 1, *first.QueuePosition)
	assert.NotNil(t, first.Attempts)

	second := createProblem(t, h, "Valid Parentheses")
	assert.Equal(t, 2, *second.QueuePosition)

	rec := do(t, h, http.MethodGet, "/api/v1/problems/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue := decode[[]problemResponse](t, rec)
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].ID)
	assert.Equal(t, second.ID, queue[1].ID)
}

func TestRouter_CreateValidation(t *testing.T) {
	t.Parallel()
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/problems", map[string]any{"name": " ", "difficulty": "Brutal"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "validation failed", resp.Error)
	fields := map[string]bool{}
	for _, f := range resp.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["difficulty"])

	rec = do(t, h, http.MethodPost, "/api/v1/problems", `{"name":"Two Sum","rating":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/problems", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_BulkIsAllOrNothing(t *testing.T) {
	t.Parallel()
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/problems/bulk", map[string]any{
		"problems": []map[string]any{
			{"name": "Two Sum"},
			{"name": ""},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "problems[1].name", resp.Fields[0].Field)

	queue := decode[[]problemResponse](t, do(t, h, http.MethodGet, "/api/v1/problems/queue", nil))
	assert.Empty(t, queue)

	rec = do(t, h, http.MethodPost, "/api/v1/problems/bulk", map[string]any{
		"problems": []map[string]any{
			{"name": "Two Sum"},
			{"name": "3Sum", "difficulty": "medium"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[[]problemResponse](t, rec)
	require.Len(t, created, 2)
	assert.Equal(t, "Medium", created[0].Difficulty)
	assert.Equal(t, 2, *created[1].QueuePosition)
}

func TestRouter_RateLifecycle(t *testing.T) {
	t.Parallel()
	h := newTestServer(t)
	p := createProblem(t, h, "Two Sum")

	rec := do(t, h, http.MethodPost, "/api/v1/problems/"+p.ID+"/rate", map[string]any{
		"rating":           3,
		"notes":            "used a map",
		"timeSpentMinutes": 12,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rated := decode[problemResponse](t, rec)
	assert.Equal(t, "active", rated.Status)
	assert.Nil(t, rated.QueuePosition)
	require.NotNil(t, rated.NextReviewDate)
	assert.Equal(t, "2024-03-13", *rated.NextReviewDate)
	assert.Equal(t, "In 3 days", rated.NextReviewLabel)
	assert.Equal(t, "Today", rated.LastAttemptedLabel)
	require.Len(t, rated.Attempts, 1)
	assert.Equal(t, 3, rated.Attempts[0].Rating)
	assert.Equal(t, 12, *rated.Attempts[0].TimeSpentMinutes)

	review := decode[[]problemResponse](t, do(t, h, http.MethodGet, "/api/v1/problems/review", nil))
	require.Len(t, review, 1)
	assert.Equal(t, p.ID, review[0].ID)

	for range 2 {
		rec = do(t, h, http.MethodPost, "/api/v1/problems/"+p.ID+"/rate", map[string]any{"rating": 5})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	mastered := decode[problemResponse](t, rec)
	assert.Equal(t, "mastered", mastered.Status)
	assert.Nil(t, mastered.NextReviewDate)
	require.NotNil(t, mastered.MasteredAt)
	assert.True(t, mastered.MasteredAt.Equal(testNow))

	list := decode[[]problemResponse](t, do(t, h, http.MethodGet, "/api/v1/problems/mastered", nil))
	require.Len(t, list, 1)
	assert.Len(t, list[0].Attempts, 3)
}

func TestRouter_RateErrors(t *testing.T) {
	t.Parallel()
	h := newTestServer(t)
	p := createProblem(t, h, "Two Sum")

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{name: "rating out of range", path: "/api/v1/problems/" + p.ID + "/rate", body: map[string]any{"rating": 6}, want: http.StatusBadRequest},
		{name: "negative time", path: "/api/v1/problems/" + p.ID + "/rate", body: map[string]any{"rating": 3, "timeSpentMinutes": -1}, want: http.StatusBadRequest},
		{name: "unknown problem", path: "/api/v1/problems/00000000-0000-4000-8000-000000000001/rate", body: map[string]any{"rating": 3}, want: http.StatusNotFound},
		{name: "malformed id", path: "/api/v1/problems/not-a-uuid/rate", body: map[string]any{"rating": 3}, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	got := decode[problemResponse](t, do(t, h, http.MethodGet, "/api/v1/problems/"+p.ID, nil))
	assert.Equal(t, "queued", got.Status)
	assert.Zero(t, got.AttemptCount)
}

func TestRouter_Delete(t *testing.T) {
	t.Parallel()
	h := newTestServer(t)
	p := createProblem(t, h, "Two Sum")

	rec := do(t, h, http.MethodDelete, "/api/v1/problems/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/problems/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/problems/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_StatsAndDashboard(t *testing.T) {
	t.Parallel()
	h := newTestServer(t)

	a := createProblem(t, h, "Two Sum")
	createProblem(t, h, "Valid Parentheses")
	c := createProblem(t, h, "Merge Two Sorted Lists")
	do(t, h, http.MethodPost, "/api/v1/problems/"+a.ID+"/rate", map[string]any{"rating": 2})
	do(t, h, http.MethodPost, "/api/v1/problems/"+c.ID+"/rate", map[string]any{"rating": 5})
	do(t, h, http.MethodPost, "/api/v1/problems/"+c.ID+"/rate", map[string]any{"rating": 5})

	rec := do(t, h, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statsResponse{
		Total:       3,
		Queued:      1,
		Active:      1,
		Mastered:    1,
		DueToday:    1,
		MasteryRate: 50,
	}, decode[statsResponse](t, rec))

	rec = do(t, h, http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[dashboardResponse](t, rec)
	assert.Equal(t, "2024-03-10", d.Today)
	assert.Len(t, d.Queue, 1)
	assert.Len(t, d.Review, 1)
	assert.Len(t, d.Mastered, 1)
	assert.Equal(t, 3, d.Stats.Total)
	assert.Nil(t, d.Audit)
}

func TestRouter_AuditWithoutDraw(t *testing.T) {
	t.Parallel()
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"problem":null}`, rec.Body.String())

	s := decode[settingsResponse](t, do(t, h, http.MethodGet, "/api/v1/settings", nil))
	require.NotNil(t, s.LastAuditDate)
	assert.Equal(t, "2024-03-10", *s.LastAuditDate)
	assert.Nil(t, s.AuditProblemID)
}

func TestRouter_Settings(t *testing.T) {
	t.Parallel()
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[settingsResponse](t, rec)
	assert.Equal(t, 3, s.DailyGoal)
	assert.True(t, s.EnableAudits)
	assert.Equal(t, "dark", s.Theme)

	rec = do(t, h, http.MethodPatch, "/api/v1/settings", map[string]any{"dailyGoal": 5, "theme": "Light"})
	require.Equal(t, http.StatusOK, rec.Code)
	s = decode[settingsResponse](t, rec)
	assert.Equal(t, 5, s.DailyGoal)
	assert.Equal(t, "light", s.Theme)
	assert.True(t, s.EnableAudits)

	rec = do(t, h, http.MethodPatch, "/api/v1/settings", map[string]any{"dailyGoal": 99})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s = decode[settingsResponse](t, do(t, h, http.MethodGet, "/api/v1/settings", nil))
	assert.Equal(t, 5, s.DailyGoal)
}

func TestRouter_Import(t *testing.T) {
	t.Parallel()
	h := newTestServer(t)

	lists := decode[map[string][]string](t, do(t, h, http.MethodGet, "/api/v1/problems/import", nil))
	assert.Equal(t, []string{"grind-75", "neetcode-150"}, lists["lists"])

	rec := do(t, h, http.MethodPost, "/api/v1/problems/import/grind-75", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[[]problemResponse](t, rec)
	require.Len(t, created, 75)
	require.NotNil(t, created[0].Source)
	assert.Equal(t, "grind-75", *created[0].Source)

	rec = do(t, h, http.MethodPost, "/api/v1/problems/import/blind-9000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/problems/import", map[string]any{
		"text":   "Two Sum,easy,Arrays,https://leetcode.com/problems/two-sum\n,Hard,,\nLRU Cache,,Design,",
		"source": "notes",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created = decode[[]problemResponse](t, rec)
	require.Len(t, created, 2)
	assert.Equal(t, "Medium", created[1].Difficulty)
	assert.Equal(t, 77, *created[1].QueuePosition)
}

func TestRouter_Routing(t *testing.T) {
	t.Parallel()
	h := newTestServer(t)

	rec := do(t, h, http.MethodPut, "/api/v1/stats", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/problems", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/api/v1/stats", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
