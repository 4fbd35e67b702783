package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mpblatz/repeet/internal/catalog"
	"github.com/mpblatz/repeet/internal/domain"
	"github.com/mpblatz/repeet/internal/service/schedule"
	"github.com/mpblatz/repeet/internal/service/tracker"
)

// trackerService defines the tracker operations served over HTTP.
type trackerService interface {
	ListQueued(ctx context.Context) ([]domain.Problem, error)
	ListActive(ctx context.Context) ([]domain.Problem, error)
	ListMastered(ctx context.Context) ([]domain.Problem, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Problem, error)
	Create(ctx context.Context, in domain.NewProblem) (domain.Problem, error)
	CreateBulk(ctx context.Context, in []domain.NewProblem) ([]domain.Problem, error)
	ImportList(ctx context.Context, name string) ([]domain.Problem, error)
	ImportText(ctx context.Context, text string, source string) ([]domain.Problem, error)
	Rate(ctx context.Context, params domain.RateParams) (domain.Problem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetStats(ctx context.Context) (domain.Stats, error)
	CheckDailyAudit(ctx context.Context) (*domain.Problem, error)
	LoadDashboard(ctx context.Context) (domain.Dashboard, error)
	GetSettings(ctx context.Context) (domain.UserSettings, error)
	UpdateSettings(ctx context.Context, input tracker.UpdateSettingsInput) (domain.UserSettings, error)
}

// TrackerHandler serves the problem tracking endpoints.
type TrackerHandler struct {
	svc   trackerService
	clock schedule.Clock
	log   *slog.Logger
}

// NewTrackerHandler creates a TrackerHandler. clock drives the relative
// date labels in responses.
func NewTrackerHandler(svc trackerService, clock schedule.Clock, logger *slog.Logger) *TrackerHandler {
	return &TrackerHandler{svc: svc, clock: clock, log: logger.With("handler", "tracker")}
}

// Queue handles GET /problems/queue.
func (h *TrackerHandler) Queue(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListQueued)
}

// Review handles GET /problems/review.
func (h *TrackerHandler) Review(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListActive)
}

// Mastered handles GET /problems/mastered.
func (h *TrackerHandler) Mastered(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListMastered)
}

func (h *TrackerHandler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context) ([]domain.Problem, error)) {
	problems, err := fetch(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newPresenter(h.clock).problems(problems))
}

// GetProblem handles GET /problems/{id}.
func (h *TrackerHandler) GetProblem(w http.ResponseWriter, r *http.Request) {
	id, ok := problemID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newPresenter(h.clock).problem(p))
}

// Create handles POST /problems.
func (h *TrackerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProblemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.svc.Create(r.Context(), req.toDomain())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPresenter(h.clock).problem(p))
}

// CreateBulk handles POST /problems/bulk. Either every item is created or none.
func (h *TrackerHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]domain.NewProblem, len(req.Problems))
	for i, item := range req.Problems {
		items[i] = item.toDomain()
	}

	created, err := h.svc.CreateBulk(r.Context(), items)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPresenter(h.clock).problems(created))
}

// Lists handles GET /problems/import and names the curated lists.
func (h *TrackerHandler) Lists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"lists": catalog.Names()})
}

// ImportList handles POST /problems/import/{list}.
func (h *TrackerHandler) ImportList(w http.ResponseWriter, r *http.Request) {
	created, err := h.svc.ImportList(r.Context(), mux.Vars(r)["list"])
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPresenter(h.clock).problems(created))
}

// ImportText handles POST /problems/import with lines of
// name,difficulty,topic,url in the body.
func (h *TrackerHandler) ImportText(w http.ResponseWriter, r *http.Request) {
	var req importTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.ImportText(r.Context(), req.Text, req.Source)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPresenter(h.clock).problems(created))
}

// Rate handles POST /problems/{id}/rate.
func (h *TrackerHandler) Rate(w http.ResponseWriter, r *http.Request) {
	id, ok := problemID(w, r)
	if !ok {
		return
	}
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.svc.Rate(r.Context(), domain.RateParams{
		ProblemID:        id,
		Rating:           req.Rating,
		Notes:            req.Notes,
		TimeSpentMinutes: req.TimeSpentMinutes,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newPresenter(h.clock).problem(p))
}

// Delete handles DELETE /problems/{id}.
func (h *TrackerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := problemID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /stats.
func (h *TrackerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GetStats(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(st))
}

// Audit handles GET /audit. The problem is null on days without an audit.
func (h *TrackerHandler) Audit(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CheckDailyAudit(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, auditResponse{Problem: newPresenter(h.clock).optional(p)})
}

// Dashboard handles GET /dashboard.
func (h *TrackerHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.LoadDashboard(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	pr := newPresenter(h.clock)
	writeJSON(w, http.StatusOK, dashboardResponse{
		Today:    pr.today.String(),
		Queue:    pr.problems(d.Queue),
		Review:   pr.problems(d.Review),
		Mastered: pr.problems(d.Mastered),
		Stats:    toStatsResponse(d.Stats),
		Audit:    pr.optional(d.Audit),
	})
}

// Settings handles GET /settings.
func (h *TrackerHandler) Settings(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.GetSettings(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(s))
}

// UpdateSettings handles PATCH /settings. Absent fields are kept.
func (h *TrackerHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.svc.UpdateSettings(r.Context(), tracker.UpdateSettingsInput{
		DailyGoal:    req.DailyGoal,
		EnableAudits: req.EnableAudits,
		Theme:        req.Theme,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(s))
}

func problemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid problem id")
		return uuid.Nil, false
	}
	return id, true
}
