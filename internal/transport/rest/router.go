package rest

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mpblatz/repeet/internal/transport/middleware"
)

// APIPrefix is the path prefix of every tracker endpoint.
const APIPrefix = "/api/v1"

const idPattern = "{id:[0-9a-fA-F-]{36}}"

// NewRouter mounts the probes at the root and the tracker API under
// APIPrefix. apiChain wraps only the API routes, so preflight requests reach
// it before method matching.
func NewRouter(h *TrackerHandler, health *HealthHandler, apiChain middleware.Middleware) http.Handler {
	apiRouter := mux.NewRouter()
	api := apiRouter.PathPrefix(APIPrefix).Subrouter()

	api.HandleFunc("/problems/queue", h.Queue).Methods(http.MethodGet)
	api.HandleFunc("/problems/review", h.Review).Methods(http.MethodGet)
	api.HandleFunc("/problems/mastered", h.Mastered).Methods(http.MethodGet)
	api.HandleFunc("/problems", h.Create).Methods(http.MethodPost)
	api.HandleFunc("/problems/bulk", h.CreateBulk).Methods(http.MethodPost)
	api.HandleFunc("/problems/import", h.Lists).Methods(http.MethodGet)
	api.HandleFunc("/problems/import", h.ImportText).Methods(http.MethodPost)
	api.HandleFunc("/problems/import/{list}", h.ImportList).Methods(http.MethodPost)
	api.HandleFunc("/problems/"+idPattern, h.GetProblem).Methods(http.MethodGet)
	api.HandleFunc("/problems/"+idPattern, h.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/problems/"+idPattern+"/rate", h.Rate).Methods(http.MethodPost)
	api.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	api.HandleFunc("/audit", h.Audit).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", h.Dashboard).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.Settings).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.UpdateSettings).Methods(http.MethodPatch)

	apiRouter.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	apiRouter.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	root := mux.NewRouter()
	root.HandleFunc("/live", health.Live).Methods(http.MethodGet)
	root.HandleFunc("/ready", health.Ready).Methods(http.MethodGet)
	root.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	root.PathPrefix(APIPrefix + "/").Handler(apiChain(apiRouter))

	return root
}
