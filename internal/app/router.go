package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-lsm/meridian/internal/auth"
	"github.com/meridian-lsm/meridian/internal/catalog"
	"github.com/meridian-lsm/meridian/internal/clients"
	"github.com/meridian-lsm/meridian/internal/intake"
	"github.com/meridian-lsm/meridian/internal/observability"
	"github.com/meridian-lsm/meridian/internal/quotes"
	"github.com/meridian-lsm/meridian/internal/workorders"
	"github.com/meridian-lsm/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AuthHandler       *auth.Handler
	AuthMiddleware    func(http.Handler) http.Handler
	ClientsHandler    *clients.Handler
	CatalogHandler    *catalog.Handler
	QuotesHandler     *quotes.Handler
	WorkOrdersHandler *workorders.Handler
	IntakeHandler     *intake.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		if params.AuthMiddleware != nil {
			r.Use(params.AuthMiddleware)
		}
		r.Route("/clients", params.ClientsHandler.MountRoutes)
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
		r.Route("/quotes", params.QuotesHandler.MountRoutes)
		r.Route("/work-orders", params.WorkOrdersHandler.MountRoutes)
		r.Route("/intake", params.IntakeHandler.MountRoutes)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
