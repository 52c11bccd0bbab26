package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"genstudio/internal/http/handlers"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
)

// NewRouter mounts the proxy API. static may be nil when assets are served elsewhere.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger, static http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.CORS(cfg.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	if static != nil {
		r.Handle("/static/*", http.StripPrefix("/static", static))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(
			middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
			middleware.AuthJWT(cfg.JWTSecret),
		)
		r.Post("/generate", app.Generate)
		r.Get("/generate/status/{jobId}", app.GenerateStatus)
		r.Post("/enhance-prompt", app.EnhancePrompt)
		r.Post("/uploads", app.Upload)
		r.Get("/assets", app.ListAssets)
		r.Post("/assets", app.CreateAsset)
	})

	return r
}
