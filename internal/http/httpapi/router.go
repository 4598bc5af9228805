package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"carstudio/internal/http/handlers"
	"carstudio/internal/infra"
	"carstudio/internal/middleware"
)

// NewRouter assembles the public API surface. downloadsDir is served
// statically with a one-day cache lifetime; archives carry unique names so
// stale caching is harmless.
func NewRouter(app *handlers.App, cfg *infra.Config, downloadsDir string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, middleware.RequestID, middleware.Logger(app.Logger), chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		r.Post("/car-batch", app.CarBatchCreate)
		r.Post("/images/generate", app.ImagesGenerate)
		r.Post("/batch/{id}/stop", app.BatchStop)
	})

	r.Get("/batch/{id}", app.BatchStatus)
	r.Get("/jobs/{id}", app.JobStatus)

	r.Handle("/downloads/*", downloadsHandler(downloadsDir))

	return r
}

func downloadsHandler(dir string) stdhttp.Handler {
	fs := stdhttp.FileServer(stdhttp.Dir(dir))
	return stdhttp.StripPrefix("/downloads/", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fs.ServeHTTP(w, r)
	}))
}
