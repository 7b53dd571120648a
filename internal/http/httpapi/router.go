package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"imagine/internal/http/handlers"
	"imagine/internal/middleware"
)

type RouterOptions struct {
	Logger          zerolog.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	Gatherer        prometheus.Gatherer
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", handlers.Metrics(opts.Gatherer))
	}

	r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/submit_imageine", app.SubmitImagine)
	r.Get("/fetch_task/{jobID}", app.FetchTask)
	r.Get("/file/{fileName}", app.File)

	return r
}
