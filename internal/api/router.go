package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmoreau/marginalia/internal/config"
	"github.com/tmoreau/marginalia/internal/runtime"
)

// searchRateLimit and searchRateWindow bound the two search endpoints; the
// rest of the public surface is read-mostly/cached and left unthrottled.
const (
	searchRateLimit  = 60
	searchRateWindow = time.Minute
)

// NewRouter builds the full chi router: global middleware, /api/* public
// routes, /admin/* loopback-only routes, and /metrics for Prometheus
// scraping.
func NewRouter(app *runtime.AppState) http.Handler {
	h := NewHandlers(app)
	cfg := app.Config.Server

	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg))
	r.Use(SecurityHeaders())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).JSON(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/articles", h.ListArticles)
		r.Get("/articles/{id}", h.GetArticle)
		r.Get("/articles/{id}/raw/{lang}", h.GetArticleRaw)
		r.Get("/articles/{id}/related", h.RelatedArticles)
		r.Post("/articles/{id}/view", h.TrackView)
		r.Get("/articles/{id}/view-trend", h.ViewTrend)

		r.Get("/tags", h.ListTags)
		r.Get("/categories", h.ListCategories)

		r.Get("/images", h.ListImages)
		r.Get("/images/{idOrFilename}", h.GetImage)
		r.Get("/image-search", h.ImageSearch)

		r.With(SearchRateLimit(searchRateLimit, searchRateWindow)).Get("/search", h.LexicalSearch)
		r.With(SearchRateLimit(searchRateLimit, searchRateWindow)).Get("/semantic-search", h.SemanticSearch)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminLocalOnly(cfg))
		r.Get("/view-analytics-config", h.GetViewAnalyticsConfig)
		r.Post("/view-analytics-config", h.UpdateViewAnalyticsConfig)
	})

	return r
}

// RefuseNonLoopbackBind is the bind-time guard: in production, refuse to
// start listening on a non-loopback address unless explicitly overridden.
func RefuseNonLoopbackBind(cfg config.ServerConfig) error {
	if cfg.Environment != "production" || cfg.AllowNonLoopbackBind {
		return nil
	}
	if cfg.BindAddr == "127.0.0.1" || cfg.BindAddr == "localhost" || cfg.BindAddr == "::1" {
		return nil
	}
	return errNonLoopbackBindRefused(cfg.BindAddr)
}

type bindRefusedError struct{ addr string }

func (e *bindRefusedError) Error() string {
	return "refusing to bind on non-loopback address " + e.addr + " in production without server.allow_non_loopback_bind"
}

func errNonLoopbackBindRefused(addr string) error { return &bindRefusedError{addr: addr} }
