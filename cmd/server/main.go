// Command server runs marginalia: the embedded columnar/vector store, the
// read-side query engine, the view-tracking pipeline, and the HTTP surface
// exposing them, under a suture-supervised background compactor.
//
// Initialization order:
//
//  1. Configuration: koanf layered load (defaults -> YAML -> env)
//  2. Logging: zerolog, configured from the loaded config
//  3. Store: open (or create) the DuckDB file, install extensions, create tables
//  4. Collaborators: embedding provider, markdown renderer, snippet highlighter, HTML cache
//  5. Query engine: binds the above together for the read paths
//  6. Runtime: AppState (atomically-swapped runtime config) + background compactor
//  7. HTTP surface: chi router, wrapped as a supervised service
//  8. Supervisor tree: compactor + HTTP server, graceful shutdown on SIGINT/SIGTERM
package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tmoreau/marginalia/internal/api"
	"github.com/tmoreau/marginalia/internal/cache"
	"github.com/tmoreau/marginalia/internal/config"
	"github.com/tmoreau/marginalia/internal/embed"
	"github.com/tmoreau/marginalia/internal/highlight"
	"github.com/tmoreau/marginalia/internal/logging"
	"github.com/tmoreau/marginalia/internal/query"
	"github.com/tmoreau/marginalia/internal/render"
	"github.com/tmoreau/marginalia/internal/runtime"
	"github.com/tmoreau/marginalia/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := api.RefuseNonLoopbackBind(cfg.Server); err != nil {
		logging.Fatal().Err(err).Msg("refusing to start")
	}

	logging.Info().Str("environment", cfg.Server.Environment).Msg("starting marginalia")

	st, err := store.Open(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close store cleanly")
		}
	}()

	embedder := embed.NewFromConfig(cfg.Embedding)
	renderer := render.New()
	hl := highlight.New(embedder)
	htmlCache := cache.New(cfg.Cache.TTL, cfg.Cache.Capacity)

	qe := query.New(st, embedder, hl, renderer, htmlCache)
	app := runtime.New(cfg, st, qe, embedder, htmlCache)

	compactor := runtime.NewCompactor(st, cfg.Compactor)

	router := api.NewRouter(app)
	httpServer := &http.Server{
		Addr:         cfg.Server.BindAddr + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sup := runtime.NewSupervisor()
	sup.Add(compactor)
	sup.Add(runtime.NewHTTPServerService(httpServer, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", httpServer.Addr).Msg("listening")
	if err := sup.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Fatal().Err(err).Msg("supervisor exited with error")
	}

	logging.Info().Msg("shutdown complete")
}
