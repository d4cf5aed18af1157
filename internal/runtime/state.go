// Package runtime wires together the long-lived, shared-mutable parts of
// the server: the store/query/embedding/cache handles every HTTP handler
// needs, the atomically-swapped RuntimeConfig snapshot governing dedupe
// window and trend bounds, and the supervised background tasks.
package runtime

import (
	"fmt"
	"sync/atomic"

	"github.com/tmoreau/marginalia/internal/cache"
	"github.com/tmoreau/marginalia/internal/config"
	"github.com/tmoreau/marginalia/internal/embed"
	"github.com/tmoreau/marginalia/internal/model"
	"github.com/tmoreau/marginalia/internal/query"
	"github.com/tmoreau/marginalia/internal/store"
)

// AppState bundles everything the HTTP surface and background compactor
// need: the store, the query engine, the embedder, the rendered-HTML
// cache, and an atomically-swapped runtime config snapshot.
//
// The config is a single pointer to an immutable record (not three
// independent atomics) so dedupe_window_seconds/trend_default_days/
// trend_max_days always change together and the default<=max
// cross-invariant can never observe a torn update.
type AppState struct {
	Store    *store.Store
	Query    *query.Engine
	Embedder embed.Embedder
	Cache    *cache.Cache
	Config   *config.Config

	runtimeCfg atomic.Pointer[model.RuntimeConfig]
}

// New builds an AppState, seeding the runtime config from cfg.Runtime
// defaults at startup.
func New(cfg *config.Config, st *store.Store, qe *query.Engine, embedder embed.Embedder, c *cache.Cache) *AppState {
	s := &AppState{Store: st, Query: qe, Embedder: embedder, Cache: c, Config: cfg}
	s.runtimeCfg.Store(&model.RuntimeConfig{
		DedupeWindowSeconds: cfg.Runtime.DedupeWindowSeconds,
		TrendDefaultDays:    cfg.Runtime.TrendDefaultDays,
		TrendMaxDays:        cfg.Runtime.TrendMaxDays,
	})
	return s
}

// RuntimeConfig returns a copy of the current runtime config. Readers
// acquire no lock beyond the atomic load and must not hold the returned
// value across further IO expecting it to stay current.
func (s *AppState) RuntimeConfig() model.RuntimeConfig {
	return *s.runtimeCfg.Load()
}

// RuntimeConfigPatch carries the optional subset of fields a
// POST /admin/view-analytics-config body may set.
type RuntimeConfigPatch struct {
	DedupeWindowSeconds *int `json:"dedupe_window_seconds"`
	TrendDefaultDays    *int `json:"trend_default_days"`
	TrendMaxDays        *int `json:"trend_max_days"`
}

// UpdateRuntimeConfig validates patch against the current state, rejects
// it wholesale on any range or cross-field violation (leaving state
// unchanged), and otherwise atomically swaps in the new snapshot.
func (s *AppState) UpdateRuntimeConfig(patch RuntimeConfigPatch) (model.RuntimeConfig, error) {
	cur := s.RuntimeConfig()
	next := cur

	if patch.DedupeWindowSeconds != nil {
		next.DedupeWindowSeconds = *patch.DedupeWindowSeconds
	}
	if patch.TrendDefaultDays != nil {
		next.TrendDefaultDays = *patch.TrendDefaultDays
	}
	if patch.TrendMaxDays != nil {
		next.TrendMaxDays = *patch.TrendMaxDays
	}

	if err := config.ValidateRuntimeDefaults(config.RuntimeDefaults(next)); err != nil {
		return cur, fmt.Errorf("%w", err)
	}

	s.runtimeCfg.Store(&next)
	return next, nil
}
