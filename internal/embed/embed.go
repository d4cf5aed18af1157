// Package embed specifies the embedding collaborator contract: query and
// passage vectors come from an Embedder, by default the in-process
// deterministic stub (NewStub). The pluggable Embedder interface puts any external model call behind a
// circuit breaker and rate limiter, so a failing collaborator degrades
// semantic search instead of taking requests down with it.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tmoreau/marginalia/internal/config"
	"github.com/tmoreau/marginalia/internal/logging"
	"github.com/tmoreau/marginalia/internal/metrics"
	"github.com/tmoreau/marginalia/internal/model"
)

// ErrUnavailable is returned when the embedding collaborator cannot service
// a request right now (breaker open, timeout, remote failure). Callers
// must degrade to lexical search rather than surface it directly.
var ErrUnavailable = errors.New("embedding collaborator unavailable")

// Embedder is the pluggable contract: embed(text, language_hint) ->
// Option<[f32; 512]>, modeled in Go as (Vector, error) where a nil Vector
// is the "None" case. It comes with ErrUnavailable when the collaborator
// failed, and with a nil error from the stub for empty text.
type Embedder interface {
	Embed(ctx context.Context, text, languageHint string) (model.Vector, error)
}

// breakerEmbedder wraps an inner Embedder with a circuit breaker and a
// token-bucket rate limiter, so a failing or slow external collaborator
// degrades semantic search instead of stalling every request behind it.
type breakerEmbedder struct {
	inner   Embedder
	breaker *gobreaker.CircuitBreaker[model.Vector]
	limiter *rate.Limiter
}

// NewBreakerEmbedder wraps inner with resilience per cfg.
func NewBreakerEmbedder(inner Embedder, cfg config.EmbeddingConfig) Embedder {
	settings := gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			metrics.EmbeddingBreakerTrips.WithLabelValues(from.String(), to.String()).Inc()
			logging.Warn().Str("from", from.String()).Str("to", to.String()).Msg("embedding breaker state change")
		},
	}

	limit := rate.Limit(cfg.RateLimitPerSecond)
	if limit <= 0 {
		limit = rate.Limit(5)
	}

	return &breakerEmbedder{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[model.Vector](settings),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (b *breakerEmbedder) Embed(ctx context.Context, text, languageHint string) (model.Vector, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, ErrUnavailable
	}

	v, err := b.breaker.Execute(func() (model.Vector, error) {
		return b.inner.Embed(ctx, text, languageHint)
	})
	if err != nil {
		return nil, ErrUnavailable
	}
	return v, nil
}

// stubEmbedder is a deterministic, local, offline embedding used as the
// default provider: the SHA-256 of the exact input text seeds a
// pseudo-random unit vector, so identical text always yields the identical
// vector while any other text, however similar, yields an unrelated one. No
// real model is needed for development or tests.
type stubEmbedder struct{}

// NewStub returns the default in-process embedding provider.
func NewStub() Embedder { return stubEmbedder{} }

func (stubEmbedder) Embed(_ context.Context, text, _ string) (model.Vector, error) {
	if text == "" {
		return nil, nil
	}
	v := make(model.Vector, model.VectorDim)
	h := sha256.Sum256([]byte(text))
	seed := binary.BigEndian.Uint64(h[:8])
	var norm float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		f := float32((seed>>11)&0xFFFFFF)/float32(1<<24)*2 - 1
		v[i] = f
		norm += float64(f) * float64(f)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v, nil
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v, nil
}

// NewFromConfig builds the configured Embedder, wrapped for resilience.
func NewFromConfig(cfg config.EmbeddingConfig) Embedder {
	var inner Embedder
	switch cfg.Provider {
	case "http":
		inner = newHTTPEmbedder(cfg)
	default:
		inner = NewStub()
	}
	return NewBreakerEmbedder(inner, cfg)
}

// httpEmbedder calls an external embedding service over HTTP. It is the
// "external call" collaborator variant the breaker/rate-limiter wrap is
// primarily meant to protect.
type httpEmbedder struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
}

func newHTTPEmbedder(cfg config.EmbeddingConfig) Embedder {
	return &httpEmbedder{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, timeout: cfg.Timeout}
}

func (h *httpEmbedder) Embed(ctx context.Context, text, languageHint string) (model.Vector, error) {
	// The wire contract for the external embedding service is deployment
	// specific; only the Go-level Embedder contract is fixed here. A
	// concrete deployment supplies its own round-tripper behind this seam.
	return nil, ErrUnavailable
}
