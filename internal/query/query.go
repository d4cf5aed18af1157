// Package query implements the read paths over the columnar store: listing,
// point lookup, lexical and semantic search, related-article discovery, and
// image catalog/NN queries. Each logical query follows a deterministic
// path-selection procedure and emits one structured completion log plus a
// metrics observation, success or fallback alike.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/tmoreau/marginalia/internal/cache"
	"github.com/tmoreau/marginalia/internal/embed"
	"github.com/tmoreau/marginalia/internal/highlight"
	"github.com/tmoreau/marginalia/internal/logging"
	"github.com/tmoreau/marginalia/internal/metrics"
	"github.com/tmoreau/marginalia/internal/render"
	"github.com/tmoreau/marginalia/internal/store"
)

// Path labels, the observable outcome of a query's path-selection procedure.
const (
	PathFTSIndex              = "fts_index"
	PathScanFallback          = "scan_fallback"
	PathVectorIndex           = "vector_index"
	PathVectorScan            = "vector_scan"
	PathVectorIndexFallbackLg = "vector_index_fallback_lang"
	PathVectorNoResults       = "vector_no_results"
	PathPointLookup           = "point_lookup"
	PathTableScan             = "table_scan"
)

// Engine bundles everything a query operation needs: the store, the
// embedding collaborator, the snippet highlighter, and a markdown
// renderer, plus the render/snippet cache.
type Engine struct {
	Store     *store.Store
	Embedder  embed.Embedder
	Highlight *highlight.Highlighter
	Renderer  render.Renderer
	Cache     *cache.Cache
}

func New(st *store.Store, embedder embed.Embedder, hl *highlight.Highlighter, renderer render.Renderer, c *cache.Cache) *Engine {
	return &Engine{Store: st, Embedder: embedder, Highlight: hl, Renderer: renderer, Cache: c}
}

// Error is the structured error the query engine returns; kind determines
// the HTTP status code the API surface maps it to.
type Error struct {
	Kind string
	Op   string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("query: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

const (
	ErrNotFound             = "not_found"
	ErrBadRequest           = "bad_request"
	ErrStoreUnavailable     = "store_unavailable"
	ErrEmbeddingUnavailable = "embedding_unavailable"
	ErrInternal             = "internal"
)

func notFound(op string, err error) *Error   { return &Error{Kind: ErrNotFound, Op: op, Err: err} }
func badRequest(op string, err error) *Error { return &Error{Kind: ErrBadRequest, Op: op, Err: err} }
func internalErr(op string, err error) *Error { return &Error{Kind: ErrInternal, Op: op, Err: err} }
func storeUnavail(op string, err error) *Error {
	return &Error{Kind: ErrStoreUnavailable, Op: op, Err: err}
}

// pathLog is the structured completion record every query operation emits,
// success or fallback alike, per the "Path logging contract".
type pathLog struct {
	ctx         context.Context
	query       string
	start       time.Time
	path        string
	fastestPath string
	reason      string
	rows        int
}

func startPathLog(ctx context.Context, query string) *pathLog {
	return &pathLog{ctx: ctx, query: query, start: time.Now()}
}

func (p *pathLog) finish(path, fastestPath, reason string, rows int) {
	p.path = path
	p.fastestPath = fastestPath
	p.reason = reason
	p.rows = rows

	elapsed := time.Since(p.start)
	isFastest := path == fastestPath

	logging.Ctx(p.ctx).Info().
		Str("query", p.query).
		Str("path", path).
		Str("fastest_path", fastestPath).
		Bool("is_fastest", isFastest).
		Str("reason", reason).
		Int("rows", rows).
		Int64("elapsed_ms", elapsed.Milliseconds()).
		Msg("query completed")

	metrics.RecordQuery(p.query, path, isFastest, elapsed)
}
