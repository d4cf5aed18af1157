package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tmoreau/marginalia/internal/highlight"
	"github.com/tmoreau/marginalia/internal/model"
	"github.com/tmoreau/marginalia/internal/store"
	"github.com/tmoreau/marginalia/internal/validation"
)

// LexicalSearch runs a BM25 search (match_bm25) over the FTS index, which
// scores the query's terms individually, not as a phrase, with a
// case-insensitive substring scan fallback when the index is absent or
// returns zero rows.
func (e *Engine) LexicalSearch(ctx context.Context, q string, limit int) (*LexicalSearchResult, error) {
	pl := startPathLog(ctx, "lexical_search")

	if strings.TrimSpace(q) == "" {
		return nil, badRequest("lexical_search", fmt.Errorf("empty query"))
	}

	if e.Store.HasIndex(ctx, store.TableArticles, "content_zh", store.IndexFTS) ||
		e.Store.HasIndex(ctx, store.TableArticles, "content_en", store.IndexFTS) {
		hits, err := e.ftsSearch(ctx, q, limit)
		if err != nil {
			return e.scanFallback(ctx, q, limit, pl)
		}
		if len(hits) > 0 {
			pl.finish(PathFTSIndex, PathFTSIndex, "bm25 index hit", len(hits))
			return &LexicalSearchResult{Hits: hits, Query: q, Total: len(hits), Path: PathFTSIndex}, nil
		}
		// FTS index present but zero rows: fall through to the scan path,
		// same as the "index absent" case.
	}

	return e.scanFallback(ctx, q, limit, pl)
}

func (e *Engine) ftsSearch(ctx context.Context, q string, limit int) ([]LexicalHit, error) {
	query := `
		SELECT a.id, a.title, a.summary_zh, a.tags,
		       coalesce(fts_main_articles.match_bm25(a.id, ?), 0) AS score,
		       coalesce(a.content_zh, a.content_en, '') AS content
		FROM articles a
		WHERE fts_main_articles.match_bm25(a.id, ?) IS NOT NULL
		ORDER BY score DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := e.Store.Conn().QueryContext(ctx, query, q, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		var summary sql.NullString
		var tags model.StringSlice
		var content string
		if err := rows.Scan(&h.ID, &h.Title, &summary, &tags, &h.Score, &content); err != nil {
			return nil, err
		}
		h.Summary = summary.String
		h.Tags = []string(tags)
		h.Snippet = highlight.FastExcerpt(content, q)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// scanFallback is the indexless lexical path: a case-insensitive substring
// match on title/summary/content, ranked by hit frequency.
func (e *Engine) scanFallback(ctx context.Context, q string, limit int, pl *pathLog) (*LexicalSearchResult, error) {
	rows, err := e.Store.Conn().QueryContext(ctx, `
		SELECT id, title, summary_zh, tags, coalesce(content_zh, content_en, '')
		FROM articles`)
	if err != nil {
		pl.finish(PathScanFallback, PathFTSIndex, "scan error", 0)
		return nil, storeUnavail("lexical_search", err)
	}
	defer rows.Close()

	lowerQ := strings.ToLower(q)
	var hits []LexicalHit
	for rows.Next() {
		var id, title string
		var summary sql.NullString
		var tags model.StringSlice
		var content string
		if err := rows.Scan(&id, &title, &summary, &tags, &content); err != nil {
			return nil, internalErr("lexical_search", err)
		}

		freq := strings.Count(strings.ToLower(title), lowerQ) +
			strings.Count(strings.ToLower(summary.String), lowerQ) +
			strings.Count(strings.ToLower(content), lowerQ)
		if freq == 0 {
			continue
		}

		hits = append(hits, LexicalHit{
			ID:      id,
			Title:   title,
			Summary: summary.String,
			Tags:    []string(tags),
			Score:   float64(freq),
			Snippet: highlight.FastExcerpt(content, q),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, internalErr("lexical_search", err)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	pl.finish(PathScanFallback, PathFTSIndex, "fts unavailable or empty, substring scan", len(hits))
	return &LexicalSearchResult{Hits: hits, Query: q, Total: len(hits), Path: PathScanFallback}, nil
}

// isEnglishOnly reports whether q contains no Han (CJK ideograph) runes;
// kana and Hangul do not count. It decides
// which language vector column is the primary ANN target.
func isEnglishOnly(q string) bool {
	for _, r := range q {
		if unicode.Is(unicode.Han, r) {
			return false
		}
	}
	return true
}

// SemanticSearch is the language-routed ANN query: embed q, search the
// primary language column, retry the same query on the other language
// column when the primary returns nothing, degrade to lexical search when
// the embedding collaborator is unavailable, and attach a snippet per hit.
func (e *Engine) SemanticSearch(ctx context.Context, q string, opts SemanticSearchOptions) (*SemanticSearchResult, error) {
	pl := startPathLog(ctx, "semantic_search")

	if strings.TrimSpace(q) == "" {
		return nil, badRequest("semantic_search", fmt.Errorf("empty query"))
	}
	if err := validation.ValidateStruct(&opts); err != nil {
		return nil, badRequest("semantic_search", err)
	}

	primaryCol, fallbackCol := "vector_zh", "vector_en"
	primaryLang, fallbackLang := "zh", "en"
	if isEnglishOnly(q) {
		primaryCol, fallbackCol = "vector_en", "vector_zh"
		primaryLang, fallbackLang = "en", "zh"
	}

	qVec, err := e.Embedder.Embed(ctx, q, primaryLang)
	if err != nil || qVec == nil {
		result, lexErr := e.degradeToLexical(ctx, q, opts)
		if lexErr != nil {
			pl.finish(PathVectorNoResults, PathVectorIndex, "embedding unavailable, lexical degrade failed", 0)
			return nil, lexErr
		}
		pl.finish(result.Path, PathVectorIndex, "embedding collaborator unavailable, degraded to lexical", len(result.Hits))
		return result, nil
	}

	hits, path, err := e.annSearch(ctx, qVec, primaryCol, primaryLang, opts)
	if err != nil {
		pl.finish(PathVectorNoResults, PathVectorIndex, "primary ann error", 0)
		return nil, storeUnavail("semantic_search", err)
	}
	if len(hits) == 0 {
		fbHits, _, fbErr := e.annSearch(ctx, qVec, fallbackCol, fallbackLang, opts)
		if fbErr == nil && len(fbHits) > 0 {
			hits, path = fbHits, PathVectorIndexFallbackLg
		} else {
			path = PathVectorNoResults
		}
	}

	for i := range hits {
		hits[i].Snippet = e.semanticSnippet(ctx, hits[i].ID, hits[i].Snippet, q, qVec, opts.EnhancedHighlight)
	}

	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}

	pl.finish(path, PathVectorIndex, "language-routed ann", len(hits))
	return &SemanticSearchResult{Hits: hits, Query: q, Path: path}, nil
}

func (e *Engine) annSearch(ctx context.Context, qVec model.Vector, column, lang string, opts SemanticSearchOptions) ([]SemanticHit, string, error) {
	rows, err := e.Store.Nearest(ctx, store.TableArticles, column, qVec, store.NearestOptions{
		Limit:       opts.Limit,
		MaxDistance: opts.MaxDistance,
	}, []string{"id", "title", "summary_zh", "coalesce(content_zh, content_en, '') AS content"})
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	path := PathVectorScan
	if e.Store.HasIndex(ctx, store.TableArticles, column, store.IndexVector) {
		path = PathVectorIndex
	}

	var hits []SemanticHit
	for rows.Next() {
		var h SemanticHit
		var summary sql.NullString
		var content string
		if err := rows.Scan(&h.ID, &h.Title, &summary, &content, &h.Distance); err != nil {
			return nil, "", err
		}
		h.Summary = summary.String
		h.Language = lang
		h.Snippet = content
		hits = append(hits, h)
	}
	return hits, path, rows.Err()
}

// semanticSnippet picks the fast or enhanced highlighter depending on the
// caller's enhanced_highlight option. Enhanced snippets embed every
// candidate passage, so they are cached by (article id, query).
func (e *Engine) semanticSnippet(ctx context.Context, id, content, q string, qVec model.Vector, enhanced bool) string {
	if enhanced && e.Highlight != nil {
		if s, ok := e.Cache.Snippet(id, q); ok {
			return s
		}
		s := e.Highlight.SemanticSnippetRerank(ctx, content, q, qVec)
		e.Cache.SetSnippet(id, q, s)
		return s
	}
	return highlight.FastExcerpt(content, q)
}

func (e *Engine) degradeToLexical(ctx context.Context, q string, opts SemanticSearchOptions) (*SemanticSearchResult, error) {
	lex, err := e.LexicalSearch(ctx, q, opts.Limit)
	if err != nil {
		return nil, err
	}
	hits := make([]SemanticHit, 0, len(lex.Hits))
	for _, h := range lex.Hits {
		hits = append(hits, SemanticHit{
			ID:       h.ID,
			Title:    h.Title,
			Summary:  h.Summary,
			Snippet:  h.Snippet,
			Degraded: true,
		})
	}
	return &SemanticSearchResult{Hits: hits, Query: q, Path: lex.Path, Degraded: true}, nil
}
