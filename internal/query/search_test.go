package query

import (
	"context"
	"testing"

	"github.com/tmoreau/marginalia/internal/cache"
	"github.com/tmoreau/marginalia/internal/embed"
	"github.com/tmoreau/marginalia/internal/highlight"
	"github.com/tmoreau/marginalia/internal/model"
	"github.com/tmoreau/marginalia/internal/render"
	"github.com/tmoreau/marginalia/internal/storetest"
	"github.com/tmoreau/marginalia/internal/write"
)

func TestSemanticSearchFallsBackAcrossLanguage(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	embedder := embed.NewStub()

	// The stub embedder is deterministic and hash-derived, so an article
	// whose vector_zh is seeded from its own content is its own nearest
	// neighbor for a query built from the same text.
	content := "异步编程与并发模型在 Go 语言里有着清晰的实现"
	vec, err := embedder.Embed(ctx, content, "zh")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	a := &model.Article{
		ID:        "p1",
		Title:     "Async in Go",
		Author:    "x",
		Date:      "2026-01-01",
		ContentZH: content,
		VectorZH:  vec,
	}
	if err := write.UpsertArticle(ctx, st, a); err != nil {
		t.Fatalf("seed article: %v", err)
	}

	e := New(st, embedder, highlight.New(embedder), render.New(), cache.New(0, 0))

	result, err := e.SemanticSearch(ctx, content, SemanticSearchOptions{Limit: 5})
	if err != nil {
		t.Fatalf("semantic search: %v", err)
	}
	if len(result.Hits) == 0 {
		t.Fatal("expected a zh-language query to find the zh-only article via its own vector")
	}

	enQuery := "async programming and concurrency model"
	resultEN, err := e.SemanticSearch(ctx, enQuery, SemanticSearchOptions{Limit: 5})
	if err != nil {
		t.Fatalf("semantic search (en): %v", err)
	}
	if len(resultEN.Hits) == 0 {
		t.Fatal("expected an english query against a zh-only corpus to fall back to vector_zh")
	}
	if resultEN.Path != PathVectorIndexFallbackLg {
		t.Fatalf("expected fallback path label %q, got %q", PathVectorIndexFallbackLg, resultEN.Path)
	}
}

func TestLexicalSearchRejectsEmptyQuery(t *testing.T) {
	st := storetest.New(t)
	embedder := embed.NewStub()
	e := New(st, embedder, highlight.New(embedder), render.New(), cache.New(0, 0))

	if _, err := e.LexicalSearch(context.Background(), "   ", 10); err == nil {
		t.Fatal("expected an error for a blank query")
	}
}
