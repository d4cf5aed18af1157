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

func TestRelatedArticlesExcludesSelf(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	embedder := embed.NewStub()

	vec, err := embedder.Embed(ctx, "distributed systems consensus protocols", "zh")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	other, err := embedder.Embed(ctx, "distributed systems consensus raft paxos", "zh")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if err := write.UpsertArticle(ctx, st, &model.Article{
		ID: "a1", Title: "Consensus I", Author: "x", Date: "2026-01-01", ContentZH: "c", VectorZH: vec,
	}); err != nil {
		t.Fatalf("seed a1: %v", err)
	}
	if err := write.UpsertArticle(ctx, st, &model.Article{
		ID: "a2", Title: "Consensus II", Author: "x", Date: "2026-01-02", ContentZH: "c", VectorZH: other,
	}); err != nil {
		t.Fatalf("seed a2: %v", err)
	}

	e := New(st, embedder, highlight.New(embedder), render.New(), cache.New(0, 0))
	result, err := e.RelatedArticles(ctx, "a1")
	if err != nil {
		t.Fatalf("related articles: %v", err)
	}
	for _, h := range result.Hits {
		if h.ID == "a1" {
			t.Fatal("related_articles must never return the source article itself")
		}
	}
}

func TestRelatedArticlesNoVectorReturnsReason(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	embedder := embed.NewStub()

	if err := write.UpsertArticle(ctx, st, &model.Article{
		ID: "a1", Title: "No vector", Author: "x", Date: "2026-01-01", ContentZH: "c",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	e := New(st, embedder, highlight.New(embedder), render.New(), cache.New(0, 0))
	result, err := e.RelatedArticles(ctx, "a1")
	if err != nil {
		t.Fatalf("related articles: %v", err)
	}
	if len(result.Hits) != 0 {
		t.Fatalf("expected no hits for a vectorless source article, got %d", len(result.Hits))
	}
	if result.Reason == "" {
		t.Fatal("expected a reason string explaining why there are no related articles")
	}
}

func TestRelatedArticlesNotFound(t *testing.T) {
	st := storetest.New(t)
	embedder := embed.NewStub()
	e := New(st, embedder, highlight.New(embedder), render.New(), cache.New(0, 0))

	if _, err := e.RelatedArticles(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error for a nonexistent source article")
	}
}
