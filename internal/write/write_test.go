package write

import (
	"context"
	"testing"

	"github.com/tmoreau/marginalia/internal/model"
	"github.com/tmoreau/marginalia/internal/storetest"
)

func TestUpsertArticleRoundTrip(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	a := &model.Article{
		ID:        "a1",
		Title:     "Hello",
		Author:    "tmoreau",
		Date:      "2026-01-01",
		Category:  "essays",
		Tags:      []string{"go", "duckdb"},
		SummaryZH: "摘要",
		ContentZH: "正文内容",
	}
	if err := UpsertArticle(ctx, st, a); err != nil {
		t.Fatalf("upsert article: %v", err)
	}

	var title, category string
	if err := st.Conn().QueryRowContext(ctx, "SELECT title, category FROM articles WHERE id = ?", "a1").
		Scan(&title, &category); err != nil {
		t.Fatalf("query article: %v", err)
	}
	if title != "Hello" || category != "essays" {
		t.Fatalf("unexpected row: title=%q category=%q", title, category)
	}

	var tagCount, catCount int
	if err := st.Conn().QueryRowContext(ctx,
		"SELECT count(*) FROM taxonomies WHERE kind = 'tag' AND key IN ('go','duckdb')").Scan(&tagCount); err != nil {
		t.Fatalf("count tags: %v", err)
	}
	if tagCount != 2 {
		t.Fatalf("expected 2 backfilled tag rows, got %d", tagCount)
	}
	if err := st.Conn().QueryRowContext(ctx,
		"SELECT count(*) FROM taxonomies WHERE kind = 'category' AND key = 'essays'").Scan(&catCount); err != nil {
		t.Fatalf("count categories: %v", err)
	}
	if catCount != 1 {
		t.Fatalf("expected 1 backfilled category row, got %d", catCount)
	}

	// Re-upsert must update in place, not duplicate.
	a.Title = "Hello, updated"
	if err := UpsertArticle(ctx, st, a); err != nil {
		t.Fatalf("re-upsert article: %v", err)
	}
	var count int
	if err := st.Conn().QueryRowContext(ctx, "SELECT count(*) FROM articles WHERE id = ?", "a1").Scan(&count); err != nil {
		t.Fatalf("count articles: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 article row after re-upsert, got %d", count)
	}
}

func TestUpsertTaxonomyPreservesExplicitDescription(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	if err := UpsertTaxonomy(ctx, st, &model.Taxonomy{
		Kind:        model.TaxonomyTag,
		Key:         "go",
		DisplayName: "Go",
		Description: "The Go programming language",
	}); err != nil {
		t.Fatalf("upsert taxonomy: %v", err)
	}

	a := &model.Article{ID: "a2", Title: "T", Author: "x", Date: "2026-01-02", Tags: []string{"go"}, ContentZH: "c"}
	if err := UpsertArticle(ctx, st, a); err != nil {
		t.Fatalf("upsert article: %v", err)
	}

	var desc string
	if err := st.Conn().QueryRowContext(ctx,
		"SELECT description FROM taxonomies WHERE kind = 'tag' AND key = 'go'").Scan(&desc); err != nil {
		t.Fatalf("query taxonomy: %v", err)
	}
	if desc != "The Go programming language" {
		t.Fatalf("expected explicit description to survive article-driven backfill, got %q", desc)
	}
}

func TestUpsertArticleRejectsWrongDimensionVector(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	a := &model.Article{
		ID:        "a3",
		Title:     "Bad vector",
		Author:    "x",
		Date:      "2026-01-03",
		Vector:    model.Vector{0.1, 0.2, 0.3},
		ContentZH: "c",
	}
	if err := UpsertArticle(ctx, st, a); err == nil {
		t.Fatal("expected an error for a wrong-dimension vector")
	}
}

func TestDeleteArticle(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	a := &model.Article{ID: "a4", Title: "T", Author: "x", Date: "2026-01-04", ContentZH: "c"}
	if err := UpsertArticle(ctx, st, a); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := DeleteArticle(ctx, st, "a4"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var count int
	if err := st.Conn().QueryRowContext(ctx, "SELECT count(*) FROM articles WHERE id = ?", "a4").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected article to be gone after delete, got count %d", count)
	}
}
