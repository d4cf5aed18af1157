package query

import (
	"context"
	"testing"

	"github.com/tmoreau/marginalia/internal/cache"
	"github.com/tmoreau/marginalia/internal/embed"
	"github.com/tmoreau/marginalia/internal/highlight"
	"github.com/tmoreau/marginalia/internal/model"
	"github.com/tmoreau/marginalia/internal/render"
	"github.com/tmoreau/marginalia/internal/store"
	"github.com/tmoreau/marginalia/internal/storetest"
	"github.com/tmoreau/marginalia/internal/write"
)

func testEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st := storetest.New(t)
	embedder := embed.NewStub()
	return New(st, embedder, highlight.New(embedder), render.New(), cache.New(0, 0)), st
}

func seed(t *testing.T, st *store.Store, a *model.Article) {
	t.Helper()
	if err := write.UpsertArticle(context.Background(), st, a); err != nil {
		t.Fatalf("seed %s: %v", a.ID, err)
	}
}

func TestListArticlesOrderedByDateDescThenID(t *testing.T) {
	e, st := testEngine(t)
	ctx := context.Background()

	seed(t, st, &model.Article{ID: "b", Title: "B", Author: "x", Date: "2026-01-02", ContentZH: "c"})
	seed(t, st, &model.Article{ID: "a", Title: "A", Author: "x", Date: "2026-01-02", ContentZH: "c"})
	seed(t, st, &model.Article{ID: "c", Title: "C", Author: "x", Date: "2026-01-05", ContentZH: "c"})

	items, err := e.ListArticles(ctx, ArticleListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	got := []string{items[0].ID, items[1].ID, items[2].ID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestListArticlesTagFilterIsSubstringAndCaseInsensitive(t *testing.T) {
	e, st := testEngine(t)
	ctx := context.Background()

	seed(t, st, &model.Article{ID: "a1", Title: "T", Author: "x", Date: "2026-01-01", Tags: []string{"Golang"}, ContentZH: "c"})
	seed(t, st, &model.Article{ID: "a2", Title: "T", Author: "x", Date: "2026-01-01", Tags: []string{"rust"}, ContentZH: "c"})

	items, err := e.ListArticles(ctx, ArticleListFilter{Tag: "go"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a1" {
		t.Fatalf("expected only a1 to match the substring tag filter, got %+v", items)
	}
}

func TestListArticlesCategoryFilterIsExactCaseInsensitive(t *testing.T) {
	e, st := testEngine(t)
	ctx := context.Background()

	seed(t, st, &model.Article{ID: "a1", Title: "T", Author: "x", Date: "2026-01-01", Category: "Essays", ContentZH: "c"})
	seed(t, st, &model.Article{ID: "a2", Title: "T", Author: "x", Date: "2026-01-01", Category: "essayistics", ContentZH: "c"})

	items, err := e.ListArticles(ctx, ArticleListFilter{Category: "essays"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a1" {
		t.Fatalf("expected an exact case-insensitive category match, got %+v", items)
	}
}

func TestGetArticleRewritesFeaturedImage(t *testing.T) {
	e, st := testEngine(t)
	ctx := context.Background()

	seed(t, st, &model.Article{
		ID: "a1", Title: "T", Author: "x", Date: "2026-01-01",
		ContentZH: "# hi", FeaturedImage: "images/deadbeef",
	})

	d, err := e.GetArticle(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.FeaturedImage != "/api/images/deadbeef" {
		t.Fatalf("expected the images/ reference to be rewritten, got %q", d.FeaturedImage)
	}
	if d.HTMLZH == "" {
		t.Fatal("expected rendered HTML for the zh content")
	}
}

func TestListTagsCounts(t *testing.T) {
	e, st := testEngine(t)
	ctx := context.Background()

	seed(t, st, &model.Article{ID: "a1", Title: "T", Author: "x", Date: "2026-01-01", Tags: []string{"go", "db"}, ContentZH: "c"})
	seed(t, st, &model.Article{ID: "a2", Title: "T", Author: "x", Date: "2026-01-02", Tags: []string{"go"}, ContentZH: "c"})

	tags, err := e.ListTags(ctx)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	counts := map[string]int{}
	for _, tc := range tags {
		counts[tc.Name] = tc.Count
	}
	if counts["go"] != 2 || counts["db"] != 1 {
		t.Fatalf("unexpected tag counts %v", counts)
	}
}
