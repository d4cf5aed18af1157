package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tmoreau/marginalia/internal/cache"
	"github.com/tmoreau/marginalia/internal/config"
	"github.com/tmoreau/marginalia/internal/embed"
	"github.com/tmoreau/marginalia/internal/highlight"
	"github.com/tmoreau/marginalia/internal/model"
	"github.com/tmoreau/marginalia/internal/query"
	"github.com/tmoreau/marginalia/internal/render"
	"github.com/tmoreau/marginalia/internal/runtime"
	"github.com/tmoreau/marginalia/internal/storetest"
	"github.com/tmoreau/marginalia/internal/write"
)

func testApp(t *testing.T) *runtime.AppState {
	st := storetest.New(t)
	embedder := embed.NewStub()
	qe := query.New(st, embedder, highlight.New(embedder), render.New(), cache.New(0, 0))
	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "development"},
		Runtime: config.RuntimeDefaults{
			DedupeWindowSeconds: 60,
			TrendDefaultDays:    30,
			TrendMaxDays:        180,
		},
	}
	return runtime.New(cfg, st, qe, embedder, cache.New(0, 0))
}

func seedArticle(t *testing.T, app *runtime.AppState, id string) {
	t.Helper()
	a := &model.Article{
		ID:        id,
		Title:     "Hello " + id,
		Author:    "tmoreau",
		Date:      "2026-01-01",
		Category:  "essays",
		Tags:      []string{"go"},
		ContentZH: "这是一篇关于 Go 语言的文章",
	}
	if err := write.UpsertArticle(context.Background(), app.Store, a); err != nil {
		t.Fatalf("seed article: %v", err)
	}
}

func TestListArticlesEndToEnd(t *testing.T) {
	app := testApp(t)
	seedArticle(t, app, "a1")

	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	rec := httptest.NewRecorder()
	NewRouter(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetArticleNotFound(t *testing.T) {
	app := testApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/articles/missing", nil)
	rec := httptest.NewRecorder()
	NewRouter(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing article, got %d", rec.Code)
	}
}

func TestTrackViewEndToEnd(t *testing.T) {
	app := testApp(t)
	seedArticle(t, app, "a1")

	req := httptest.NewRequest(http.MethodPost, "/api/articles/a1/view", nil)
	rec := httptest.NewRecorder()
	NewRouter(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminViewAnalyticsConfigRoundTrip(t *testing.T) {
	app := testApp(t)
	router := NewRouter(app)

	getReq := httptest.NewRequest(http.MethodGet, "/admin/view-analytics-config", nil)
	getReq.RemoteAddr = "127.0.0.1:1234"
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 from a loopback admin request, got %d", getRec.Code)
	}

	postReq := httptest.NewRequest(http.MethodPost, "/admin/view-analytics-config",
		strings.NewReader(`{"dedupe_window_seconds":120}`))
	postReq.RemoteAddr = "127.0.0.1:1234"
	postRec := httptest.NewRecorder()
	router.ServeHTTP(postRec, postReq)
	if postRec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating config, got %d: %s", postRec.Code, postRec.Body.String())
	}

	if got := app.RuntimeConfig(); got.DedupeWindowSeconds != 120 {
		t.Fatalf("expected the update to take effect, got %d", got.DedupeWindowSeconds)
	}
}

func TestAdminRouteRejectsRemoteOrigin(t *testing.T) {
	app := testApp(t)
	router := NewRouter(app)

	req := httptest.NewRequest(http.MethodGet, "/admin/view-analytics-config", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-loopback admin request, got %d", rec.Code)
	}
}
