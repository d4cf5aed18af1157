package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tmoreau/marginalia/internal/analytics"
	"github.com/tmoreau/marginalia/internal/query"
	"github.com/tmoreau/marginalia/internal/runtime"
	"github.com/tmoreau/marginalia/internal/validation"
)

// rawContentParams carries GET /api/articles/:id/raw/:lang path parameters.
type rawContentParams struct {
	Lang string `json:"lang" validate:"oneof=zh en"`
}

// viewTrendParams carries GET /api/articles/:id/view-trend query parameters
// that have enum/presence rules; days is clamped, not rejected, so it is
// handled separately.
type viewTrendParams struct {
	Granularity string `json:"granularity" validate:"oneof=day hour"`
	Day         string `json:"day" validate:"required_if=Granularity hour"`
}

// Handlers holds the shared application state every route handler reads.
type Handlers struct {
	App *runtime.AppState
}

func NewHandlers(app *runtime.AppState) *Handlers {
	return &Handlers{App: app}
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryFloatPtr(r *http.Request, name string) *float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func queryBool(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "1" || v == "true" || v == "yes"
}

// ListArticles handles GET /api/articles?tag=&category=
func (h *Handlers) ListArticles(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	filter := query.ArticleListFilter{
		Tag:      r.URL.Query().Get("tag"),
		Category: r.URL.Query().Get("category"),
	}
	items, err := h.App.Query.ListArticles(r.Context(), filter)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.JSON(map[string]any{"articles": items})
}

// GetArticle handles GET /api/articles/:id
func (h *Handlers) GetArticle(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	detail, err := h.App.Query.GetArticle(r.Context(), id)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.JSON(detail)
}

// GetArticleRaw handles GET /api/articles/:id/raw/:lang
func (h *Handlers) GetArticleRaw(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	lang := chi.URLParam(r, "lang")
	if err := validation.ValidateStruct(&rawContentParams{Lang: lang}); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	content, err := h.App.Query.GetArticleRaw(r.Context(), id, lang)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.Binary("text/markdown; charset=utf-8", []byte(content))
}

// RelatedArticles handles GET /api/articles/:id/related
func (h *Handlers) RelatedArticles(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	result, err := h.App.Query.RelatedArticles(r.Context(), id)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.JSON(result)
}

// TrackView handles POST /api/articles/:id/view
func (h *Handlers) TrackView(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	var exists int
	if err := h.App.Store.Conn().QueryRowContext(r.Context(),
		"SELECT count(*) FROM articles WHERE id = ?", id).Scan(&exists); err != nil {
		rw.InternalError(err.Error())
		return
	}
	if exists == 0 {
		rw.NotFound("article not found")
		return
	}

	fp := analytics.FingerprintFromRequest(r)
	cfg := h.App.RuntimeConfig()
	now := nowMillis()
	result, err := analytics.Track(r.Context(), h.App.Store, id, fp, cfg.DedupeWindowSeconds, cfg.TrendDefaultDays, now)
	if err != nil {
		rw.InternalError(err.Error())
		return
	}
	rw.JSON(map[string]any{
		"article_id":     id,
		"counted":        result.Counted,
		"total_views":    result.TotalViews,
		"today_views":    result.TodayViews,
		"timezone":       analytics.TimezoneName,
		"daily_points":   result.DailyPoints,
		"server_time_ms": now,
	})
}

// ViewTrend handles GET /api/articles/:id/view-trend?granularity=day|hour&days=&day=
func (h *Handlers) ViewTrend(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	cfg := h.App.RuntimeConfig()

	granularity := analytics.Granularity(r.URL.Query().Get("granularity"))
	if granularity == "" {
		granularity = analytics.GranularityDay
	}
	day := r.URL.Query().Get("day")

	if err := validation.ValidateStruct(&viewTrendParams{Granularity: string(granularity), Day: day}); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if granularity == analytics.GranularityHour {
		if err := analytics.ValidateDayString(day); err != nil {
			rw.BadRequest(err.Error())
			return
		}
	}

	days := queryInt(r, "days", cfg.TrendDefaultDays)
	if days > cfg.TrendMaxDays {
		days = cfg.TrendMaxDays
	}

	points, err := analytics.ViewTrend(r.Context(), h.App.Store, id, granularity, days, day)
	if err != nil {
		rw.InternalError(err.Error())
		return
	}
	rw.JSON(map[string]any{
		"article_id":  id,
		"granularity": granularity,
		"timezone":    analytics.TimezoneName,
		"points":      points,
	})
}

// ListTags handles GET /api/tags
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tags, err := h.App.Query.ListTags(r.Context())
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.JSON(map[string]any{"tags": tags})
}

// ListCategories handles GET /api/categories
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	cats, err := h.App.Query.ListCategories(r.Context())
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.JSON(map[string]any{"categories": cats})
}

// LexicalSearch handles GET /api/search?q=&limit=
func (h *Handlers) LexicalSearch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query().Get("q")
	limit := queryInt(r, "limit", 0) // 0 = no limit, return every hit
	result, err := h.App.Query.LexicalSearch(r.Context(), q, limit)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.JSON(result)
}

// SemanticSearch handles GET /api/semantic-search?q=&limit=&max_distance=&enhanced_highlight=
func (h *Handlers) SemanticSearch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query().Get("q")
	opts := query.SemanticSearchOptions{
		Limit:             queryInt(r, "limit", 0), // 0 = no limit
		MaxDistance:       queryFloatPtr(r, "max_distance"),
		EnhancedHighlight: queryBool(r, "enhanced_highlight"),
	}
	result, err := h.App.Query.SemanticSearch(r.Context(), q, opts)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.JSON(result)
}

// ListImages handles GET /api/images
func (h *Handlers) ListImages(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	images, err := h.App.Query.ListImages(r.Context())
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.JSON(map[string]any{"images": images})
}

// GetImage handles GET /api/images/:idOrFilename?thumb=1
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	idOrFilename := chi.URLParam(r, "idOrFilename")
	thumb := queryBool(r, "thumb")

	data, filename, err := h.App.Query.GetImageBlob(r.Context(), idOrFilename, thumb)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.Binary(contentTypeForFilename(filename), data)
}

// ImageSearch handles GET /api/image-search?id=&limit=&max_distance=
func (h *Handlers) ImageSearch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := r.URL.Query().Get("id")
	if id == "" {
		rw.BadRequest("id is required")
		return
	}
	opts := query.SemanticSearchOptions{
		Limit:       queryInt(r, "limit", 10),
		MaxDistance: queryFloatPtr(r, "max_distance"),
	}
	hits, err := h.App.Query.ImageNN(r.Context(), id, opts)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.JSON(map[string]any{"hits": hits})
}

// GetViewAnalyticsConfig handles GET /admin/view-analytics-config
func (h *Handlers) GetViewAnalyticsConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.JSON(h.App.RuntimeConfig())
}

// UpdateViewAnalyticsConfig handles POST /admin/view-analytics-config
func (h *Handlers) UpdateViewAnalyticsConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var patch runtime.RuntimeConfigPatch
	if err := decodeJSON(r, &patch); err != nil {
		rw.BadRequest("invalid request body: " + err.Error())
		return
	}
	next, err := h.App.UpdateRuntimeConfig(patch)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	rw.JSON(next)
}

func contentTypeForFilename(filename string) string {
	switch {
	case hasSuffixFold(filename, ".png"):
		return "image/png"
	case hasSuffixFold(filename, ".gif"):
		return "image/gif"
	case hasSuffixFold(filename, ".webp"):
		return "image/webp"
	case hasSuffixFold(filename, ".svg"):
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
