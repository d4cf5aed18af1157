// Package model defines the entity schemas for marginalia's columnar store
// and the fixed-size vector dimensionality shared across all embedded
// columns.
package model

// VectorDim is the canonical dimensionality for every embedded vector
// column (article, image, and query embeddings).
const VectorDim = 512

// Vector is a fixed-dimension float embedding. A nil Vector means "not
// embedded yet" and must be skipped by vector-search paths; an empty but
// non-nil Vector is coerced to nil by the codec (empty means null, never a
// zero-vector sentinel).
type Vector []float32

// Article is the primary content entity: a Markdown note with optional
// bilingual content and embeddings.
type Article struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Author            string   `json:"author"`
	Date              string   `json:"date"` // YYYY-MM-DD
	Category          string   `json:"category"`
	Tags              []string `json:"tags"`
	SummaryZH         string   `json:"summary_zh"`
	SummaryEN         string   `json:"summary_en,omitempty"`
	ContentZH         string   `json:"content_zh"`
	ContentEN         string   `json:"content_en,omitempty"`
	StructuredSummary string   `json:"structured_summary,omitempty"` // bilingual object, JSON-serialized
	FeaturedImage     string   `json:"featured_image,omitempty"`     // "images/<sha256>" or external URL
	ReadTimeMinutes   int      `json:"read_time_minutes,omitempty"`
	Vector            Vector   `json:"-"`
	VectorZH          Vector   `json:"-"`
	VectorEN          Vector   `json:"-"`
	CreatedAtMs       int64    `json:"created_at_ms"`
	UpdatedAtMs       int64    `json:"updated_at_ms"`
}

// Image is a content-addressed binary asset.
type Image struct {
	ID          string `json:"id"` // sha256 hex of Data
	Filename    string `json:"filename"`
	Data        []byte `json:"-"`
	Thumbnail   []byte `json:"-"`
	Vector      Vector `json:"-"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	ByteLength  int64  `json:"byte_length"`
	Metadata    string `json:"metadata,omitempty"` // free-form JSON
	CreatedAtMs int64  `json:"created_at_ms"`
}

// TaxonomyKind distinguishes categories from tags; both share one table
// keyed by (kind, key).
type TaxonomyKind string

const (
	TaxonomyCategory TaxonomyKind = "category"
	TaxonomyTag      TaxonomyKind = "tag"
)

// Taxonomy is one row of the (kind, key) taxonomy table.
type Taxonomy struct {
	Kind        TaxonomyKind `json:"kind"`
	Key         string       `json:"key"`
	DisplayName string       `json:"display_name"`
	Description string       `json:"description,omitempty"`
}

// ViewEvent records a single deduplicated article view.
type ViewEvent struct {
	ID          string `json:"id"` // "{article_id}:{fingerprint}:{dedupe_bucket}"
	ArticleID   string `json:"article_id"`
	ViewedAtMs  int64  `json:"viewed_at_ms"`
	DayBucket   string `json:"day_bucket"`  // YYYY-MM-DD, Asia/Shanghai
	HourBucket  string `json:"hour_bucket"` // "YYYY-MM-DD HH", Asia/Shanghai
	Fingerprint string `json:"fingerprint"`
	CreatedAtMs int64  `json:"created_at_ms"`
	UpdatedAtMs int64  `json:"updated_at_ms"`
}

// RuntimeConfig is the single in-memory, hot-reloadable record governing
// view-dedup windows and trend bounds. It is never persisted; it resets to
// defaults on process restart.
type RuntimeConfig struct {
	DedupeWindowSeconds int `json:"dedupe_window_seconds"`
	TrendDefaultDays    int `json:"trend_default_days"`
	TrendMaxDays        int `json:"trend_max_days"`
}
