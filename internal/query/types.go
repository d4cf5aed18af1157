package query

// ArticleListItem is the projection list_articles returns: no content body.
type ArticleListItem struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Date            string   `json:"date"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	Summary         string   `json:"summary"`
	FeaturedImage   string   `json:"featured_image,omitempty"`
	ReadTimeMinutes int      `json:"read_time_minutes,omitempty"`
}

// ArticleListFilter selects list_articles' optional predicates.
type ArticleListFilter struct {
	Tag      string
	Category string
}

// ArticleDetail is get_article's full result: the stored record plus a
// rendered HTML body and a rewritten featured-image URL.
type ArticleDetail struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Author            string   `json:"author"`
	Date              string   `json:"date"`
	Category          string   `json:"category"`
	Tags              []string `json:"tags"`
	SummaryZH         string   `json:"summary_zh"`
	SummaryEN         string   `json:"summary_en,omitempty"`
	HTMLZH            string   `json:"html_zh"`
	HTMLEN            string   `json:"html_en,omitempty"`
	StructuredSummary string   `json:"structured_summary,omitempty"`
	FeaturedImage     string   `json:"featured_image,omitempty"`
	ReadTimeMinutes   int      `json:"read_time_minutes,omitempty"`
	CreatedAtMs       int64    `json:"created_at_ms"`
	UpdatedAtMs       int64    `json:"updated_at_ms"`
}

// LexicalHit is one lexical_search result.
type LexicalHit struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Score   float64  `json:"score"`
	Snippet string   `json:"snippet"`
}

// LexicalSearchResult wraps hits with the query-level metadata the HTTP
// surface echoes back.
type LexicalSearchResult struct {
	Hits  []LexicalHit `json:"hits"`
	Query string       `json:"query"`
	Total int          `json:"total"`
	Path  string       `json:"path"`
}

// SemanticHit is one semantic_search result.
type SemanticHit struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	Distance  float64 `json:"_distance"`
	Language  string  `json:"language"`
	Snippet   string  `json:"snippet"`
	Degraded  bool    `json:"degraded,omitempty"`
}

// SemanticSearchResult wraps semantic hits with path metadata.
type SemanticSearchResult struct {
	Hits     []SemanticHit `json:"hits"`
	Query    string        `json:"query"`
	Path     string        `json:"path"`
	Degraded bool          `json:"degraded,omitempty"`
}

// SemanticSearchOptions parameterizes semantic_search and image_nn. A zero
// Limit means unbounded.
type SemanticSearchOptions struct {
	Limit             int      `json:"limit" validate:"min=0"`
	MaxDistance       *float64 `json:"max_distance" validate:"omitempty,gte=0"`
	EnhancedHighlight bool     `json:"enhanced_highlight"`
}

// RelatedHit is one related_articles result.
type RelatedHit struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Summary  string  `json:"summary"`
	Distance float64 `json:"_distance"`
}

// RelatedResult carries an optional reason when no vector was available.
type RelatedResult struct {
	Hits   []RelatedHit `json:"hits"`
	Reason string       `json:"reason,omitempty"`
}

// ImageListItem is list_images' projection: no binary columns.
type ImageListItem struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	ByteLength int64  `json:"byte_length"`
	CreatedAt  int64  `json:"created_at_ms"`
}

// ImageNNHit is one image_nn result.
type ImageNNHit struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Distance float64 `json:"_distance"`
}

// TaxonomyCount is one tag/category listing entry.
type TaxonomyCount struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	Description string `json:"description,omitempty"`
}
