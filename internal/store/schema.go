package store

import "fmt"

// Managed table names, also used as the default compactor iteration set
// (minus Config.Compactor.SkipTables).
const (
	TableArticles     = "articles"
	TableImages       = "images"
	TableTaxonomies   = "taxonomies"
	TableArticleViews = "article_views"
)

// ManagedTables lists every table the adapter owns.
var ManagedTables = []string{TableArticles, TableImages, TableTaxonomies, TableArticleViews}

func articlesDDL(dim int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS articles (
		id VARCHAR PRIMARY KEY,
		title VARCHAR NOT NULL,
		author VARCHAR,
		date VARCHAR NOT NULL,
		category VARCHAR,
		tags VARCHAR[],
		summary_zh VARCHAR,
		summary_en VARCHAR,
		content_zh VARCHAR,
		content_en VARCHAR,
		structured_summary JSON,
		featured_image VARCHAR,
		read_time_minutes INTEGER,
		vector FLOAT[%d],
		vector_zh FLOAT[%d],
		vector_en FLOAT[%d],
		created_at_ms BIGINT NOT NULL,
		updated_at_ms BIGINT NOT NULL
	)`, dim, dim, dim)
}

func imagesDDL(dim int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS images (
		id VARCHAR PRIMARY KEY,
		filename VARCHAR NOT NULL,
		data BLOB,
		thumbnail BLOB,
		vector FLOAT[%d],
		width INTEGER,
		height INTEGER,
		byte_length BIGINT NOT NULL,
		metadata JSON,
		created_at_ms BIGINT NOT NULL
	)`, dim)
}

const taxonomiesDDL = `CREATE TABLE IF NOT EXISTS taxonomies (
	kind VARCHAR NOT NULL,
	key VARCHAR NOT NULL,
	display_name VARCHAR NOT NULL,
	description VARCHAR,
	PRIMARY KEY (kind, key)
)`

const articleViewsDDL = `CREATE TABLE IF NOT EXISTS article_views (
	id VARCHAR PRIMARY KEY,
	article_id VARCHAR NOT NULL,
	viewed_at_ms BIGINT NOT NULL,
	day_bucket VARCHAR NOT NULL,
	hour_bucket VARCHAR NOT NULL,
	fingerprint VARCHAR NOT NULL,
	created_at_ms BIGINT NOT NULL,
	updated_at_ms BIGINT NOT NULL
)`
