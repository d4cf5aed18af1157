package query

import (
	"context"
	"database/sql"
	"strings"

	"github.com/tmoreau/marginalia/internal/model"
	"github.com/tmoreau/marginalia/internal/store"
)

var listProjection = []string{
	"id", "title", "author", "date", "category", "tags", "summary_zh", "featured_image", "read_time_minutes",
}

// ListArticles returns the article catalog without content bodies, ordered
// by date descending then id ascending, with optional tag/category filters.
func (e *Engine) ListArticles(ctx context.Context, filter ArticleListFilter) ([]ArticleListItem, error) {
	pl := startPathLog(ctx, "list_articles")

	f := &store.Filter{}
	if filter.Category != "" {
		f.Equals = map[string]any{"lower(category)": strings.ToLower(filter.Category)}
	}
	if filter.Tag != "" {
		f.TagContains = filter.Tag
	}

	rows, err := e.Store.Scan(ctx, store.TableArticles, store.ScanOptions{
		Columns: listProjection,
		Filter:  f,
		OrderBy: "date DESC, id ASC",
	})
	if err != nil {
		pl.finish(PathTableScan, PathTableScan, "scan error", 0)
		return nil, storeUnavail("list_articles", err)
	}
	defer rows.Close()

	var items []ArticleListItem
	for rows.Next() {
		item, err := scanListItem(rows)
		if err != nil {
			return nil, internalErr("list_articles", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, internalErr("list_articles", err)
	}

	pl.finish(PathTableScan, PathTableScan, "filtered projection scan", len(items))
	return items, nil
}

func scanListItem(rows *sql.Rows) (ArticleListItem, error) {
	var item ArticleListItem
	var category, featuredImage sql.NullString
	var readTime sql.NullInt64
	var tags model.StringSlice

	if err := rows.Scan(&item.ID, &item.Title, &item.Author, &item.Date, &category, &tags, &item.Summary, &featuredImage, &readTime); err != nil {
		return item, err
	}
	item.Category = category.String
	item.FeaturedImage = featuredImage.String
	item.ReadTimeMinutes = int(readTime.Int64)
	item.Tags = []string(tags)
	return item, nil
}

// GetArticle does a primary-key point lookup plus markdown rendering and
// featured-image URL rewriting.
func (e *Engine) GetArticle(ctx context.Context, id string) (*ArticleDetail, error) {
	pl := startPathLog(ctx, "get_article")

	row := e.Store.Conn().QueryRowContext(ctx, `
		SELECT id, title, author, date, category, tags, summary_zh, summary_en,
		       content_zh, content_en, structured_summary, featured_image,
		       read_time_minutes, created_at_ms, updated_at_ms
		FROM articles WHERE id = ?`, id)

	var (
		d                              ArticleDetail
		category, summaryEN, contentZH sql.NullString
		contentEN, structuredSummary   sql.NullString
		featuredImage                  sql.NullString
		readTime                       sql.NullInt64
		tags                           model.StringSlice
	)

	err := row.Scan(&d.ID, &d.Title, &d.Author, &d.Date, &category, &tags, &d.SummaryZH, &summaryEN,
		&contentZH, &contentEN, &structuredSummary, &featuredImage, &readTime, &d.CreatedAtMs, &d.UpdatedAtMs)
	if err == sql.ErrNoRows {
		pl.finish(PathPointLookup, PathPointLookup, "no matching row", 0)
		return nil, notFound("get_article", err)
	}
	if err != nil {
		pl.finish(PathPointLookup, PathPointLookup, "scan error", 0)
		return nil, internalErr("get_article", err)
	}

	d.Category = category.String
	d.SummaryEN = summaryEN.String
	d.StructuredSummary = structuredSummary.String
	d.FeaturedImage = rewriteImageRef(featuredImage.String)
	d.ReadTimeMinutes = int(readTime.Int64)
	d.Tags = []string(tags)

	if html, cached := e.Cache.HTML(d.ID, "zh"); cached {
		d.HTMLZH = html
	} else {
		d.HTMLZH = e.Renderer.Render(contentZH.String)
		e.Cache.SetHTML(d.ID, "zh", d.HTMLZH)
	}
	if contentEN.Valid && contentEN.String != "" {
		if html, cached := e.Cache.HTML(d.ID, "en"); cached {
			d.HTMLEN = html
		} else {
			d.HTMLEN = e.Renderer.Render(contentEN.String)
			e.Cache.SetHTML(d.ID, "en", d.HTMLEN)
		}
	}

	pl.finish(PathPointLookup, PathPointLookup, "primary key lookup", 1)
	return &d, nil
}

// GetArticleRaw returns the raw markdown for one language, or not_found if
// that language's content is absent. It never falls back to the other
// language; the endpoint's contract is the content of this language only.
func (e *Engine) GetArticleRaw(ctx context.Context, id, lang string) (string, error) {
	col := "content_zh"
	if lang == "en" {
		col = "content_en"
	}
	var content sql.NullString
	err := e.Store.Conn().QueryRowContext(ctx, "SELECT "+col+" FROM articles WHERE id = ?", id).Scan(&content)
	if err == sql.ErrNoRows {
		return "", notFound("get_article_raw", err)
	}
	if err != nil {
		return "", internalErr("get_article_raw", err)
	}
	if !content.Valid || content.String == "" {
		return "", notFound("get_article_raw", sql.ErrNoRows)
	}
	return content.String, nil
}

func rewriteImageRef(ref string) string {
	if strings.HasPrefix(ref, "images/") {
		return "/api/images/" + strings.TrimPrefix(ref, "images/")
	}
	return ref
}

// ListImages returns the image catalog projection; binary columns are
// never included here, only via GetImageBlob.
func (e *Engine) ListImages(ctx context.Context) ([]ImageListItem, error) {
	pl := startPathLog(ctx, "list_images")

	rows, err := e.Store.Scan(ctx, store.TableImages, store.ScanOptions{
		Columns: []string{"id", "filename", "byte_length", "created_at_ms"},
		OrderBy: "created_at_ms DESC",
	})
	if err != nil {
		pl.finish(PathTableScan, PathTableScan, "scan error", 0)
		return nil, storeUnavail("list_images", err)
	}
	defer rows.Close()

	var items []ImageListItem
	for rows.Next() {
		var it ImageListItem
		if err := rows.Scan(&it.ID, &it.Filename, &it.ByteLength, &it.CreatedAt); err != nil {
			return nil, internalErr("list_images", err)
		}
		items = append(items, it)
	}
	pl.finish(PathTableScan, PathTableScan, "projection scan", len(items))
	return items, nil
}

// ListTags and ListCategories implement the taxonomy listing endpoints.
func (e *Engine) ListTags(ctx context.Context) ([]TaxonomyCount, error) {
	return e.listTaxonomy(ctx, "tag")
}

func (e *Engine) ListCategories(ctx context.Context) ([]TaxonomyCount, error) {
	return e.listTaxonomy(ctx, "category")
}

func (e *Engine) listTaxonomy(ctx context.Context, kind string) ([]TaxonomyCount, error) {
	pl := startPathLog(ctx, "list_taxonomy:"+kind)

	joinExpr := "category = t.key"
	if kind == "tag" {
		joinExpr = "list_contains(tags, t.key)"
	}

	rows, err := e.Store.Conn().QueryContext(ctx, `
		SELECT t.display_name, t.description,
		       (SELECT count(*) FROM articles a WHERE `+joinExpr+`) AS cnt
		FROM taxonomies t WHERE t.kind = ?
		ORDER BY cnt DESC, t.key ASC`, kind)
	if err != nil {
		pl.finish(PathTableScan, PathTableScan, "scan error", 0)
		return nil, storeUnavail("list_taxonomy", err)
	}
	defer rows.Close()

	var out []TaxonomyCount
	for rows.Next() {
		var tc TaxonomyCount
		var desc sql.NullString
		if err := rows.Scan(&tc.Name, &desc, &tc.Count); err != nil {
			return nil, internalErr("list_taxonomy", err)
		}
		tc.Description = desc.String
		out = append(out, tc)
	}
	pl.finish(PathTableScan, PathTableScan, "join + count scan", len(out))
	return out, nil
}
