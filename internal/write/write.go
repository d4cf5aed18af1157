// Package write implements the write-and-index pipeline: idempotent
// upserts into the columnar tables, taxonomy backfill from an article's
// tag/category list, explicit delete, and post-write index maintenance.
// These are the primitives the external ingestion CLI calls.
package write

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmoreau/marginalia/internal/model"
	"github.com/tmoreau/marginalia/internal/store"
)

// UpsertArticle merge-inserts an article keyed on id. Vector columns are
// rendered as DuckDB array literals (model.EncodeVectorLiteral) rather
// than bound parameters, matching the adapter's Nearest query: the
// database/sql driver has no stable way to bind a []float32 to a
// FLOAT[512] column, so literal embedding is the consistent approach for
// every vector write in this codebase. The literal is built from
// validated internal float data, never from caller-supplied strings, so
// there is no injection surface.
func UpsertArticle(ctx context.Context, st *store.Store, a *model.Article) error {
	a.Vector = model.NormalizeVector(a.Vector)
	a.VectorZH = model.NormalizeVector(a.VectorZH)
	a.VectorEN = model.NormalizeVector(a.VectorEN)

	if err := model.ValidateVector("vector", 0, a.Vector); err != nil {
		return err
	}
	if err := model.ValidateVector("vector_zh", 0, a.VectorZH); err != nil {
		return err
	}
	if err := model.ValidateVector("vector_en", 0, a.VectorEN); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	if a.CreatedAtMs == 0 {
		a.CreatedAtMs = now
	}
	a.UpdatedAtMs = now

	query := fmt.Sprintf(`
		INSERT INTO articles (
			id, title, author, date, category, tags, summary_zh, summary_en,
			content_zh, content_en, structured_summary, featured_image,
			read_time_minutes, vector, vector_zh, vector_en, created_at_ms, updated_at_ms
		) VALUES (
			?, ?, ?, ?, ?, %s, ?, ?,
			?, ?, ?, ?,
			?, %s, %s, %s, ?, ?
		)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title, author = excluded.author, date = excluded.date,
			category = excluded.category, tags = excluded.tags,
			summary_zh = excluded.summary_zh, summary_en = excluded.summary_en,
			content_zh = excluded.content_zh, content_en = excluded.content_en,
			structured_summary = excluded.structured_summary,
			featured_image = excluded.featured_image,
			read_time_minutes = excluded.read_time_minutes,
			vector = excluded.vector, vector_zh = excluded.vector_zh, vector_en = excluded.vector_en,
			updated_at_ms = excluded.updated_at_ms
	`, model.TagsLiteral(a.Tags), model.EncodeVectorLiteral(a.Vector), model.EncodeVectorLiteral(a.VectorZH), model.EncodeVectorLiteral(a.VectorEN))

	nullableSummaryEN := nullIfEmpty(a.SummaryEN)
	nullableContentEN := nullIfEmpty(a.ContentEN)
	nullableStructured := nullIfEmpty(a.StructuredSummary)
	nullableFeatured := nullIfEmpty(a.FeaturedImage)

	_, err := st.Conn().ExecContext(ctx, query,
		a.ID, a.Title, a.Author, a.Date, a.Category, a.SummaryZH, nullableSummaryEN,
		a.ContentZH, nullableContentEN, nullableStructured, nullableFeatured,
		a.ReadTimeMinutes, a.CreatedAtMs, a.UpdatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("upsert article %s: %w", a.ID, err)
	}

	return syncTaxonomies(ctx, st, a)
}

// UpsertImage merge-inserts a content-addressed image row.
func UpsertImage(ctx context.Context, st *store.Store, img *model.Image) error {
	img.Vector = model.NormalizeVector(img.Vector)
	if err := model.ValidateVector("vector", 0, img.Vector); err != nil {
		return err
	}
	if img.CreatedAtMs == 0 {
		img.CreatedAtMs = time.Now().UnixMilli()
	}
	img.ByteLength = int64(len(img.Data))

	query := fmt.Sprintf(`
		INSERT INTO images (id, filename, data, thumbnail, vector, width, height, byte_length, metadata, created_at_ms)
		VALUES (?, ?, ?, ?, %s, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			filename = excluded.filename, data = excluded.data, thumbnail = excluded.thumbnail,
			vector = excluded.vector, width = excluded.width, height = excluded.height,
			byte_length = excluded.byte_length, metadata = excluded.metadata
	`, model.EncodeVectorLiteral(img.Vector))

	_, err := st.Conn().ExecContext(ctx, query,
		img.ID, img.Filename, img.Data, img.Thumbnail, img.Width, img.Height, img.ByteLength, nullIfEmpty(img.Metadata), img.CreatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("upsert image %s: %w", img.ID, err)
	}
	return nil
}

// UpsertTaxonomy merge-inserts one explicit (kind, key) row, overwriting
// display name and description. Used by the CLI's frontmatter-driven
// per-tag/category description backfill.
func UpsertTaxonomy(ctx context.Context, st *store.Store, t *model.Taxonomy) error {
	_, err := st.Conn().ExecContext(ctx, `
		INSERT INTO taxonomies (kind, key, display_name, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, key) DO UPDATE SET
			display_name = excluded.display_name, description = excluded.description
	`, string(t.Kind), t.Key, t.DisplayName, nullIfEmpty(t.Description))
	if err != nil {
		return fmt.Errorf("upsert taxonomy %s/%s: %w", t.Kind, t.Key, err)
	}
	return nil
}

// syncTaxonomies ensures a taxonomy row exists for every tag/category an
// article references. It never overwrites a display name or description an
// earlier explicit UpsertTaxonomy call set (DO NOTHING on conflict).
func syncTaxonomies(ctx context.Context, st *store.Store, a *model.Article) error {
	if a.Category != "" {
		if err := insertTaxonomyIfAbsent(ctx, st, model.TaxonomyCategory, a.Category); err != nil {
			return err
		}
	}
	for _, tag := range a.Tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		if err := insertTaxonomyIfAbsent(ctx, st, model.TaxonomyTag, tag); err != nil {
			return err
		}
	}
	return nil
}

func insertTaxonomyIfAbsent(ctx context.Context, st *store.Store, kind model.TaxonomyKind, key string) error {
	_, err := st.Conn().ExecContext(ctx, `
		INSERT INTO taxonomies (kind, key, display_name, description)
		VALUES (?, ?, ?, NULL)
		ON CONFLICT (kind, key) DO NOTHING
	`, string(kind), key, key)
	if err != nil {
		return fmt.Errorf("backfill taxonomy %s/%s: %w", kind, key, err)
	}
	return nil
}

// DeleteArticle implements the article's explicit-delete lifecycle step.
func DeleteArticle(ctx context.Context, st *store.Store, id string) error {
	_, err := st.Conn().ExecContext(ctx, "DELETE FROM articles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete article %s: %w", id, err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// EnsureIndexes (re)builds the FTS and vector indexes the query engine
// depends on; the CLI calls this after a write batch. Each build is
// independently best-effort: a missing extension degrades one index to
// index_unavailable without blocking the others.
func EnsureIndexes(ctx context.Context, st *store.Store) []error {
	var errs []error
	build := func(table, column string, kind store.IndexKind) {
		if err := st.BuildIndex(ctx, table, column, kind); err != nil {
			errs = append(errs, err)
		}
	}
	build(store.TableArticles, "content_zh", store.IndexFTS)
	build(store.TableArticles, "content_en", store.IndexFTS)
	build(store.TableArticles, "vector_zh", store.IndexVector)
	build(store.TableArticles, "vector_en", store.IndexVector)
	build(store.TableImages, "vector", store.IndexVector)
	return errs
}
