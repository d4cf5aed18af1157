package query

import (
	"context"
	"database/sql"

	"github.com/tmoreau/marginalia/internal/model"
	"github.com/tmoreau/marginalia/internal/store"
	"github.com/tmoreau/marginalia/internal/validation"
)

// RelatedDefaultK is related_articles' default result count.
const RelatedDefaultK = 5

// RelatedArticles finds the nearest neighbors of the source article's own
// embedding: prefer vector_zh, else vector_en, else report a reason and
// return no hits.
func (e *Engine) RelatedArticles(ctx context.Context, id string) (*RelatedResult, error) {
	pl := startPathLog(ctx, "related_articles")

	var exists int
	if err := e.Store.Conn().QueryRowContext(ctx, "SELECT count(*) FROM articles WHERE id = ?", id).Scan(&exists); err != nil {
		pl.finish(PathPointLookup, PathPointLookup, "scan error", 0)
		return nil, internalErr("related_articles", err)
	}
	if exists == 0 {
		pl.finish(PathPointLookup, PathPointLookup, "source article not found", 0)
		return nil, notFound("related_articles", sql.ErrNoRows)
	}

	column := "vector_zh"
	qVec, err := fetchVector(ctx, e.Store, id, column)
	if err != nil {
		pl.finish(PathVectorNoResults, PathVectorIndex, "vector fetch error", 0)
		return nil, internalErr("related_articles", err)
	}
	if qVec == nil {
		column = "vector_en"
		qVec, err = fetchVector(ctx, e.Store, id, column)
		if err != nil {
			pl.finish(PathVectorNoResults, PathVectorIndex, "vector fetch error", 0)
			return nil, internalErr("related_articles", err)
		}
	}
	if qVec == nil {
		pl.finish(PathVectorNoResults, PathVectorIndex, "source article has no vector", 0)
		return &RelatedResult{Hits: []RelatedHit{}, Reason: "source article has no embedded vector"}, nil
	}

	rows, err := e.Store.Nearest(ctx, store.TableArticles, column, qVec, store.NearestOptions{
		Limit:  RelatedDefaultK,
		Filter: &store.Filter{ExcludeID: id},
	}, []string{"id", "title", "summary_zh"})
	if err != nil {
		pl.finish(PathVectorNoResults, PathVectorIndex, "ann error", 0)
		return nil, storeUnavail("related_articles", err)
	}
	defer rows.Close()

	path := PathVectorScan
	if e.Store.HasIndex(ctx, store.TableArticles, column, store.IndexVector) {
		path = PathVectorIndex
	}

	var hits []RelatedHit
	for rows.Next() {
		var h RelatedHit
		var summary sql.NullString
		if err := rows.Scan(&h.ID, &h.Title, &summary, &h.Distance); err != nil {
			return nil, internalErr("related_articles", err)
		}
		h.Summary = summary.String
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, internalErr("related_articles", err)
	}

	pl.finish(path, PathVectorIndex, "self-excluded ann on preferred-language column", len(hits))
	return &RelatedResult{Hits: hits}, nil
}

// fetchVector loads a single nullable vector column for one row.
func fetchVector(ctx context.Context, st *store.Store, id, column string) (model.Vector, error) {
	var raw model.Float32Slice
	err := st.Conn().QueryRowContext(ctx, "SELECT "+column+" FROM articles WHERE id = ?", id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.Vector(raw), nil
}

func fetchImageVector(ctx context.Context, st *store.Store, id string) (model.Vector, error) {
	var raw model.Float32Slice
	err := st.Conn().QueryRowContext(ctx, "SELECT vector FROM images WHERE id = ?", id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.Vector(raw), nil
}

// ImageNN fetches the source image's vector, then ANN-searches the images
// table's vector column, excluding the source image itself.
func (e *Engine) ImageNN(ctx context.Context, id string, opts SemanticSearchOptions) ([]ImageNNHit, error) {
	pl := startPathLog(ctx, "image_nn")

	if err := validation.ValidateStruct(&opts); err != nil {
		return nil, badRequest("image_nn", err)
	}

	var exists int
	if err := e.Store.Conn().QueryRowContext(ctx, "SELECT count(*) FROM images WHERE id = ?", id).Scan(&exists); err != nil {
		pl.finish(PathPointLookup, PathPointLookup, "scan error", 0)
		return nil, internalErr("image_nn", err)
	}
	if exists == 0 {
		pl.finish(PathPointLookup, PathPointLookup, "source image not found", 0)
		return nil, notFound("image_nn", sql.ErrNoRows)
	}

	qVec, err := fetchImageVector(ctx, e.Store, id)
	if err != nil {
		pl.finish(PathPointLookup, PathPointLookup, "scan error", 0)
		return nil, internalErr("image_nn", err)
	}
	if qVec == nil {
		pl.finish(PathVectorNoResults, PathVectorIndex, "source image has no vector", 0)
		return nil, nil
	}

	rows, err := e.Store.Nearest(ctx, store.TableImages, "vector", qVec, store.NearestOptions{
		Limit:       opts.Limit,
		MaxDistance: opts.MaxDistance,
		Filter:      &store.Filter{ExcludeID: id},
	}, []string{"id", "filename"})
	if err != nil {
		pl.finish(PathVectorNoResults, PathVectorIndex, "ann error", 0)
		return nil, storeUnavail("image_nn", err)
	}
	defer rows.Close()

	path := PathVectorScan
	if e.Store.HasIndex(ctx, store.TableImages, "vector", store.IndexVector) {
		path = PathVectorIndex
	}

	var hits []ImageNNHit
	for rows.Next() {
		var h ImageNNHit
		if err := rows.Scan(&h.ID, &h.Filename, &h.Distance); err != nil {
			return nil, internalErr("image_nn", err)
		}
		hits = append(hits, h)
	}
	pl.finish(path, PathVectorIndex, "ann on images.vector", len(hits))
	return hits, rows.Err()
}

// GetImageBlob is the dedicated blob-fetch path: binary columns are never
// materialized by the general scan projections, only via this explicit
// point lookup by id or filename.
func (e *Engine) GetImageBlob(ctx context.Context, idOrFilename string, thumb bool) (data []byte, filename string, err error) {
	row := e.Store.Conn().QueryRowContext(ctx,
		"SELECT filename, data, thumbnail FROM images WHERE id = ? OR filename = ?", idOrFilename, idOrFilename)

	var fn string
	var full, thumbnail []byte
	if scanErr := row.Scan(&fn, &full, &thumbnail); scanErr == sql.ErrNoRows {
		return nil, "", notFound("get_image", scanErr)
	} else if scanErr != nil {
		return nil, "", internalErr("get_image", scanErr)
	}

	if thumb && len(thumbnail) > 0 {
		return thumbnail, fn, nil
	}
	return full, fn, nil
}
