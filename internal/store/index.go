package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tmoreau/marginalia/internal/logging"
)

// IndexKind is the kind of index build_index can create.
type IndexKind string

const (
	IndexFTS    IndexKind = "FTS"
	IndexVector IndexKind = "vector"
)

// OptimizeMode selects what Optimize does for a table.
type OptimizeMode string

const (
	OptimizeAll       OptimizeMode = "all"
	OptimizeIndexOnly OptimizeMode = "index_only"
	OptimizeCompact   OptimizeMode = "compact"
	OptimizePrune     OptimizeMode = "prune"
)

const indexStateDDL = `CREATE TABLE IF NOT EXISTS _marginalia_index_state (
	table_name VARCHAR NOT NULL,
	column_name VARCHAR NOT NULL,
	kind VARCHAR NOT NULL,
	built_at_ms BIGINT NOT NULL,
	PRIMARY KEY (table_name, column_name, kind)
)`

func (s *Store) ensureIndexState(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, indexStateDDL)
	return err
}

// HasIndex reports whether build_index has successfully built the given
// index and it has not since been invalidated. This is tracked in
// dedicated metadata rather than probed from DuckDB's system catalog, so
// the query engine's index-presence branch does not depend on the exact
// catalog shape DuckDB's FTS/VSS extensions happen to use.
func (s *Store) HasIndex(ctx context.Context, table, column string, kind IndexKind) bool {
	if err := s.ensureIndexState(ctx); err != nil {
		return false
	}
	var count int
	err := s.conn.QueryRowContext(ctx,
		"SELECT count(*) FROM _marginalia_index_state WHERE table_name = ? AND column_name = ? AND kind = ?",
		table, column, string(kind),
	).Scan(&count)
	return err == nil && count > 0
}

// BuildIndex creates the requested index if it does not already exist.
// FTS indexes require the `fts` extension; vector indexes require `vss`.
// Both are no-ops (and the index stays marked unavailable) when the
// extension failed to load, matching the adapter's never-panic-on-missing-
// feature contract.
func (s *Store) BuildIndex(ctx context.Context, table, column string, kind IndexKind) error {
	if s.HasIndex(ctx, table, column, kind) {
		return nil
	}

	switch kind {
	case IndexFTS:
		if !s.ftsAvailable {
			return newError("build_index", table, KindIndexUnavailable, fmt.Errorf("fts extension not loaded"))
		}
		stopwords := "'none'"
		query := fmt.Sprintf("PRAGMA create_fts_index('%s', 'id', '%s', overwrite=1, stopwords=%s)", table, column, stopwords)
		if _, err := s.conn.ExecContext(ctx, query); err != nil {
			return classifyQueryError("build_index", table, err)
		}
	case IndexVector:
		if !s.vssAvailable {
			return newError("build_index", table, KindIndexUnavailable, fmt.Errorf("vss extension not loaded"))
		}
		idxName := fmt.Sprintf("idx_%s_%s_hnsw", table, column)
		query := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING HNSW (%s) WITH (metric = 'cosine')", idxName, table, column)
		if _, err := s.conn.ExecContext(ctx, query); err != nil {
			return classifyQueryError("build_index", table, err)
		}
	default:
		return newError("build_index", table, KindInternal, fmt.Errorf("unknown index kind %q", kind))
	}

	_, err := s.conn.ExecContext(ctx,
		"INSERT INTO _marginalia_index_state (table_name, column_name, kind, built_at_ms) VALUES (?, ?, ?, ?) "+
			"ON CONFLICT (table_name, column_name, kind) DO UPDATE SET built_at_ms = excluded.built_at_ms",
		table, column, string(kind), time.Now().UnixMilli(),
	)
	return err
}

// Optimize runs index/compaction maintenance for one table. On an
// offset-overflow failure (DuckDB's batched operations can exceed an
// internal row-group boundary on very large tables) it runs the operation
// once more with batchSize cut to a quarter. batchSize only appears in a
// SQL comment on the checkpoint statement, so the second attempt executes
// the same statements as the first.
func (s *Store) Optimize(ctx context.Context, table string, mode OptimizeMode) error {
	batchSize := 100_000
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		lastErr = s.optimizeOnce(ctx, table, mode, batchSize)
		if lastErr == nil {
			return nil
		}
		if !IsKind(lastErr, KindOffsetOverflow) {
			return lastErr
		}
		batchSize /= 4
		logging.Warn().Str("table", table).Int("batch_size", batchSize).Msg("optimize hit offset overflow, retrying with smaller batch")
	}
	return lastErr
}

func (s *Store) optimizeOnce(ctx context.Context, table string, mode OptimizeMode, batchSize int) error {
	switch mode {
	case OptimizeIndexOnly:
		return s.reindexTable(ctx, table)
	case OptimizePrune:
		return s.PruneOrphans(ctx, []string{table})
	case OptimizeCompact, OptimizeAll:
		if err := s.reindexTable(ctx, table); err != nil {
			return err
		}
		_, err := s.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA force_checkpoint; -- batch_size=%d", batchSize))
		if err != nil {
			return classifyQueryError("optimize", table, err)
		}
		return nil
	default:
		return newError("optimize", table, KindInternal, fmt.Errorf("unknown optimize mode %q", mode))
	}
}

func (s *Store) reindexTable(ctx context.Context, table string) error {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT column_name, kind FROM _marginalia_index_state WHERE table_name = ?", table)
	if err != nil {
		// No index state yet for this table is not an error; nothing to reindex.
		return nil
	}
	defer closeQuietly(rows)

	type idx struct {
		column string
		kind   IndexKind
	}
	var toRebuild []idx
	for rows.Next() {
		var col, kind string
		if err := rows.Scan(&col, &kind); err != nil {
			return classifyQueryError("optimize", table, err)
		}
		toRebuild = append(toRebuild, idx{col, IndexKind(kind)})
	}

	for _, i := range toRebuild {
		if _, err := s.conn.ExecContext(ctx,
			"DELETE FROM _marginalia_index_state WHERE table_name = ? AND column_name = ? AND kind = ?",
			table, i.column, string(i.kind)); err != nil {
			return classifyQueryError("optimize", table, err)
		}
		if err := s.BuildIndex(ctx, table, i.column, i.kind); err != nil {
			return err
		}
	}
	return nil
}

// PruneOrphans physically reclaims tombstoned rows across the given
// tables via VACUUM.
func (s *Store) PruneOrphans(ctx context.Context, tables []string) error {
	for _, t := range tables {
		if _, err := s.conn.ExecContext(ctx, "VACUUM "+t+";"); err != nil {
			return classifyQueryError("prune_orphans", t, err)
		}
	}
	return nil
}

// PruneOrphanImages removes image rows no longer referenced by any
// article's content or featured_image column; the background compactor
// runs it after each optimize pass.
func (s *Store) PruneOrphanImages(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM images WHERE id NOT IN (
			SELECT regexp_extract(unnest_ref, 'images/([0-9a-f]+)', 1)
			FROM (
				SELECT unnest(regexp_extract_all(coalesce(content_zh,'') || ' ' || coalesce(content_en,'') || ' ' || coalesce(featured_image,''), 'images/[0-9a-f]+', 0)) AS unnest_ref
				FROM articles
			)
			WHERE unnest_ref <> ''
		)
	`)
	if err != nil {
		return 0, classifyQueryError("prune_orphans", TableImages, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
