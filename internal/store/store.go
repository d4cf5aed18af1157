// Package store adapts an embedded DuckDB database file into the small set
// of operations the query engine and write pipeline need: idempotent table
// creation, append, merge-insert-by-key, filtered scan, nearest-neighbor
// search, count, and index maintenance.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tmoreau/marginalia/internal/config"
	"github.com/tmoreau/marginalia/internal/logging"
	"github.com/tmoreau/marginalia/internal/model"
)

// Store wraps a DuckDB connection and tracks which extensions loaded
// successfully, so query paths can detect index-unavailable conditions
// instead of panicking on a missing function.
type Store struct {
	conn *sql.DB
	cfg  *config.StoreConfig

	ftsAvailable  bool
	vssAvailable  bool
	jsonAvailable bool
	icuAvailable  bool
}

// Open creates (if absent) and opens the DuckDB file described by cfg,
// loading the extensions the query engine depends on.
func Open(cfg *config.StoreConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dbDir, err)
		}
	}

	// Extensions are preloaded against an in-memory database before the
	// main file is opened: DuckDB replays the WAL immediately on open, and
	// WAL entries that reference extension functions (e.g. ICU's
	// TIMESTAMPTZ defaults) fail to replay unless the extension is already
	// cached in-process.
	preloadExtensions()

	preserveOrder := "true"
	if !cfg.PreserveInsertionOrder {
		preserveOrder = "false"
	}

	connStr := fmt.Sprintf(
		"%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory, preserveOrder,
	)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Store{conn: conn, cfg: cfg}

	if err := s.installExtensions(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("install extensions: %w", err)
	}

	if err := s.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("create tables: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("checkpoint after schema init failed")
	}

	return s, nil
}

// preloadExtensions loads extensions in a throwaway in-memory database.
// DuckDB caches loaded extensions per-process, so this makes them available
// once the main file is opened and its WAL replayed. Failures are
// non-fatal: the corresponding xAvailable flag simply stays false and
// query paths fall back.
func preloadExtensions() {
	conn, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		logging.Debug().Err(err).Msg("failed to open in-memory database for extension preload")
		return
	}
	defer closeQuietly(conn)

	for _, ext := range []string{"icu", "json", "fts", "vss"} {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := conn.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext))
		cancel()
		if err != nil {
			logging.Debug().Str("extension", ext).Err(err).Msg("extension preload failed")
		}
	}
}

func (s *Store) installExtensions() error {
	type ext struct {
		name string
		flag *bool
	}
	exts := []ext{
		{"json", &s.jsonAvailable},
		{"icu", &s.icuAvailable},
		{"fts", &s.ftsAvailable},
		{"vss", &s.vssAvailable},
	}
	for _, e := range exts {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_, err := s.conn.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", e.name, e.name))
		cancel()
		if err != nil {
			logging.Warn().Str("extension", e.name).Err(err).Msg("extension unavailable, dependent paths will fall back")
			*e.flag = false
			continue
		}
		*e.flag = true
	}
	// VSS experimental persistence must be explicitly enabled for HNSW
	// indexes on a disk-backed database.
	if s.vssAvailable {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, _ = s.conn.ExecContext(ctx, "SET hnsw_enable_experimental_persistence=true;")
		cancel()
	}
	return nil
}

func (s *Store) createTables() error {
	stmts := []string{
		articlesDDL(model.VectorDim),
		imagesDDL(model.VectorDim),
		taxonomiesDDL,
		articleViewsDDL,
	}
	for _, ddl := range stmts {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := s.conn.ExecContext(ctx, ddl)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

// Conn exposes the underlying *sql.DB for packages that need direct query
// access beyond the adapter's operation set (e.g. analytics aggregation).
func (s *Store) Conn() *sql.DB { return s.conn }

func (s *Store) FTSAvailable() bool  { return s.ftsAvailable }
func (s *Store) VSSAvailable() bool  { return s.vssAvailable }
func (s *Store) ICUAvailable() bool  { return s.icuAvailable }
func (s *Store) JSONAvailable() bool { return s.jsonAvailable }

// Checkpoint flushes the WAL to the main database file.
func (s *Store) Checkpoint(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, "CHECKPOINT;")
	return err
}

// Close checkpoints and closes the underlying connection.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("checkpoint on close failed")
	}
	return s.conn.Close()
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}
