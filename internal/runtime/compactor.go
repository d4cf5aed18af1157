package runtime

import (
	"context"
	"time"

	"github.com/tmoreau/marginalia/internal/config"
	"github.com/tmoreau/marginalia/internal/logging"
	"github.com/tmoreau/marginalia/internal/metrics"
	"github.com/tmoreau/marginalia/internal/store"
)

// Compactor periodically optimizes every managed table except those in
// skip_tables, then prunes orphaned image rows. It implements
// suture.Service (Serve(ctx) error, String() string) so the server's
// supervisor tree restarts it on an unexpected panic/return instead of
// silently dropping background compaction.
type Compactor struct {
	st         *store.Store
	period     time.Duration
	skipTables map[string]bool
}

// NewCompactor builds a Compactor from cfg.Compactor.
func NewCompactor(st *store.Store, cfg config.CompactorConfig) *Compactor {
	skip := make(map[string]bool, len(cfg.SkipTables))
	for _, t := range cfg.SkipTables {
		skip[t] = true
	}
	period := cfg.Period
	if period <= 0 {
		period = 24 * time.Hour
	}
	return &Compactor{st: st, period: period, skipTables: skip}
}

func (c *Compactor) String() string { return "compactor" }

// Serve runs the periodic optimize/prune loop until ctx is canceled.
// Client request cancellation never reaches this loop; only the shutdown
// context stops it.
func (c *Compactor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.runOnce(ctx)
		}
	}
}

// runOnce optimizes every managed table not in skip_tables. A single
// table's failure is logged and does not stop the others or the
// compactor itself.
func (c *Compactor) runOnce(ctx context.Context) {
	for _, table := range store.ManagedTables {
		if c.skipTables[table] {
			continue
		}
		start := time.Now()
		err := c.st.Optimize(ctx, table, store.OptimizeAll)
		metrics.RecordCompaction(table, time.Since(start), err)
		if err != nil {
			logging.Warn().Str("table", table).Err(err).Msg("compaction failed, continuing with remaining tables")
		}
	}

	if !c.skipTables[store.TableImages] {
		n, err := c.st.PruneOrphanImages(ctx)
		if err != nil {
			logging.Warn().Err(err).Msg("orphan image prune failed")
		} else if n > 0 {
			logging.Info().Int64("pruned", n).Msg("pruned orphaned images")
		}
	}
}
