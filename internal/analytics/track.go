package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tmoreau/marginalia/internal/logging"
	"github.com/tmoreau/marginalia/internal/metrics"
	"github.com/tmoreau/marginalia/internal/store"
)

// TimezoneName is the fixed calendar timezone for every day/hour bucket,
// echoed back in view-tracking responses.
const TimezoneName = "Asia/Shanghai"

// shanghai is a fixed UTC+8 offset rather than a tzdata lookup: bucketing
// must not depend on the process having a timezone database installed,
// and Shanghai observes no DST, so the fixed offset is exact.
var shanghai = time.FixedZone(TimezoneName, 8*3600)

// TrackResult is what Track returns to the HTTP surface for
// POST /api/articles/:id/view.
type TrackResult struct {
	Counted     bool
	TotalViews  int64
	TodayViews  int64
	DailyPoints []TrendPoint
}

// Track records one view: compute the dedupe bucket, construct the
// composite id, existence-check, merge-insert, then report totals and the
// default daily trend window.
func Track(ctx context.Context, st *store.Store, articleID, fingerprint string, dedupeWindowSeconds, trendDefaultDays int, nowMs int64) (*TrackResult, error) {
	windowMs := int64(dedupeWindowSeconds) * 1000
	if windowMs < 1000 {
		windowMs = 1000
	}
	bucket := nowMs / windowMs

	dayBucket := formatDay(nowMs)
	hourBucket := formatHour(nowMs)
	id := fmt.Sprintf("%s:%s:%d", articleID, fingerprint, bucket)

	var existing int
	err := st.Conn().QueryRowContext(ctx, "SELECT count(*) FROM article_views WHERE id = ?", id).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("track_view existence check: %w", err)
	}
	counted := existing == 0

	if err := upsertViewEvent(ctx, st, id, articleID, fingerprint, dayBucket, hourBucket, nowMs); err != nil {
		return nil, err
	}

	metrics.RecordViewTrack(counted)
	logging.Ctx(ctx).Info().
		Str("article_id", articleID).
		Bool("counted", counted).
		Str("day_bucket", dayBucket).
		Msg("view tracked")

	total, err := countViews(ctx, st, articleID, nil)
	if err != nil {
		return nil, err
	}
	today, err := countViews(ctx, st, articleID, &dayBucket)
	if err != nil {
		return nil, err
	}

	points, err := ViewTrend(ctx, st, articleID, GranularityDay, trendDefaultDays, "", nowMs)
	if err != nil {
		return nil, err
	}

	return &TrackResult{Counted: counted, TotalViews: total, TodayViews: today, DailyPoints: points}, nil
}

// upsertViewEvent merge-inserts the event: insert-all on miss; on match only
// viewed_at_ms and updated_at_ms are updated, so created_at_ms is preserved
// across a replay within the same bucket.
func upsertViewEvent(ctx context.Context, st *store.Store, id, articleID, fingerprint, dayBucket, hourBucket string, nowMs int64) error {
	_, err := st.Conn().ExecContext(ctx, `
		INSERT INTO article_views (id, article_id, viewed_at_ms, day_bucket, hour_bucket, fingerprint, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			viewed_at_ms = excluded.viewed_at_ms,
			updated_at_ms = excluded.updated_at_ms
	`, id, articleID, nowMs, dayBucket, hourBucket, fingerprint, nowMs, nowMs)
	if err != nil {
		return fmt.Errorf("track_view upsert: %w", err)
	}
	return nil
}

func countViews(ctx context.Context, st *store.Store, articleID string, dayBucket *string) (int64, error) {
	query := "SELECT count(*) FROM article_views WHERE article_id = ?"
	args := []any{articleID}
	if dayBucket != nil {
		query += " AND day_bucket = ?"
		args = append(args, *dayBucket)
	}
	var n int64
	err := st.Conn().QueryRowContext(ctx, query, args...).Scan(&n)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("count views: %w", err)
	}
	return n, nil
}

// formatDay renders nowMs as a Asia/Shanghai calendar day "YYYY-MM-DD".
func formatDay(ms int64) string {
	return time.UnixMilli(ms).In(shanghai).Format("2006-01-02")
}

// formatHour renders nowMs as a Asia/Shanghai "YYYY-MM-DD HH" bucket.
func formatHour(ms int64) string {
	return time.UnixMilli(ms).In(shanghai).Format("2006-01-02 15")
}
