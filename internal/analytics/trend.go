package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmoreau/marginalia/internal/store"
)

// Granularity selects view_trend's aggregation level.
type Granularity string

const (
	GranularityDay  Granularity = "day"
	GranularityHour Granularity = "hour"
)

// TrendPoint is one point of a day or hour series; Key is "YYYY-MM-DD"
// for day granularity or "00".."23" for hour granularity.
type TrendPoint struct {
	Key   string `json:"key"`
	Views int    `json:"views"`
}

// ValidateDayString checks a day parameter is exactly 10 characters with
// '-' at positions 4 and 7 and ASCII digits everywhere else.
func ValidateDayString(s string) error {
	if len(s) != 10 {
		return fmt.Errorf("day must be exactly 10 characters, got %d", len(s))
	}
	if s[4] != '-' || s[7] != '-' {
		return fmt.Errorf("day must be in YYYY-MM-DD form")
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return fmt.Errorf("day must be in YYYY-MM-DD form")
		}
	}
	return nil
}

// DayCounts scans article_views projecting day_bucket filtered by
// article_id and tallies into a hash map.
func DayCounts(ctx context.Context, st *store.Store, articleID string) (map[string]int, error) {
	rows, err := st.Conn().QueryContext(ctx,
		"SELECT day_bucket FROM article_views WHERE article_id = ?", articleID)
	if err != nil {
		return nil, fmt.Errorf("day_counts scan: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("day_counts scan row: %w", err)
		}
		counts[day]++
	}
	return counts, rows.Err()
}

// HourCounts scans hour_bucket filtered by article_id AND day_bucket = day,
// keeping the two-digit hour split off the last space in each bucket string.
func HourCounts(ctx context.Context, st *store.Store, articleID, day string) (map[string]int, error) {
	rows, err := st.Conn().QueryContext(ctx,
		"SELECT hour_bucket FROM article_views WHERE article_id = ? AND day_bucket = ?", articleID, day)
	if err != nil {
		return nil, fmt.Errorf("hour_counts scan: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var bucket string
		if err := rows.Scan(&bucket); err != nil {
			return nil, fmt.Errorf("hour_counts scan row: %w", err)
		}
		idx := strings.LastIndex(bucket, " ")
		if idx < 0 || idx+1 > len(bucket)-1 {
			continue
		}
		hour := bucket[idx+1:]
		counts[hour]++
	}
	return counts, rows.Err()
}

// ViewTrend shapes the aggregated counts for both granularities: day
// produces exactly `days` contiguous points ending on the current
// Asia/Shanghai day; hour produces exactly 24 points "00".."23" for the
// given day. Missing buckets are zero, never omitted.
func ViewTrend(ctx context.Context, st *store.Store, articleID string, granularity Granularity, days int, day string, nowMsOpt ...int64) ([]TrendPoint, error) {
	nowMs := time.Now().UnixMilli()
	if len(nowMsOpt) > 0 {
		nowMs = nowMsOpt[0]
	}

	switch granularity {
	case GranularityHour:
		if err := ValidateDayString(day); err != nil {
			return nil, err
		}
		counts, err := HourCounts(ctx, st, articleID, day)
		if err != nil {
			return nil, err
		}
		points := make([]TrendPoint, 24)
		for h := 0; h < 24; h++ {
			key := fmt.Sprintf("%02d", h)
			points[h] = TrendPoint{Key: key, Views: counts[key]}
		}
		return points, nil

	case GranularityDay, "":
		if days <= 0 {
			days = 1
		}
		counts, err := DayCounts(ctx, st, articleID)
		if err != nil {
			return nil, err
		}
		today, err := time.ParseInLocation("2006-01-02", formatDay(nowMs), shanghai)
		if err != nil {
			return nil, fmt.Errorf("parse current day: %w", err)
		}
		points := make([]TrendPoint, days)
		for i := 0; i < days; i++ {
			d := today.AddDate(0, 0, -(days - 1 - i))
			key := d.Format("2006-01-02")
			points[i] = TrendPoint{Key: key, Views: counts[key]}
		}
		return points, nil

	default:
		return nil, fmt.Errorf("unknown granularity %q", granularity)
	}
}
