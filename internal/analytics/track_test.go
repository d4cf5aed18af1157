package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/tmoreau/marginalia/internal/model"
	"github.com/tmoreau/marginalia/internal/storetest"
	"github.com/tmoreau/marginalia/internal/write"
)

func TestTrackDedupeIdempotence(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	if err := write.UpsertArticle(ctx, st, &model.Article{ID: "a1", Title: "T", Author: "x", Date: "2026-01-01", ContentZH: "c"}); err != nil {
		t.Fatalf("seed article: %v", err)
	}

	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC).UnixMilli()
	fp := Fingerprint("203.0.113.9", "ua")

	r1, err := Track(ctx, st, "a1", fp, 60, 7, now)
	if err != nil {
		t.Fatalf("first track: %v", err)
	}
	if !r1.Counted {
		t.Fatal("first view within a fresh bucket must count")
	}

	r2, err := Track(ctx, st, "a1", fp, 60, 7, now+500) // same 60s bucket
	if err != nil {
		t.Fatalf("second track: %v", err)
	}
	if r2.Counted {
		t.Fatal("a repeat view within the same dedupe bucket must not count again")
	}
	if r2.TotalViews != 1 {
		t.Fatalf("expected total views to stay at 1 after a deduped replay, got %d", r2.TotalViews)
	}
}

func TestTrackBucketCrossover(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	if err := write.UpsertArticle(ctx, st, &model.Article{ID: "a1", Title: "T", Author: "x", Date: "2026-01-01", ContentZH: "c"}); err != nil {
		t.Fatalf("seed article: %v", err)
	}

	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC).UnixMilli()
	fp := Fingerprint("203.0.113.9", "ua")

	if _, err := Track(ctx, st, "a1", fp, 60, 7, now); err != nil {
		t.Fatalf("track 1: %v", err)
	}
	r2, err := Track(ctx, st, "a1", fp, 60, 7, now+61_000) // one dedupe window later
	if err != nil {
		t.Fatalf("track 2: %v", err)
	}
	if !r2.Counted {
		t.Fatal("a view in the next dedupe bucket must count as a new view")
	}
	if r2.TotalViews != 2 {
		t.Fatalf("expected 2 total views after crossing a bucket boundary, got %d", r2.TotalViews)
	}
}

func TestViewTrendDaySeriesCompleteness(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	if err := write.UpsertArticle(ctx, st, &model.Article{ID: "a1", Title: "T", Author: "x", Date: "2026-01-01", ContentZH: "c"}); err != nil {
		t.Fatalf("seed article: %v", err)
	}

	now := time.Date(2026, 7, 31, 12, 0, 0, 0, shanghai).UnixMilli()
	if _, err := Track(ctx, st, "a1", "fp1", 60, 7, now); err != nil {
		t.Fatalf("track: %v", err)
	}

	points, err := ViewTrend(ctx, st, "a1", GranularityDay, 7, "", now)
	if err != nil {
		t.Fatalf("view trend: %v", err)
	}
	if len(points) != 7 {
		t.Fatalf("expected exactly 7 points (zero-padded), got %d", len(points))
	}
	last := points[len(points)-1]
	if last.Views != 1 {
		t.Fatalf("expected today's bucket to have 1 view, got %d", last.Views)
	}
	for _, p := range points[:len(points)-1] {
		if p.Views != 0 {
			t.Fatalf("expected earlier days to be zero, got %d for %s", p.Views, p.Key)
		}
	}
}

func TestViewTrendHourSeriesCompleteness(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	if err := write.UpsertArticle(ctx, st, &model.Article{ID: "a1", Title: "T", Author: "x", Date: "2026-01-01", ContentZH: "c"}); err != nil {
		t.Fatalf("seed article: %v", err)
	}

	now := time.Date(2026, 7, 31, 15, 30, 0, 0, shanghai).UnixMilli()
	if _, err := Track(ctx, st, "a1", "fp1", 60, 7, now); err != nil {
		t.Fatalf("track: %v", err)
	}

	day := formatDay(now)
	points, err := ViewTrend(ctx, st, "a1", GranularityHour, 0, day, now)
	if err != nil {
		t.Fatalf("view trend: %v", err)
	}
	if len(points) != 24 {
		t.Fatalf("expected exactly 24 hour points, got %d", len(points))
	}
	if points[15].Views != 1 {
		t.Fatalf("expected hour 15 to have 1 view, got %d", points[15].Views)
	}
}

func TestValidateDayString(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2026-07-31", false},
		{"2026/07/31", true},
		{"20260731", true},
		{"2026-7-31", true}, // 9 characters, fails the exact-length check
	}
	for _, tt := range tests {
		err := ValidateDayString(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateDayString(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestViewTrendZeroPadsGapDays(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	if err := write.UpsertArticle(ctx, st, &model.Article{ID: "a1", Title: "T", Author: "x", Date: "2026-01-01", ContentZH: "c"}); err != nil {
		t.Fatalf("seed article: %v", err)
	}

	feb14 := time.Date(2026, 2, 14, 10, 0, 0, 0, shanghai).UnixMilli()
	feb16 := time.Date(2026, 2, 16, 10, 0, 0, 0, shanghai).UnixMilli()

	for i := 0; i < 3; i++ {
		fp := Fingerprint("203.0.113.9", "ua"+string(rune('a'+i)))
		if _, err := Track(ctx, st, "a1", fp, 60, 7, feb14); err != nil {
			t.Fatalf("track feb14: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		fp := Fingerprint("198.51.100.7", "ua"+string(rune('a'+i)))
		if _, err := Track(ctx, st, "a1", fp, 60, 7, feb16); err != nil {
			t.Fatalf("track feb16: %v", err)
		}
	}

	points, err := ViewTrend(ctx, st, "a1", GranularityDay, 7, "", feb16)
	if err != nil {
		t.Fatalf("view trend: %v", err)
	}
	if len(points) != 7 {
		t.Fatalf("expected 7 points, got %d", len(points))
	}

	wantViews := []int{0, 0, 0, 0, 3, 0, 5}
	for i, p := range points {
		if p.Views != wantViews[i] {
			t.Fatalf("point %d (%s): expected %d views, got %d", i, p.Key, wantViews[i], p.Views)
		}
	}
	if points[0].Key != "2026-02-10" || points[6].Key != "2026-02-16" {
		t.Fatalf("expected a contiguous window 2026-02-10..2026-02-16, got %s..%s", points[0].Key, points[6].Key)
	}
}
