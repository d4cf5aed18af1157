package runtime

import (
	"context"
	"testing"

	"github.com/tmoreau/marginalia/internal/config"
	"github.com/tmoreau/marginalia/internal/model"
	"github.com/tmoreau/marginalia/internal/storetest"
	"github.com/tmoreau/marginalia/internal/write"
)

func TestCompactorPrunesOrphanImages(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	referenced := &model.Image{ID: "deadbeef", Filename: "deadbeef.png", ByteLength: 4}
	orphan := &model.Image{ID: "cafebabe", Filename: "cafebabe.png", ByteLength: 4}
	if err := write.UpsertImage(ctx, st, referenced); err != nil {
		t.Fatalf("upsert referenced image: %v", err)
	}
	if err := write.UpsertImage(ctx, st, orphan); err != nil {
		t.Fatalf("upsert orphan image: %v", err)
	}

	article := &model.Article{
		ID:        "a1",
		Title:     "T",
		Author:    "x",
		Date:      "2026-01-01",
		ContentZH: "see images/deadbeef for context",
	}
	if err := write.UpsertArticle(ctx, st, article); err != nil {
		t.Fatalf("upsert article: %v", err)
	}

	c := NewCompactor(st, config.CompactorConfig{})
	c.runOnce(ctx)

	var count int
	if err := st.Conn().QueryRowContext(ctx, "SELECT count(*) FROM images WHERE id = ?", "cafebabe").Scan(&count); err != nil {
		t.Fatalf("count orphan: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected the unreferenced image to be pruned, still have %d rows", count)
	}

	if err := st.Conn().QueryRowContext(ctx, "SELECT count(*) FROM images WHERE id = ?", "deadbeef").Scan(&count); err != nil {
		t.Fatalf("count referenced: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the referenced image to survive pruning, got %d rows", count)
	}
}

func TestCompactorHonorsSkipTables(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	orphan := &model.Image{ID: "cafebabe", Filename: "cafebabe.png", ByteLength: 4}
	if err := write.UpsertImage(ctx, st, orphan); err != nil {
		t.Fatalf("upsert orphan image: %v", err)
	}

	c := NewCompactor(st, config.CompactorConfig{SkipTables: []string{"images"}})
	c.runOnce(ctx)

	var count int
	if err := st.Conn().QueryRowContext(ctx, "SELECT count(*) FROM images WHERE id = ?", "cafebabe").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("images listed in skip_tables must not be pruned, got %d rows", count)
	}
}
