package history

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.RecordMessage(ctx, "msg1", "chan1", "first", 0); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordMessage(ctx, "msg2", "chan1", "second", 2); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordUpload(ctx, "f1", "chan1", "report.pdf"); err != nil {
		t.Fatalf("record upload: %v", err)
	}

	entries, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Kind != KindUpload || entries[0].RemoteID != "f1" {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}
	if entries[2].RemoteID != "msg1" {
		t.Fatalf("unexpected oldest entry: %+v", entries[2])
	}
	if entries[1].FileCount != 2 {
		t.Fatalf("expected file count 2, got %d", entries[1].FileCount)
	}
}

func TestStore_List_Limit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.RecordMessage(ctx, "msg", "chan1", "text", 0); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	entries, err := s.List(ctx, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestStore_List_Empty(t *testing.T) {
	s := testStore(t)

	entries, err := s.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestStore_Prune_KeepsRecent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.RecordMessage(ctx, "msg1", "chan1", "recent", 0); err != nil {
		t.Fatalf("record: %v", err)
	}

	removed, err := s.Prune(ctx, 30)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 0 {
		t.Fatalf("recent entry should survive pruning, removed %d", removed)
	}

	entries, _ := s.List(ctx, 10)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after prune, got %d", len(entries))
	}
}

func TestStore_LongPreviewTruncated(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	long := strings.Repeat("x", 500)
	if err := s.RecordMessage(ctx, "msg1", "chan1", long, 0); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := s.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries[0].Preview) > previewLen {
		t.Fatalf("preview should be truncated to %d, got %d", previewLen, len(entries[0].Preview))
	}
}
