package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) (*Store, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewStoreWithPath(dbPath)
	if err != nil {
		t.Fatalf("NewStoreWithPath() error = %v", err)
	}

	cleanup := func() {
		store.Close()
	}
	return store, cleanup
}

func TestNewStoreWithPath(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()

	if store == nil {
		t.Error("NewStoreWithPath() returned nil")
	}
}

func TestNewStoreWithPath_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	store, err := NewStoreWithPath(dbPath)
	if err != nil {
		t.Fatalf("NewStoreWithPath() error = %v", err)
	}
	store.Close()
}

func TestStore_RecordAndGet(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	entry := &Entry{
		ID:          "gen-1",
		SessionID:   "session-1",
		Query:       "a cat wearing a hat",
		Engine:      "stable-diffusion-xl-1024-v1-0",
		StylePreset: "photographic",
		ImagePath:   "/cache/figure_1.png",
		Status:      StatusSuccess,
		Duration:    1500 * time.Millisecond,
	}

	if err := store.Record(ctx, entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("Record() did not set CreatedAt")
	}

	got, err := store.Get(ctx, "gen-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.Query != entry.Query {
		t.Errorf("Get() Query = %v, want %v", got.Query, entry.Query)
	}
	if got.ImagePath != entry.ImagePath {
		t.Errorf("Get() ImagePath = %v, want %v", got.ImagePath, entry.ImagePath)
	}
	if got.Status != StatusSuccess {
		t.Errorf("Get() Status = %v, want %v", got.Status, StatusSuccess)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("Get() Duration = %v, want 1.5s", got.Duration)
	}
	if got.Removed {
		t.Error("Get() Removed = true for fresh entry")
	}
}

func TestStore_RecordFailure(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	entry := &Entry{
		ID:        "gen-err",
		Query:     "a cat",
		Engine:    "stable-diffusion-v1-6",
		Status:    StatusFailed,
		ErrorKind: "call_failed",
		Error:     "status 500: boom",
	}
	if err := store.Record(ctx, entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := store.Get(ctx, "gen-err")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ImagePath != "" || got.SessionID != "" {
		t.Errorf("Get() optional fields = %+v, want empty", got)
	}
	if got.ErrorKind != "call_failed" || got.Error != "status 500: boom" {
		t.Errorf("Get() error fields = %q/%q", got.ErrorKind, got.Error)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()

	if _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Error("Get() error = nil for missing entry")
	}
}

func TestStore_Recent(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		entry := &Entry{
			ID:        id,
			Query:     "q",
			Engine:    "e",
			Status:    StatusSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Record(ctx, entry); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	entries, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent() returned %d entries, want 2", len(entries))
	}
	if entries[0].ID != "c" || entries[1].ID != "b" {
		t.Errorf("Recent() order = %s,%s want c,b", entries[0].ID, entries[1].ID)
	}

	all, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Recent(0) returned %d entries, want 3", len(all))
	}
}

func TestStore_ListBySession(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	store.Record(ctx, &Entry{ID: "1", SessionID: "s1", Query: "q", Engine: "e", Status: StatusSuccess})
	store.Record(ctx, &Entry{ID: "2", SessionID: "s2", Query: "q", Engine: "e", Status: StatusSuccess})
	store.Record(ctx, &Entry{ID: "3", SessionID: "s1", Query: "q", Engine: "e", Status: StatusFailed})

	entries, err := store.ListBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ListBySession() returned %d entries, want 2", len(entries))
	}
}

func TestStore_MarkRemoved(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	store.Record(ctx, &Entry{ID: "1", Query: "q", Engine: "e", ImagePath: "/cache/a.png", Status: StatusSuccess})
	store.Record(ctx, &Entry{ID: "2", Query: "q", Engine: "e", ImagePath: "/cache/b.png", Status: StatusSuccess})

	if err := store.MarkRemoved(ctx, "/cache/a.png"); err != nil {
		t.Fatalf("MarkRemoved() error = %v", err)
	}

	a, _ := store.Get(ctx, "1")
	b, _ := store.Get(ctx, "2")
	if !a.Removed {
		t.Error("entry 1 not marked removed")
	}
	if b.Removed {
		t.Error("entry 2 marked removed")
	}
}

func TestStore_Summary(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.Total != 0 {
		t.Errorf("Summary() on empty store Total = %d", summary.Total)
	}

	store.Record(ctx, &Entry{ID: "1", Query: "q", Engine: "e", Status: StatusSuccess})
	store.Record(ctx, &Entry{ID: "2", Query: "q", Engine: "e", Status: StatusSuccess})
	store.Record(ctx, &Entry{ID: "3", Query: "q", Engine: "e", Status: StatusFailed})

	summary, err = store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("Summary() = %+v, want 3/2/1", summary)
	}
}
