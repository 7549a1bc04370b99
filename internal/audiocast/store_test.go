package audiocast

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := NewFileStore(filepath.Join(dir, "uploads"), filepath.Join(dir, "data", "stats.json"), log)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestFileStore_CreateAssetDir(t *testing.T) {
	store := newTestStore(t)

	dir, err := store.CreateAssetDir("1700000000000")
	if err != nil {
		t.Fatalf("CreateAssetDir: %v", err)
	}
	if !store.AssetExists("1700000000000") {
		t.Error("AssetExists false after CreateAssetDir")
	}

	// Idempotent: a pre-existing directory is not an error.
	again, err := store.CreateAssetDir("1700000000000")
	if err != nil {
		t.Fatalf("second CreateAssetDir: %v", err)
	}
	if again != dir {
		t.Errorf("paths differ: %q vs %q", dir, again)
	}
}

func TestFileStore_AssetExists_missing(t *testing.T) {
	store := newTestStore(t)
	if store.AssetExists("nope") {
		t.Error("AssetExists true for missing asset")
	}
}

func TestFileStore_PlaylistPath(t *testing.T) {
	store := newTestStore(t)
	id := AssetID("1700000000000")

	if _, err := store.PlaylistPath(id); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("missing asset: want ErrAssetNotFound, got %v", err)
	}

	dir, _ := store.CreateAssetDir(id)
	if _, err := store.PlaylistPath(id); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("missing playlist: want ErrPlaylistNotFound, got %v", err)
	}

	want := filepath.Join(dir, id.PlaylistName())
	if err := os.WriteFile(want, []byte("#EXTM3U\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := store.PlaylistPath(id)
	if err != nil {
		t.Fatalf("PlaylistPath: %v", err)
	}
	if got != want {
		t.Errorf("PlaylistPath: want %q, got %q", want, got)
	}
}

func TestFileStore_SegmentPath(t *testing.T) {
	store := newTestStore(t)
	id := AssetID("1700000000000")
	dir, _ := store.CreateAssetDir(id)
	if err := os.WriteFile(filepath.Join(dir, "segment000.ts"), []byte("ts"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("existing_segment", func(t *testing.T) {
		got, err := store.SegmentPath(id, "segment000.ts")
		if err != nil {
			t.Fatalf("SegmentPath: %v", err)
		}
		if got != filepath.Join(dir, "segment000.ts") {
			t.Errorf("unexpected path %q", got)
		}
	})

	t.Run("missing_segment", func(t *testing.T) {
		if _, err := store.SegmentPath(id, "segment001.ts"); !errors.Is(err, ErrSegmentNotFound) {
			t.Errorf("want ErrSegmentNotFound, got %v", err)
		}
	})

	t.Run("missing_asset", func(t *testing.T) {
		if _, err := store.SegmentPath("nope", "segment000.ts"); !errors.Is(err, ErrAssetNotFound) {
			t.Errorf("want ErrAssetNotFound, got %v", err)
		}
	})

	t.Run("traversal_rejected", func(t *testing.T) {
		for _, name := range []string{
			"../../etc/passwd",
			"..\\secret.ts",
			"/etc/passwd",
			"segment000.ts/../../x",
			"notasegment.ts",
			"segment000.mp3",
			"",
		} {
			if _, err := store.SegmentPath(id, name); !errors.Is(err, ErrInvalidSegmentName) {
				t.Errorf("%q: want ErrInvalidSegmentName, got %v", name, err)
			}
		}
	})
}

func TestFileStore_counters_roundtrip(t *testing.T) {
	dir := t.TempDir()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	countersPath := filepath.Join(dir, "stats.json")

	store, err := NewFileStore(filepath.Join(dir, "uploads"), countersPath, log)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := store.RecordNewAsset("a"); err != nil {
		t.Fatalf("RecordNewAsset: %v", err)
	}
	if err := store.IncrementView("a"); err != nil {
		t.Fatalf("IncrementView: %v", err)
	}
	if err := store.IncrementView("a"); err != nil {
		t.Fatalf("IncrementView: %v", err)
	}

	// A fresh store over the same document sees the persisted counts.
	reopened, err := NewFileStore(filepath.Join(dir, "uploads"), countersPath, log)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Counters()["a"].Views; got != 2 {
		t.Errorf("views after reopen: want 2, got %d", got)
	}

	// The document is a pretty-printed JSON object keyed by asset id.
	raw, err := os.ReadFile(countersPath)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]CounterRecord
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("counter document not valid JSON: %v", err)
	}
	if doc["a"].Views != 2 {
		t.Errorf("document views: want 2, got %d", doc["a"].Views)
	}
}

func TestFileStore_IncrementView_absent_is_noop(t *testing.T) {
	store := newTestStore(t)

	if err := store.IncrementView("ghost"); err != nil {
		t.Fatalf("IncrementView on absent id: %v", err)
	}
	if _, ok := store.Counters()["ghost"]; ok {
		t.Error("IncrementView created an entry for an absent id")
	}
}

func TestFileStore_corrupted_document_resets(t *testing.T) {
	dir := t.TempDir()
	countersPath := filepath.Join(dir, "stats.json")
	if err := os.WriteFile(countersPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := NewFileStore(filepath.Join(dir, "uploads"), countersPath, log)
	if err != nil {
		t.Fatalf("NewFileStore with corrupted document: %v", err)
	}
	if n := len(store.Counters()); n != 0 {
		t.Errorf("expected empty table, got %d entries", n)
	}
}

func TestFileStore_concurrent_increments(t *testing.T) {
	store := newTestStore(t)
	ids := []AssetID{"a", "b", "c"}
	for _, id := range ids {
		if err := store.RecordNewAsset(id); err != nil {
			t.Fatalf("RecordNewAsset(%s): %v", id, err)
		}
	}

	const perID = 25
	var wg sync.WaitGroup
	for _, id := range ids {
		for i := 0; i < perID; i++ {
			wg.Add(1)
			go func(id AssetID) {
				defer wg.Done()
				if err := store.IncrementView(id); err != nil {
					t.Errorf("IncrementView(%s): %v", id, err)
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range ids {
		if got := store.Counters()[id].Views; got != perID {
			t.Errorf("lost updates for %s: want %d, got %d", id, perID, got)
		}
	}
}
