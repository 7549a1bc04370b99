package audiocast

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Store is the persistence abstraction for assets and their view counters.
// Directory existence and file presence stand in for a real datastore; the
// Service only talks to this interface, so an indexed store could be swapped
// in without touching the ingestion or delivery contracts.
type Store interface {
	// CreateAssetDir creates the directory for a new asset, including missing
	// parents. It is idempotent: a pre-existing directory is not an error.
	CreateAssetDir(id AssetID) (string, error)

	// AssetExists reports whether the asset directory exists on disk.
	AssetExists(id AssetID) bool

	// PlaylistPath resolves the asset's playlist file. It returns
	// ErrAssetNotFound or ErrPlaylistNotFound depending on what is missing.
	PlaylistPath(id AssetID) (string, error)

	// SegmentPath validates the segment name and resolves it under the asset
	// directory. Traversal attempts are rejected with ErrInvalidSegmentName
	// before any filesystem access.
	SegmentPath(id AssetID, segment string) (string, error)

	// RecordNewAsset inserts a zero-view counter entry for id and persists the
	// full table synchronously.
	RecordNewAsset(id AssetID) error

	// IncrementView bumps the view count for id and persists the full table.
	// An absent id is a no-op, not an error.
	IncrementView(id AssetID) error

	// Counters returns a snapshot of the whole counter table.
	Counters() map[AssetID]CounterRecord

	// AssetCount returns the number of registered assets, for metrics.
	AssetCount() int
}

// segmentNamePattern is the only shape of segment filename the transcoder writes.
var segmentNamePattern = regexp.MustCompile(`^segment\d+\.ts$`)

// FileStore keeps one directory per asset under a fixed root and the view
// counter table in a single JSON document, loaded fully at startup and
// rewritten fully on every mutation. Whole-table rewrite is a known
// scalability ceiling, acceptable at this write volume.
type FileStore struct {
	root         string
	countersPath string
	log          *slog.Logger

	// mu serializes read-modify-persist on the counter table so concurrent
	// increments for different assets cannot lose updates.
	mu       sync.Mutex
	counters map[AssetID]CounterRecord
}

// NewFileStore opens the asset root and counter document. A missing counter
// document is created empty; an unparsable one is logged and reset to empty
// rather than blocking startup.
func NewFileStore(root, countersPath string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create asset root: %w", err)
	}

	s := &FileStore{
		root:         root,
		countersPath: countersPath,
		log:          log,
		counters:     make(map[AssetID]CounterRecord),
	}

	data, err := os.ReadFile(countersPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := s.persistLocked(); err != nil {
			return nil, fmt.Errorf("initialize counter document: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("read counter document: %w", err)
	default:
		if err := json.Unmarshal(data, &s.counters); err != nil {
			log.Warn("counter document unreadable, starting with an empty table",
				slog.String("path", countersPath),
				slog.String("error", err.Error()))
			s.counters = make(map[AssetID]CounterRecord)
		}
	}

	return s, nil
}

// assetDir returns the directory for id without touching the filesystem.
func (s *FileStore) assetDir(id AssetID) string {
	return filepath.Join(s.root, string(id))
}

// CreateAssetDir implements Store.CreateAssetDir.
func (s *FileStore) CreateAssetDir(id AssetID) (string, error) {
	dir := s.assetDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create asset directory %s: %w", dir, err)
	}
	return dir, nil
}

// AssetExists implements Store.AssetExists.
func (s *FileStore) AssetExists(id AssetID) bool {
	info, err := os.Stat(s.assetDir(id))
	return err == nil && info.IsDir()
}

// PlaylistPath implements Store.PlaylistPath.
func (s *FileStore) PlaylistPath(id AssetID) (string, error) {
	if !s.AssetExists(id) {
		return "", ErrAssetNotFound
	}
	path := filepath.Join(s.assetDir(id), id.PlaylistName())
	if _, err := os.Stat(path); err != nil {
		return "", ErrPlaylistNotFound
	}
	return path, nil
}

// SegmentPath implements Store.SegmentPath.
func (s *FileStore) SegmentPath(id AssetID, segment string) (string, error) {
	if !validSegmentName(segment) {
		return "", ErrInvalidSegmentName
	}
	if !s.AssetExists(id) {
		return "", ErrAssetNotFound
	}
	path := filepath.Join(s.assetDir(id), segment)
	if _, err := os.Stat(path); err != nil {
		return "", ErrSegmentNotFound
	}
	return path, nil
}

// validSegmentName rejects anything that could escape the asset directory and
// anything that is not a plain transcoder-produced segment filename.
func validSegmentName(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return segmentNamePattern.MatchString(name)
}

// RecordNewAsset implements Store.RecordNewAsset.
func (s *FileStore) RecordNewAsset(id AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[id] = CounterRecord{Views: 0}
	return s.persistLocked()
}

// IncrementView implements Store.IncrementView.
func (s *FileStore) IncrementView(id AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.counters[id]
	if !ok {
		return nil
	}
	rec.Views++
	s.counters[id] = rec
	return s.persistLocked()
}

// Counters implements Store.Counters.
func (s *FileStore) Counters() map[AssetID]CounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[AssetID]CounterRecord, len(s.counters))
	for id, rec := range s.counters {
		snapshot[id] = rec
	}
	return snapshot
}

// AssetCount implements Store.AssetCount.
func (s *FileStore) AssetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// persistLocked rewrites the whole counter document. Caller must hold s.mu.
// The document is written to a temp file and renamed into place so readers
// never observe a partially written table.
func (s *FileStore) persistLocked() error {
	dir := filepath.Dir(s.countersPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create counter dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "counters-*.json")
	if err != nil {
		return fmt.Errorf("create temp counter file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.counters); err != nil {
		return fmt.Errorf("encode counter document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("flush counter document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp counter file: %w", err)
	}

	if err := os.Rename(tmpPath, s.countersPath); err != nil {
		return fmt.Errorf("replace counter document: %w", err)
	}
	committed = true
	return nil
}
