package audiocast

import (
	"errors"
	"strconv"
	"time"
)

// AssetID identifies one ingested-and-transcoded upload. IDs are derived from
// the upload's arrival time in Unix milliseconds, so they contain only digits
// and are safe as directory names and URL path segments. Two uploads landing
// in the same millisecond collide; that is a known limitation of the scheme.
type AssetID string

// NewAssetID derives an asset id from the given arrival time.
func NewAssetID(arrival time.Time) AssetID {
	return AssetID(strconv.FormatInt(arrival.UnixMilli(), 10))
}

// PlaylistName returns the playlist filename inside the asset directory.
func (id AssetID) PlaylistName() string {
	return string(id) + ".m3u8"
}

// CounterRecord is the per-asset entry in the view counter table.
// It matches the persisted JSON document: {"<id>": {"views": n}}.
type CounterRecord struct {
	Views int `json:"views"`
}

// IngestResult is returned to the uploader after a successful ingestion.
type IngestResult struct {
	ID       AssetID
	ViewPath string
}

var (
	// ErrAssetNotFound is returned when no directory exists for an asset id.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrPlaylistNotFound is returned when the asset directory exists but its
	// playlist file is missing.
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrSegmentNotFound is returned when the requested segment file does not
	// exist under the asset directory.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrInvalidSegmentName is returned for segment names that are not plain
	// segment filenames (path separators, "..", wrong shape).
	ErrInvalidSegmentName = errors.New("invalid segment name")

	// ErrTranscodeFailed wraps any failure reported by the transcoder. The
	// source file and partial output are left on disk for inspection.
	ErrTranscodeFailed = errors.New("transcode failed")
)
