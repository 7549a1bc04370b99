package audiocast

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Service orchestrates ingestion (upload through transcode to a registered
// asset) and delivery (playlist rewriting and segment resolution). Storage is
// delegated to Store, transcoding to Transcoder.
type Service struct {
	store      Store
	transcoder Transcoder
	log        *slog.Logger
}

// NewService wires a Service from its collaborators.
func NewService(store Store, transcoder Transcoder, log *slog.Logger) *Service {
	return &Service{store: store, transcoder: transcoder, log: log}
}

// Ingest runs one upload through the pipeline: create the asset directory,
// transcode into it, then delete the source and register the counter entry.
// On transcode failure the source file and any partial output are left on
// disk and the error wraps ErrTranscodeFailed.
func (s *Service) Ingest(ctx context.Context, sourcePath string, id AssetID) (IngestResult, error) {
	dir, err := s.store.CreateAssetDir(id)
	if err != nil {
		return IngestResult{}, err
	}

	// A dropped upload connection must not kill the external process, so the
	// transcoder gets a context detached from request cancellation.
	result := <-s.transcoder.Transcode(context.WithoutCancel(ctx), sourcePath, dir, id)
	if result.Err != nil {
		return IngestResult{}, fmt.Errorf("%w: %v", ErrTranscodeFailed, result.Err)
	}

	if err := os.Remove(sourcePath); err != nil {
		s.log.Warn("could not remove source upload",
			slog.String("asset", string(id)),
			slog.String("path", sourcePath),
			slog.String("error", err.Error()))
	}

	// The asset is servable from here on even if the counter write fails;
	// that leaves a directory without a counter entry, which is tolerated.
	if err := s.store.RecordNewAsset(id); err != nil {
		s.log.Error("counter registration failed",
			slog.String("asset", string(id)),
			slog.String("error", err.Error()))
	}

	s.log.Info("asset ingested",
		slog.String("asset", string(id)),
		slog.Int("segments", result.SegmentCount))

	return IngestResult{ID: id, ViewPath: "/view/" + string(id)}, nil
}

// Playlist returns the asset's playlist with segment references rewritten to
// routed playback paths, and counts the view. Counter persistence failures
// are logged and never block serving.
func (s *Service) Playlist(id AssetID) ([]byte, error) {
	path, err := s.store.PlaylistPath(id)
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementView(id); err != nil {
		s.log.Error("view count persist failed",
			slog.String("asset", string(id)),
			slog.String("error", err.Error()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	return RewriteSegmentURIs(data, id), nil
}

// SegmentFilePath validates and resolves a segment request to an on-disk path.
func (s *Service) SegmentFilePath(id AssetID, segment string) (string, error) {
	return s.store.SegmentPath(id, segment)
}

// Stats returns a snapshot of the view counter table.
func (s *Service) Stats() map[AssetID]CounterRecord {
	return s.store.Counters()
}
