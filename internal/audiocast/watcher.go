package audiocast

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ProgressWatcher observes an asset directory while ffmpeg writes into it and
// reports each segment file as it appears. It is purely observational: a
// transcode succeeds or fails regardless of what the watcher sees.
type ProgressWatcher struct {
	watcher   *fsnotify.Watcher
	log       *slog.Logger
	onSegment func(segment string)
	done      chan struct{}

	mu   sync.Mutex
	seen map[string]struct{}
}

// WatchSegments starts watching dir for new .ts files. onSegment may be nil.
// Callers must Close the watcher once the transcode finishes.
func WatchSegments(dir string, log *slog.Logger, onSegment func(segment string)) (*ProgressWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	pw := &ProgressWatcher{
		watcher:   watcher,
		log:       log,
		onSegment: onSegment,
		done:      make(chan struct{}),
		seen:      make(map[string]struct{}),
	}
	go pw.loop()
	return pw, nil
}

func (pw *ProgressWatcher) loop() {
	defer close(pw.done)
	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".ts") {
				continue
			}

			pw.mu.Lock()
			_, dup := pw.seen[name]
			if !dup {
				pw.seen[name] = struct{}{}
			}
			pw.mu.Unlock()
			if dup {
				continue
			}

			pw.log.Debug("segment written", slog.String("segment", name))
			if pw.onSegment != nil {
				pw.onSegment(name)
			}

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.log.Warn("segment watch error", slog.String("error", err.Error()))
		}
	}
}

// SegmentCount returns how many distinct segment files have been observed.
func (pw *ProgressWatcher) SegmentCount() int {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return len(pw.seen)
}

// Close stops watching and waits for the event loop to drain.
func (pw *ProgressWatcher) Close() error {
	err := pw.watcher.Close()
	<-pw.done
	return err
}
