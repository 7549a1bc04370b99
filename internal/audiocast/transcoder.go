package audiocast

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
	ffprobe "gopkg.in/vansante/go-ffprobe.v2"
)

const (
	// Fixed transcode profile: AAC at 128 kbps, 10 second VOD segments.
	audioCodec     = "aac"
	audioBitrate   = "128k"
	segmentSeconds = 10
)

// TranscodeResult is the single completion signal of one transcode attempt.
type TranscodeResult struct {
	// SegmentCount is the number of segment files referenced by the produced
	// playlist. Zero is valid for very short inputs.
	SegmentCount int

	// Duration is the probed source duration in seconds, 0 if probing failed.
	Duration float64

	// Err is non-nil if the attempt failed. A failure is terminal; the
	// adapter never retries.
	Err error
}

// Transcoder turns a source file into an HLS playlist plus segments inside an
// output directory. The returned channel receives exactly one result.
type Transcoder interface {
	Transcode(ctx context.Context, sourcePath, outputDir string, id AssetID) <-chan TranscodeResult
}

// FFmpegTranscoder runs an external ffmpeg process.
type FFmpegTranscoder struct {
	ffmpegPath string
	log        *slog.Logger

	// OnSegment, if set, is called once per segment file as ffmpeg writes it.
	// Used to feed metrics; transcode outcome never depends on it.
	OnSegment func(segment string)
}

// NewFFmpegTranscoder returns a transcoder that runs the given ffmpeg binary.
// The matching ffprobe binary (same directory, same suffix convention) is used
// for source inspection.
func NewFFmpegTranscoder(ffmpegPath string, log *slog.Logger) *FFmpegTranscoder {
	if probePath := strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1); probePath != ffmpegPath {
		ffprobe.SetFFProbeBinPath(probePath)
	}
	return &FFmpegTranscoder{ffmpegPath: ffmpegPath, log: log}
}

// Transcode implements Transcoder. The heavy lifting happens on a separate
// goroutine; the buffered channel guarantees the result is delivered even if
// nobody is receiving yet.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, sourcePath, outputDir string, id AssetID) <-chan TranscodeResult {
	ch := make(chan TranscodeResult, 1)
	go func() {
		ch <- t.run(ctx, sourcePath, outputDir, id)
	}()
	return ch
}

func (t *FFmpegTranscoder) run(ctx context.Context, sourcePath, outputDir string, id AssetID) TranscodeResult {
	duration := t.probeSource(ctx, sourcePath, id)

	watcher, err := WatchSegments(outputDir, t.log, t.OnSegment)
	if err != nil {
		t.log.Warn("segment progress watcher unavailable",
			slog.String("asset", string(id)),
			slog.String("error", err.Error()))
	} else {
		defer watcher.Close()
	}

	args := transcodeArgs(sourcePath, outputDir, id)
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.log.Debug("starting ffmpeg",
		slog.String("asset", string(id)),
		slog.String("args", strings.Join(args, " ")))

	if err := cmd.Run(); err != nil {
		return TranscodeResult{Err: fmt.Errorf("ffmpeg %s: %w: %s", sourcePath, err, tailLines(stderr.String(), 5))}
	}

	count, err := verifyOutput(outputDir, id)
	if err != nil {
		return TranscodeResult{Err: fmt.Errorf("verify transcode output: %w", err)}
	}

	t.log.Info("transcode complete",
		slog.String("asset", string(id)),
		slog.Int("segments", count),
		slog.Float64("duration_s", duration))

	return TranscodeResult{SegmentCount: count, Duration: duration}
}

// probeSource inspects the upload with ffprobe for diagnostics. Probe failure
// is logged and swallowed; ffmpeg itself is the authority on whether the
// input is usable.
func (t *FFmpegTranscoder) probeSource(ctx context.Context, sourcePath string, id AssetID) float64 {
	data, err := ffprobe.ProbeURL(ctx, sourcePath)
	if err != nil {
		t.log.Warn("could not probe source",
			slog.String("asset", string(id)),
			slog.String("error", err.Error()))
		return 0
	}

	codec := ""
	if stream := data.FirstAudioStream(); stream != nil {
		codec = stream.CodecName
	}
	t.log.Info("source probed",
		slog.String("asset", string(id)),
		slog.String("codec", codec),
		slog.Float64("duration_s", data.Format.DurationSeconds))

	return data.Format.DurationSeconds
}

// transcodeArgs builds the fixed-profile ffmpeg invocation: AAC audio,
// VOD-style segmented HLS output with 3-digit segment numbering.
func transcodeArgs(sourcePath, outputDir string, id AssetID) []string {
	return []string{
		"-i", sourcePath,
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(outputDir, "segment%03d.ts"),
		"-f", "hls",
		filepath.Join(outputDir, id.PlaylistName()),
	}
}

// verifyOutput decodes the produced playlist and checks that every referenced
// segment file exists, so a zero ffmpeg exit with inconsistent output is
// still reported as a failure. Returns the segment count.
func verifyOutput(outputDir string, id AssetID) (int, error) {
	f, err := os.Open(filepath.Join(outputDir, id.PlaylistName()))
	if err != nil {
		return 0, fmt.Errorf("open playlist: %w", err)
	}
	defer f.Close()

	playlist, listType, err := m3u8.DecodeFrom(f, true)
	if err != nil {
		return 0, fmt.Errorf("decode playlist: %w", err)
	}
	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok || listType != m3u8.MEDIA {
		return 0, fmt.Errorf("playlist is not a media playlist")
	}

	count := 0
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(outputDir, seg.URI)); err != nil {
			return 0, fmt.Errorf("playlist references missing segment %s", seg.URI)
		}
		count++
	}
	return count, nil
}

// tailLines returns the last n lines of s, for compact error diagnostics.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
