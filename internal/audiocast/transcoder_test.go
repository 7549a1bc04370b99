package audiocast

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestTranscodeArgs(t *testing.T) {
	args := transcodeArgs("/tmp/in.mp3", "/srv/assets/42", "42")

	assert.Equal(t, []string{
		"-i", "/tmp/in.mp3",
		"-c:a", "aac",
		"-b:a", "128k",
		"-hls_time", "10",
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join("/srv/assets/42", "segment%03d.ts"),
		"-f", "hls",
		filepath.Join("/srv/assets/42", "42.m3u8"),
	}, args)
}

func writeTranscodeOutput(t *testing.T, dir string, id AssetID, segments int) {
	t.Helper()
	fake := &fakeTranscoder{segments: segments}
	result := <-fake.Transcode(context.Background(), "", dir, id)
	require.NoError(t, result.Err)
}

func TestVerifyOutput(t *testing.T) {
	dir := t.TempDir()
	id := AssetID("1700000000000")
	writeTranscodeOutput(t, dir, id, 3)

	count, err := verifyOutput(dir, id)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestVerifyOutput_missing_playlist(t *testing.T) {
	_, err := verifyOutput(t.TempDir(), "42")
	require.Error(t, err)
}

func TestVerifyOutput_missing_segment(t *testing.T) {
	dir := t.TempDir()
	id := AssetID("1700000000000")
	writeTranscodeOutput(t, dir, id, 2)
	require.NoError(t, os.Remove(filepath.Join(dir, "segment001.ts")))

	_, err := verifyOutput(dir, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segment001.ts")
}

func TestFFmpegTranscoder_missing_binary(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "in.mp3")
	require.NoError(t, os.WriteFile(source, []byte("mp3"), 0o644))
	outputDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outputDir, 0o755))

	tc := NewFFmpegTranscoder(filepath.Join(dir, "no-such-ffmpeg"), testLogger())

	select {
	case result := <-tc.Transcode(context.Background(), source, outputDir, "42"):
		require.Error(t, result.Err)
	case <-time.After(10 * time.Second):
		t.Fatal("no result delivered")
	}
}

func TestTailLines(t *testing.T) {
	assert.Equal(t, "d\ne", tailLines("a\nb\nc\nd\ne", 2))
	assert.Equal(t, "a\nb", tailLines("a\nb\n", 5))
	assert.Equal(t, "", tailLines("", 3))
}
