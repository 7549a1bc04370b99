package audiocast

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/HarshitKumar9030/audio-hls/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/MP2T"

	uploadFieldName = "audioFile"
)

// Handler exposes the upload, playback, and page endpoints using go-chi.
type Handler struct {
	svc            *Service
	log            *slog.Logger
	metrics        *metrics.Metrics
	tmpl           *template.Template
	stagingDir     string
	maxUploadBytes int64
}

// NewHandler returns a Handler that stages uploads under stagingDir.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics, tmpl *template.Template, stagingDir string, maxUploadBytes int64) (*Handler, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Handler{
		svc:            svc,
		log:            log,
		metrics:        m,
		tmpl:           tmpl,
		stagingDir:     stagingDir,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

// Upload handles POST /upload: stage the multipart file, run it through the
// ingestion pipeline, and answer with a link to the player page.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		http.Error(w, "No file uploaded.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	id := NewAssetID(time.Now())
	staged := filepath.Join(h.stagingDir, string(id)+safeExt(header.Filename))
	if err := saveUpload(file, staged); err != nil {
		h.log.Error("could not stage upload",
			slog.String("path", staged),
			slog.String("error", err.Error()))
		http.Error(w, "Could not store upload.", http.StatusInternalServerError)
		return
	}

	result, err := h.svc.Ingest(r.Context(), staged, id)
	if err != nil {
		if errors.Is(err, ErrTranscodeFailed) {
			h.log.Error("conversion failed",
				slog.String("asset", string(id)),
				slog.String("error", err.Error()))
			if h.metrics != nil {
				h.metrics.IncTranscodeFailures()
			}
			http.Error(w, "Error during conversion.", http.StatusInternalServerError)
			return
		}
		h.log.Error("ingest failed",
			slog.String("asset", string(id)),
			slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.IncUploads()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `File uploaded and converted! Access it at <a href="%s">%s</a>`,
		result.ViewPath, result.ViewPath)
}

// Play handles GET /play/{audioId} and GET /play/{audioId}/{segment}.
// Without a segment it serves the rewritten playlist and counts the view;
// with one it streams the raw segment bytes. Both answer with permissive
// cross-origin headers since players fetch these directly.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	id := AssetID(chi.URLParam(r, "audioId"))
	segment := chi.URLParam(r, "segment")
	writeStreamingCORS(w.Header())

	if segment != "" {
		path, err := h.svc.SegmentFilePath(id, segment)
		if err != nil {
			h.respondNotFound(w, id, segment, err)
			return
		}
		if h.metrics != nil {
			h.metrics.IncSegmentsServed()
		}
		w.Header().Set("Content-Type", segmentContentType)
		http.ServeFile(w, r, path)
		return
	}

	playlist, err := h.svc.Playlist(id)
	if err != nil {
		h.respondNotFound(w, id, "", err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncPlaylistRequests()
	}
	w.Header().Set("Content-Type", playlistContentType)
	w.Write(playlist)
}

// PlayPreflight answers OPTIONS preflights on the playback routes.
func (h *Handler) PlayPreflight(w http.ResponseWriter, r *http.Request) {
	writeStreamingCORS(w.Header())
	w.WriteHeader(http.StatusNoContent)
}

// View handles GET /view/{audioId}: the player page for an asset.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	id := AssetID(chi.URLParam(r, "audioId"))
	h.render(w, "play.html", struct{ AssetID AssetID }{id})
}

// statsEntry is one row of the stats page.
type statsEntry struct {
	ID    AssetID
	Views int
}

// Stats handles GET /stats: the current counter table, oldest asset first.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counters := h.svc.Stats()
	entries := make([]statsEntry, 0, len(counters))
	for id, rec := range counters {
		entries = append(entries, statsEntry{ID: id, Views: rec.Views})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	h.render(w, "stats.html", struct{ Entries []statsEntry }{entries})
}

// Index handles GET /: the upload form.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, "index.html", nil)
}

// respondNotFound maps resolution errors to a 404 while logging which of the
// three resources (asset, playlist, segment) was actually missing.
func (h *Handler) respondNotFound(w http.ResponseWriter, id AssetID, segment string, err error) {
	switch {
	case errors.Is(err, ErrAssetNotFound):
		h.log.Info("asset not found", slog.String("asset", string(id)))
		http.Error(w, "Audio not found.", http.StatusNotFound)
	case errors.Is(err, ErrPlaylistNotFound):
		h.log.Info("playlist not found", slog.String("asset", string(id)))
		http.Error(w, "Playlist not found.", http.StatusNotFound)
	case errors.Is(err, ErrSegmentNotFound), errors.Is(err, ErrInvalidSegmentName):
		h.log.Info("segment not found",
			slog.String("asset", string(id)),
			slog.String("segment", segment))
		http.Error(w, "Segment not found.", http.StatusNotFound)
	default:
		h.log.Error("delivery failed",
			slog.String("asset", string(id)),
			slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// render executes a page template into a buffer first so a template error
// never produces a half-written 200 response.
func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.log.Error("render failed", slog.String("template", name), slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func writeStreamingCORS(header http.Header) {
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type")
}

// saveUpload streams the multipart part to its staging path.
func saveUpload(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// extPattern accepts simple filename extensions like ".mp3" or ".m4a".
var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)

// safeExt returns the upload's extension lowercased, or "" when the extension
// would be unsafe in a staging filename.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}
