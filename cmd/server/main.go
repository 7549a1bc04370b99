package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/HarshitKumar9030/audio-hls/internal/audiocast"
	"github.com/HarshitKumar9030/audio-hls/internal/platform/config"
	"github.com/HarshitKumar9030/audio-hls/internal/platform/logger"
	"github.com/HarshitKumar9030/audio-hls/internal/platform/metrics"
	"github.com/HarshitKumar9030/audio-hls/web"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "5000")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	assetRoot := config.GetEnv("ASSET_ROOT", filepath.Join("public", "uploads"))
	stagingDir := config.GetEnv("STAGING_DIR", filepath.Join("public", "uploads"))
	countersFile := config.GetEnv("COUNTERS_FILE", filepath.Join("data", "stats.json"))
	ffmpegPath := config.GetEnv("FFMPEG_PATH", "ffmpeg")
	maxUploadMB := config.GetEnvInt("MAX_UPLOAD_MB", 512)
	origins := config.GetEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"})

	log := logger.New(logLevel, logFormat)

	store, err := audiocast.NewFileStore(assetRoot, countersFile, log)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}

	met := metrics.New()

	transcoder := audiocast.NewFFmpegTranscoder(ffmpegPath, log)
	transcoder.OnSegment = func(string) { met.IncSegmentsProduced() }

	svc := audiocast.NewService(store, transcoder, log)

	pages, err := web.Templates()
	if err != nil {
		log.Error("template parse failed", "error", err)
		os.Exit(1)
	}

	h, err := audiocast.NewHandler(svc, log, met, pages, stagingDir, int64(maxUploadMB)<<20)
	if err != nil {
		log.Error("handler init failed", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() { met.SetAssetsTotal(store.AssetCount()) }).ServeHTTP(w, req)
	})

	// Playback routes answer with a wildcard: players fetch playlists and
	// segments directly, usually from another origin.
	r.Route("/play/{audioId}", func(r chi.Router) {
		r.Get("/", h.Play)
		r.Options("/", h.PlayPreflight)
		r.Get("/{segment}", h.Play)
		r.Options("/{segment}", h.PlayPreflight)
	})

	// App routes sit behind the configured origin allow-list.
	r.Group(func(r chi.Router) {
		r.Use(audiocast.AllowOrigins(origins, log))
		r.Get("/", h.Index)
		r.Post("/upload", h.Upload)
		r.Get("/view/{audioId}", h.View)
		r.Get("/stats", h.Stats)
	})

	addr := ":" + port
	// No ReadTimeout/WriteTimeout: uploads stream large bodies and the
	// /upload response waits for the transcoder, which has no imposed
	// deadline.
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"asset_root", assetRoot,
		"ffmpeg", ffmpegPath,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
