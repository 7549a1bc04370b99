package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the audio HLS server.
type Metrics struct {
	registry               *prometheus.Registry
	requestsTotal          prometheus.Counter
	errorsTotal            prometheus.Counter
	uploadsTotal           prometheus.Counter
	transcodeFailuresTotal prometheus.Counter
	playlistRequestsTotal  prometheus.Counter
	segmentsServedTotal    prometheus.Counter
	segmentsProducedTotal  prometheus.Counter
	assetsTotal            prometheus.Gauge
}

// New creates and registers Prometheus metrics for the server.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiohls_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiohls_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	uploadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiohls_uploads_total",
		Help: "Total number of uploads successfully ingested",
	})
	transcodeFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiohls_transcode_failures_total",
		Help: "Total number of transcode attempts that failed",
	})
	playlistRequestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiohls_playlist_requests_total",
		Help: "Total number of playlists served",
	})
	segmentsServedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiohls_segments_served_total",
		Help: "Total number of media segments served",
	})
	segmentsProducedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiohls_segments_produced_total",
		Help: "Total number of media segments written by the transcoder",
	})
	assetsTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audiohls_assets_total",
		Help: "Number of assets registered in the counter table",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		uploadsTotal,
		transcodeFailuresTotal,
		playlistRequestsTotal,
		segmentsServedTotal,
		segmentsProducedTotal,
		assetsTotal,
	)

	return &Metrics{
		registry:               registry,
		requestsTotal:          requestsTotal,
		errorsTotal:            errorsTotal,
		uploadsTotal:           uploadsTotal,
		transcodeFailuresTotal: transcodeFailuresTotal,
		playlistRequestsTotal:  playlistRequestsTotal,
		segmentsServedTotal:    segmentsServedTotal,
		segmentsProducedTotal:  segmentsProducedTotal,
		assetsTotal:            assetsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncUploads increments the successful ingest counter.
func (m *Metrics) IncUploads() {
	m.uploadsTotal.Inc()
}

// IncTranscodeFailures increments the failed transcode counter.
func (m *Metrics) IncTranscodeFailures() {
	m.transcodeFailuresTotal.Inc()
}

// IncPlaylistRequests increments the playlists served counter.
func (m *Metrics) IncPlaylistRequests() {
	m.playlistRequestsTotal.Inc()
}

// IncSegmentsServed increments the segments served counter.
func (m *Metrics) IncSegmentsServed() {
	m.segmentsServedTotal.Inc()
}

// IncSegmentsProduced increments the segments written counter.
func (m *Metrics) IncSegmentsProduced() {
	m.segmentsProducedTotal.Inc()
}

// SetAssetsTotal sets the registered assets gauge.
func (m *Metrics) SetAssetsTotal(n int) {
	m.assetsTotal.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
