// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK          = "ok"
	ResultBadRequest  = "bad_request"
	ResultTooLarge    = "too_large"
	ResultStoreError  = "store_error"
	ResultShortenFail = "shorten_error"
	ResultNotFound    = "not_found"
	ResultError       = "error"
)

// Metrics groups the service's collectors so tests can use a private registry.
type Metrics struct {
	Uploads          *prometheus.CounterVec
	UploadBytes      prometheus.Counter
	Downloads        *prometheus.CounterVec
	DownloadBytes    prometheus.Counter
	ShortenerLatency *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quickshare",
			Name:      "uploads_total",
			Help:      "Upload attempts by result.",
		}, []string{"result"}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quickshare",
			Name:      "upload_bytes_total",
			Help:      "Bytes written to storage by successful uploads.",
		}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quickshare",
			Name:      "downloads_total",
			Help:      "File requests by result.",
		}, []string{"result"}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quickshare",
			Name:      "download_bytes_total",
			Help:      "Bytes streamed to clients.",
		}),
		ShortenerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quickshare",
			Name:      "shortener_request_duration_seconds",
			Help:      "Latency of link shortener calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Uploads, m.UploadBytes, m.Downloads, m.DownloadBytes, m.ShortenerLatency)
	return m
}

// ObserveShorten records one shortener call that started at start.
func (m *Metrics) ObserveShorten(start time.Time, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.ShortenerLatency.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
