// Package metrics records search outcomes as Prometheus metrics. A one-shot
// process has nothing to scrape it, so the registry is written to a node
// exporter textfile on exit instead of being served over HTTP.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/FranksOps/gsearch/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns a private registry so process-global collectors never leak
// into the textfile.
type Recorder struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	results  *prometheus.CounterVec
	bytes    *prometheus.CounterVec
}

// NewRecorder registers the gsearch collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gsearch_requests_total",
				Help: "Total number of search requests executed",
			},
			[]string{"mode", "status", "detected"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gsearch_request_duration_seconds",
				Help:    "Duration of search requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"mode"},
		),
		results: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gsearch_results_total",
				Help: "Total number of results extracted",
			},
			[]string{"mode"},
		),
		bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gsearch_response_bytes_total",
				Help: "Total bytes downloaded across all searches",
			},
			[]string{"mode"},
		),
	}
}

// Observe updates the metrics from a finished search. bodyBytes is the size
// of the downloaded page, zero when nothing was received.
func (r *Recorder) Observe(rec *storage.SearchRecord, bodyBytes int) {
	if r == nil || rec == nil {
		return
	}

	status := strconv.Itoa(rec.StatusCode)
	if rec.StatusCode == 0 {
		status = "error"
	}

	r.requests.WithLabelValues(rec.Mode, status, strconv.FormatBool(rec.DetectedBot)).Inc()
	r.duration.WithLabelValues(rec.Mode).Observe(rec.Duration.Seconds())
	r.results.WithLabelValues(rec.Mode).Add(float64(rec.ResultCount))
	r.bytes.WithLabelValues(rec.Mode).Add(float64(bodyBytes))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile atomically writes the registry in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
