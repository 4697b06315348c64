// Package metrics provides Prometheus metrics instrumentation for the
// demandcast service.
//
// It exposes operational metrics about forecast request handling, model
// training and the model cache. All metrics are exposed via the /metrics
// HTTP endpoint for Prometheus scraping.
//
// Metrics exposed:
//   - demandcast_cache_hits_total: Counter of model cache hits
//   - demandcast_cache_misses_total: Counter of model cache misses
//   - demandcast_train_seconds: Histogram of per-batch training durations by model type
//   - demandcast_forecast_request_seconds: Histogram of end-to-end forecast request durations
//   - demandcast_item_failures_total: Counter of items that failed inside a batch
//   - demandcast_cache_entries: Gauge of entries currently in the model cache
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	TrainSeconds     *prometheus.HistogramVec
	RequestSeconds   prometheus.Histogram
	ItemFailures     prometheus.Counter
	CacheEntries     prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		CacheHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "demandcast_cache_hits_total",
			Help: "Total number of model cache hits",
		}),

		CacheMissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "demandcast_cache_misses_total",
			Help: "Total number of model cache misses",
		}),

		TrainSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "demandcast_train_seconds",
			Help:    "Duration of per-batch model training by model type",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),

		RequestSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "demandcast_forecast_request_seconds",
			Help:    "End-to-end duration of forecast requests",
			Buckets: prometheus.DefBuckets,
		}),

		ItemFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "demandcast_item_failures_total",
			Help: "Total number of items that failed to train or forecast",
		}),

		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "demandcast_cache_entries",
			Help: "Number of entries currently in the model cache",
		}),
	}
}

// RecordBatch accounts one orchestrated batch: hits, misses and failures.
func (m *Metrics) RecordBatch(cached, missing, failed int) {
	m.CacheHitsTotal.Add(float64(cached))
	m.CacheMissesTotal.Add(float64(missing))
	m.ItemFailures.Add(float64(failed))
}

// ObserveTrain records a training duration for one model type.
func (m *Metrics) ObserveTrain(model string, seconds float64) {
	m.TrainSeconds.WithLabelValues(model).Observe(seconds)
}

// ObserveRequest records one end-to-end forecast request duration.
func (m *Metrics) ObserveRequest(seconds float64) {
	m.RequestSeconds.Observe(seconds)
}

// SetCacheEntries updates the cache size gauge.
func (m *Metrics) SetCacheEntries(n int) {
	m.CacheEntries.Set(float64(n))
}
