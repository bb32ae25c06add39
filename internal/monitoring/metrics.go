package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Read outcomes recorded by the price cache.
const (
	ReadHit      = "hit"
	ReadMiss     = "miss"
	ReadAdmitted = "admitted"
	ReadError    = "error"
)

// Metrics holds the Prometheus collectors for the price cache engine.
type Metrics struct {
	derivationsTotal   *prometheus.CounterVec
	derivationDuration prometheus.Histogram

	readsTotal *prometheus.CounterVec

	updatePassesTotal  *prometheus.CounterVec
	updateBatchesTotal *prometheus.CounterVec
	updatePassDuration prometheus.Histogram
	pointsWrittenTotal prometheus.Counter
}

// NewMetrics registers the engine's collectors against the given registerer.
// Tests pass a fresh registry; main passes prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		derivationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_cache_derivations_total",
				Help: "Total number of on-chain price derivations",
			},
			[]string{"result"},
		),
		derivationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "price_cache_derivation_duration_seconds",
				Help:    "Duration of on-chain price derivations",
				Buckets: prometheus.DefBuckets,
			},
		),
		readsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_cache_reads_total",
				Help: "Total number of price reads by outcome",
			},
			[]string{"outcome"},
		),
		updatePassesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_cache_update_passes_total",
				Help: "Total number of periodic update passes",
			},
			[]string{"result"},
		),
		updateBatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_cache_update_batches_total",
				Help: "Total number of update batches processed",
			},
			[]string{"result"},
		),
		updatePassDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "price_cache_update_pass_duration_seconds",
				Help:    "Duration of full update passes",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		pointsWrittenTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "price_cache_points_written_total",
				Help: "Total number of price points written to the store",
			},
		),
	}
}

// RecordDerivation records one price derivation attempt
func (m *Metrics) RecordDerivation(success bool, duration time.Duration) {
	m.derivationsTotal.WithLabelValues(resultLabel(success)).Inc()
	m.derivationDuration.Observe(duration.Seconds())
}

// RecordRead records one read by outcome (hit, miss, admitted, error)
func (m *Metrics) RecordRead(outcome string) {
	m.readsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpdatePass records a completed update pass
func (m *Metrics) RecordUpdatePass(success bool, duration time.Duration) {
	m.updatePassesTotal.WithLabelValues(resultLabel(success)).Inc()
	m.updatePassDuration.Observe(duration.Seconds())
}

// RecordBatch records one processed batch and the points it wrote
func (m *Metrics) RecordBatch(success bool, pointsWritten int) {
	m.updateBatchesTotal.WithLabelValues(resultLabel(success)).Inc()
	m.pointsWrittenTotal.Add(float64(pointsWritten))
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
