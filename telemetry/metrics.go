// Package telemetry provides Prometheus metrics, tracing, log setup and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesClassified *prometheus.CounterVec
	PartiesRecorded    *prometheus.CounterVec
	CommandsHandled    *prometheus.CounterVec
	DuplicatesSkipped  prometheus.Counter
	MetadataFailures   prometheus.Counter

	// Histograms (seconds)
	MetadataDuration prometheus.Observer
	StoreDuration    prometheus.Observer

	// Gauges
	UpdateLimitGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesClassified = promauto.NewCounterVec(prometheus.CounterOpts{Name: "lp_messages_classified_total", Help: "Messages seen, by classification"}, []string{"kind"})
		PartiesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{Name: "lp_parties_recorded_total", Help: "Listening parties recorded, by category"}, []string{"category"})
		CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "lp_commands_total", Help: "Commands handled, by name and outcome"}, []string{"command", "outcome"})
		DuplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "lp_duplicates_skipped_total", Help: "Messages skipped because their id was already recorded"})
		MetadataFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "lp_metadata_failures_total", Help: "Failed metadata lookups"})
		MetadataDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "lp_metadata_duration_seconds", Help: "Metadata lookup duration seconds", Buckets: prometheus.DefBuckets})
		StoreDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "lp_store_duration_seconds", Help: "Store call duration seconds", Buckets: prometheus.DefBuckets})
		UpdateLimitGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "lp_update_limit", Help: "Messages per channel reprocessed by update"})
	})
}

// IncClassified counts a classified message.
func IncClassified(kind string) {
	if MessagesClassified != nil {
		MessagesClassified.WithLabelValues(kind).Inc()
	}
}

// IncRecorded counts a stored listening party.
func IncRecorded(category string) {
	if PartiesRecorded != nil {
		PartiesRecorded.WithLabelValues(category).Inc()
	}
}

// IncCommand counts a command by outcome (ok, failed, rejected).
func IncCommand(name, outcome string) {
	if CommandsHandled != nil {
		CommandsHandled.WithLabelValues(name, outcome).Inc()
	}
}

func IncDuplicate() {
	if DuplicatesSkipped != nil {
		DuplicatesSkipped.Inc()
	}
}

func IncMetadataFailure() {
	if MetadataFailures != nil {
		MetadataFailures.Inc()
	}
}

// SetUpdateLimit records the current backfill depth.
func SetUpdateLimit(n int) {
	if UpdateLimitGauge != nil {
		UpdateLimitGauge.Set(float64(n))
	}
}

func ObserveMetadata(d time.Duration) { observe(MetadataDuration, d) }

func ObserveStore(d time.Duration) { observe(StoreDuration, d) }

func observe(obs prometheus.Observer, d time.Duration) {
	if obs != nil {
		obs.Observe(d.Seconds())
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	observe(obs, d)
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
