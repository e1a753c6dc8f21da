package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	tradesTotal     *prometheus.CounterVec
	reconnectsTotal *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
	backfillSeconds *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		tradesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickfeed_trades_total",
				Help: "Normalized trades ingested per venue and symbol",
			},
			[]string{"venue", "symbol"},
		),
		reconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickfeed_reconnects_total",
				Help: "Websocket reconnect attempts per venue",
			},
			[]string{"venue"},
		),
		droppedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickfeed_dropped_trades_total",
				Help: "Trades discarded before aggregation",
			},
			[]string{"reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickfeed_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tickfeed_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		backfillSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tickfeed_backfill_duration_seconds",
				Help:    "Duration of historical candle fetches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"venue"},
		),
	}
}

// RecordTrade counts one ingested trade.
func (r *Recorder) RecordTrade(venue, symbol string) {
	r.tradesTotal.WithLabelValues(venue, symbol).Inc()
}

// RecordReconnect counts a reconnect attempt.
func (r *Recorder) RecordReconnect(venue string) {
	r.reconnectsTotal.WithLabelValues(venue).Inc()
}

// RecordDropped counts trades discarded before aggregation.
func (r *Recorder) RecordDropped(reason string, n int) {
	if n > 0 {
		r.droppedTotal.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordBackfill records a backfill fetch duration in seconds.
func (r *Recorder) RecordBackfill(venue string, seconds float64) {
	r.backfillSeconds.WithLabelValues(venue).Observe(seconds)
}
