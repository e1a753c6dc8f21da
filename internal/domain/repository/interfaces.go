package repository

import (
	"context"
	"time"

	"TickFeed/internal/domain/models"
)

// StreamEvents receives everything a running venue connection produces.
// Callbacks are invoked from the adapter's goroutines; implementations
// must be safe for concurrent use.
type StreamEvents interface {
	OnTrade(t models.Trade)
	OnConnectionChange(venue models.Venue, connected bool)
	OnStatus(st models.ConnStatus)
}

// Exchange is one venue: a supervised trade stream plus a one-shot
// historical candle fetcher.
type Exchange interface {
	Venue() models.Venue
	// Connect starts the supervisor loop for symbol and returns once the
	// loop is running. Trades and status flow through ev until Disconnect.
	Connect(ctx context.Context, symbol models.Symbol, ev StreamEvents) error
	// Disconnect requests termination. Idempotent; the websocket and all
	// timers are released before it returns.
	Disconnect() error
	// FetchCandles retrieves historical candles in [start, end] at tf,
	// ascending by open time.
	FetchCandles(ctx context.Context, symbol models.Symbol, tf models.Timeframe, start, end time.Time) ([]models.Candle, error)
}

// AggregateSink receives emitted aggregates for optional downstream
// archival (Kafka topic or ClickHouse table, per config).
type AggregateSink interface {
	Publish(ctx context.Context, p models.AggregatedPoint) error
	Close() error
}

// CandleCache memoizes backfill responses so repeated chart pans do not
// re-hit venue REST endpoints.
type CandleCache interface {
	Get(ctx context.Context, key string) ([]models.Candle, bool)
	Put(ctx context.Context, key string, candles []models.Candle)
}

// Metrics abstracts the Prometheus recorder.
type Metrics interface {
	RecordTrade(venue string, symbol string)
	RecordReconnect(venue string)
	RecordDropped(reason string, n int)
	RecordLastPrice(symbol string, price float64)
	RecordBackfill(venue string, seconds float64)
	RecordError(kind string)
}
