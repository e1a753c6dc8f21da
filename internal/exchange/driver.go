// Package exchange implements the shared connection supervisor that
// keeps one venue websocket healthy: dial, subscribe, stream, inactivity
// watchdog, status beacon and jittered exponential backoff. Venue
// specifics (URLs, subscribe frames, message parsing, REST candles) live
// in the per-venue subpackages, which plug in through the Client
// contract.
package exchange

import (
	"context"
	"strconv"
	"strings"
	"time"

	"TickFeed/internal/domain/models"
)

// Driver is the venue-specific half of a streaming connection.
type Driver interface {
	Venue() models.Venue

	// DialURL returns the websocket endpoint for symbol. Venues that
	// select the channel by URL path (Binance) encode the symbol here.
	DialURL(symbol models.Symbol) (string, error)

	// SubscribeFrames returns the frames to send after the handshake, in
	// order. May be empty when subscription is implied by the URL.
	SubscribeFrames(symbol models.Symbol) ([][]byte, error)

	// ParseMessage extracts normalized trades from one websocket frame.
	// Control frames, acknowledgements and malformed payloads yield nil;
	// the stream is a best-effort firehose and parse errors are not
	// propagated.
	ParseMessage(symbol models.Symbol, data []byte) []models.Trade
}

// CandleFetcher is the venue-specific REST half.
type CandleFetcher interface {
	// FetchCandles retrieves candles with open times in [start, end] at
	// tf, ascending. A venue error yields (nil, err); the caller decides
	// whether that is fatal.
	FetchCandles(ctx context.Context, symbol models.Symbol, tf models.Timeframe, start, end time.Time) ([]models.Candle, error)
}

// Client is everything a venue implementation provides.
type Client interface {
	Driver
	CandleFetcher
}

// --- wire helpers shared by the venue parsers ---

// MsToNs promotes a millisecond epoch timestamp to nanoseconds.
func MsToNs(ms int64) int64 { return ms * int64(time.Millisecond) }

// SecToNs promotes a second epoch timestamp to nanoseconds.
func SecToNs(sec int64) int64 { return sec * int64(time.Second) }

// DecimalSecondsToNs parses an epoch timestamp with fractional seconds
// ("1534614057.321597") to nanoseconds without a float round-trip.
func DecimalSecondsToNs(s string) (int64, bool) {
	whole, frac, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}

	var nanos int64
	for i := 0; i < 9; i++ {
		var d int64
		if i < len(frac) {
			c := frac[i]
			if c < '0' || c > '9' {
				return 0, false
			}
			d = int64(c - '0')
		}
		nanos = nanos*10 + d
	}
	return sec*int64(time.Second) + nanos, true
}

// FlexibleMsNs promotes a timestamp that may be milliseconds or
// nanoseconds: more than 13 digits means nanoseconds.
func FlexibleMsNs(ts int64) int64 {
	if ts > 9_999_999_999_999 { // 13 digits
		return ts
	}
	return MsToNs(ts)
}
