package usecase

import (
	"context"
	"fmt"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/domain/repository"
	"TickFeed/internal/symbols"
	"TickFeed/pkg/logger"
)

// Backfiller plans historical candle fetches: pick a venue in preference
// order, fall through on failure, memoize the response.
type Backfiller struct {
	lookup func(models.Venue) (repository.Exchange, error)
	cache  repository.CandleCache
	log    *logger.Logger
}

func NewBackfiller(lookup func(models.Venue) (repository.Exchange, error), cache repository.CandleCache, log *logger.Logger) *Backfiller {
	return &Backfiller{lookup: lookup, cache: cache, log: log}
}

// Fetch returns candles for [start, end] at tf, labelled with the
// requested timeframe regardless of the native granularity used. Every
// preferred venue failing yields (nil, err); the caller still acks with
// an empty set per the lossy-backfill contract.
func (b *Backfiller) Fetch(ctx context.Context, symbol models.Symbol, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	venues := symbols.VenuesFor(symbol)
	if len(venues) == 0 {
		return nil, fmt.Errorf("backfill: no venues for %s", symbol)
	}

	key := cacheKey(symbol, tf, start, end)
	if b.cache != nil {
		if cached, ok := b.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	var lastErr error
	for _, venue := range venues {
		ex, err := b.lookup(venue)
		if err != nil {
			lastErr = err
			continue
		}
		candles, err := ex.FetchCandles(ctx, symbol, tf, start, end)
		if err != nil {
			lastErr = err
			b.log.Warn("backfill venue failed",
				logger.String("venue", string(venue)), logger.Error(err))
			continue
		}

		// every candle leaves with the requested timeframe label
		for i := range candles {
			candles[i].Timeframe = tf
		}
		if b.cache != nil {
			b.cache.Put(ctx, key, candles)
		}
		return candles, nil
	}
	return nil, fmt.Errorf("backfill %s %s: %w", symbol, tf, lastErr)
}

func cacheKey(symbol models.Symbol, tf models.Timeframe, start, end time.Time) string {
	return fmt.Sprintf("backfill:%s:%s:%d:%d", symbol, tf, start.Unix(), end.Unix())
}
