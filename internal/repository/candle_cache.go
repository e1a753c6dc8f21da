package repository

import (
	"context"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/domain/repository"
	"TickFeed/pkg/cache"
)

// CandleCache adapts a cache.Service (memory or Redis) to the backfill
// memoization interface. Misses and backend failures read the same:
// the backfill simply re-fetches.
type CandleCache struct {
	svc cache.Service
	ttl time.Duration
}

// NewCandleCache wraps a cache backend with a fixed TTL.
func NewCandleCache(svc cache.Service, ttl time.Duration) repository.CandleCache {
	return &CandleCache{svc: svc, ttl: ttl}
}

func (c *CandleCache) Get(ctx context.Context, key string) ([]models.Candle, bool) {
	var candles []models.Candle
	if err := c.svc.Get(ctx, key, &candles); err != nil {
		// a miss and backend trouble read the same: re-fetch
		return nil, false
	}
	return candles, true
}

func (c *CandleCache) Put(ctx context.Context, key string, candles []models.Candle) {
	_ = c.svc.Set(ctx, key, candles, c.ttl)
}
