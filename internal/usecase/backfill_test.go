package usecase

import (
	"context"
	"testing"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/domain/repository"
	internalrepo "TickFeed/internal/repository"
	"TickFeed/pkg/cache"
	"TickFeed/pkg/fixed"
	"TickFeed/pkg/logger"
)

func TestBackfillRelabelsTimeframe(t *testing.T) {
	price := fixed.MustParse("10")
	fake := &fakeExchange{venue: models.VenueBinance, candles: []models.Candle{
		{Symbol: models.BTCUSDT, Timeframe: models.TF1m, OpenTime: 1700000040,
			Open: price, High: price, Low: price, Close: price, Volume: price},
	}}
	lookup := func(models.Venue) (repository.Exchange, error) { return fake, nil }
	log, _ := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})

	bf := NewBackfiller(lookup, nil, log)
	got, err := bf.Fetch(context.Background(), models.BTCUSDT, models.TF30m,
		time.Unix(1700000000, 0), time.Unix(1700010000, 0))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 || got[0].Timeframe != models.TF30m {
		t.Fatalf("candles must carry the requested timeframe: %+v", got)
	}
}

func TestBackfillUsesCache(t *testing.T) {
	calls := 0
	price := fixed.MustParse("10")
	fake := &fakeExchange{venue: models.VenueBinance, candles: []models.Candle{
		{Symbol: models.BTCUSDT, Timeframe: models.TF1m, OpenTime: 1700000040,
			Open: price, High: price, Low: price, Close: price, Volume: price},
	}}
	lookup := func(models.Venue) (repository.Exchange, error) {
		calls++
		return fake, nil
	}
	log, _ := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})

	mem := cache.NewMemoryCache()
	defer mem.Close()
	bf := NewBackfiller(lookup, internalrepo.NewCandleCache(mem, time.Minute), log)

	start, end := time.Unix(1700000000, 0), time.Unix(1700010000, 0)
	if _, err := bf.Fetch(context.Background(), models.BTCUSDT, models.TF1m, start, end); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	got, err := bf.Fetch(context.Background(), models.BTCUSDT, models.TF1m, start, end)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("second fetch must come from cache, venue hit %d times", calls)
	}
	if len(got) != 1 || got[0].Open != price {
		t.Fatalf("cached candles corrupted: %+v", got)
	}
}

func TestBackfillAllVenuesFailing(t *testing.T) {
	lookup := func(models.Venue) (repository.Exchange, error) {
		return &fakeExchange{fetchErr: context.DeadlineExceeded}, nil
	}
	log, _ := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})

	bf := NewBackfiller(lookup, nil, log)
	candles, err := bf.Fetch(context.Background(), models.BTCEUR, models.TF1m,
		time.Unix(1700000000, 0), time.Unix(1700010000, 0))
	if err == nil {
		t.Fatalf("expected error when every venue fails")
	}
	if candles != nil {
		t.Fatalf("no candles expected, got %d", len(candles))
	}
}
