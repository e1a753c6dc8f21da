package resample

import (
	"testing"

	"TickFeed/internal/domain/models"
	"TickFeed/pkg/fixed"
)

func minuteCandles(t0 int64, n int) []models.Candle {
	cs := make([]models.Candle, n)
	for i := range cs {
		base := fixed.Fx(int64(100+i) * fixed.Scale)
		cs[i] = models.Candle{
			Symbol:    models.BTCUSD,
			Timeframe: models.TF1m,
			OpenTime:  t0 + int64(i)*60,
			Open:      base,
			High:      base + 2*fixed.Scale,
			Low:       base - 3*fixed.Scale,
			Close:     base + fixed.Scale,
			Volume:    fixed.Fx(fixed.Scale),
		}
	}
	return cs
}

func TestUpOneToFive(t *testing.T) {
	const t0 = 1700000100 // aligned on 5m
	in := minuteCandles(t0, 10)
	out := Up(in, models.TF5m)

	if len(out) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(out))
	}
	first := out[0]
	if first.OpenTime != t0 {
		t.Fatalf("bucket open %d", first.OpenTime)
	}
	if first.Timeframe != models.TF5m {
		t.Fatalf("timeframe %s", first.Timeframe)
	}
	if first.Open != in[0].Open {
		t.Fatalf("open should come from first row")
	}
	if first.Close != in[4].Close {
		t.Fatalf("close should come from last row")
	}
	if first.High != in[4].High {
		t.Fatalf("high should be the max")
	}
	if first.Low != in[0].Low {
		t.Fatalf("low should be the min")
	}
	if first.Volume != 5*fixed.Fx(fixed.Scale) {
		t.Fatalf("volume should sum, got %s", first.Volume)
	}
}

func TestUpMisalignedStart(t *testing.T) {
	// candles starting mid-bucket land in the bucket containing them
	in := minuteCandles(1700000100+120, 3)
	out := Up(in, models.TF5m)
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(out))
	}
	if out[0].OpenTime != 1700000100 {
		t.Fatalf("bucket open %d", out[0].OpenTime)
	}
}

func TestUpEmpty(t *testing.T) {
	if out := Up(nil, models.TF5m); out != nil {
		t.Fatalf("expected nil")
	}
}

func TestSortAndClip(t *testing.T) {
	in := minuteCandles(1700000100, 5)
	// reverse to newest-first
	for i, j := 0, len(in)-1; i < j; i, j = i+1, j-1 {
		in[i], in[j] = in[j], in[i]
	}
	SortAscending(in)
	for i := 1; i < len(in); i++ {
		if in[i-1].OpenTime > in[i].OpenTime {
			t.Fatalf("not ascending at %d", i)
		}
	}

	clipped := Clip(in, 1700000160, 1700000280)
	if len(clipped) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(clipped))
	}
	if clipped[0].OpenTime != 1700000160 || clipped[2].OpenTime != 1700000280 {
		t.Fatalf("clip bounds wrong: %d..%d", clipped[0].OpenTime, clipped[2].OpenTime)
	}
}
