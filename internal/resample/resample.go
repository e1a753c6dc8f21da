// Package resample rolls candles of one granularity up into a coarser
// timeframe, deterministically and independently of any venue's native
// aggregation.
package resample

import (
	"sort"

	"TickFeed/internal/domain/models"
)

// Up aggregates ascending-sorted candles into target buckets. The target
// timeframe must be an integer multiple of the input granularity; rows
// are grouped by floor(openTime/T)*T, open comes from the first row of a
// bucket, close from the last, high/low are extrema and volume sums.
// Output is ascending by open time and labelled with target.
func Up(in []models.Candle, target models.Timeframe) []models.Candle {
	if len(in) == 0 {
		return nil
	}
	tfSec := target.Seconds()
	if tfSec <= 0 {
		return nil
	}

	out := make([]models.Candle, 0, len(in))
	var cur *models.Candle
	for _, c := range in {
		open := target.BucketOpen(c.OpenTime)
		if cur == nil || cur.OpenTime != open {
			out = append(out, models.Candle{
				Symbol:    c.Symbol,
				Timeframe: target,
				OpenTime:  open,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
			})
			cur = &out[len(out)-1]
			continue
		}
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	return out
}

// SortAscending orders candles by open time in place. Venue REST
// responses frequently arrive newest-first.
func SortAscending(cs []models.Candle) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].OpenTime < cs[j].OpenTime })
}

// Clip keeps candles whose open time lies in [start, end] (epoch
// seconds). Input must be ascending.
func Clip(cs []models.Candle, start, end int64) []models.Candle {
	lo := sort.Search(len(cs), func(i int) bool { return cs[i].OpenTime >= start })
	hi := sort.Search(len(cs), func(i int) bool { return cs[i].OpenTime > end })
	if lo >= hi {
		return nil
	}
	return cs[lo:hi]
}
