package usecase

import (
	"context"
	"sync"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/domain/repository"
	"TickFeed/pkg/fixed"
)

// AggregatorConfig tunes one aggregator instance. Zero values fall back
// to production defaults.
type AggregatorConfig struct {
	TickInterval time.Duration // cadence of the drain loop
	AmendGrace   time.Duration // late-trade window after a bucket closes
	MaxTradeAge  time.Duration // staleness filter
	QueueSize    int           // bounded intake, drop-oldest
}

func (c AggregatorConfig) withDefaults() AggregatorConfig {
	if c.TickInterval <= 0 {
		c.TickInterval = 250 * time.Millisecond
	}
	if c.AmendGrace <= 0 {
		c.AmendGrace = 2 * time.Second
	}
	if c.MaxTradeAge <= 0 {
		c.MaxTradeAge = 7 * 24 * time.Hour
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 65536
	}
	return c
}

// bucketState is the in-progress accumulation for one time bucket.
type bucketState struct {
	open int64 // bucket-open epoch second; 0 means not started
	pv   fixed.Acc
	vol  fixed.Fx
}

// Aggregator turns the trade firehose into per-bucket VWAP points at a
// fixed cadence. Enqueue may be called concurrently with the tick loop;
// tick state is only ever touched by Tick.
//
// An aggregator is bound to one (symbol, timeframe): changing either
// selection means discarding the instance, in-flight trades included.
type Aggregator struct {
	symbol  models.Symbol
	tf      models.Timeframe
	cfg     AggregatorConfig
	emit    func(models.AggregatedPoint)
	metrics repository.Metrics
	now     func() time.Time

	mu      sync.Mutex
	queue   []models.Trade
	dropped int64

	cur       bucketState
	lastPrice fixed.Fx

	// snapshot of the most recently closed bucket, kept so late trades
	// inside the grace window can be folded in and re-emitted
	lastEmitted *models.AggregatedPoint
	lastPv      fixed.Acc
	lastVol     fixed.Fx

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAggregator creates an aggregator for one symbol and timeframe.
// emit receives every bucket emission, amends included, in order.
func NewAggregator(symbol models.Symbol, tf models.Timeframe, cfg AggregatorConfig, emit func(models.AggregatedPoint), metrics repository.Metrics) *Aggregator {
	return &Aggregator{
		symbol:  symbol,
		tf:      tf,
		cfg:     cfg.withDefaults(),
		emit:    emit,
		metrics: metrics,
		now:     time.Now,
	}
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (a *Aggregator) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go func(done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(a.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				a.Tick()
			}
		}
	}(a.done)
}

// Stop halts the tick loop before returning. Idempotent.
func (a *Aggregator) Stop() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel = nil
}

// Enqueue adds a trade to the intake queue without blocking. When the
// bound is hit the oldest entries are dropped and counted.
func (a *Aggregator) Enqueue(t models.Trade) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.queue) >= a.cfg.QueueSize {
		over := len(a.queue) - a.cfg.QueueSize + 1
		a.queue = a.queue[over:]
		a.dropped += int64(over)
		if a.metrics != nil {
			a.metrics.RecordDropped("queue_full", over)
		}
	}
	a.queue = append(a.queue, t)
}

// Dropped returns the total trades discarded by the intake bound.
func (a *Aggregator) Dropped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Tick drains the queue, folds trades in arrival order and emits any
// bucket whose boundary has passed. Exported so tests can drive the
// clock deterministically.
func (a *Aggregator) Tick() {
	a.mu.Lock()
	batch := a.queue
	a.queue = nil
	a.mu.Unlock()

	now := a.now()
	for _, t := range batch {
		a.fold(now, t)
	}
	a.emitElapsed(now)
}

func (a *Aggregator) fold(now time.Time, t models.Trade) {
	tsSec := t.Timestamp / int64(time.Second)

	// corrupt or badly misaligned venue clocks
	if now.Unix()-tsSec > int64(a.cfg.MaxTradeAge/time.Second) {
		if a.metrics != nil {
			a.metrics.RecordDropped("stale", 1)
		}
		return
	}

	open := a.tf.BucketOpen(tsSec)

	// late trade for the bucket that just closed
	if le := a.lastEmitted; le != nil && open == le.Timestamp {
		closeNs := (le.Timestamp + a.tf.Seconds()) * int64(time.Second)
		if now.UnixNano()-closeNs <= int64(a.cfg.AmendGrace) {
			a.amend(t)
		} else if a.metrics != nil {
			a.metrics.RecordDropped("late", 1)
		}
		return
	}

	if open > a.cur.open || a.cur.open == 0 {
		a.cur = bucketState{open: open}
	}

	a.cur.pv.AddProduct(t.Price, t.Size)
	a.cur.vol += t.Size
	a.lastPrice = t.Price
}

// amend folds a late trade into the retained closed-bucket snapshot and
// republishes it. The live last price moves too: the late trade is still
// the most recent observation.
func (a *Aggregator) amend(t models.Trade) {
	a.lastPv.AddProduct(t.Price, t.Size)
	a.lastVol += t.Size
	a.lastPrice = t.Price

	p := *a.lastEmitted
	p.Volume = a.lastVol
	p.LastPrice = t.Price
	if a.lastVol > 0 {
		p.VWAP = a.lastPv.DivFx(a.lastVol)
	} else {
		p.VWAP = t.Price
	}
	p.Amend = true
	a.lastEmitted = &p
	a.emit(p)
}

// emitElapsed closes every bucket whose boundary the wall clock has
// passed, including empty ones, which inherit the preceding last price.
func (a *Aggregator) emitElapsed(now time.Time) {
	if a.cur.open == 0 {
		return
	}
	tfSec := a.tf.Seconds()
	for now.Unix() >= a.cur.open+tfSec {
		vwap := a.lastPrice
		if a.cur.vol > 0 {
			vwap = a.cur.pv.DivFx(a.cur.vol)
		}
		p := models.AggregatedPoint{
			Symbol:    a.symbol,
			Timeframe: a.tf,
			Timestamp: a.cur.open,
			VWAP:      vwap,
			Volume:    a.cur.vol,
			LastPrice: a.lastPrice,
		}
		a.lastEmitted = &p
		a.lastPv = a.cur.pv
		a.lastVol = a.cur.vol
		a.emit(p)

		a.cur = bucketState{open: a.cur.open + tfSec}
	}
}
