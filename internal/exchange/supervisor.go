package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/domain/repository"
	"TickFeed/pkg/logger"

	"github.com/gorilla/websocket"
)

// Timings groups the supervisor intervals. Zero values fall back to the
// production defaults.
type Timings struct {
	PingInterval      time.Duration
	InactivityTimeout time.Duration
	InactivityCheck   time.Duration
	StatusInterval    time.Duration
	BackoffBase       time.Duration
	BackoffCap        time.Duration
}

// DefaultTimings returns the production intervals.
func DefaultTimings() Timings {
	return Timings{
		PingInterval:      15 * time.Second,
		InactivityTimeout: 30 * time.Second,
		InactivityCheck:   5 * time.Second,
		StatusInterval:    time.Second,
		BackoffBase:       500 * time.Millisecond,
		BackoffCap:        30 * time.Second,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.PingInterval <= 0 {
		t.PingInterval = d.PingInterval
	}
	if t.InactivityTimeout <= 0 {
		t.InactivityTimeout = d.InactivityTimeout
	}
	if t.InactivityCheck <= 0 {
		t.InactivityCheck = d.InactivityCheck
	}
	if t.StatusInterval <= 0 {
		t.StatusInterval = d.StatusInterval
	}
	if t.BackoffBase <= 0 {
		t.BackoffBase = d.BackoffBase
	}
	if t.BackoffCap <= 0 {
		t.BackoffCap = d.BackoffCap
	}
	return t
}

// Adapter supervises one venue connection and implements
// repository.Exchange around a venue Client.
type Adapter struct {
	client  Client
	timings Timings
	log     *logger.Logger
	metrics repository.Metrics
	dialer  *websocket.Dialer

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdapter wraps a venue client with the shared supervisor.
func NewAdapter(client Client, timings Timings, log *logger.Logger, metrics repository.Metrics) *Adapter {
	return &Adapter{
		client:  client,
		timings: timings.withDefaults(),
		log:     log,
		metrics: metrics,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Venue identifies the wrapped client.
func (a *Adapter) Venue() models.Venue { return a.client.Venue() }

// Connect starts the supervisor loop for symbol. It returns an error
// only when the venue does not list the symbol or a loop is already
// running; connection failures are absorbed by backoff.
func (a *Adapter) Connect(ctx context.Context, symbol models.Symbol, ev repository.StreamEvents) error {
	if _, err := a.client.DialURL(symbol); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return fmt.Errorf("%s: already connected", a.client.Venue())
	}

	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.run(loopCtx, symbol, ev, a.done)
	return nil
}

// Disconnect requests termination and waits for the loop to release the
// websocket and timers. Idempotent.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// FetchCandles delegates to the venue REST client, recording duration.
func (a *Adapter) FetchCandles(ctx context.Context, symbol models.Symbol, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	began := time.Now()
	candles, err := a.client.FetchCandles(ctx, symbol, tf, start, end)
	a.metrics.RecordBackfill(string(a.client.Venue()), time.Since(began).Seconds())
	return candles, err
}

// run is the reconnect loop: Connecting → Subscribing → Streaming →
// Backoff, until the context is cancelled.
func (a *Adapter) run(ctx context.Context, symbol models.Symbol, ev repository.StreamEvents, done chan<- struct{}) {
	defer close(done)

	venue := a.client.Venue()
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := a.dial(ctx, symbol)
		if err != nil {
			a.metrics.RecordReconnect(string(venue))
			a.log.Warn("dial failed",
				logger.String("venue", string(venue)), logger.Error(err))
			if !a.sleepBackoff(ctx, attempt) {
				return
			}
			attempt++
			continue
		}

		if err := a.subscribe(conn, symbol); err != nil {
			conn.Close()
			a.metrics.RecordReconnect(string(venue))
			a.log.Warn("subscribe failed",
				logger.String("venue", string(venue)), logger.Error(err))
			if !a.sleepBackoff(ctx, attempt) {
				return
			}
			attempt++
			continue
		}

		ev.OnConnectionChange(venue, true)
		a.log.Info("streaming", logger.String("venue", string(venue)), logger.String("symbol", string(symbol)))

		gotFrames := a.stream(ctx, conn, symbol, ev)

		ev.OnConnectionChange(venue, false)
		if ctx.Err() != nil {
			return
		}

		// A live stream window resets the exponential sequence, so a
		// connection that served for hours does not inherit a 30 s wait.
		if gotFrames {
			attempt = 0
		}
		a.metrics.RecordReconnect(string(venue))
		if !a.sleepBackoff(ctx, attempt) {
			return
		}
		attempt++
	}
}

func (a *Adapter) dial(ctx context.Context, symbol models.Symbol) (*websocket.Conn, error) {
	url, err := a.client.DialURL(symbol)
	if err != nil {
		return nil, err
	}
	conn, _, err := a.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s dial: %w", a.client.Venue(), err)
	}
	return conn, nil
}

func (a *Adapter) subscribe(conn *websocket.Conn, symbol models.Symbol) error {
	frames, err := a.client.SubscribeFrames(symbol)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
			return fmt.Errorf("%s subscribe: %w", a.client.Venue(), err)
		}
	}
	return nil
}

// stream reads frames until the connection dies or ctx is cancelled.
// Returns whether at least one frame arrived (drives the backoff reset).
func (a *Adapter) stream(ctx context.Context, conn *websocket.Conn, symbol models.Symbol, ev repository.StreamEvents) bool {
	venue := a.client.Venue()

	var lastIngest atomic.Int64
	lastIngest.Store(time.Now().UnixNano())

	timersDone := make(chan struct{})
	go a.runTimers(ctx, conn, venue, &lastIngest, ev, timersDone)

	received := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		lastIngest.Store(time.Now().UnixNano())
		received = true

		for _, t := range a.client.ParseMessage(symbol, data) {
			a.metrics.RecordTrade(string(venue), string(t.Symbol))
			ev.OnTrade(t)
		}
	}

	conn.Close()
	close(timersDone)
	return received
}

// runTimers drives the ping keepalive, the inactivity watchdog and the
// status beacon while the connection streams. Closing the websocket from
// the watchdog unblocks the read loop and forces a Backoff transition.
func (a *Adapter) runTimers(ctx context.Context, conn *websocket.Conn, venue models.Venue, lastIngest *atomic.Int64, ev repository.StreamEvents, done <-chan struct{}) {
	ping := time.NewTicker(a.timings.PingInterval)
	inactivity := time.NewTicker(a.timings.InactivityCheck)
	status := time.NewTicker(a.timings.StatusInterval)
	defer ping.Stop()
	defer inactivity.Stop()
	defer status.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-ping.C:
			deadline := time.Now().Add(5 * time.Second)
			_ = conn.WriteControl(websocket.PingMessage, nil, deadline)
		case <-inactivity.C:
			idle := time.Duration(time.Now().UnixNano() - lastIngest.Load())
			if idle > a.timings.InactivityTimeout {
				a.log.Warn("inactivity timeout, closing",
					logger.String("venue", string(venue)),
					logger.Duration("idle", idle))
				conn.Close()
			}
		case <-status.C:
			now := time.Now().UnixNano()
			latencyMs := (now - lastIngest.Load()) / int64(time.Millisecond)
			if latencyMs < 0 {
				latencyMs = 0
			}
			ev.OnStatus(models.ConnStatus{
				Venue:      venue,
				Connected:  true,
				LastIngest: lastIngest.Load(),
				LatencyMs:  latencyMs,
			})
		}
	}
}

// backoffDelay computes min(cap, base*2^attempt) with ±10% uniform
// jitter.
func (a *Adapter) backoffDelay(attempt int) time.Duration {
	delay := a.timings.BackoffBase
	for i := 0; i < attempt && delay < a.timings.BackoffCap; i++ {
		delay *= 2
	}
	if delay > a.timings.BackoffCap {
		delay = a.timings.BackoffCap
	}
	jitter := 0.9 + 0.2*rand.Float64()
	return time.Duration(float64(delay) * jitter)
}

// sleepBackoff waits out one backoff interval; false means the context
// was cancelled first.
func (a *Adapter) sleepBackoff(ctx context.Context, attempt int) bool {
	t := time.NewTimer(a.backoffDelay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
