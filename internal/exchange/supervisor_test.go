package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/pkg/fixed"
	"TickFeed/pkg/logger"

	"github.com/gorilla/websocket"
)

func newTestAdapter() *Adapter {
	return &Adapter{timings: DefaultTimings()}
}

func TestBackoffBounds(t *testing.T) {
	a := newTestAdapter()
	lo := time.Duration(float64(500*time.Millisecond) * 0.9)
	base := 30 * time.Second
	hi := time.Duration(float64(base) * 1.1)

	for i := 0; i < 1000; i++ {
		d := a.backoffDelay(i % 12)
		if d < lo {
			t.Fatalf("attempt %d: delay %v below %v", i, d, lo)
		}
		if d > hi {
			t.Fatalf("attempt %d: delay %v above %v", i, d, hi)
		}
	}
}

func TestBackoffFirstAttemptNearBase(t *testing.T) {
	a := newTestAdapter()
	for i := 0; i < 100; i++ {
		d := a.backoffDelay(0)
		if d < 450*time.Millisecond || d > 550*time.Millisecond {
			t.Fatalf("attempt 0 delay %v outside 0.5s ±10%%", d)
		}
	}
}

func TestBackoffCaps(t *testing.T) {
	a := newTestAdapter()
	for i := 0; i < 100; i++ {
		if d := a.backoffDelay(30); d > 33*time.Second {
			t.Fatalf("capped delay %v above 33s", d)
		}
	}
}

func TestDecimalSecondsToNs(t *testing.T) {
	ns, ok := DecimalSecondsToNs("1534614057.321597")
	if !ok {
		t.Fatalf("parse failed")
	}
	want := int64(1534614057)*1e9 + 321597000
	if ns != want {
		t.Fatalf("got %d, want %d", ns, want)
	}

	ns, ok = DecimalSecondsToNs("1534614057")
	if !ok || ns != 1534614057*int64(time.Second) {
		t.Fatalf("whole seconds: got %d ok=%v", ns, ok)
	}

	if _, ok := DecimalSecondsToNs("not-a-ts"); ok {
		t.Fatalf("expected failure")
	}
}

func TestFlexibleMsNs(t *testing.T) {
	if got := FlexibleMsNs(1700000000123); got != 1700000000123*int64(time.Millisecond) {
		t.Fatalf("ms promotion: %d", got)
	}
	ns := int64(1700000000123456789)
	if got := FlexibleMsNs(ns); got != ns {
		t.Fatalf("ns passthrough: %d", got)
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordTrade(string, string)      {}
func (nopMetrics) RecordReconnect(string)          {}
func (nopMetrics) RecordDropped(string, int)       {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordBackfill(string, float64)  {}
func (nopMetrics) RecordError(string)              {}

// wsClient is a minimal venue client streaming {"p","q","t"} frames.
type wsClient struct {
	url string
}

func (c *wsClient) Venue() models.Venue { return models.VenueBinance }

func (c *wsClient) DialURL(models.Symbol) (string, error) { return c.url, nil }

func (c *wsClient) SubscribeFrames(models.Symbol) ([][]byte, error) { return nil, nil }

func (c *wsClient) ParseMessage(symbol models.Symbol, data []byte) []models.Trade {
	var m struct {
		P string `json:"p"`
		Q string `json:"q"`
		T int64  `json:"t"`
	}
	if err := json.Unmarshal(data, &m); err != nil || m.T == 0 {
		return nil
	}
	price, _ := fixed.Parse(m.P)
	size, _ := fixed.Parse(m.Q)
	return []models.Trade{{Symbol: symbol, Venue: c.Venue(), Price: price, Size: size, Timestamp: MsToNs(m.T)}}
}

func (c *wsClient) FetchCandles(context.Context, models.Symbol, models.Timeframe, time.Time, time.Time) ([]models.Candle, error) {
	return nil, nil
}

type captureEvents struct {
	trades chan models.Trade
	conns  chan bool
}

func (e *captureEvents) OnTrade(t models.Trade)                  { e.trades <- t }
func (e *captureEvents) OnConnectionChange(_ models.Venue, c bool) { e.conns <- c }
func (e *captureEvents) OnStatus(models.ConnStatus)              {}

func TestSupervisorStreamsAndDisconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"p":"100.5","q":"0.25","t":1700000000000}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"p":"101.5","q":"0.50","t":1700000001000}`))
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	a := NewAdapter(&wsClient{url: wsURL}, DefaultTimings(), log, nopMetrics{})

	ev := &captureEvents{
		trades: make(chan models.Trade, 16),
		conns:  make(chan bool, 16),
	}
	if err := a.Connect(context.Background(), models.BTCUSDT, ev); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitBool := func(want bool) {
		t.Helper()
		select {
		case got := <-ev.conns:
			if got != want {
				t.Fatalf("connection change %v, want %v", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for connection=%v", want)
		}
	}

	waitBool(true)
	for i := 0; i < 2; i++ {
		select {
		case tr := <-ev.trades:
			if tr.Price <= 0 {
				t.Fatalf("bad trade %+v", tr)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for trade %d", i)
		}
	}

	if err := a.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	waitBool(false)

	// idempotent
	if err := a.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
}

func TestConnectTwiceRejected(t *testing.T) {
	log, _ := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	a := NewAdapter(&wsClient{url: "ws://127.0.0.1:1"}, DefaultTimings(), log, nopMetrics{})

	ev := &captureEvents{trades: make(chan models.Trade, 1), conns: make(chan bool, 1)}
	if err := a.Connect(context.Background(), models.BTCUSDT, ev); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer a.Disconnect()

	if err := a.Connect(context.Background(), models.BTCUSDT, ev); err == nil {
		t.Fatalf("second connect must fail while running")
	}
}
