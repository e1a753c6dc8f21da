package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"TickFeed/internal/domain/models"
	xhttp "TickFeed/pkg/http"
)

func TestParseTradeMessage(t *testing.T) {
	c := New("wss://x", "https://x", nil, 0)
	msg := []byte(`{"e":"trade","E":1672515782136,"s":"BTCUSDT","t":12345,"p":"26300.10","q":"0.00500000","T":1672515782136,"m":true}`)

	trades := c.ParseMessage(models.BTCUSDT, msg)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Venue != models.VenueBinance || tr.Symbol != models.BTCUSDT {
		t.Fatalf("identity wrong: %+v", tr)
	}
	if tr.Price.String() != "26300.10000000" {
		t.Fatalf("price %s", tr.Price)
	}
	if tr.Size.String() != "0.00500000" {
		t.Fatalf("size %s", tr.Size)
	}
	if tr.Timestamp != 1672515782136*int64(1e6) {
		t.Fatalf("timestamp %d", tr.Timestamp)
	}
}

func TestParseIgnoresNonTradeFrames(t *testing.T) {
	c := New("wss://x", "https://x", nil, 0)
	for _, msg := range []string{
		`{"e":"aggTrade","p":"1","q":"1","T":1}`,
		`{"result":null,"id":1}`,
		`garbage`,
		`{"e":"trade","p":"-5","q":"1","T":1672515782136}`,
		`{"e":"trade","p":"0","q":"1","T":1672515782136}`,
	} {
		if got := c.ParseMessage(models.BTCUSDT, []byte(msg)); got != nil {
			t.Fatalf("expected drop for %s, got %+v", msg, got)
		}
	}
}

func TestDialURL(t *testing.T) {
	c := New("wss://stream.binance.com:9443/ws", "https://x", nil, 0)
	u, err := c.DialURL(models.BTCUSDT)
	if err != nil {
		t.Fatalf("dial url: %v", err)
	}
	if u != "wss://stream.binance.com:9443/ws/btcusdt@trade" {
		t.Fatalf("url %s", u)
	}
	if _, err := c.DialURL(models.BTCEUR); err == nil {
		t.Fatalf("binance does not list BTC/EUR")
	}
}

func TestFetchCandlesPaginates(t *testing.T) {
	const startMs = int64(1700000040000)
	var requests []int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("path %s", r.URL.Path)
		}
		if iv := r.URL.Query().Get("interval"); iv != "1m" {
			t.Errorf("interval %s", iv)
		}
		cursor, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		requests = append(requests, cursor)

		// first page full (forces pagination), second page short
		n := 1000
		if len(requests) > 1 {
			n = 3
		}
		rows := make([][]interface{}, 0, n)
		for i := 0; i < n; i++ {
			openMs := cursor + int64(i)*60000
			rows = append(rows, []interface{}{openMs, "100.1", "101.2", "99.3", "100.9", "12.5", openMs + 59999})
		}
		json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	c := New("wss://x", srv.URL, xhttp.NewClient(), time.Millisecond)
	end := time.UnixMilli(startMs + 2000*60000)
	candles, err := c.FetchCandles(context.Background(), models.BTCUSDT, models.TF1m,
		time.UnixMilli(startMs), end)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(requests))
	}
	wantCursor := startMs + 999*60000 + 1
	if requests[1] != wantCursor {
		t.Fatalf("second cursor %d, want last open + 1 = %d", requests[1], wantCursor)
	}
	if len(candles) != 1003 {
		t.Fatalf("candles %d", len(candles))
	}
	if candles[0].OpenTime != startMs/1000 {
		t.Fatalf("first open %d", candles[0].OpenTime)
	}
	if candles[0].High.String() != "101.20000000" {
		t.Fatalf("high %s", candles[0].High)
	}
}
