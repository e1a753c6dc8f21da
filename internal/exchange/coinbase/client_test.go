package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TickFeed/internal/domain/models"
	xhttp "TickFeed/pkg/http"
)

func TestParseMatch(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	msg := []byte(`{"type":"match","trade_id":10,"sequence":50,"time":"2024-11-07T08:19:27.028459Z","product_id":"BTC-USD","size":"5.23512","price":"400.23","side":"sell"}`)
	trades := c.ParseMessage(models.BTCUSD, msg)
	if len(trades) != 1 {
		t.Fatalf("expected 1, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Price.String() != "400.23000000" || tr.Size.String() != "5.23512000" {
		t.Fatalf("parsed %+v", tr)
	}
	if tr.Timestamp%int64(1e9) != 28459000 {
		t.Fatalf("sub-second precision lost: %d", tr.Timestamp)
	}
}

func TestParseDropsNonMatches(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	for _, msg := range []string{
		`{"type":"subscriptions","channels":[{"name":"matches","product_ids":["BTC-USD"]}]}`,
		`{"type":"last_match","price":"400.23","size":"1","time":"2024-11-07T08:19:27Z"}`,
		`{"type":"heartbeat","sequence":90}`,
		`{"type":"match","price":"bogus","size":"1","time":"2024-11-07T08:19:27Z"}`,
	} {
		if got := c.ParseMessage(models.BTCUSD, []byte(msg)); got != nil {
			t.Fatalf("expected drop for %s", msg)
		}
	}
}

func TestFetchCandlesUpAggregatesNonNativeTimeframe(t *testing.T) {
	const t0 = int64(1700000100)
	start := t0 - t0%1800 // two full 30m buckets of minute rows
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/BTC-USD/candles" {
			t.Errorf("path %s", r.URL.Path)
		}
		if g := r.URL.Query().Get("granularity"); g != "60" {
			t.Errorf("granularity %s, want 60 for non-native timeframe", g)
		}
		// 60 one-minute rows, newest first: [time, low, high, open, close, volume]
		rows := make([][]interface{}, 0, 60)
		for i := 59; i >= 0; i-- {
			ts := start + int64(i)*60
			rows = append(rows, []interface{}{ts, 99.5, 101.5, 100.0 + float64(i)*0.01, 100.5, 1.0})
		}
		json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	c := New("wss://x", srv.URL, xhttp.NewClient())
	candles, err := c.FetchCandles(context.Background(), models.BTCUSD, models.TF30m,
		time.Unix(start, 0), time.Unix(start+3599, 0))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 up-aggregated candles, got %d", len(candles))
	}
	for i, candle := range candles {
		if candle.Timeframe != models.TF30m {
			t.Fatalf("candle %d labelled %s", i, candle.Timeframe)
		}
	}
	first := candles[0]
	if first.OpenTime != start || candles[1].OpenTime != start+1800 {
		t.Fatalf("bucket opens %d %d", first.OpenTime, candles[1].OpenTime)
	}
	if first.Open.String() != "100.00000000" {
		t.Fatalf("open of first minute row expected, got %s", first.Open)
	}
	if first.Volume.String() != "30.00000000" {
		t.Fatalf("volume should sum 30 minutes, got %s", first.Volume)
	}
	if first.High.String() != "101.50000000" || first.Low.String() != "99.50000000" {
		t.Fatalf("extrema %s %s", first.High, first.Low)
	}
}

func TestFetchCandlesNativeGranularityDirect(t *testing.T) {
	var gotGranularity string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGranularity = r.URL.Query().Get("granularity")
		fmt.Fprint(w, `[[1700000100,99.5,101.5,100.0,100.5,2.5]]`)
	}))
	defer srv.Close()

	c := New("wss://x", srv.URL, xhttp.NewClient())
	candles, err := c.FetchCandles(context.Background(), models.BTCUSD, models.TF1h,
		time.Unix(1700000100, 0), time.Unix(1700003600, 0))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotGranularity != "3600" {
		t.Fatalf("granularity %s", gotGranularity)
	}
	if len(candles) != 1 || candles[0].Timeframe != models.TF1h {
		t.Fatalf("candles %+v", candles)
	}
	if candles[0].Volume.String() != "2.50000000" {
		t.Fatalf("volume %s", candles[0].Volume)
	}
}
