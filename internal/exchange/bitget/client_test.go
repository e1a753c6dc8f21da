package bitget

import (
	"testing"

	"TickFeed/internal/domain/models"
)

func TestParseObjectRows(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	msg := []byte(`{"action":"snapshot","arg":{"instType":"SPOT","channel":"trade","instId":"BTCUSDT"},"data":[{"p":"26301.55","q":"0.1","t":1695716760984}]}`)
	trades := c.ParseMessage(models.BTCUSDT, msg)
	if len(trades) != 1 {
		t.Fatalf("expected 1, got %d", len(trades))
	}
	if trades[0].Price.String() != "26301.55000000" {
		t.Fatalf("price %s", trades[0].Price)
	}
	if trades[0].Timestamp != 1695716760984*int64(1e6) {
		t.Fatalf("timestamp %d", trades[0].Timestamp)
	}
}

func TestParseArrayRows(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	msg := []byte(`{"action":"update","arg":{"instType":"SPOT","channel":"trade","instId":"BTCUSDT"},"data":[["26301.55","0.1","1695716760984"],["26302.00","0.2","1695716761000"]]}`)
	trades := c.ParseMessage(models.BTCUSDT, msg)
	if len(trades) != 2 {
		t.Fatalf("expected 2, got %d", len(trades))
	}
	if trades[1].Size.String() != "0.20000000" {
		t.Fatalf("size %s", trades[1].Size)
	}
}

func TestParseDropsControlFrames(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	for _, msg := range []string{
		`{"event":"subscribe","arg":{"instType":"SPOT","channel":"trade","instId":"BTCUSDT"}}`,
		`pong`,
		`{"action":"snapshot","data":[]}`,
		`{"action":"snapshot","data":[{"p":"0","q":"1","t":1695716760984}]}`,
	} {
		if got := c.ParseMessage(models.BTCUSDT, []byte(msg)); got != nil {
			t.Fatalf("expected drop for %s", msg)
		}
	}
}
