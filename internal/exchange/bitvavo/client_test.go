package bitvavo

import (
	"testing"

	"TickFeed/internal/domain/models"
)

func TestParseTradeMs(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	msg := []byte(`{"event":"trade","timestamp":1542967486256,"market":"BTC-EUR","id":"abc","amount":"0.005","price":"5012","side":"sell"}`)
	trades := c.ParseMessage(models.BTCEUR, msg)
	if len(trades) != 1 {
		t.Fatalf("expected 1, got %d", len(trades))
	}
	if trades[0].Timestamp != 1542967486256*int64(1e6) {
		t.Fatalf("ms promotion: %d", trades[0].Timestamp)
	}
	if trades[0].Price.String() != "5012.00000000" {
		t.Fatalf("price %s", trades[0].Price)
	}
}

func TestParseTradeNs(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	msg := []byte(`{"event":"trade","timestamp":1542967486256000000,"market":"BTC-EUR","amount":"1","price":"5012"}`)
	trades := c.ParseMessage(models.BTCEUR, msg)
	if len(trades) != 1 {
		t.Fatalf("expected 1, got %d", len(trades))
	}
	if trades[0].Timestamp != 1542967486256000000 {
		t.Fatalf("ns passthrough: %d", trades[0].Timestamp)
	}
}

func TestParseDropsControlFrames(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	for _, msg := range []string{
		`{"event":"subscribed","subscriptions":{"trades":["BTC-EUR"]}}`,
		`{"event":"book","market":"BTC-EUR"}`,
		`junk`,
	} {
		if got := c.ParseMessage(models.BTCEUR, []byte(msg)); got != nil {
			t.Fatalf("expected drop for %s", msg)
		}
	}
}
