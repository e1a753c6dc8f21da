package kraken

import (
	"testing"

	"TickFeed/internal/domain/models"
)

func TestParseTradeArray(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	msg := []byte(`[337,[["5541.20000","0.15850568","1534614057.321597","s","l",""],["6060.00000","0.02455000","1534614057.324998","b","l",""]],"trade","XBT/USD"]`)
	trades := c.ParseMessage(models.BTCUSD, msg)
	if len(trades) != 2 {
		t.Fatalf("expected 2, got %d", len(trades))
	}
	if trades[0].Price.String() != "5541.20000000" {
		t.Fatalf("price %s", trades[0].Price)
	}
	want := int64(1534614057)*1e9 + 321597000
	if trades[0].Timestamp != want {
		t.Fatalf("timestamp %d, want %d", trades[0].Timestamp, want)
	}
}

func TestParseDropsControlFrames(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	for _, msg := range []string{
		`{"event":"heartbeat"}`,
		`{"event":"subscriptionStatus","status":"subscribed","pair":"XBT/USD","channelID":337}`,
		`{"event":"systemStatus","status":"online"}`,
		`[337,[["5541.20000","0.1","1534614057.3"]],"spread","XBT/USD"]`,
	} {
		if got := c.ParseMessage(models.BTCUSD, []byte(msg)); got != nil {
			t.Fatalf("expected drop for %s", msg)
		}
	}
}
