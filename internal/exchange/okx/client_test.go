package okx

import (
	"encoding/json"
	"testing"

	"TickFeed/internal/domain/models"
)

func TestSubscribeFrame(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	frames, err := c.SubscribeFrames(models.BTCUSDT)
	if err != nil || len(frames) != 1 {
		t.Fatalf("frames=%d err=%v", len(frames), err)
	}
	var f struct {
		Op   string `json:"op"`
		Args []struct {
			Channel string `json:"channel"`
			InstID  string `json:"instId"`
		} `json:"args"`
	}
	if err := json.Unmarshal(frames[0], &f); err != nil {
		t.Fatalf("frame not json: %v", err)
	}
	if f.Op != "subscribe" || f.Args[0].Channel != "trades" || f.Args[0].InstID != "BTC-USDT" {
		t.Fatalf("frame %s", frames[0])
	}
}

func TestParseTrades(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	msg := []byte(`{"arg":{"channel":"trades","instId":"BTC-USDT"},"data":[{"instId":"BTC-USDT","tradeId":"1","px":"42219.9","sz":"0.12060306","side":"buy","ts":"1629386781174"}]}`)
	trades := c.ParseMessage(models.BTCUSDT, msg)
	if len(trades) != 1 {
		t.Fatalf("expected 1, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Price.String() != "42219.90000000" || tr.Size.String() != "0.12060306" {
		t.Fatalf("parsed %+v", tr)
	}
	if tr.Timestamp != 1629386781174*int64(1e6) {
		t.Fatalf("timestamp %d", tr.Timestamp)
	}
}

func TestParseDropsAcks(t *testing.T) {
	c := New("wss://x", "https://x", nil)
	for _, msg := range []string{
		`{"event":"subscribe","arg":{"channel":"trades","instId":"BTC-USDT"}}`,
		`{"event":"error","code":"60012","msg":"Invalid request"}`,
		`pong`,
	} {
		if got := c.ParseMessage(models.BTCUSDT, []byte(msg)); got != nil {
			t.Fatalf("expected drop for %s", msg)
		}
	}
}
