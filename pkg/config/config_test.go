package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Aggregator.TickInterval != 250*time.Millisecond {
		t.Fatalf("tick interval %v", c.Aggregator.TickInterval)
	}
	if c.Stream.InactivityTimeout != 30*time.Second {
		t.Fatalf("inactivity %v", c.Stream.InactivityTimeout)
	}
	if c.Sink.Type != "none" || c.Cache.Backend != "memory" {
		t.Fatalf("sink %q cache %q", c.Sink.Type, c.Cache.Backend)
	}
	if v := c.Venue("kraken"); v.RESTURL == "" || v.WebSocketURL == "" {
		t.Fatalf("kraken endpoints missing: %+v", v)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("aggregator:\n  queue_size: 128\nvenues:\n  binance:\n    websocket_url: wss://test.local/ws\n    rest_url: https://test.local\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Aggregator.QueueSize != 128 {
		t.Fatalf("queue size %d", c.Aggregator.QueueSize)
	}
	if c.Venue("binance").WebSocketURL != "wss://test.local/ws" {
		t.Fatalf("venue override lost: %+v", c.Venue("binance"))
	}
	// untouched venues keep their built-in endpoints
	if c.Venue("okx").RESTURL == "" {
		t.Fatalf("okx default endpoint lost")
	}
}

func TestValidateRejectsBadSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("sink:\n  type: carrier-pigeon\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidateKafkaNeedsBrokers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("sink:\n  type: kafka\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("kafka sink without brokers must fail validation")
	}
}
