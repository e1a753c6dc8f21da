package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// VenueConfig holds one exchange's endpoints.
type VenueConfig struct {
	WebSocketURL string `yaml:"websocket_url"`
	RESTURL      string `yaml:"rest_url"`
}

type Config struct {
	Environment string `yaml:"environment" default:"production"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stderr"`
	} `yaml:"log"`

	// Ops is the scrape/health HTTP listener; the command surface is the
	// message port on stdio, not HTTP.
	Ops struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Port            int           `yaml:"port" default:"9180"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"ops"`

	Stream struct {
		PingInterval      time.Duration `yaml:"ping_interval" default:"15s"`
		InactivityTimeout time.Duration `yaml:"inactivity_timeout" default:"30s"`
		InactivityCheck   time.Duration `yaml:"inactivity_check" default:"5s"`
		StatusInterval    time.Duration `yaml:"status_interval" default:"1s"`
		BackoffBase       time.Duration `yaml:"backoff_base" default:"500ms"`
		BackoffCap        time.Duration `yaml:"backoff_cap" default:"30s"`
	} `yaml:"stream"`

	Aggregator struct {
		TickInterval time.Duration `yaml:"tick_interval" default:"250ms"`
		AmendGrace   time.Duration `yaml:"amend_grace" default:"2s"`
		MaxTradeAge  time.Duration `yaml:"max_trade_age" default:"168h"`
		QueueSize    int           `yaml:"queue_size" default:"65536"`
	} `yaml:"aggregator"`

	Venues map[string]VenueConfig `yaml:"venues"`

	// Sink optionally archives emitted aggregates downstream.
	Sink struct {
		Type string `yaml:"type" default:"none"` // none, kafka, clickhouse

		Kafka struct {
			Brokers      []string      `yaml:"brokers"`
			Topic        string        `yaml:"topic" default:"ticks.aggregated"`
			RequiredAcks int           `yaml:"required_acks" default:"-1"`
			Compression  string        `yaml:"compression" default:"gzip"`
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"250ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"true"`
		} `yaml:"kafka"`

		ClickHouse struct {
			Host         string        `yaml:"host"`
			Port         int           `yaml:"port" default:"9000"`
			Database     string        `yaml:"database" default:"tickfeed"`
			Table        string        `yaml:"table" default:"aggregates"`
			User         string        `yaml:"user" default:"default"`
			Password     string        `yaml:"password"`
			AsyncInsert  bool          `yaml:"async_insert" default:"true"`
			WaitForAsync bool          `yaml:"wait_for_async_insert"`
			DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"clickhouse"`
	} `yaml:"sink"`

	// Cache memoizes backfill responses.
	Cache struct {
		Backend string        `yaml:"backend" default:"memory"` // memory, redis
		TTL     time.Duration `yaml:"ttl" default:"5m"`
		MaxSize int           `yaml:"max_size" default:"256"`

		Redis struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"tickfeed"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Backfill struct {
		RequestTimeout time.Duration `yaml:"request_timeout" default:"30s"`
		PageDelay      time.Duration `yaml:"page_delay" default:"200ms"`
	} `yaml:"backfill"`
}

// Load reads and parses a YAML configuration file, applying struct
// defaults first so an empty file is a valid config.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	c.Venues = defaultVenues()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SINK"); v != "" {
		c.Sink.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Sink.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Sink.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.Sink.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Cache.Redis.Host = host
		if ok {
			if n, err := strconv.Atoi(port); err == nil {
				c.Cache.Redis.Port = n
			}
		}
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Sink.Type {
	case "none", "kafka", "clickhouse":
	default:
		return fmt.Errorf("sink.type must be 'none', 'kafka' or 'clickhouse', got %q", c.Sink.Type)
	}
	if c.Sink.Type == "kafka" && len(c.Sink.Kafka.Brokers) == 0 {
		return fmt.Errorf("sink.kafka.brokers required for kafka sink")
	}
	if c.Sink.Type == "clickhouse" && c.Sink.ClickHouse.Host == "" {
		return fmt.Errorf("sink.clickhouse.host required for clickhouse sink")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got %q", c.Cache.Backend)
	}
	for name, v := range c.Venues {
		if v.WebSocketURL == "" && v.RESTURL == "" {
			return fmt.Errorf("venue %s has no endpoints", name)
		}
	}
	return nil
}

// Venue returns the endpoint set for a venue name, falling back to the
// built-in production endpoints.
func (c *Config) Venue(name string) VenueConfig {
	if v, ok := c.Venues[name]; ok {
		return v
	}
	return defaultVenues()[name]
}

func defaultVenues() map[string]VenueConfig {
	return map[string]VenueConfig{
		"binance": {
			WebSocketURL: "wss://stream.binance.com:9443/ws",
			RESTURL:      "https://api.binance.com",
		},
		"okx": {
			WebSocketURL: "wss://ws.okx.com:8443/ws/v5/public",
			RESTURL:      "https://www.okx.com",
		},
		"bitget": {
			WebSocketURL: "wss://ws.bitget.com/v2/ws/public",
			RESTURL:      "https://api.bitget.com",
		},
		"coinbase": {
			WebSocketURL: "wss://ws-feed.exchange.coinbase.com",
			RESTURL:      "https://api.exchange.coinbase.com",
		},
		"bitstamp": {
			WebSocketURL: "wss://ws.bitstamp.net",
			RESTURL:      "https://www.bitstamp.net",
		},
		"kraken": {
			WebSocketURL: "wss://ws.kraken.com",
			RESTURL:      "https://api.kraken.com",
		},
		"bitvavo": {
			WebSocketURL: "wss://ws.bitvavo.com/v2/",
			RESTURL:      "https://api.bitvavo.com",
		},
	}
}
