package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/domain/repository"
	"TickFeed/internal/exchange"
	"TickFeed/internal/exchange/binance"
	"TickFeed/internal/exchange/bitget"
	"TickFeed/internal/exchange/bitstamp"
	"TickFeed/internal/exchange/bitvavo"
	"TickFeed/internal/exchange/coinbase"
	"TickFeed/internal/exchange/kraken"
	"TickFeed/internal/exchange/okx"
	"TickFeed/internal/port"
	internalrepo "TickFeed/internal/repository"
	"TickFeed/internal/usecase"
	"TickFeed/pkg/cache"
	pkgch "TickFeed/pkg/clickhouse"
	"TickFeed/pkg/config"
	xhttp "TickFeed/pkg/http"
	pkgkafka "TickFeed/pkg/kafka"
	"TickFeed/pkg/logger"
	"TickFeed/pkg/metrics"
	"TickFeed/pkg/server"
)

// ExchangeFactory builds one supervised venue adapter.
type ExchangeFactory func(models.Venue) (repository.Exchange, error)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHTTPClient creates the REST client shared by the venue
// fetchers.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Backfill.RequestTimeout))
}

// ProvidePort frames the command boundary over stdio.
func ProvidePort() *port.Port {
	return port.New(os.Stdin, os.Stdout)
}

// ProvideExchangeFactory builds venue adapters on demand, wrapping each
// venue client in the shared supervisor.
func ProvideExchangeFactory(cfg *config.Config, hc *xhttp.Client, log *logger.Logger, m repository.Metrics) ExchangeFactory {
	timings := exchange.Timings{
		PingInterval:      cfg.Stream.PingInterval,
		InactivityTimeout: cfg.Stream.InactivityTimeout,
		InactivityCheck:   cfg.Stream.InactivityCheck,
		StatusInterval:    cfg.Stream.StatusInterval,
		BackoffBase:       cfg.Stream.BackoffBase,
		BackoffCap:        cfg.Stream.BackoffCap,
	}

	return func(venue models.Venue) (repository.Exchange, error) {
		ep := cfg.Venue(string(venue))

		var client exchange.Client
		switch venue {
		case models.VenueBinance:
			client = binance.New(ep.WebSocketURL, ep.RESTURL, hc, cfg.Backfill.PageDelay)
		case models.VenueOKX:
			client = okx.New(ep.WebSocketURL, ep.RESTURL, hc)
		case models.VenueBitget:
			client = bitget.New(ep.WebSocketURL, ep.RESTURL, hc)
		case models.VenueCoinbase:
			client = coinbase.New(ep.WebSocketURL, ep.RESTURL, hc)
		case models.VenueBitstamp:
			client = bitstamp.New(ep.WebSocketURL, ep.RESTURL, hc)
		case models.VenueKraken:
			client = kraken.New(ep.WebSocketURL, ep.RESTURL, hc)
		case models.VenueBitvavo:
			client = bitvavo.New(ep.WebSocketURL, ep.RESTURL, hc)
		default:
			return nil, fmt.Errorf("unknown venue %q", venue)
		}
		return exchange.NewAdapter(client, timings, log, m), nil
	}
}

// CacheBundle carries the backfill cache and its closable backend.
type CacheBundle struct {
	Cache repository.CandleCache
	Svc   cache.Service
}

// ProvideCandleCache builds the configured backfill cache backend.
func ProvideCandleCache(cfg *config.Config) (*CacheBundle, error) {
	var svc cache.Service
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(
			cache.WithAddr(cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
			cache.WithAuth(cfg.Cache.Redis.Password, cfg.Cache.Redis.DB),
			cache.WithPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("candle cache: %w", err)
		}
		svc = rc
	default:
		svc = cache.NewMemoryCache(cache.WithMaxSize(cfg.Cache.MaxSize))
	}
	return &CacheBundle{
		Cache: internalrepo.NewCandleCache(svc, cfg.Cache.TTL),
		Svc:   svc,
	}, nil
}

// SinkBundle carries the aggregate sink and the ClickHouse pool when one
// backs it.
type SinkBundle struct {
	Sink repository.AggregateSink
	CH   *pkgch.Client
}

// ProvideAggregateSink builds the configured downstream sink; type
// "none" yields an empty bundle.
func ProvideAggregateSink(cfg *config.Config) (*SinkBundle, error) {
	switch cfg.Sink.Type {
	case "kafka":
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Sink.Kafka.Brokers),
			pkgkafka.WithRequiredAcks(cfg.Sink.Kafka.RequiredAcks),
			pkgkafka.WithCompression(cfg.Sink.Kafka.Compression),
			pkgkafka.WithMaxAttempts(cfg.Sink.Kafka.MaxAttempts),
			pkgkafka.WithBatchTimeout(cfg.Sink.Kafka.BatchTimeout),
			pkgkafka.WithWriteTimeout(cfg.Sink.Kafka.WriteTimeout),
			pkgkafka.WithAsync(cfg.Sink.Kafka.Async),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		return &SinkBundle{Sink: internalrepo.NewKafkaAggregateSink(producer, cfg.Sink.Kafka.Topic)}, nil

	case "clickhouse":
		ch := cfg.Sink.ClickHouse
		client, err := pkgch.NewClient(
			pkgch.WithHost(ch.Host),
			pkgch.WithPort(ch.Port),
			pkgch.WithDatabase(ch.Database),
			pkgch.WithCredentials(ch.User, ch.Password),
			pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
			pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse sink: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.SchemaFor(ch.Database, ch.Table)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		sink := internalrepo.NewClickHouseAggregateSink(client.DB(), ch.Database+"."+ch.Table)
		return &SinkBundle{Sink: sink, CH: client}, nil

	default:
		return &SinkBundle{}, nil
	}
}

// ProvideBackfiller creates the backfill planner.
func ProvideBackfiller(factory ExchangeFactory, cb *CacheBundle, log *logger.Logger) *usecase.Backfiller {
	return usecase.NewBackfiller(factory, cb.Cache, log)
}

// ProvideController creates the command controller, emitting events
// through the port.
func ProvideController(
	cfg *config.Config,
	factory ExchangeFactory,
	bf *usecase.Backfiller,
	sb *SinkBundle,
	p *port.Port,
	log *logger.Logger,
	m repository.Metrics,
) *usecase.Controller {
	aggCfg := usecase.AggregatorConfig{
		TickInterval: cfg.Aggregator.TickInterval,
		AmendGrace:   cfg.Aggregator.AmendGrace,
		MaxTradeAge:  cfg.Aggregator.MaxTradeAge,
		QueueSize:    cfg.Aggregator.QueueSize,
	}
	emit := func(ev port.Event) {
		if err := p.WriteEvent(ev); err != nil {
			log.Warn("event write failed", logger.String("type", ev.Type), logger.Error(err))
		}
	}
	return usecase.NewController(factory, bf, sb.Sink, aggCfg, emit, log, m)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	p *port.Port,
	ctrl *usecase.Controller,
	sb *SinkBundle,
	cb *CacheBundle,
) *server.App {
	return server.New(cfg, log, p, ctrl, sb.Sink, sb.CH, cb.Svc)
}
