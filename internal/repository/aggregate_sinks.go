// Package repository provides the infrastructure-backed implementations
// of the domain interfaces: downstream aggregate sinks and the backfill
// candle cache.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/domain/repository"
	"TickFeed/pkg/fixed"
	pkgkafka "TickFeed/pkg/kafka"
)

// KafkaAggregateSink publishes emitted aggregates to a Kafka topic,
// keyed by symbol so one pair stays in partition order.
type KafkaAggregateSink struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAggregateSink creates the Kafka-backed sink.
func NewKafkaAggregateSink(producer *pkgkafka.Producer, topic string) repository.AggregateSink {
	return &KafkaAggregateSink{producer: producer, topic: topic}
}

func (s *KafkaAggregateSink) Publish(ctx context.Context, p models.AggregatedPoint) error {
	return s.producer.Publish(ctx, s.topic, []byte(p.Symbol), p)
}

func (s *KafkaAggregateSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// ClickHouseAggregateSink archives emitted aggregates into a MergeTree
// table.
type ClickHouseAggregateSink struct {
	db    *sql.DB
	table string
}

// NewClickHouseAggregateSink creates the ClickHouse-backed sink. The
// table is expected to exist; see SchemaFor.
func NewClickHouseAggregateSink(db *sql.DB, table string) repository.AggregateSink {
	return &ClickHouseAggregateSink{db: db, table: table}
}

// SchemaFor returns the idempotent DDL for the archive table.
func SchemaFor(database, table string) []string {
	full := database + "." + table
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + database,
		"CREATE TABLE IF NOT EXISTS " + full + ` (
			symbol String,
			timeframe String,
			bucket DateTime,
			vwap Float64,
			volume Float64,
			last_price Float64,
			amend UInt8
		) ENGINE = MergeTree ORDER BY (symbol, timeframe, bucket)`,
	}
}

func (s *ClickHouseAggregateSink) Publish(ctx context.Context, p models.AggregatedPoint) error {
	q := fmt.Sprintf("INSERT INTO %s (symbol, timeframe, bucket, vwap, volume, last_price, amend) VALUES (?, ?, ?, ?, ?, ?, ?)", s.table)
	amend := uint8(0)
	if p.Amend {
		amend = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		string(p.Symbol),
		string(p.Timeframe),
		time.Unix(p.Timestamp, 0).UTC(),
		float64(p.VWAP)/fixed.Scale,
		float64(p.Volume)/fixed.Scale,
		float64(p.LastPrice)/fixed.Scale,
		amend,
	)
	return err
}

func (s *ClickHouseAggregateSink) Close() error {
	return nil // pool is owned by pkg/clickhouse.Client
}
