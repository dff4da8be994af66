package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouse sink defaults.
const (
	DefaultBatchSize     = 500
	DefaultFlushInterval = 2 * time.Second
	DefaultTable         = "pm_samples"
)

// ClickHouseSink inserts samples into a MergeTree table in batches.
// Write only queues; a background loop sends the batches.
type ClickHouseSink struct {
	conn  driver.Conn
	table string
	batch *batcher
}

// NewClickHouseSink connects to ClickHouse, creates the sample table and
// starts the batch loop.
func NewClickHouseSink(ctx context.Context, cfg ClickHouseConfig, logger *slog.Logger) (*ClickHouseSink, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.applyDefaults()

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	s := &ClickHouseSink{conn: conn, table: cfg.Table}
	if err := s.createTable(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	s.batch = newBatcher(cfg.BatchSize, cfg.FlushInterval, logger.With("sink", s.Name()), s.insert)
	return s, nil
}

func (s *ClickHouseSink) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		timestamp DateTime64(3),
		node UInt8,
		pm UInt8,
		pm_group UInt8,
		voltage Float64,
		current Float64,
		power Float64,
		temperature UInt8,
		state UInt32,
		vendor LowCardinality(String),
		flags Array(String),
		fault Bool,
		interlink LowCardinality(String)
	) ENGINE = MergeTree()
	ORDER BY (node, pm, timestamp)
	TTL toDateTime(timestamp) + INTERVAL 90 DAY`, s.table)

	if err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Name returns "clickhouse".
func (s *ClickHouseSink) Name() string { return "clickhouse" }

// Write queues the samples. It fails only when samples were dropped
// because the queue is full.
func (s *ClickHouseSink) Write(_ context.Context, samples []Sample) error {
	if n := s.batch.enqueue(samples); n > 0 {
		return fmt.Errorf("queue full, dropped %d samples", n)
	}
	return nil
}

func (s *ClickHouseSink) insert(ctx context.Context, samples []Sample) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, sm := range samples {
		flags := sm.Flags
		if flags == nil {
			flags = []string{}
		}
		err := batch.Append(
			sm.Time,
			sm.Node,
			uint8(sm.PM),
			uint8(sm.Group),
			sm.Output.Volts(),
			sm.Output.Amps(),
			sm.Watts(),
			sm.Temperature,
			sm.State,
			sm.Vendor,
			flags,
			sm.Fault,
			sm.Interlink.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to append sample: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Close flushes the queue and closes the connection.
func (s *ClickHouseSink) Close() error {
	s.batch.stop()
	return s.conn.Close()
}
