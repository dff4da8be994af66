package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/powerbridge/pwb-go/pkg/bridge"
)

// DefaultInterval is the poll interval of a Monitor.
const DefaultInterval = 5 * time.Second

// Sink stores samples.
type Sink interface {
	Name() string
	Write(ctx context.Context, samples []Sample) error
	Close() error
}

// Source provides bridge snapshots. *bridge.Bridge implements it.
type Source interface {
	Snapshot(ctx context.Context) (*bridge.Snapshot, error)
}

// MonitorStats counts polls and sink failures.
type MonitorStats struct {
	Polls       uint64
	PollErrors  uint64
	Samples     uint64
	SinkErrors  uint64
	LastPoll    time.Time
	LastPollErr error
}

// Monitor polls a Source and writes the samples to sinks.
type Monitor struct {
	source   Source
	sinks    []Sink
	interval time.Duration
	logger   *slog.Logger
	onSample func([]Sample)

	mu    sync.Mutex
	stats MonitorStats
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithSink adds a sink.
func WithSink(s Sink) MonitorOption {
	return func(m *Monitor) { m.sinks = append(m.sinks, s) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

// WithSampleHandler sets a function called with the samples of every
// successful poll.
func WithSampleHandler(fn func([]Sample)) MonitorOption {
	return func(m *Monitor) { m.onSample = fn }
}

// NewMonitor creates a Monitor for source.
func NewMonitor(source Source, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		source:   source,
		interval: DefaultInterval,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run polls until ctx is done, then closes the sinks.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, err := m.Poll(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return m.Close()
		case <-ticker.C:
		}
	}
}

// Poll reads one snapshot and writes its samples to every sink. Sink
// failures are logged and counted, they do not fail the poll.
func (m *Monitor) Poll(ctx context.Context) ([]Sample, error) {
	snap, err := m.source.Snapshot(ctx)
	m.mu.Lock()
	m.stats.Polls++
	m.stats.LastPoll = time.Now()
	m.stats.LastPollErr = err
	if err != nil {
		m.stats.PollErrors++
	}
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	samples := Samples(snap)
	for _, s := range m.sinks {
		if err := s.Write(ctx, samples); err != nil {
			m.mu.Lock()
			m.stats.SinkErrors++
			m.mu.Unlock()
			m.logger.Warn("sink write failed", "sink", s.Name(), "samples", len(samples), "error", err)
		}
	}

	m.mu.Lock()
	m.stats.Samples += uint64(len(samples))
	m.mu.Unlock()
	if m.onSample != nil {
		m.onSample(samples)
	}
	return samples, nil
}

// Stats returns a copy of the counters.
func (m *Monitor) Stats() MonitorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Close closes every sink.
func (m *Monitor) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
