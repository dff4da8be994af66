package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/powerbridge/pwb-go/pkg/bridge"
	"github.com/powerbridge/pwb-go/pkg/interaction"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/simulator"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

type recordingSink struct {
	name string
	err  error

	mu      sync.Mutex
	batches [][]Sample
	closed  bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, samples []Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, samples)
	return s.err
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

type failingSource struct{}

func (failingSource) Snapshot(context.Context) (*bridge.Snapshot, error) {
	return nil, errors.New("gateway down")
}

func newSimSource(t *testing.T) (*simulator.Simulator, *bridge.Bridge) {
	t.Helper()
	cfg := simulator.DefaultConfig()
	cfg.Modules[1] = simulator.ModuleConfig{Voltage: 500, Current: 20, Temperature: 40}
	sim, err := simulator.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sim.Close() })
	client := interaction.NewLoopback(interaction.NewServer(sim), od.Bridge())
	return sim, bridge.New(client, sim.Node())
}

func TestPollSamplesEveryModule(t *testing.T) {
	sim, b := newSimSource(t)
	require.NoError(t, sim.SetModuleState(3, wire.PMState{Temperature: 70, State: [3]byte{0, 0x02, 0}}))

	sink := &recordingSink{name: "rec"}
	m := NewMonitor(b, WithSink(sink))

	samples, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 4)

	pm2 := samples[1]
	assert.Equal(t, 2, pm2.PM)
	assert.Equal(t, sim.Node(), pm2.Node)
	assert.Equal(t, wire.NewVI(500, 20), pm2.Output)
	assert.InDelta(t, 10000.0, pm2.Watts(), 0.001)
	assert.Equal(t, uint8(40), pm2.Temperature)
	assert.False(t, pm2.Fault)
	assert.Equal(t, wire.VendorInfy.String(), pm2.Vendor)

	pm3 := samples[2]
	assert.True(t, pm3.Fault)
	assert.NotEmpty(t, pm3.Flags)
	assert.Equal(t, uint32(0x0200), pm3.State)

	require.Equal(t, 1, sink.count())
	assert.Equal(t, samples, sink.batches[0])

	st := m.Stats()
	assert.Equal(t, uint64(1), st.Polls)
	assert.Equal(t, uint64(4), st.Samples)
}

func TestPollContinuesAfterSinkFailure(t *testing.T) {
	_, b := newSimSource(t)
	bad := &recordingSink{name: "bad", err: errors.New("disk full")}
	good := &recordingSink{name: "good"}

	var handled int
	m := NewMonitor(b, WithSink(bad), WithSink(good), WithSampleHandler(func(s []Sample) { handled += len(s) }))

	_, err := m.Poll(context.Background())
	require.NoError(t, err)
	_, err = m.Poll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, bad.count())
	assert.Equal(t, 2, good.count())
	assert.Equal(t, 8, handled)
	assert.Equal(t, uint64(2), m.Stats().SinkErrors)
}

func TestPollSourceError(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	m := NewMonitor(failingSource{}, WithSink(sink))

	_, err := m.Poll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway down")
	assert.Zero(t, sink.count())

	st := m.Stats()
	assert.Equal(t, uint64(1), st.PollErrors)
	assert.Error(t, st.LastPollErr)
}

func TestRunClosesSinks(t *testing.T) {
	_, b := newSimSource(t)
	sink := &recordingSink{name: "rec"}
	m := NewMonitor(b, WithSink(sink), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.Eventually(t, func() bool { return sink.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	sink.mu.Lock()
	assert.True(t, sink.closed)
	sink.mu.Unlock()
}

type mockPointWriter struct {
	mock.Mock
}

func (m *mockPointWriter) WritePoints(ctx context.Context, points []*influxdb3.Point, options ...influxdb3.WriteOption) error {
	return m.Called(ctx, points).Error(0)
}

func (m *mockPointWriter) Close() error {
	return m.Called().Error(0)
}

func TestInfluxSinkWritesOnePointPerSample(t *testing.T) {
	w := &mockPointWriter{}
	w.On("WritePoints", mock.Anything, mock.MatchedBy(func(p []*influxdb3.Point) bool { return len(p) == 2 })).
		Return(nil).Once()
	w.On("WritePoints", mock.Anything, mock.Anything).Return(errors.New("unauthorized")).Once()
	w.On("Close").Return(nil)

	sink := &InfluxSink{client: w}
	samples := []Sample{
		{Time: time.Now(), Node: 1, PM: 1, Output: wire.NewVI(400, 10)},
		{Time: time.Now(), Node: 1, PM: 2, Vendor: "InfyPower", Flags: []string{"a", "b"}},
	}

	require.NoError(t, sink.Write(context.Background(), samples))
	err := sink.Write(context.Background(), samples[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")

	// Empty batches do not reach the client.
	require.NoError(t, sink.Write(context.Background(), nil))
	require.NoError(t, sink.Close())
	w.AssertExpectations(t)
}

func TestBatcherFlushesOnSize(t *testing.T) {
	var mu sync.Mutex
	var got [][]Sample
	b := newBatcher(3, time.Hour, slog.New(slog.DiscardHandler), func(_ context.Context, batch []Sample) error {
		mu.Lock()
		got = append(got, append([]Sample(nil), batch...))
		mu.Unlock()
		return nil
	})

	assert.Zero(t, b.enqueue(make([]Sample, 7)))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, time.Millisecond)

	b.stop()
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Len(t, got[0], 3)
	assert.Len(t, got[1], 3)
	assert.Len(t, got[2], 1, "remainder flushed on stop")
}

func TestBatcherFlushesOnInterval(t *testing.T) {
	flushed := make(chan int, 4)
	b := newBatcher(100, 10*time.Millisecond, slog.New(slog.DiscardHandler), func(_ context.Context, batch []Sample) error {
		flushed <- len(batch)
		return errors.New("server unavailable")
	})
	defer b.stop()

	b.enqueue(make([]Sample, 2))
	select {
	case n := <-flushed:
		assert.Equal(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("no flush")
	}
	assert.Eventually(t, func() bool { return b.failed.Load() == 2 }, time.Second, time.Millisecond)
}

func TestParseMonitorConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
gateway: 127.0.0.1:7460
interval: 2s
influxdb:
  url: http://localhost:8181
  database: pwb
clickhouse:
  addr: localhost:9000
  batchSize: 50
`))
	require.NoError(t, err)
	assert.Equal(t, uint8(DefaultNode), cfg.Node)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	require.NotNil(t, cfg.Influx)
	assert.Equal(t, "pwb", cfg.Influx.Database)
	require.NotNil(t, cfg.ClickHouse)

	cfg.ClickHouse.applyDefaults()
	assert.Equal(t, 50, cfg.ClickHouse.BatchSize)
	assert.Equal(t, DefaultTable, cfg.ClickHouse.Table)
	assert.Equal(t, DefaultFlushInterval, cfg.ClickHouse.FlushInterval)

	for name, doc := range map[string]string{
		"NoGateway":        "node: 1",
		"NodeZero":         "gateway: x:1\nnode: 0",
		"InfluxNoURL":      "gateway: x:1\ninfluxdb:\n  database: pwb",
		"ClickHouseNoAddr": "gateway: x:1\nclickhouse:\n  table: t",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			assert.Error(t, err)
		})
	}
}
