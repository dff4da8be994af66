package pwb_test

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerbridge/pwb-go/pkg/bridge"
	"github.com/powerbridge/pwb-go/pkg/connection"
	"github.com/powerbridge/pwb-go/pkg/interaction"
	"github.com/powerbridge/pwb-go/pkg/interlink"
	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/simulator"
	"github.com/powerbridge/pwb-go/pkg/telemetry"
	"github.com/powerbridge/pwb-go/pkg/transport"
	"github.com/powerbridge/pwb-go/pkg/update"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// gateway is a simulated bridge behind a TCP gateway server.
type gateway struct {
	sim    *simulator.Simulator
	server *transport.Server
}

func startGateway(t *testing.T, cfg simulator.Config, address string) *gateway {
	t.Helper()
	sim, err := simulator.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sim.Close() })
	return startGatewayFor(t, sim, address)
}

func startGatewayFor(t *testing.T, sim *simulator.Simulator, address string) *gateway {
	t.Helper()
	server := transport.NewGatewayServer(transport.ServerConfig{Address: address}, interaction.NewServer(sim))
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { server.Stop() })
	return &gateway{sim: sim, server: server}
}

func (g *gateway) addr() string {
	return g.server.Addr().String()
}

func dialBridge(t *testing.T, g *gateway, logger log.Logger) *bridge.Bridge {
	t.Helper()
	client, conn, err := transport.DialBridge(context.Background(), g.addr(), transport.ClientConfig{Logger: logger}, od.Bridge())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return bridge.New(client, g.sim.Node())
}

// TestE2E_ReadWrite configures a bridge over TCP and checks the capture.
func TestE2E_ReadWrite(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g := startGateway(t, simulator.DefaultConfig(), "127.0.0.1:0")

	path := filepath.Join(t.TempDir(), "e2e.plog")
	capture, err := log.NewFileLogger(path)
	require.NoError(t, err)
	b := dialBridge(t, g, capture)

	require.NoError(t, b.SetMaxOutput(ctx, wire.NewVI(800, 50)))
	got, err := b.MaxOutput(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.NewVI(800, 50), got)

	topo := wire.Topology{Groups: 2, PerGroup: [wire.MaxGroups]uint8{2, 2}}
	require.NoError(t, b.SetTopology(ctx, topo))
	gotTopo, err := b.Topology(ctx)
	require.NoError(t, err)
	assert.Equal(t, topo, gotTopo)

	// Contactors of groups beyond the topology are refused by the bridge.
	err = b.SetACContactors(ctx, wire.ACContactorGroups(0x04))
	var abort *interaction.AbortError
	require.ErrorAs(t, err, &abort)

	require.NoError(t, capture.Close())
	r, err := log.NewFilteredReader(path, log.Filter{Layer: ptr(log.LayerSDO)})
	require.NoError(t, err)
	defer r.Close()

	var requests, aborts int
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if ev.Message == nil {
			continue
		}
		if ev.Message.Type == log.MessageTypeRequest {
			requests++
		}
		if ev.Message.Abort != nil {
			aborts++
		}
	}
	assert.GreaterOrEqual(t, requests, 5)
	assert.GreaterOrEqual(t, aborts, 1)
}

// TestE2E_Interlink holds the contactor closed past its timeout and
// checks that it opens once the keeper stops.
func TestE2E_Interlink(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := simulator.DefaultConfig()
	cfg.InterlinkTimeout = 300 * time.Millisecond
	g := startGateway(t, cfg, "127.0.0.1:0")
	b := dialBridge(t, g, nil)

	// A single timed enable expires.
	require.NoError(t, b.SetInterlink(ctx, wire.InterlinkTimedEnable))
	assert.Equal(t, wire.InterlinkClosed, g.sim.Contactor().State())
	require.Eventually(t, func() bool {
		return g.sim.Contactor().State() == wire.InterlinkOpen
	}, 2*time.Second, 10*time.Millisecond)

	k, err := interlink.NewKeeper(b, interlink.WithInterval(100*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, k.Start(ctx))

	time.Sleep(700 * time.Millisecond)
	st, err := b.Interlink(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.InterlinkClosed, st)

	require.NoError(t, k.Stop(ctx))
	assert.Equal(t, wire.InterlinkOpen, g.sim.Contactor().State())
	assert.GreaterOrEqual(t, k.Stats().Sent, uint64(5))

	// A contactor fault is reported and refuses enables.
	g.sim.Contactor().SetFault(errors.New("feedback mismatch"))
	st, err = b.Interlink(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.InterlinkError, st)
}

// TestE2E_Reconnection restarts the gateway and checks that the
// connection manager redials and the bridge is usable again.
func TestE2E_Reconnection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g := startGateway(t, simulator.DefaultConfig(), "127.0.0.1:0")
	address := g.addr()

	var mu sync.Mutex
	var states []connection.State
	mgr := connection.NewManager(
		connection.GatewayDialer(connection.GatewayConfig{Address: address, Dictionary: od.Bridge(), Timeout: time.Second}),
		connection.WithBackoff(connection.BackoffConfig{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Jitter: -1}),
		connection.WithStateHandler(func(_, s connection.State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		}),
	)
	defer mgr.Close()
	require.NoError(t, mgr.Connect(ctx))

	b := bridge.New(mgr, g.sim.Node())
	_, err := b.PMType(ctx)
	require.NoError(t, err)

	require.NoError(t, g.server.Stop())
	require.Eventually(t, func() bool {
		return mgr.State() == connection.StateReconnecting
	}, 2*time.Second, 5*time.Millisecond)

	_, err = b.PMType(ctx)
	assert.Error(t, err)

	// Same simulator, same address.
	waitPortFree(t, address)
	startGatewayFor(t, g.sim, address)

	waitCtx, waitCancel := context.WithTimeout(ctx, 3*time.Second)
	defer waitCancel()
	require.NoError(t, mgr.WaitConnected(waitCtx))

	pmType, err := b.PMType(ctx)
	require.NoError(t, err)
	assert.Equal(t, g.sim.ActivePMType(), pmType)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, states, connection.StateReconnecting)
	assert.Equal(t, connection.StateConnected, states[len(states)-1])
}

// waitPortFree waits until address can be listened on again.
func waitPortFree(t *testing.T, address string) {
	t.Helper()
	require.Eventually(t, func() bool {
		l, err := net.Listen("tcp", address)
		if err != nil {
			return false
		}
		l.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

// TestE2E_Update runs a firmware update over TCP.
func TestE2E_Update(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := simulator.DefaultConfig()
	cfg.Update.ProcessingDelay = 10 * time.Millisecond
	g := startGateway(t, cfg, "127.0.0.1:0")
	b := dialBridge(t, g, nil)

	images := update.Images{
		Version: wire.SoftVersion{PFC: 0x0102, DCDC: 0x0203, CAN: 0x0001, HasCAN: true},
		PFC:     []byte{1, 2, 3, 4, 5},
		DCDC:    []byte{6, 7, 8, 9},
		CAN:     []byte{10, 11},
	}

	var phases []update.Phase
	u := update.New(b,
		update.WithPollInterval(5*time.Millisecond),
		update.WithProgress(func(p update.Progress) {
			if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
				phases = append(phases, p.Phase)
			}
		}),
	)
	require.NoError(t, u.Run(ctx, images))

	got := g.sim.UpdateImages()
	require.Len(t, got, 3)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 0xFF, 0xFF, 0xFF}, got[0])
	assert.Equal(t, []byte{6, 7, 8, 9}, got[1])
	assert.Equal(t, []byte{10, 11, 0xFF, 0xFF}, got[2])
	assert.Equal(t, images.Version, g.sim.UpdateVersions())
	assert.Equal(t, update.PhaseDone, phases[len(phases)-1])
}

// recordingSink keeps every sample written to it.
type recordingSink struct {
	mu      sync.Mutex
	samples []telemetry.Sample
}

func (s *recordingSink) Name() string { return "recording" }
func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) Write(_ context.Context, samples []telemetry.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// TestE2E_Monitor polls a bridge over TCP into a sink.
func TestE2E_Monitor(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.Modules[0] = simulator.ModuleConfig{Voltage: 650, Current: 30, Temperature: 45, ACVoltage: 400}
	g := startGateway(t, cfg, "127.0.0.1:0")
	b := dialBridge(t, g, nil)

	sink := &recordingSink{}
	mon := telemetry.NewMonitor(b, telemetry.WithSink(sink), telemetry.WithInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() >= 8 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	sink.mu.Lock()
	first := sink.samples[0]
	sink.mu.Unlock()
	assert.Equal(t, 1, first.PM)
	assert.Equal(t, wire.NewVI(650, 30), first.Output)
	assert.Equal(t, uint8(45), first.Temperature)
	assert.GreaterOrEqual(t, mon.Stats().Polls, uint64(2))
}

func ptr[T any](v T) *T {
	return &v
}
