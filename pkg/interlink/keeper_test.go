package interlink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/powerbridge/pwb-go/pkg/wire"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) SetInterlink(ctx context.Context, cmd wire.InterlinkCommand) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

// contactorWriter applies commands to a Contactor directly.
type contactorWriter struct {
	c *Contactor

	mu    sync.Mutex
	fails bool
}

func (w *contactorWriter) SetInterlink(_ context.Context, cmd wire.InterlinkCommand) error {
	w.mu.Lock()
	fails := w.fails
	w.mu.Unlock()
	if fails {
		return errors.New("link down")
	}
	return w.c.Apply(cmd)
}

func (w *contactorWriter) setFails(v bool) {
	w.mu.Lock()
	w.fails = v
	w.mu.Unlock()
}

func TestNewKeeperInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		wantErr  error
	}{
		{"Default", 0, nil},
		{"Short", time.Second, nil},
		{"JustBelow", TimedEnableDuration - time.Millisecond, nil},
		{"Equal", TimedEnableDuration, ErrIntervalTooLong},
		{"Above", time.Minute, ErrIntervalTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []KeeperOption
			if tt.interval != 0 {
				opts = append(opts, WithInterval(tt.interval))
			}
			k, err := NewKeeper(&mockWriter{}, opts...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.interval == 0 {
				assert.Equal(t, DefaultKeepInterval, k.config.Interval)
			}
		})
	}

	_, err := NewKeeper(&mockWriter{}, WithInterval(-time.Second))
	assert.Error(t, err)
}

func TestKeeperStartStop(t *testing.T) {
	w := &mockWriter{}
	w.On("SetInterlink", mock.Anything, wire.InterlinkTimedEnable).Return(nil)
	w.On("SetInterlink", mock.Anything, wire.InterlinkForcedOff).Return(nil).Once()

	k, err := NewKeeper(w, WithInterval(20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, k.Start(context.Background()))
	assert.True(t, k.IsRunning())

	time.Sleep(90 * time.Millisecond)
	require.NoError(t, k.Stop(context.Background()))
	assert.False(t, k.IsRunning())

	w.AssertCalled(t, "SetInterlink", mock.Anything, wire.InterlinkForcedOff)
	stats := k.Stats()
	assert.GreaterOrEqual(t, stats.Sent, uint64(3))
	assert.Zero(t, stats.Failed)
	assert.False(t, stats.LastSuccess.IsZero())

	// Stopping twice does not write again.
	require.NoError(t, k.Stop(context.Background()))
	w.AssertNumberOfCalls(t, "SetInterlink", int(stats.Sent))
}

func TestKeeperStartFailure(t *testing.T) {
	w := &mockWriter{}
	w.On("SetInterlink", mock.Anything, wire.InterlinkTimedEnable).Return(errors.New("no route"))

	k, err := NewKeeper(w)
	require.NoError(t, err)

	err = k.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed-enable")
	assert.False(t, k.IsRunning())
	assert.Equal(t, uint64(1), k.Stats().Failed)
}

func TestKeeperHoldsContactor(t *testing.T) {
	c := NewContactor(60 * time.Millisecond)
	defer c.Close()
	w := &contactorWriter{c: c}

	var mu sync.Mutex
	var errs []error
	k, err := NewKeeper(w,
		WithInterval(20*time.Millisecond),
		WithErrorHandler(func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}))
	require.NoError(t, err)

	require.NoError(t, k.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, wire.InterlinkClosed, c.State(), "keeper keeps the contactor closed")

	// Lost link: the contactor opens by itself.
	w.setFails(true)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, wire.InterlinkOpen, c.State())

	mu.Lock()
	assert.NotEmpty(t, errs)
	mu.Unlock()

	w.setFails(false)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, wire.InterlinkClosed, c.State())

	require.NoError(t, k.Stop(context.Background()))
	assert.Equal(t, wire.InterlinkOpen, c.State())
	assert.Equal(t, ModeOff, c.Mode())
}

func TestKeeperContextCancel(t *testing.T) {
	w := &mockWriter{}
	w.On("SetInterlink", mock.Anything, wire.InterlinkTimedEnable).Return(nil)

	k, err := NewKeeper(w, WithInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, k.Start(ctx))
	cancel()

	time.Sleep(30 * time.Millisecond)
	n := k.Stats().Sent
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, k.Stats().Sent, "no writes after the context is cancelled")
	assert.False(t, k.IsRunning())

	// The keeper can be started again with a live context.
	w.On("SetInterlink", mock.Anything, wire.InterlinkForcedOff).Return(nil).Once()
	require.NoError(t, k.Start(context.Background()))
	assert.True(t, k.IsRunning())
	assert.Eventually(t, func() bool { return k.Stats().Sent > n+2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, k.Stop(context.Background()))
	assert.False(t, k.IsRunning())
	w.AssertCalled(t, "SetInterlink", mock.Anything, wire.InterlinkForcedOff)
}
