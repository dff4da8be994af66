package interlink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/powerbridge/pwb-go/pkg/wire"
)

// DefaultKeepInterval is the default interval between timed enables.
const DefaultKeepInterval = 5 * time.Second

// ErrIntervalTooLong is returned when the keep interval would let the
// contactor time out between two timed enables.
var ErrIntervalTooLong = errors.New("keep interval must be below the timed enable duration")

// Writer writes interlink commands to a bridge.
type Writer interface {
	SetInterlink(ctx context.Context, cmd wire.InterlinkCommand) error
}

// KeeperConfig configures a Keeper.
type KeeperConfig struct {
	// Interval between timed enables (default: 5s).
	Interval time.Duration

	// WriteTimeout bounds every write (default: Interval).
	WriteTimeout time.Duration

	// OnError is called when a write fails. The keeper keeps trying.
	OnError func(err error)
}

// KeeperOption configures a Keeper.
type KeeperOption func(*KeeperConfig)

// WithInterval sets the interval between timed enables.
func WithInterval(d time.Duration) KeeperOption {
	return func(c *KeeperConfig) { c.Interval = d }
}

// WithWriteTimeout sets the per-write timeout.
func WithWriteTimeout(d time.Duration) KeeperOption {
	return func(c *KeeperConfig) { c.WriteTimeout = d }
}

// WithErrorHandler sets the callback for failed writes.
func WithErrorHandler(fn func(err error)) KeeperOption {
	return func(c *KeeperConfig) { c.OnError = fn }
}

// KeeperStats holds keeper counters.
type KeeperStats struct {
	Sent        uint64
	Failed      uint64
	LastSuccess time.Time
	LastError   error
}

// Keeper holds a bridge's contactor closed by re-sending timed enable
// until it is stopped.
type Keeper struct {
	w      Writer
	config KeeperConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   KeeperStats
}

// NewKeeper creates a keeper writing through w.
func NewKeeper(w Writer, opts ...KeeperOption) (*Keeper, error) {
	config := KeeperConfig{Interval: DefaultKeepInterval}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("invalid keep interval %v", config.Interval)
	}
	if config.Interval >= TimedEnableDuration {
		return nil, fmt.Errorf("%w: %v >= %v", ErrIntervalTooLong, config.Interval, TimedEnableDuration)
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = config.Interval
	}
	return &Keeper{w: w, config: config}, nil
}

// Start sends the first timed enable and starts the keep loop. It fails
// without starting when the first write fails.
func (k *Keeper) Start(ctx context.Context) error {
	k.mu.Lock()
	if k.running {
		k.mu.Unlock()
		return nil
	}
	k.mu.Unlock()

	if err := k.send(ctx, wire.InterlinkTimedEnable); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return nil
	}
	k.running = true
	k.stopCh = make(chan struct{})
	k.doneCh = make(chan struct{})
	go k.loop(ctx, k.stopCh, k.doneCh)
	return nil
}

// Stop ends the keep loop and opens the contactor with forced off.
func (k *Keeper) Stop(ctx context.Context) error {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return nil
	}
	k.running = false
	close(k.stopCh)
	done := k.doneCh
	k.mu.Unlock()

	<-done
	return k.send(ctx, wire.InterlinkForcedOff)
}

// IsRunning reports whether the keep loop is active.
func (k *Keeper) IsRunning() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}

// Stats returns the keeper counters.
func (k *Keeper) Stats() KeeperStats {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stats
}

func (k *Keeper) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer func() {
		// A cancelled ctx ends the loop without Stop.
		k.mu.Lock()
		if k.stopCh == stopCh {
			k.running = false
		}
		k.mu.Unlock()
	}()

	ticker := time.NewTicker(k.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if err := k.send(ctx, wire.InterlinkTimedEnable); err != nil && k.config.OnError != nil {
				k.config.OnError(err)
			}
		}
	}
}

func (k *Keeper) send(ctx context.Context, cmd wire.InterlinkCommand) error {
	wctx, cancel := context.WithTimeout(ctx, k.config.WriteTimeout)
	defer cancel()

	err := k.w.SetInterlink(wctx, cmd)

	k.mu.Lock()
	defer k.mu.Unlock()
	if err != nil {
		k.stats.Failed++
		k.stats.LastError = err
		return fmt.Errorf("interlink %s: %w", cmd, err)
	}
	k.stats.Sent++
	k.stats.LastSuccess = time.Now()
	return nil
}
