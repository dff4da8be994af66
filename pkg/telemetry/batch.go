package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// batcher queues samples and hands them to flush in batches, when the
// batch is full or when the flush interval elapses.
type batcher struct {
	queue    chan Sample
	size     int
	interval time.Duration
	flush    func(ctx context.Context, batch []Sample) error
	logger   *slog.Logger

	dropped atomic.Uint64
	failed  atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newBatcher(size int, interval time.Duration, logger *slog.Logger, flush func(context.Context, []Sample) error) *batcher {
	ctx, cancel := context.WithCancel(context.Background())
	b := &batcher{
		queue:    make(chan Sample, size*4),
		size:     size,
		interval: interval,
		flush:    flush,
		logger:   logger,
		cancel:   cancel,
	}
	b.wg.Add(1)
	go b.run(ctx)
	return b
}

// enqueue adds samples without blocking. Samples that do not fit are
// dropped and counted.
func (b *batcher) enqueue(samples []Sample) int {
	n := 0
	for _, s := range samples {
		select {
		case b.queue <- s:
		default:
			n++
		}
	}
	if n > 0 {
		b.dropped.Add(uint64(n))
	}
	return n
}

func (b *batcher) run(ctx context.Context) {
	defer b.wg.Done()

	batch := make([]Sample, 0, b.size)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	send := func() {
		if len(batch) == 0 {
			return
		}
		// The final flush runs after cancel.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := b.flush(fctx, batch); err != nil {
			b.failed.Add(uint64(len(batch)))
			b.logger.Error("batch flush failed", "samples", len(batch), "error", err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case s := <-b.queue:
					batch = append(batch, s)
				default:
					send()
					return
				}
			}
		case s := <-b.queue:
			batch = append(batch, s)
			if len(batch) >= b.size {
				send()
			}
		case <-ticker.C:
			send()
		}
	}
}

// stop flushes the queued samples and stops the loop.
func (b *batcher) stop() {
	b.cancel()
	b.wg.Wait()
}
