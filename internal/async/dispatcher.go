// Package async delivers notifications off the request path through a bounded worker pool.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/payment-receipts/internal/notify"
)

// ErrClosed is returned by Enqueue after Shutdown has started.
var ErrClosed = errors.New("dispatcher is shutting down")

// Dispatcher queues notifications and hands them to a Notifier from a fixed set of workers.
// A failed send is logged and dropped; it never reaches the caller that enqueued it.
type Dispatcher struct {
	notifier notify.Notifier
	logger   *slog.Logger
	workers  int
	timeout  time.Duration

	ch   chan notify.Notification
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.ch = make(chan notify.Notification, n)
		}
	}
}

func WithProcessTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

func NewDispatcher(notifier notify.Notifier, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		logger:   logger,
		workers:  4,
		timeout:  10 * time.Second,
		ch:       make(chan notify.Notification, 256),
	}
	for _, o := range opts {
		o(d)
	}
	d.start()
	return d
}

func (d *Dispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go func(workerID int) {
				defer d.wg.Done()
				d.logger.Debug("notify worker started", "worker_id", workerID)

				for n := range d.ch {
					d.deliver(workerID, n)
				}

				d.logger.Debug("notify worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (d *Dispatcher) deliver(workerID int, n notify.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	if err := d.notifier.Send(ctx, n); err != nil {
		d.logger.Error("notify.send.failed",
			"worker_id", workerID,
			"id", n.ID,
			"kind", n.Kind,
			"receipt_id", n.ReceiptID,
			"correlation_id", n.CorrelationID,
			"error", err,
		)
		return
	}
	d.logger.Info("notify.send.ok",
		"worker_id", workerID,
		"id", n.ID,
		"kind", n.Kind,
		"receipt_id", n.ReceiptID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// Enqueue hands n to the workers. When the queue is full it waits for room until ctx ends.
func (d *Dispatcher) Enqueue(ctx context.Context, n notify.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("cannot enqueue: dispatcher is shutting down", "id", n.ID, "kind", n.Kind)
		return ErrClosed
	}
	select {
	case d.ch <- n:
		d.logger.Debug("queued notification", "id", n.ID, "kind", n.Kind)
		return nil
	default:
	}
	d.logger.Warn("notify queue full, applying backpressure", "id", n.ID, "kind", n.Kind)
	select {
	case d.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting work and waits for queued notifications to drain or ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); d.wg.Wait() }()

	select {
	case <-ctx.Done():
		d.logger.Warn("shutdown interrupted by context")
	case <-done:
		d.logger.Info("notify queue drained, shutdown complete")
	}
}
