package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/observability/metrics"
)

// Dispatcher runs best-effort side effects in the background. Failures are
// logged and counted; they never reach the request that scheduled them.
type Dispatcher struct {
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewDispatcher creates a Dispatcher whose tasks are cancelled after timeout.
func NewDispatcher(logger *slog.Logger, timeout time.Duration) *Dispatcher {
	return &Dispatcher{logger: logger, timeout: timeout}
}

// Go schedules fn. Tasks scheduled after Drain has started are dropped.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher draining, task dropped", "task", name)
		return
	}
	d.pending.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("background task panicked", "task", name, "panic", r)
				metrics.ObserveTask(name, errors.New("panic"))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := fn(ctx)
		metrics.ObserveTask(name, err)
		if err != nil {
			d.logger.Warn("background task failed", "task", name, "error", err)
		}
	}()
}

// Publish schedules an event publication.
func (d *Dispatcher) Publish(pub driven.EventPublisher, topic string, event any) {
	d.Go("publish "+topic, func(ctx context.Context) error {
		return pub.Publish(ctx, topic, event)
	})
}

// Drain stops accepting tasks and waits for running ones or ctx expiry.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
