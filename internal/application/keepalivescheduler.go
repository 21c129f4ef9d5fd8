package application

import (
	"context"
	"log/slog"
	"time"
)

type sweepRequest struct {
	done chan sweepOutcome
}

type sweepOutcome struct {
	result KeepaliveResult
	err    error
}

// KeepaliveScheduler serialises keepalive sweeps. Sweeps run on a fixed
// interval when one is configured and whenever Trigger is called.
type KeepaliveScheduler struct {
	monitor   *MonitorService
	interval  time.Duration
	triggerCh chan sweepRequest
}

// NewKeepaliveScheduler creates a scheduler. A zero interval disables the
// periodic sweep and leaves only triggered ones.
func NewKeepaliveScheduler(monitor *MonitorService, interval time.Duration) *KeepaliveScheduler {
	return &KeepaliveScheduler{
		monitor:   monitor,
		interval:  interval,
		triggerCh: make(chan sweepRequest),
	}
}

// Start runs the scheduling loop and blocks until ctx is cancelled.
func (s *KeepaliveScheduler) Start(ctx context.Context) {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("keepalive scheduler stopped")
			return
		case <-tick:
			if _, err := s.monitor.Keepalive(ctx); err != nil {
				slog.Error("scheduled keepalive failed", "error", err)
			}
		case req := <-s.triggerCh:
			result, err := s.monitor.Keepalive(ctx)
			req.done <- sweepOutcome{result: result, err: err}
		}
	}
}

// Trigger requests an immediate sweep and waits for its result. A sweep
// already in progress finishes first.
func (s *KeepaliveScheduler) Trigger(ctx context.Context) (KeepaliveResult, error) {
	req := sweepRequest{done: make(chan sweepOutcome, 1)}

	select {
	case s.triggerCh <- req:
	case <-ctx.Done():
		return KeepaliveResult{}, ctx.Err()
	}

	select {
	case out := <-req.done:
		return out.result, out.err
	case <-ctx.Done():
		return KeepaliveResult{}, ctx.Err()
	}
}
