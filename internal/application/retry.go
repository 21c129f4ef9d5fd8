package application

import (
	"log/slog"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/observability/metrics"
	"github.com/ericfisherdev/leadinbox/internal/reliability/reconnect"
)

// retryFor returns base with an OnRetry hook that logs and counts retries of operation.
func retryFor(base reconnect.Options, operation string) reconnect.Options {
	opts := base
	opts.OnRetry = func(attempt int, err error, delay time.Duration) {
		slog.Warn("retrying after transient error",
			"operation", operation,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		metrics.ObserveRetry(operation)
	}
	return opts
}
