package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dynergy/tariff-compare/config"
	"github.com/dynergy/tariff-compare/transport"
)

// retryPolicy re-runs calculation-class calls that failed on the network.
// Scrape classes drive a real browser upstream and are never repeated.
type retryPolicy struct {
	maxRetries int
	base       time.Duration
	max        time.Duration
	metrics    *Metrics
}

func newRetryPolicy(cfg *config.Config, metrics *Metrics) retryPolicy {
	return retryPolicy{
		maxRetries: cfg.MaxRetries,
		base:       cfg.RetryBackoff,
		max:        cfg.RetryBackoffMax,
		metrics:    metrics,
	}
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := p.base
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if p.max > 0 && delay > p.max {
		delay = p.max
	}
	return delay
}

func (p retryPolicy) retryable(class transport.Class, err error) bool {
	if class.Scrape() {
		return false
	}
	var network transport.ErrNetwork
	return errors.As(err, &network)
}

// do runs fn until it succeeds, fails for good or ctx ends. It returns the
// number of retries made.
func (p retryPolicy) do(ctx context.Context, source string, class transport.Class, fn func(context.Context) error) (int, error) {
	retries := 0
	for {
		err := fn(ctx)
		if err == nil || retries >= p.maxRetries || !p.retryable(class, err) {
			return retries, err
		}

		retries++
		delay := p.backoff(retries)
		slog.Debug("retrying source",
			slog.String("source", source),
			slog.Int("attempt", retries),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return retries, err
		case <-timer.C:
		}
		p.metrics.IncRetries()
	}
}
