// Package notify delivers notification texts to subscriber handles.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Notifier = (*Router)(nil)

const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
	DefaultMaxDelay = 30 * time.Second
)

// RouterConfig configures a Router.
type RouterConfig struct {
	Channels []driven.Channel
	Attempts uint          // Delivery attempts per message (default: 3)
	Delay    time.Duration // Initial backoff (default: 1s)
	MaxDelay time.Duration // Backoff cap (default: 30s)
	Logger   *slog.Logger
}

// Router picks the channel for a handle by its scheme ("tg", "email") and
// retries failed sends with exponential backoff.
type Router struct {
	channels map[string]driven.Channel
	attempts uint
	delay    time.Duration
	maxDelay time.Duration
	logger   *slog.Logger
}

// NewRouter creates a Router over the given channels.
func NewRouter(cfg RouterConfig) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		channels: make(map[string]driven.Channel, len(cfg.Channels)),
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
		maxDelay: cfg.MaxDelay,
		logger:   logger.With("component", "notify"),
	}
	if r.attempts == 0 {
		r.attempts = DefaultAttempts
	}
	if r.delay <= 0 {
		r.delay = DefaultDelay
	}
	if r.maxDelay <= 0 {
		r.maxDelay = DefaultMaxDelay
	}
	for _, ch := range cfg.Channels {
		r.channels[ch.Scheme()] = ch
	}
	return r
}

// Schemes lists the configured channel schemes.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.channels))
	for scheme := range r.channels {
		out = append(out, scheme)
	}
	return out
}

// Notify delivers text to handle.
func (r *Router) Notify(ctx context.Context, handle, text string) error {
	scheme, address := domain.HandleScheme(handle)
	ch, ok := r.channels[scheme]
	if !ok || address == "" {
		return fmt.Errorf("%w: %q", domain.ErrNoChannel, handle)
	}

	err := retry.Do(
		func() error {
			return ch.Send(ctx, address, text)
		},
		retry.Attempts(r.attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(r.delay),
		retry.MaxDelay(r.maxDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Info("retrying delivery",
				"scheme", scheme,
				"attempt", n+1,
				"error", err,
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", handle, err)
	}
	return nil
}
