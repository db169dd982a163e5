package ratelimit

import (
	"context"
	"time"

	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// Block records a block for the identifier for the given duration.
// Blocking is separate from window accounting: a blocked identifier is
// rejected before any window is consulted.
func (l *Limiter) Block(ctx context.Context, identifier string, duration time.Duration) error {
	until := time.Now().Add(duration)

	if err := l.blocks.Put(ctx, identifier, until); err != nil {
		return err
	}

	l.metrics.BlocksTotal.Inc()
	l.logger.Warn("identifier blocked",
		observability.String("identifier", identifier),
		observability.Duration("duration", duration),
		observability.Time("until", until),
	)

	return nil
}

// Unblock removes the block for the identifier, if any.
func (l *Limiter) Unblock(ctx context.Context, identifier string) error {
	if err := l.blocks.Delete(ctx, identifier); err != nil {
		return err
	}

	l.logger.Info("identifier unblocked",
		observability.String("identifier", identifier),
	)

	return nil
}

// IsBlocked reports whether the identifier is currently blocked.
// Expiry is checked lazily on read, there is no expiry timer.
func (l *Limiter) IsBlocked(ctx context.Context, identifier string) (bool, error) {
	_, blocked, err := l.blocks.Get(ctx, identifier)
	if err != nil {
		return false, err
	}
	return blocked, nil
}

// BlockedUntil returns the block expiry for the identifier. The
// second return value is false when the identifier is not blocked.
func (l *Limiter) BlockedUntil(ctx context.Context, identifier string) (time.Time, bool, error) {
	return l.blocks.Get(ctx, identifier)
}

// Blocked returns all currently blocked identifiers with their expiry
// times.
func (l *Limiter) Blocked(ctx context.Context) (map[string]time.Time, error) {
	return l.blocks.List(ctx)
}
