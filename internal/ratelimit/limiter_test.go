package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Check_AllowsUpToLimit(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result := l.Check(ctx, "192.0.2.1", "api", 5, time.Minute)
		require.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
		assert.Equal(t, 4-i, result.Remaining)
	}

	result := l.Check(ctx, "192.0.2.1", "api", 5, time.Minute)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestLimiter_Check_IndependentKinds(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := l.Check(ctx, "192.0.2.1", "login", 3, time.Minute)
		require.True(t, result.Allowed)
	}

	result := l.Check(ctx, "192.0.2.1", "login", 3, time.Minute)
	assert.False(t, result.Allowed)

	// A different kind for the same identifier has its own window.
	result = l.Check(ctx, "192.0.2.1", "api", 3, time.Minute)
	assert.True(t, result.Allowed)
}

func TestLimiter_Check_IndependentIdentifiers(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	result := l.Check(ctx, "192.0.2.1", "api", 1, time.Minute)
	require.True(t, result.Allowed)
	result = l.Check(ctx, "192.0.2.1", "api", 1, time.Minute)
	require.False(t, result.Allowed)

	result = l.Check(ctx, "192.0.2.2", "api", 1, time.Minute)
	assert.True(t, result.Allowed)
}

func TestLimiter_Check_PenaltyDuration(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	// Penalty is twice the window for small windows.
	result := l.Check(ctx, "192.0.2.1", "api", 1, time.Minute)
	require.True(t, result.Allowed)

	result = l.Check(ctx, "192.0.2.1", "api", 1, time.Minute)
	require.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, time.Minute)
	assert.LessOrEqual(t, result.RetryAfter, 2*time.Minute)
}

func TestLimiter_Check_PenaltyCapped(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	// For a 10 minute window twice the window exceeds the cap.
	result := l.Check(ctx, "192.0.2.1", "api", 1, 10*time.Minute)
	require.True(t, result.Allowed)

	result = l.Check(ctx, "192.0.2.1", "api", 1, 10*time.Minute)
	require.False(t, result.Allowed)
	assert.LessOrEqual(t, result.RetryAfter, DefaultPenaltyCap)
	assert.Greater(t, result.RetryAfter, DefaultPenaltyCap-time.Second)
}

func TestLimiter_Check_PenaltyNotExtendedByRetries(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	result := l.Check(ctx, "192.0.2.1", "api", 1, time.Minute)
	require.True(t, result.Allowed)

	first := l.Check(ctx, "192.0.2.1", "api", 1, time.Minute)
	require.False(t, first.Allowed)

	second := l.Check(ctx, "192.0.2.1", "api", 1, time.Minute)
	require.False(t, second.Allowed)
	assert.LessOrEqual(t, second.RetryAfter, first.RetryAfter)
}

func TestLimiter_Check_WindowExpiry(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result := l.Check(ctx, "192.0.2.1", "api", 2, 30*time.Millisecond)
		require.True(t, result.Allowed)
	}

	time.Sleep(50 * time.Millisecond)

	result := l.Check(ctx, "192.0.2.1", "api", 2, 30*time.Millisecond)
	assert.True(t, result.Allowed)
}

func TestLimiter_Check_ZeroLimitAllows(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	result := l.Check(ctx, "192.0.2.1", "api", 0, time.Minute)
	assert.True(t, result.Allowed)
}

func TestLimiter_Peek_DoesNotConsume(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	result := l.Check(ctx, "192.0.2.1", "api", 2, time.Minute)
	require.True(t, result.Allowed)

	for i := 0; i < 5; i++ {
		peeked := l.Peek("192.0.2.1", "api", 2, time.Minute)
		assert.True(t, peeked.Allowed)
		assert.Equal(t, 1, peeked.Remaining)
	}

	result = l.Check(ctx, "192.0.2.1", "api", 2, time.Minute)
	assert.True(t, result.Allowed)
}

func TestLimiter_Reset(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	result := l.Check(ctx, "192.0.2.1", "api", 1, time.Minute)
	require.True(t, result.Allowed)
	result = l.Check(ctx, "192.0.2.1", "api", 1, time.Minute)
	require.False(t, result.Allowed)

	l.Reset("192.0.2.1", "api")

	result = l.Check(ctx, "192.0.2.1", "api", 1, time.Minute)
	assert.True(t, result.Allowed)
}

func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	result := l.Check(ctx, "192.0.2.1", "api", 5, time.Minute)
	require.True(t, result.Allowed)

	time.Sleep(10 * time.Millisecond)
	l.Cleanup(time.Millisecond)

	peeked := l.Peek("192.0.2.1", "api", 5, time.Minute)
	assert.Equal(t, 5, peeked.Remaining)
}

func TestLimiter_Block_Unblock(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	blocked, err := l.IsBlocked(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, l.Block(ctx, "192.0.2.1", time.Minute))

	blocked, err = l.IsBlocked(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.True(t, blocked)

	until, ok, err := l.BlockedUntil(ctx, "192.0.2.1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), until, 5*time.Second)

	require.NoError(t, l.Unblock(ctx, "192.0.2.1"))

	blocked, err = l.IsBlocked(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestLimiter_Block_LazyExpiry(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	require.NoError(t, l.Block(ctx, "192.0.2.1", 10*time.Millisecond))

	time.Sleep(20 * time.Millisecond)

	blocked, err := l.IsBlocked(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestLimiter_Blocked_List(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	require.NoError(t, l.Block(ctx, "192.0.2.1", time.Minute))
	require.NoError(t, l.Block(ctx, "192.0.2.2", time.Hour))

	blocked, err := l.Blocked(ctx)
	require.NoError(t, err)
	assert.Len(t, blocked, 2)
	assert.Contains(t, blocked, "192.0.2.1")
	assert.Contains(t, blocked, "192.0.2.2")
}

func TestLimiter_Check_Concurrent(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	const workers = 20
	allowed := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		go func() {
			result := l.Check(ctx, "192.0.2.1", "api", 10, time.Minute)
			allowed <- result.Allowed
		}()
	}

	count := 0
	for i := 0; i < workers; i++ {
		if <-allowed {
			count++
		}
	}

	assert.Equal(t, 10, count)
}
