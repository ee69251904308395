package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := l.Allow(ctx, "reset:a@example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = l.Allow(ctx, "reset:a@example.com", time.Minute)
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "reset:b@example.com", time.Minute)
	assert.True(t, ok, "keys are throttled independently")

	now = now.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "reset:a@example.com", time.Minute)
	assert.True(t, ok)
}
