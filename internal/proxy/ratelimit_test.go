package proxy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/virtend/virtend/internal/ajax"
)

func TestWithRateLimit_WithinBurst(t *testing.T) {
	fn := WithRateLimit(fulfillingProxy("ok"), rate.Limit(1), 2)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2; i++ {
		resp, err := fn(ctx, &ajax.Request{URL: "/x"})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Text())
	}

	// Both calls fit in the burst and complete without waiting
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWithRateLimit_WaitsOverLimit(t *testing.T) {
	fn := WithRateLimit(fulfillingProxy("ok"), rate.Limit(20), 1)

	ctx := context.Background()
	_, err := fn(ctx, &ajax.Request{URL: "/x"})
	require.NoError(t, err)

	// The bucket is empty; the next token arrives after ~50ms
	start := time.Now()
	_, err = fn(ctx, &ajax.Request{URL: "/x"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWithRateLimit_ContextCancelledWhileWaiting(t *testing.T) {
	fn := WithRateLimit(fulfillingProxy("ok"), rate.Limit(0.1), 1)

	_, err := fn(context.Background(), &ajax.Request{URL: "/x"})
	require.NoError(t, err)

	// The next token is ten seconds out; the context gives up first
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = fn(ctx, &ajax.Request{URL: "/x"})
	require.Error(t, err)
}
