package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 0.25, cfg.JitterFactor)
}

func TestConfig_Getters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         *Config
		wantRetries int
		wantInitial time.Duration
		wantMax     time.Duration
		wantJitter  float64
	}{
		{
			name:        "nil config",
			cfg:         nil,
			wantRetries: 3,
			wantInitial: 100 * time.Millisecond,
			wantMax:     30 * time.Second,
			wantJitter:  0.25,
		},
		{
			name:        "zero values",
			cfg:         &Config{},
			wantRetries: 3,
			wantInitial: 100 * time.Millisecond,
			wantMax:     30 * time.Second,
			wantJitter:  0.25,
		},
		{
			name: "custom values",
			cfg: &Config{
				MaxRetries:     5,
				InitialBackoff: 200 * time.Millisecond,
				MaxBackoff:     10 * time.Second,
				JitterFactor:   0.5,
			},
			wantRetries: 5,
			wantInitial: 200 * time.Millisecond,
			wantMax:     10 * time.Second,
			wantJitter:  0.5,
		},
		{
			name:        "jitter above max is clamped",
			cfg:         &Config{JitterFactor: 2.0},
			wantRetries: 3,
			wantInitial: 100 * time.Millisecond,
			wantMax:     30 * time.Second,
			wantJitter:  1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.wantRetries, tt.cfg.GetMaxRetries())
			assert.Equal(t, tt.wantInitial, tt.cfg.GetInitialBackoff())
			assert.Equal(t, tt.wantMax, tt.cfg.GetMaxBackoff())
			assert.Equal(t, tt.wantJitter, tt.cfg.GetJitterFactor())
		})
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	cfg := &Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	cfg := &Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	failure := errors.New("persistent")

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return failure
	})

	require.ErrorIs(t, err, failure)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestDo_ShouldRetryStopsEarly(t *testing.T) {
	t.Parallel()

	cfg := &Config{MaxRetries: 5, InitialBackoff: time.Millisecond}
	fatal := errors.New("fatal")

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return fatal
	}, WithShouldRetry(func(err error) bool {
		return !errors.Is(err, fatal)
	}))

	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	t.Parallel()

	cfg := &Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

	var attempts []int
	_ = Do(context.Background(), cfg, func() error {
		return errors.New("transient")
	}, WithOnRetry(func(attempt int, err error, backoff time.Duration) {
		attempts = append(attempts, attempt)
		assert.Error(t, err)
		assert.Positive(t, backoff)
	}))

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, DefaultConfig(), func() error {
		t.Fatal("function must not run with canceled context")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	cfg := &Config{MaxRetries: 3, InitialBackoff: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func() error {
			calls++
			return errors.New("transient")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()

	initial := 100 * time.Millisecond
	maxBackoff := 30 * time.Second

	// Without jitter the progression is exactly exponential.
	for attempt := 0; attempt < 5; attempt++ {
		got := CalculateBackoff(attempt, initial, maxBackoff, 0)
		want := initial * (1 << attempt)
		assert.Equal(t, want, got, "attempt %d", attempt)
	}
}

func TestCalculateBackoff_Jitter(t *testing.T) {
	t.Parallel()

	initial := 100 * time.Millisecond
	maxBackoff := 30 * time.Second

	got := CalculateBackoff(2, initial, maxBackoff, 0.25)
	base := 400 * time.Millisecond

	assert.GreaterOrEqual(t, got, base)
	assert.LessOrEqual(t, got, base+base/4)
}

func TestCalculateBackoff_CappedAtMax(t *testing.T) {
	t.Parallel()

	got := CalculateBackoff(20, time.Second, 5*time.Second, 0.25)
	assert.Equal(t, 5*time.Second, got)
}

func TestIsNetworkError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "connection refused", err: syscall.ECONNREFUSED, want: true},
		{name: "connection reset", err: syscall.ECONNRESET, want: true},
		{name: "eof", err: io.EOF, want: true},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "op error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "wrapped refused", err: errors.Join(errors.New("dial"), syscall.ECONNREFUSED), want: true},
		{name: "application error", err: errors.New("bad payload"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, IsNetworkError(tt.err))
		})
	}
}
