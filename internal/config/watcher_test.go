package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixtureFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestWatcher_StartLoadsInitialFixtures(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "fixtures.yaml")
	writeFixtureFile(t, path, `
endpoints:
  - pattern: /ping
    response:
      body: pong
`)

	var calls atomic.Int32
	w, err := NewWatcher(path, func(f *FixtureFile) {
		calls.Add(1)
	})
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	assert.Equal(t, int32(1), calls.Load(), "callback fires with the initial load")
	require.NotNil(t, w.LastFixtures())
	assert.Len(t, w.LastFixtures().Endpoints, 1)
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "fixtures.yaml")
	writeFixtureFile(t, path, `
endpoints:
  - pattern: /ping
    response:
      body: pong
`)

	reloaded := make(chan *FixtureFile, 4)
	w, err := NewWatcher(path, func(f *FixtureFile) {
		reloaded <- f
	}, WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	// Initial load.
	select {
	case f := <-reloaded:
		assert.Len(t, f.Endpoints, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("initial fixture load did not arrive")
	}

	writeFixtureFile(t, path, `
endpoints:
  - pattern: /ping
    response:
      body: pong
  - pattern: /health
    response:
      status: 204
`)

	select {
	case f := <-reloaded:
		assert.Len(t, f.Endpoints, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("fixture reload did not arrive")
	}
}

func TestWatcher_ReloadFailureKeepsLastFixtures(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "fixtures.yaml")
	writeFixtureFile(t, path, `
endpoints:
  - pattern: /ping
    response:
      body: pong
`)

	errs := make(chan error, 4)
	w, err := NewWatcher(path, nil,
		WithDebounceDelay(20*time.Millisecond),
		WithErrorCallback(func(e error) { errs <- e }),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	writeFixtureFile(t, path, "endpoints: [broken")

	select {
	case e := <-errs:
		assert.Error(t, e)
	case <-time.After(2 * time.Second):
		t.Fatal("error callback did not fire")
	}

	require.NotNil(t, w.LastFixtures())
	assert.Len(t, w.LastFixtures().Endpoints, 1, "last good fixtures survive a bad reload")
}

func TestWatcher_StartMissingFile(t *testing.T) {
	t.Parallel()

	w, err := NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)

	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop(), "stop after failed start returns immediately")
}

func TestWatcher_ForceReload(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "fixtures.yaml")
	writeFixtureFile(t, path, `
endpoints:
  - pattern: /a
    response:
      body: x
`)

	var calls atomic.Int32
	w, err := NewWatcher(path, func(f *FixtureFile) {
		calls.Add(1)
	})
	require.NoError(t, err)

	require.NoError(t, w.ForceReload())
	assert.Equal(t, int32(1), calls.Load())

	writeFixtureFile(t, path, "endpoints: [broken")
	assert.Error(t, w.ForceReload())
	assert.Len(t, w.LastFixtures().Endpoints, 1)
}

func TestWatcher_StopIdempotent(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "fixtures.yaml")
	writeFixtureFile(t, path, `
endpoints:
  - pattern: /a
    response:
      body: x
`)

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop(), "second stop is a no-op")
}
