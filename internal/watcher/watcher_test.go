package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcherCoalescesBursts(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	bundle := filepath.Join(dir, "ssr-bundle.json")
	var calls atomic.Int32
	w, err := New(Config{
		Files:    []string{bundle},
		Debounce: 50 * time.Millisecond,
		OnChange: func() error {
			calls.Add(1)
			return nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(bundle, []byte(`{"entry":"app"}`), 0o600))
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())

	w.Stop()
	w.Stop()
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	var calls atomic.Int32
	w, err := New(Config{
		Files:    []string{filepath.Join(dir, "front.html")},
		Debounce: 20 * time.Millisecond,
		OnChange: func() error {
			calls.Add(1)
			return nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))
	time.Sleep(150 * time.Millisecond)
	require.Zero(t, calls.Load())

	w.Stop()
}

func TestWatcherSurvivesFailedCallback(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "front.html")
	var calls atomic.Int32
	w, err := New(Config{
		Files:    []string{file},
		Debounce: 20 * time.Millisecond,
		OnChange: func() error {
			calls.Add(1)
			return errors.New("bad template")
		},
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(file, []byte("a"), 0o600))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte("b"), 0o600))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	w.Stop()
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{OnChange: func() error { return nil }})
	require.Error(t, err)

	_, err = New(Config{Files: []string{"x"}})
	require.Error(t, err)
}

func TestStopReturnsAfterFailedStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	notDir := filepath.Join(dir, "dist")
	require.NoError(t, os.WriteFile(notDir, []byte("x"), 0o600))

	w, err := New(Config{
		Files:    []string{filepath.Join(notDir, "ssr-bundle.json")},
		OnChange: func() error { return nil },
	})
	require.NoError(t, err)
	require.Error(t, w.Start(context.Background()))

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked after a failed Start")
	}
}
