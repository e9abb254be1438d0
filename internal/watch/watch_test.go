package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/era/internal/metrics"
)

func TestIgnored(t *testing.T) {
	assert.True(t, ignored("/c/.module.yaml.swp"))
	assert.True(t, ignored("/c/data/a.csv~"))
	assert.True(t, ignored("/c/data/.jsonl-1.tmp"))
	assert.False(t, ignored("/c/data/a.csv"))
}

func TestRunRebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "core", "data"), 0o755))

	rebuilt := make(chan struct{}, 8)
	w := New([]string{dir}, func(context.Context) error {
		rebuilt <- struct{}{}
		return nil
	}, WithDebounce(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core", "data", "a.csv"), []byte("x,1\n"), 0o644))

	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunRecordsFailedReload(t *testing.T) {
	dir := t.TempDir()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	attempted := make(chan struct{}, 8)
	w := New([]string{dir}, func(context.Context) error {
		attempted <- struct{}{}
		return errors.New("broken package")
	}, WithDebounce(20*time.Millisecond), WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("y,2\n"), 0o644))

	select {
	case <-attempted:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild attempt after change")
	}

	require.Eventually(t, func() bool {
		families, err := reg.Gather()
		if err != nil {
			return false
		}
		for _, f := range families {
			if f.GetName() == "era_reload_errors_total" {
				return f.GetMetric()[0].GetCounter().GetValue() >= 1
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunMissingDir(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "missing")}, func(context.Context) error { return nil })
	require.Error(t, w.Run(context.Background()))
}
