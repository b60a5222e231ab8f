package infrastructure

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestSystemMetricsCollect(t *testing.T) {
	metrics, err := NewSystemMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	start := time.Now().Add(-time.Minute)
	stats := metrics.Collect(context.Background(), start)

	require.NotNil(t, stats)
	assert.Positive(t, stats.GoRoutines)
	assert.Positive(t, stats.HeapBytes)
	assert.Positive(t, stats.AllocatedBytes)
	assert.Positive(t, stats.SystemBytes)
	assert.Positive(t, stats.CPUCount)
	assert.GreaterOrEqual(t, stats.Uptime, time.Minute)
	assert.WithinDuration(t, time.Now(), stats.Timestamp, 5*time.Second)
}

func TestSystemMetricsRecordsPauseOncePerGC(t *testing.T) {
	metrics, err := NewSystemMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	start := time.Now()
	metrics.Collect(context.Background(), start)
	first := metrics.lastNumGC

	runtime.GC()
	stats := metrics.Collect(context.Background(), start)

	assert.Greater(t, stats.GCCount, first)
	assert.Equal(t, stats.GCCount, metrics.lastNumGC)
}

func TestSystemMetricsCollectorLifecycle(t *testing.T) {
	collector, err := NewSystemMetricsCollector(noop.NewMeterProvider().Meter("test"), time.Second)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		collector.Start(context.Background())
		close(done)
	}()

	stats := collector.GetCurrentStats(context.Background())
	require.NotNil(t, stats)
	assert.Positive(t, stats.GoRoutines)

	collector.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestSystemMetricsCollectorStopsOnContext(t *testing.T) {
	collector, err := NewSystemMetricsCollector(noop.NewMeterProvider().Meter("test"), time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		collector.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector ignored context cancellation")
	}
}

func TestSystemMetricsCollectorDefaultInterval(t *testing.T) {
	collector, err := NewSystemMetricsCollector(noop.NewMeterProvider().Meter("test"), 0)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, collector.interval)
}
