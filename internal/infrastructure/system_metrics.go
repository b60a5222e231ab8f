package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemMetrics records Go runtime health for the dashboard process. The
// gauges land on the same Prometheus scrape as the dashboard metrics so one
// endpoint covers both the application and the process running it.
type SystemMetrics struct {
	goRoutines     metric.Int64Gauge
	heapBytes      metric.Int64Gauge
	allocatedBytes metric.Int64Gauge
	systemBytes    metric.Int64Gauge
	gcCount        metric.Int64Gauge
	gcPause        metric.Float64Histogram
	cpuCount       metric.Int64Gauge
	processUptime  metric.Float64Gauge

	// lastNumGC tracks the GC generation of the previous collection so a
	// pause is recorded once, not on every tick until the next GC.
	lastNumGC uint32
}

// NewSystemMetrics creates the runtime instruments on the given meter
func NewSystemMetrics(meter metric.Meter) (*SystemMetrics, error) {
	goRoutines, err := meter.Int64Gauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}

	heapBytes, err := meter.Int64Gauge(
		"system_memory_heap_bytes",
		metric.WithDescription("Heap memory in use"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	allocatedBytes, err := meter.Int64Gauge(
		"system_memory_allocated_bytes",
		metric.WithDescription("Cumulative bytes allocated by the Go runtime"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	systemBytes, err := meter.Int64Gauge(
		"system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	gcCount, err := meter.Int64Gauge(
		"system_gc_count",
		metric.WithDescription("Completed garbage collection cycles"),
	)
	if err != nil {
		return nil, err
	}

	gcPause, err := meter.Float64Histogram(
		"system_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	cpuCount, err := meter.Int64Gauge(
		"system_cpu_count",
		metric.WithDescription("Number of logical CPUs"),
	)
	if err != nil {
		return nil, err
	}

	processUptime, err := meter.Float64Gauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &SystemMetrics{
		goRoutines:     goRoutines,
		heapBytes:      heapBytes,
		allocatedBytes: allocatedBytes,
		systemBytes:    systemBytes,
		gcCount:        gcCount,
		gcPause:        gcPause,
		cpuCount:       cpuCount,
		processUptime:  processUptime,
	}, nil
}

// SystemStats is one snapshot of the runtime counters
type SystemStats struct {
	GoRoutines     int64
	HeapBytes      int64
	AllocatedBytes int64
	SystemBytes    int64
	GCCount        uint32
	LastGCPause    time.Duration
	CPUCount       int
	Uptime         time.Duration
	Timestamp      time.Time
}

// Collect reads the runtime counters, records them on the instruments and
// returns the snapshot. Not safe for concurrent use; the collector
// serializes calls.
func (sm *SystemMetrics) Collect(ctx context.Context, startTime time.Time) *SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := &SystemStats{
		GoRoutines:     int64(runtime.NumGoroutine()),
		HeapBytes:      int64(memStats.HeapInuse),
		AllocatedBytes: int64(memStats.TotalAlloc),
		SystemBytes:    int64(memStats.Sys),
		GCCount:        memStats.NumGC,
		LastGCPause:    time.Duration(memStats.PauseNs[(memStats.NumGC+255)%256]),
		CPUCount:       runtime.NumCPU(),
		Uptime:         time.Since(startTime),
		Timestamp:      time.Now(),
	}

	sm.goRoutines.Record(ctx, stats.GoRoutines)
	sm.heapBytes.Record(ctx, stats.HeapBytes)
	sm.allocatedBytes.Record(ctx, stats.AllocatedBytes)
	sm.systemBytes.Record(ctx, stats.SystemBytes)
	sm.gcCount.Record(ctx, int64(stats.GCCount))
	sm.cpuCount.Record(ctx, int64(stats.CPUCount))
	sm.processUptime.Record(ctx, stats.Uptime.Seconds())

	if stats.GCCount > sm.lastNumGC {
		sm.gcPause.Record(ctx, stats.LastGCPause.Seconds())
		sm.lastNumGC = stats.GCCount
	}

	return stats
}

// SystemMetricsCollector samples the runtime on a fixed interval for as long
// as the server runs
type SystemMetricsCollector struct {
	metrics   *SystemMetrics
	startTime time.Time
	interval  time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewSystemMetricsCollector creates a collector. Intervals below one second
// are raised to the default of thirty seconds.
func NewSystemMetricsCollector(meter metric.Meter, interval time.Duration) (*SystemMetricsCollector, error) {
	metrics, err := NewSystemMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}

	if interval < time.Second {
		interval = 30 * time.Second
	}

	return &SystemMetricsCollector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start collects once immediately and then on every tick until Stop is
// called or the context ends. Blocks; run it on its own goroutine.
func (smc *SystemMetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(smc.interval)
	defer ticker.Stop()

	smc.collect(ctx)

	for {
		select {
		case <-ticker.C:
			smc.collect(ctx)
		case <-smc.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the collection loop
func (smc *SystemMetricsCollector) Stop() {
	close(smc.stopCh)
}

// GetCurrentStats collects and returns a fresh snapshot
func (smc *SystemMetricsCollector) GetCurrentStats(ctx context.Context) *SystemStats {
	return smc.collect(ctx)
}

func (smc *SystemMetricsCollector) collect(ctx context.Context) *SystemStats {
	smc.mu.Lock()
	defer smc.mu.Unlock()
	return smc.metrics.Collect(ctx, smc.startTime)
}
