package admin

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
)

// MonitorService surfaces operational state: health, API usage, error
// samples, and storage footprint.
type MonitorService struct {
	db      *sql.DB
	index   ports.VectorIndex
	metrics ports.MetricsStore
	dataDir string
	started time.Time
}

// NewMonitorService creates the monitor over the record database handle,
// the vector index, and the metrics store.
func NewMonitorService(db *sql.DB, index ports.VectorIndex, metrics ports.MetricsStore, dataDir string) *MonitorService {
	return &MonitorService{
		db:      db,
		index:   index,
		metrics: metrics,
		dataDir: dataDir,
		started: time.Now(),
	}
}

// Health is the overall system health report.
type Health struct {
	Status        string  `json:"status"` // healthy or degraded
	Database      string  `json:"database"`
	VectorIndex   string  `json:"vector_index"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	HeapMB        float64 `json:"heap_mb"`
}

// Health probes both stores and reports process vitals.
func (s *MonitorService) Health(ctx context.Context) Health {
	h := Health{
		Status:        "healthy",
		Database:      "ok",
		VectorIndex:   "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
	}
	if err := s.db.PingContext(ctx); err != nil {
		h.Database = err.Error()
		h.Status = "degraded"
	}
	if _, err := s.index.Stats(ctx); err != nil {
		h.VectorIndex = err.Error()
		h.Status = "degraded"
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	h.HeapMB = float64(mem.HeapAlloc) / (1024 * 1024)
	return h
}

// Usage aggregates API metrics over the trailing window. Hours is clamped
// to [1, 168].
func (s *MonitorService) Usage(ctx context.Context, hours int) (ports.UsageReport, error) {
	hours = clampHours(hours)
	return s.metrics.UsageSince(ctx, time.Now().Add(-time.Duration(hours)*time.Hour))
}

// Errors lists failed request samples over the trailing window.
func (s *MonitorService) Errors(ctx context.Context, hours, limit int) ([]entities.MetricSample, error) {
	hours = clampHours(hours)
	return s.metrics.ErrorsSince(ctx, time.Now().Add(-time.Duration(hours)*time.Hour), limit)
}

// Metrics is a point-in-time snapshot of process resource usage.
type Metrics struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	CPUs          int     `json:"cpus"`
	HeapMB        float64 `json:"heap_mb"`
	HeapObjects   uint64  `json:"heap_objects"`
	TotalAllocMB  float64 `json:"total_alloc_mb"`
	GCCycles      uint32  `json:"gc_cycles"`
}

// Metrics reports process vitals without probing the stores.
func (s *MonitorService) Metrics() Metrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Metrics{
		UptimeSeconds: time.Since(s.started).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		CPUs:          runtime.NumCPU(),
		HeapMB:        float64(mem.HeapAlloc) / (1024 * 1024),
		HeapObjects:   mem.HeapObjects,
		TotalAllocMB:  float64(mem.TotalAlloc) / (1024 * 1024),
		GCCycles:      mem.NumGC,
	}
}

// StorageInfo reports the on-disk footprint of the data directory.
type StorageInfo struct {
	DataDir    string  `json:"data_dir"`
	TotalBytes int64   `json:"total_bytes"`
	TotalMB    float64 `json:"total_mb"`
	Files      int     `json:"files"`
}

// Storage walks the data directory and sums file sizes.
func (s *MonitorService) Storage(ctx context.Context) (StorageInfo, error) {
	info := StorageInfo{DataDir: s.dataDir}
	err := filepath.Walk(s.dataDir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			info.TotalBytes += fi.Size()
			info.Files++
		}
		return nil
	})
	if err != nil {
		return info, err
	}
	info.TotalMB = float64(info.TotalBytes) / (1024 * 1024)
	return info, nil
}

func clampHours(hours int) int {
	if hours < 1 {
		return 24
	}
	if hours > 168 {
		return 168
	}
	return hours
}
