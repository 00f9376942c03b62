package httpapi

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is the process-level section of GET /api/status, in the same
// spirit as the teacher's infrastructure/middleware.RuntimeStats helper but
// sourced from gopsutil rather than bare runtime.MemStats so it reports real
// RSS and CPU rather than just the Go heap.
type ProcessStats struct {
	Goroutines    int     `json:"goroutines"`
	RSSBytes      uint64  `json:"rss_bytes"`
	CPUPercent    float64 `json:"cpu_percent"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func processStats() ProcessStats {
	stats := ProcessStats{Goroutines: runtime.NumGoroutine()}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if cpuPct, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpuPct
	}
	if createdMs, err := proc.CreateTime(); err == nil {
		stats.UptimeSeconds = time.Since(time.UnixMilli(createdMs)).Seconds()
	}
	return stats
}
