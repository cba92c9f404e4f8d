// Package stats collects a small host/process snapshot for the observer
// init payload and for status notifications.
package stats

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is a point-in-time view of the host and this process. Every
// field is best effort; a probe failure leaves its fields zero.
type Snapshot struct {
	Hostname      string    `json:"hostname,omitempty"`
	UptimeSeconds uint64    `json:"uptimeSeconds,omitempty"`
	CPUPercent    float64   `json:"cpuPercent,omitempty"`
	MemPercent    float64   `json:"memPercent,omitempty"`
	ProcRSSBytes  uint64    `json:"procRssBytes,omitempty"`
	Goroutines    int       `json:"goroutines"`
	CollectedAt   time.Time `json:"collectedAt"`
}

// Collect probes the host. It never returns an error: stats are
// decoration, not load-bearing state.
func Collect(ctx context.Context) Snapshot {
	snap := Snapshot{
		Goroutines:  runtime.NumGoroutine(),
		CollectedAt: time.Now(),
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		snap.Hostname = info.Hostname
		snap.UptimeSeconds = info.Uptime
	}
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemPercent = vm.UsedPercent
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfoWithContext(ctx); err == nil {
			snap.ProcRSSBytes = mi.RSS
		}
	}
	return snap
}
