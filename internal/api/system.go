package api

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// SystemInfo is the process section of the health report
type SystemInfo struct {
	Goroutines    int     `json:"goroutines"`
	RSSBytes      uint64  `json:"rssBytes"`
	CPUPercent    float64 `json:"cpuPercent"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
}

// SystemProbe samples resource usage of the running process
type SystemProbe interface {
	Sample(ctx context.Context) SystemInfo
}

// ProcessProbe reads the current process through gopsutil
// TECHNICAL DISCOVERY: CPU percent is measured between consecutive samples,
// so the first sample after start reports zero
type ProcessProbe struct {
	mu      sync.Mutex
	proc    *process.Process
	started time.Time
}

// NewProcessProbe creates a probe for this process. A probe that cannot
// attach still reports goroutines and uptime.
func NewProcessProbe() *ProcessProbe {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		proc = nil
	}
	return &ProcessProbe{proc: proc, started: time.Now()}
}

// Sample implements SystemProbe
func (p *ProcessProbe) Sample(ctx context.Context) SystemInfo {
	info := SystemInfo{
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(time.Since(p.started).Seconds()),
	}
	if p.proc == nil {
		return info
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if mem, err := p.proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}
	if cpu, err := p.proc.PercentWithContext(ctx, 0); err == nil {
		info.CPUPercent = cpu
	}
	return info
}
