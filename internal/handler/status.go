package handler

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"guild-warden/internal/crash"
	"guild-warden/internal/logger"
)

// processing counters shared by every platform binding
var (
	totalMessagesProcessed int64
	totalCommands          int64
	totalGuildEvents       int64
	totalErrors            int64
	totalTimeouts          int64
	startTime              = time.Now()
)

func incrementCounter(counter *int64) {
	atomic.AddInt64(counter, 1)
}

// ProcessingStats is a point-in-time view of the handler counters.
type ProcessingStats struct {
	Uptime         time.Duration
	Messages       int64
	Commands       int64
	GuildEvents    int64
	Errors         int64
	Timeouts       int64
	ActiveHandlers int
	MaxConcurrent  int
	MemoryMB       uint64
	SysMemoryMB    uint64
	GCRuns         uint32
	Goroutines     int
}

// GetProcessingStats reads the counters of h and the runtime.
func (h *Handler) GetProcessingStats() ProcessingStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return ProcessingStats{
		Uptime:         time.Since(startTime),
		Messages:       atomic.LoadInt64(&totalMessagesProcessed),
		Commands:       atomic.LoadInt64(&totalCommands),
		GuildEvents:    atomic.LoadInt64(&totalGuildEvents),
		Errors:         atomic.LoadInt64(&totalErrors),
		Timeouts:       atomic.LoadInt64(&totalTimeouts),
		ActiveHandlers: h.ActiveHandlers(),
		MaxConcurrent:  cap(h.semaphore),
		MemoryMB:       bToMb(m.Alloc),
		SysMemoryMB:    bToMb(m.Sys),
		GCRuns:         m.NumGC,
		Goroutines:     runtime.NumGoroutine(),
	}
}

// StartStatusMonitoring logs the counters every interval until ctx is done.
func (h *Handler) StartStatusMonitoring(ctx context.Context, interval time.Duration) {
	crash.SafeGoroutine("status-monitor", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.logProcessingStats()
			}
		}
	})
}

func (h *Handler) logProcessingStats() {
	stats := h.GetProcessingStats()
	logger.Infof("Processing stats: %+v", stats)

	if stats.ActiveHandlers > stats.MaxConcurrent*8/10 {
		logger.Warningf("High number of active handlers: %d", stats.ActiveHandlers)
	}

	events := stats.Messages + stats.Commands
	if events > 0 && float64(stats.Errors)/float64(events) > 0.1 {
		logger.Warningf("High error rate: %.2f%% (%d errors out of %d events)",
			float64(stats.Errors)/float64(events)*100, stats.Errors, events)
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// GetDetailedStatus renders the counters for the debug endpoint.
func (h *Handler) GetDetailedStatus() string {
	stats := h.GetProcessingStats()
	return fmt.Sprintf(`
=== Guild Warden Processing Status ===
Uptime: %d seconds
Messages Processed: %d
Commands: %d
Guild Events: %d
Errors: %d
Timeouts: %d
Active Handlers: %d/%d
Memory Usage: %d MB
System Memory: %d MB
GC Runs: %d
Goroutines: %d
======================================`,
		int64(stats.Uptime.Seconds()),
		stats.Messages,
		stats.Commands,
		stats.GuildEvents,
		stats.Errors,
		stats.Timeouts,
		stats.ActiveHandlers,
		stats.MaxConcurrent,
		stats.MemoryMB,
		stats.SysMemoryMB,
		stats.GCRuns,
		stats.Goroutines,
	)
}
