package telemetry

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/split73/SaaSoft-test/store"
)

// StatsCollector counts account store writes and HTTP requests
type StatsCollector struct {
	totalRequests  atomic.Int64
	requestsPerSec atomic.Int64
	upserts        atomic.Int64
	removes        atomic.Int64
	saves          atomic.Int64

	mu           sync.RWMutex
	accountCount func() int

	startTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

type Stats struct {
	AccountCount   int
	TotalRequests  int64
	RequestsPerSec int64
	Upserts        int64
	Removes        int64
	Saves          int64
	Uptime         time.Duration
	GoRoutines     int
	MemoryUsage    string
	LastUpdated    time.Time
}

func NewStatsCollector() *StatsCollector {
	ctx, cancel := context.WithCancel(context.Background())
	return &StatsCollector{
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetAccountCounter supplies the function used to report the collection size
func (sc *StatsCollector) SetAccountCounter(counter func() int) {
	sc.mu.Lock()
	sc.accountCount = counter
	sc.mu.Unlock()
}

func (sc *StatsCollector) IncrementRequest() {
	sc.totalRequests.Add(1)
}

// TrackStoreWrite is meant to be passed to store.WithWriteHook
func (sc *StatsCollector) TrackStoreWrite(op store.Operation) {
	switch op {
	case store.OpUpsert:
		sc.upserts.Add(1)
	case store.OpRemove:
		sc.removes.Add(1)
	case store.OpSave:
		sc.saves.Add(1)
	}
}

func (sc *StatsCollector) CollectStats() Stats {
	stats := Stats{
		LastUpdated:    time.Now(),
		Uptime:         time.Since(sc.startTime),
		GoRoutines:     runtime.NumGoroutine(),
		TotalRequests:  sc.totalRequests.Load(),
		RequestsPerSec: sc.requestsPerSec.Load(),
		Upserts:        sc.upserts.Load(),
		Removes:        sc.removes.Load(),
		Saves:          sc.saves.Load(),
	}

	sc.mu.RLock()
	counter := sc.accountCount
	sc.mu.RUnlock()
	if counter != nil {
		stats.AccountCount = counter()
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.MemoryUsage = formatBytes(m.Alloc)

	return stats
}

// Stop gracefully shuts down the stats collector
func (sc *StatsCollector) Stop() {
	sc.cancel()
}

func (sc *StatsCollector) StartRequestRateCalculation(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		lastTotal := int64(0)
		for {
			select {
			case <-sc.ctx.Done():
				return
			case <-ticker.C:
				current := sc.totalRequests.Load()
				rate := int64(float64(current-lastTotal) / interval.Seconds())
				sc.requestsPerSec.Store(rate)
				lastTotal = current
			}
		}
	}()
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
