// Package metrics tracks in-memory counters for schedule runs and external
// service health. Snapshots are served by the API's /metrics endpoint.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

var (
	globalCollector *Collector
	once            sync.Once
)

// Collector tracks system-wide metrics in memory
type Collector struct {
	runsStarted        atomic.Int64
	runsCompleted      atomic.Int64
	runsFailed         atomic.Int64
	generationFailures atomic.Int64
	dispatchRegistered atomic.Int64
	dispatchFailures   atomic.Int64
	sweepRecovered     atomic.Int64

	mu                sync.Mutex
	totalGenDuration  time.Duration
	generationSamples int64
	startTime         time.Time
}

// Metrics is a snapshot of current counters
type Metrics struct {
	RunsStarted        int64   `json:"runs_started"`
	RunsCompleted      int64   `json:"runs_completed"`
	RunsFailed         int64   `json:"runs_failed"`
	GenerationFailures int64   `json:"generation_failures"`
	DispatchRegistered int64   `json:"dispatch_registered"`
	DispatchFailures   int64   `json:"dispatch_failures"`
	SweepRecovered     int64   `json:"sweep_recovered"`
	AvgGenerationMS    float64 `json:"avg_generation_ms"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// NewCollector creates a new collector
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Global returns the process-wide collector
func Global() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}

// RunStarted records a schedule run beginning
func (c *Collector) RunStarted() {
	c.runsStarted.Add(1)
}

// RunCompleted records a successful run
func (c *Collector) RunCompleted() {
	c.runsCompleted.Add(1)
}

// RunFailed records a failed run
func (c *Collector) RunFailed() {
	c.runsFailed.Add(1)
}

// GenerationFailed records a content-generation failure
func (c *Collector) GenerationFailed() {
	c.generationFailures.Add(1)
}

// GenerationObserved records a successful generation's duration
func (c *Collector) GenerationObserved(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalGenDuration += d
	c.generationSamples++
}

// DispatchRegistered records a successful external-job registration
func (c *Collector) DispatchRegistered() {
	c.dispatchRegistered.Add(1)
}

// DispatchFailed records a failed dispatch call
func (c *Collector) DispatchFailed() {
	c.dispatchFailures.Add(1)
}

// SweepRecovered records a due schedule delivered by the sweep rather than
// the dispatch service
func (c *Collector) SweepRecovered() {
	c.sweepRecovered.Add(1)
}

// Snapshot returns the current metrics
func (c *Collector) Snapshot() Metrics {
	c.mu.Lock()
	var avgMS float64
	if c.generationSamples > 0 {
		avgMS = float64(c.totalGenDuration.Milliseconds()) / float64(c.generationSamples)
	}
	uptime := time.Since(c.startTime).Seconds()
	c.mu.Unlock()

	return Metrics{
		RunsStarted:        c.runsStarted.Load(),
		RunsCompleted:      c.runsCompleted.Load(),
		RunsFailed:         c.runsFailed.Load(),
		GenerationFailures: c.generationFailures.Load(),
		DispatchRegistered: c.dispatchRegistered.Load(),
		DispatchFailures:   c.dispatchFailures.Load(),
		SweepRecovered:     c.sweepRecovered.Load(),
		AvgGenerationMS:    avgMS,
		UptimeSeconds:      uptime,
	}
}

// Reset clears all counters (for testing)
func (c *Collector) Reset() {
	c.runsStarted.Store(0)
	c.runsCompleted.Store(0)
	c.runsFailed.Store(0)
	c.generationFailures.Store(0)
	c.dispatchRegistered.Store(0)
	c.dispatchFailures.Store(0)
	c.sweepRecovered.Store(0)

	c.mu.Lock()
	c.totalGenDuration = 0
	c.generationSamples = 0
	c.startTime = time.Now()
	c.mu.Unlock()
}
