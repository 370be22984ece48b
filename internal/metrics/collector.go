// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated timings for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds  float64            `json:"uptime_seconds"`
	Turn           *OperationSnapshot `json:"turn,omitempty"`
	LLMStream      *OperationSnapshot `json:"llm_stream,omitempty"`
	SessionResolve *OperationSnapshot `json:"session_resolve,omitempty"`
	ParseFailures  int64              `json:"parse_failures"`
}

// Operation names for the collector.
const (
	OpTurn           = "turn"
	OpLLMStream      = "llm_stream"
	OpSessionResolve = "session_resolve"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu            sync.RWMutex
	startTime     time.Time
	ops           map[string]*OperationMetrics
	parseFailures int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordParseFailure counts a model response that could not be parsed.
func (c *Collector) RecordParseFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parseFailures++
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:  time.Since(c.startTime).Seconds(),
		Turn:           snapshotOp(c.ops[OpTurn]),
		LLMStream:      snapshotOp(c.ops[OpLLMStream]),
		SessionResolve: snapshotOp(c.ops[OpSessionResolve]),
		ParseFailures:  c.parseFailures,
	}
}
