package metrics

import (
	"sync"
	"time"

	"mnemo/pkg/logger"
)

// Collector records operation timings and outcomes through the service
// logger and keeps running counters per operation name.
type Collector struct {
	mu       sync.Mutex
	counts   map[string]int64
	failures map[string]int64
	totals   map[string]time.Duration
	logger   *logger.Logger
}

// NewCollector creates a collector that reports through the given logger.
func NewCollector(log *logger.Logger) *Collector {
	return &Collector{
		counts:   make(map[string]int64),
		failures: make(map[string]int64),
		totals:   make(map[string]time.Duration),
		logger:   log,
	}
}

// Timer tracks a single in-flight operation.
type Timer struct {
	collector *Collector
	operation string
	metadata  map[string]interface{}
	started   time.Time
}

// Start begins timing an operation. Call Done on the returned timer when
// the operation finishes.
func (c *Collector) Start(operation string, metadata map[string]interface{}) *Timer {
	return &Timer{
		collector: c,
		operation: operation,
		metadata:  metadata,
		started:   time.Now(),
	}
}

// Done stops the timer and records the outcome. Passing a non-nil error
// marks the operation as failed.
func (t *Timer) Done(err error) {
	elapsed := time.Since(t.started)
	c := t.collector

	c.mu.Lock()
	c.counts[t.operation]++
	c.totals[t.operation] += elapsed
	if err != nil {
		c.failures[t.operation]++
	}
	c.mu.Unlock()

	payload := map[string]interface{}{
		"operation":   t.operation,
		"duration_ms": elapsed.Milliseconds(),
		"success":     err == nil,
	}
	for k, v := range t.metadata {
		payload[k] = v
	}
	if err != nil {
		payload["error"] = err.Error()
		c.logger.WithPayload(payload).Warn("operation finished with error")
		return
	}
	c.logger.WithPayload(payload).Debug("operation finished")
}

// Snapshot returns per-operation counters for reporting.
type Snapshot struct {
	Operation string        `json:"operation"`
	Count     int64         `json:"count"`
	Failures  int64         `json:"failures"`
	AvgTime   time.Duration `json:"avg_time"`
}

// Report returns a snapshot of all counters collected so far.
func (c *Collector) Report() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(c.counts))
	for op, count := range c.counts {
		avg := time.Duration(0)
		if count > 0 {
			avg = c.totals[op] / time.Duration(count)
		}
		snapshots = append(snapshots, Snapshot{
			Operation: op,
			Count:     count,
			Failures:  c.failures[op],
			AvgTime:   avg,
		})
	}
	return snapshots
}
