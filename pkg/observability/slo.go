package observability

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// CoreLatencyBound is the real-time bound on one core validation.
const CoreLatencyBound = 150 * time.Microsecond

// Tracked operations.
const (
	OpValidate = "validate"
	OpAdmit    = "admit"
)

// defaultMaxObservations caps the per-operation history.
const defaultMaxObservations = 10000

// SLOTarget defines a latency and success objective for one operation.
type SLOTarget struct {
	Operation   string        `json:"operation"`
	LatencyP99  time.Duration `json:"latency_p99"`
	SuccessRate float64       `json:"success_rate"` // 0-1
	Window      time.Duration `json:"window"`
}

// DefaultTargets holds the core to its real-time bound and the full pipeline
// to a looser one.
func DefaultTargets() []*SLOTarget {
	return []*SLOTarget{
		{Operation: OpValidate, LatencyP99: CoreLatencyBound, SuccessRate: 0.999, Window: time.Hour},
		{Operation: OpAdmit, LatencyP99: 50 * time.Millisecond, SuccessRate: 0.99, Window: time.Hour},
	}
}

// SLOObservation is a single data point. Success means the operation
// completed, whatever the verdict.
type SLOObservation struct {
	Operation string        `json:"operation"`
	Latency   time.Duration `json:"latency"`
	Success   bool          `json:"success"`
	Timestamp time.Time     `json:"timestamp"`
}

// SLOStatus reports current compliance.
type SLOStatus struct {
	Operation        string  `json:"operation"`
	TargetP99Micros  int64   `json:"target_p99_us"`
	CurrentP99Micros int64   `json:"current_p99_us"`
	CurrentSuccess   float64 `json:"current_success_rate"`
	InCompliance     bool    `json:"in_compliance"`
	BurnRate         float64 `json:"burn_rate"`         // >1 means burning faster than budget allows
	ErrorBudgetLeft  float64 `json:"error_budget_left"` // percentage remaining
	ObservationCount int     `json:"observation_count"`
}

// SLOTracker monitors SLOs across operations.
type SLOTracker struct {
	mu           sync.Mutex
	targets      map[string]*SLOTarget
	observations map[string][]SLOObservation
	max          int
	clock        func() time.Time
}

// NewSLOTracker creates a tracker with the given targets.
func NewSLOTracker(targets ...*SLOTarget) *SLOTracker {
	t := &SLOTracker{
		targets:      make(map[string]*SLOTarget),
		observations: make(map[string][]SLOObservation),
		max:          defaultMaxObservations,
		clock:        time.Now,
	}
	for _, target := range targets {
		t.targets[target.Operation] = target
	}
	return t
}

// WithClock overrides clock for testing.
func (t *SLOTracker) WithClock(clock func() time.Time) *SLOTracker {
	t.clock = clock
	return t
}

// Record records an observation. The oldest observations are dropped once the
// history is full.
func (t *SLOTracker) Record(obs SLOObservation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if obs.Timestamp.IsZero() {
		obs.Timestamp = t.clock()
	}
	h := append(t.observations[obs.Operation], obs)
	if len(h) > t.max {
		h = h[len(h)-t.max:]
	}
	t.observations[obs.Operation] = h
}

// Operations lists operations with a target, sorted.
func (t *SLOTracker) Operations() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ops := make([]string, 0, len(t.targets))
	for op := range t.targets {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Status computes current SLO status for an operation.
func (t *SLOTracker) Status(operation string) (*SLOStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target, ok := t.targets[operation]
	if !ok {
		return nil, fmt.Errorf("no SLO target for operation %q", operation)
	}

	windowStart := t.clock().Add(-target.Window)
	var windowed []SLOObservation
	for _, obs := range t.observations[operation] {
		if obs.Timestamp.After(windowStart) {
			windowed = append(windowed, obs)
		}
	}

	status := &SLOStatus{
		Operation:       operation,
		TargetP99Micros: target.LatencyP99.Microseconds(),
	}
	if len(windowed) == 0 {
		status.InCompliance = true
		status.ErrorBudgetLeft = 100.0
		return status, nil
	}

	successCount := 0
	latencies := make([]time.Duration, len(windowed))
	for i, obs := range windowed {
		if obs.Success {
			successCount++
		}
		latencies[i] = obs.Latency
	}
	successRate := float64(successCount) / float64(len(windowed))

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p99Index := int(float64(len(latencies)) * 0.99)
	if p99Index >= len(latencies) {
		p99Index = len(latencies) - 1
	}
	p99 := latencies[p99Index]

	errorBudget := 1.0 - target.SuccessRate
	errorRate := 1.0 - successRate
	var burnRate float64
	budgetLeft := 100.0
	if errorBudget > 0 {
		burnRate = errorRate / errorBudget
		budgetLeft = 100.0 * (1.0 - burnRate)
	} else if errorRate > 0 {
		budgetLeft = 0
	}
	if budgetLeft < 0 {
		budgetLeft = 0
	}

	status.CurrentP99Micros = p99.Microseconds()
	status.CurrentSuccess = successRate
	status.InCompliance = p99 <= target.LatencyP99 && successRate >= target.SuccessRate
	status.BurnRate = burnRate
	status.ErrorBudgetLeft = budgetLeft
	status.ObservationCount = len(windowed)
	return status, nil
}
