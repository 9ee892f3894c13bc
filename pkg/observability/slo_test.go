package observability

import (
	"testing"
	"time"
)

func TestSLO_NoObservationsInCompliance(t *testing.T) {
	tracker := NewSLOTracker(DefaultTargets()...)

	status, err := tracker.Status(OpValidate)
	if err != nil {
		t.Fatal(err)
	}
	if !status.InCompliance {
		t.Fatal("expected compliance with no observations")
	}
	if status.TargetP99Micros != 150 {
		t.Fatalf("expected 150us target, got %d", status.TargetP99Micros)
	}
}

func TestSLO_InCompliance(t *testing.T) {
	tracker := NewSLOTracker(DefaultTargets()...)

	for i := 0; i < 100; i++ {
		tracker.Record(SLOObservation{Operation: OpValidate, Latency: 20 * time.Microsecond, Success: true})
	}

	status, _ := tracker.Status(OpValidate)
	if !status.InCompliance {
		t.Fatal("expected in compliance")
	}
	if status.CurrentSuccess != 1.0 {
		t.Fatalf("expected 100%% success rate, got %.2f", status.CurrentSuccess)
	}
	if status.CurrentP99Micros != 20 {
		t.Fatalf("expected p99 of 20us, got %d", status.CurrentP99Micros)
	}
}

func TestSLO_LatencyBreach(t *testing.T) {
	tracker := NewSLOTracker(DefaultTargets()...)

	for i := 0; i < 90; i++ {
		tracker.Record(SLOObservation{Operation: OpValidate, Latency: 20 * time.Microsecond, Success: true})
	}
	for i := 0; i < 10; i++ {
		tracker.Record(SLOObservation{Operation: OpValidate, Latency: 400 * time.Microsecond, Success: true})
	}

	status, _ := tracker.Status(OpValidate)
	if status.InCompliance {
		t.Fatal("expected p99 above the real-time bound")
	}
}

func TestSLO_BurnRate(t *testing.T) {
	tracker := NewSLOTracker(DefaultTargets()...)

	// 5% error rate against a 1% budget.
	for i := 0; i < 95; i++ {
		tracker.Record(SLOObservation{Operation: OpAdmit, Latency: time.Millisecond, Success: true})
	}
	for i := 0; i < 5; i++ {
		tracker.Record(SLOObservation{Operation: OpAdmit, Latency: time.Millisecond, Success: false})
	}

	status, _ := tracker.Status(OpAdmit)
	if status.InCompliance {
		t.Fatal("expected out of compliance")
	}
	if status.BurnRate < 4.0 {
		t.Fatalf("expected high burn rate, got %.2f", status.BurnRate)
	}
	if status.ErrorBudgetLeft != 0 {
		t.Fatalf("expected exhausted error budget, got %.2f", status.ErrorBudgetLeft)
	}
}

func TestSLO_WindowAndCap(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewSLOTracker(DefaultTargets()...).WithClock(func() time.Time { return now })
	tracker.max = 5

	tracker.Record(SLOObservation{Operation: OpAdmit, Success: false, Timestamp: now.Add(-2 * time.Hour)})
	for i := 0; i < 7; i++ {
		tracker.Record(SLOObservation{Operation: OpAdmit, Latency: time.Millisecond, Success: true})
	}

	status, _ := tracker.Status(OpAdmit)
	if status.ObservationCount != 5 {
		t.Fatalf("expected 5 observations, got %d", status.ObservationCount)
	}
	if !status.InCompliance {
		t.Fatal("expected old failure to fall out of the window")
	}
}

func TestSLO_NoTarget(t *testing.T) {
	tracker := NewSLOTracker()
	if _, err := tracker.Status("nonexistent"); err == nil {
		t.Fatal("expected error for missing target")
	}
	if ops := NewSLOTracker(DefaultTargets()...).Operations(); len(ops) != 2 || ops[0] != OpAdmit {
		t.Fatalf("unexpected operations %v", ops)
	}
}
