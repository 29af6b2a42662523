package probe

import (
	"context"
	"strings"
	"testing"
	"time"
)

// stubProbe is a minimal Probe implementation for executor and
// orchestrator tests.
type stubProbe struct {
	name    string
	enabled bool
	reason  string
	run     func(ctx context.Context) Outcome
}

func (s *stubProbe) Name() string            { return s.name }
func (s *stubProbe) Enabled() (bool, string) { return s.enabled, s.reason }
func (s *stubProbe) Run(ctx context.Context) Outcome {
	return s.run(ctx)
}

func healthyProbe(name string, metrics Metrics) *stubProbe {
	return &stubProbe{
		name:    name,
		enabled: true,
		run: func(_ context.Context) Outcome {
			return Success(metrics)
		},
	}
}

func sleepingProbe(name string, delay time.Duration, metrics Metrics) *stubProbe {
	return &stubProbe{
		name:    name,
		enabled: true,
		run: func(_ context.Context) Outcome {
			time.Sleep(delay)
			return Success(metrics)
		},
	}
}

func TestExecutor_Success(t *testing.T) {
	pool := NewPool(2, testLogger())
	defer pool.Close()
	exec := NewExecutor(pool, time.Second, testLogger())

	p := healthyProbe("stub", Metrics{"stub_latency": 1.5})
	out := exec.Begin(context.Background(), p).Wait()

	if out.Kind != KindSuccess {
		t.Fatalf("expected success, got %v", out.Kind)
	}
	if out.Metrics["stub_latency"] != 1.5 {
		t.Error("metrics not passed through")
	}
}

func TestExecutor_Timeout(t *testing.T) {
	pool := NewPool(2, testLogger())
	defer pool.Close()
	exec := NewExecutor(pool, 100*time.Millisecond, testLogger())

	p := sleepingProbe("slow", 500*time.Millisecond, Metrics{"slow_latency": 1.0})

	start := time.Now()
	out := exec.Begin(context.Background(), p).Wait()
	elapsed := time.Since(start)

	if out.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %v", out.Kind)
	}
	if !strings.Contains(out.Reason, "slow") {
		t.Errorf("timeout reason should name the probe, got %q", out.Reason)
	}
	// Wait must return at the deadline, not when the probe finishes.
	if elapsed >= 400*time.Millisecond {
		t.Errorf("Wait took %v, expected close to the 100ms deadline", elapsed)
	}
}

func TestExecutor_CancelsContextOnTimeout(t *testing.T) {
	pool := NewPool(2, testLogger())
	defer pool.Close()
	exec := NewExecutor(pool, 50*time.Millisecond, testLogger())

	sawCancel := make(chan struct{})
	p := &stubProbe{
		name:    "wellbehaved",
		enabled: true,
		run: func(ctx context.Context) Outcome {
			<-ctx.Done()
			close(sawCancel)
			return SoftError(Metrics{"wellbehaved_error": ctx.Err().Error()})
		},
	}

	out := exec.Begin(context.Background(), p).Wait()
	if out.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %v", out.Kind)
	}

	select {
	case <-sawCancel:
	case <-time.After(time.Second):
		t.Error("probe context was never cancelled after timeout")
	}
}

func TestExecutor_PanicBecomesSoftError(t *testing.T) {
	pool := NewPool(2, testLogger())
	defer pool.Close()
	exec := NewExecutor(pool, time.Second, testLogger())

	p := &stubProbe{
		name:    "broken",
		enabled: true,
		run: func(_ context.Context) Outcome {
			panic("nil dereference somewhere deep in a driver")
		},
	}

	out := exec.Begin(context.Background(), p).Wait()
	if out.Kind != KindSoftError {
		t.Fatalf("expected soft error, got %v", out.Kind)
	}
	msg, ok := out.Metrics["broken_error"].(string)
	if !ok || !strings.Contains(msg, "panicked") {
		t.Errorf("expected panic description, got %v", out.Metrics["broken_error"])
	}
}

func TestExecutor_DefaultDeadline(t *testing.T) {
	pool := NewPool(1, testLogger())
	defer pool.Close()

	exec := NewExecutor(pool, 0, testLogger())
	if exec.Deadline() != DefaultDeadline {
		t.Errorf("expected default deadline %v, got %v", DefaultDeadline, exec.Deadline())
	}
}
