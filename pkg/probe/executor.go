package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDeadline bounds how long the Executor waits for one probe.
const DefaultDeadline = 3 * time.Second

// Executor schedules probes on a worker pool and bounds each by a
// deadline. The deadline is identical for all probes.
type Executor struct {
	pool     *Pool
	deadline time.Duration
	logger   *logrus.Logger
}

// NewExecutor creates an Executor using the given pool. A deadline of
// zero or less falls back to DefaultDeadline.
func NewExecutor(pool *Pool, deadline time.Duration, logger *logrus.Logger) *Executor {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Executor{
		pool:     pool,
		deadline: deadline,
		logger:   logger,
	}
}

// Deadline returns the per-probe deadline.
func (e *Executor) Deadline() time.Duration {
	return e.deadline
}

// Execution is a handle to one scheduled probe. Exactly one Outcome can
// be received from it via Wait.
type Execution struct {
	name     string
	deadline time.Duration
	outcome  chan Outcome
	timer    *time.Timer
	cancel   context.CancelFunc
	logger   *logrus.Logger
}

// Begin schedules p on the pool and returns immediately. The deadline
// timer starts now, so time spent queued behind busy workers counts
// against the probe.
func (e *Executor) Begin(ctx context.Context, p Probe) *Execution {
	runCtx, cancel := context.WithTimeout(ctx, e.deadline)

	ex := &Execution{
		name:     p.Name(),
		deadline: e.deadline,
		outcome:  make(chan Outcome, 1),
		timer:    time.NewTimer(e.deadline),
		cancel:   cancel,
		logger:   e.logger,
	}

	e.pool.Submit(func() {
		defer cancel()
		ex.outcome <- run(runCtx, p)
	})

	return ex
}

// Wait blocks until the probe produces an outcome or the deadline
// elapses. On timeout the underlying worker is abandoned rather than
// killed: the probe's context is cancelled so well-behaved drivers
// abort early, but the Runner proceeds without waiting further.
func (ex *Execution) Wait() Outcome {
	select {
	case out := <-ex.outcome:
		ex.timer.Stop()
		ex.cancel()
		return out
	case <-ex.timer.C:
		ex.cancel()
		ex.logger.Errorf("probe %s exceeded %v deadline, abandoning worker", ex.name, ex.deadline)
		return Timeout(ex.name, fmt.Sprintf("no outcome within %v", ex.deadline))
	}
}

// run invokes the probe, converting a panic into a soft error so that a
// misbehaving probe cannot take down the process or wedge the pass.
func run(ctx context.Context, p Probe) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = SoftError(Metrics{
				p.Name() + "_error": fmt.Sprintf("probe panicked: %v", r),
			})
		}
	}()
	return p.Run(ctx)
}
