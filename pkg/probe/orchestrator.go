package probe

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Report is the aggregate of one orchestration pass: the combined
// metrics of every probe that did not time out, plus the overall
// disposition. It is built fresh per pass and never persisted.
type Report struct {
	// Metrics is the combined mapping over all merged probes.
	Metrics Metrics

	// TimedOut is set when any probe missed its deadline. The pass
	// short-circuits: Metrics keeps what was merged before the
	// timeout (useful for diagnostics) but excludes the slow probe
	// and any probe not yet awaited. Callers rendering a timed-out
	// report should not show partial metrics.
	TimedOut bool

	// Failed names the probe that timed out.
	Failed string

	// Message is a human-readable description of the timeout.
	Message string
}

// Served reports whether the pass completed and can be rendered,
// possibly with degraded (soft-error) entries.
func (r Report) Served() bool {
	return !r.TimedOut
}

// Runner fans probes out onto the Executor, fans their outcomes back
// in, and merges them into a single Report.
//
// Merge policy: soft errors are merged into the combined mapping right
// alongside successes. A probe-level failure is visible degraded data
// (the page shows the error description and any partial timings), not
// grounds for failing the whole pass. Only a genuine timeout escalates
// to a failed disposition.
type Runner struct {
	exec   *Executor
	logger *logrus.Logger
}

// NewRunner creates a Runner on top of the given Executor.
func NewRunner(exec *Executor, logger *logrus.Logger) *Runner {
	return &Runner{exec: exec, logger: logger}
}

// Run executes one orchestration pass over the given probes.
//
// Unconfigured probes contribute a "<name>_disabled" marker without any
// work being scheduled. All enabled probes are submitted before any is
// awaited, so the wall-clock cost of a pass is bounded by the slowest
// probe, not the sum. Outcomes are then awaited in submission order;
// completion order between probes does not matter since the combined
// mapping is commutative over their disjoint key namespaces.
func (r *Runner) Run(ctx context.Context, probes []Probe) Report {
	combined := make(Metrics)

	type scheduled struct {
		name string
		ex   *Execution
	}
	running := make([]scheduled, 0, len(probes))

	for _, p := range probes {
		if ok, reason := p.Enabled(); !ok {
			r.logger.Infof("probe %s disabled: %s", p.Name(), reason)
			combined[p.Name()+"_disabled"] = reason
			continue
		}
		running = append(running, scheduled{name: p.Name(), ex: r.exec.Begin(ctx, p)})
	}

	for _, s := range running {
		out := s.ex.Wait()
		switch out.Kind {
		case KindTimeout:
			// Abandon the rest of the pass. Workers already running
			// keep going against their cancelled contexts; their
			// outcome channels are buffered so nothing leaks.
			r.logger.Errorf("pass aborted: %s", out.Reason)
			return Report{Metrics: combined, TimedOut: true, Failed: s.name, Message: out.Reason}
		case KindSoftError:
			r.logger.Warnf("probe %s reported a soft error", s.name)
			combined.Merge(out.Metrics)
		case KindDisabled:
			combined[s.name+"_disabled"] = out.Reason
		default:
			combined.Merge(out.Metrics)
		}
	}

	return Report{Metrics: combined}
}
