// Package probe defines the core contracts for backend latency probes.
//
// A Probe exercises one backend dependency end-to-end (connect, fetch,
// teardown) and reports a flat set of named timing measurements, or a
// human-readable failure description. Different backends (MySQL,
// PostgreSQL, S3-compatible object stores) implement the Probe
// interface with their own step sequences.
//
// Probes are run by an Executor on a shared worker Pool, each bounded
// by a deadline, and their outcomes are folded into a single Report by
// the Runner. Results are captured in an Outcome, which is one of:
// success, soft error (the probe ran but a step failed), disabled (the
// backend is not configured), or timeout.
package probe

import (
	"context"
	"fmt"
)

// Probe is the interface all backend probes implement.
type Probe interface {
	// Name returns the short identifier used to namespace this
	// probe's metric keys (e.g. "mysql", "postgres", "s3").
	Name() string

	// Enabled reports whether the probe's backend is configured.
	// When it returns false, reason describes the missing
	// configuration and the Runner records a disabled marker
	// without scheduling any work.
	Enabled() (ok bool, reason string)

	// Run executes the probe and returns an Outcome. Run must never
	// let a backend error escape: step failures are converted into a
	// soft-error Outcome carrying the timings captured so far. The
	// provided context carries the per-probe deadline; backend calls
	// should honor it where their drivers allow.
	Run(ctx context.Context) Outcome
}

// Metrics maps namespaced measurement keys to values. Values are
// either float64 millisecond timings (rounded to two decimals) or
// strings (error descriptions and disabled markers).
type Metrics map[string]any

// Merge copies all entries from other into m. Keys are namespaced per
// probe, so merges across probes never conflict.
func (m Metrics) Merge(other Metrics) {
	for k, v := range other {
		m[k] = v
	}
}

// Kind identifies which variant of an Outcome is populated.
type Kind int

const (
	// KindSuccess means every probe step completed.
	KindSuccess Kind = iota

	// KindSoftError means the probe ran but a step failed. The
	// Outcome still carries any timings measured before the failure
	// plus an error description entry.
	KindSoftError

	// KindDisabled means the probe's backend is not configured.
	// Not a failure.
	KindDisabled

	// KindTimeout means the probe did not produce an outcome within
	// its deadline.
	KindTimeout
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindSoftError:
		return "soft_error"
	case KindDisabled:
		return "disabled"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one probe execution. Exactly one
// variant applies: Metrics is populated for success and soft errors,
// Reason for disabled and timeout.
type Outcome struct {
	Kind    Kind
	Metrics Metrics
	Reason  string
}

// Success builds a successful Outcome carrying the probe's metrics.
func Success(m Metrics) Outcome {
	return Outcome{Kind: KindSuccess, Metrics: m}
}

// SoftError builds a soft-error Outcome. The metrics must already
// include the probe's error description entry alongside any timings
// captured before the failing step.
func SoftError(m Metrics) Outcome {
	return Outcome{Kind: KindSoftError, Metrics: m}
}

// Disabled builds an Outcome for an unconfigured backend.
func Disabled(reason string) Outcome {
	return Outcome{Kind: KindDisabled, Reason: reason}
}

// Timeout builds an Outcome for a probe that missed its deadline.
func Timeout(name string, reason string) Outcome {
	return Outcome{Kind: KindTimeout, Reason: fmt.Sprintf("%s: %s", name, reason)}
}
