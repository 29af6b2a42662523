package probe

// Summary aggregates repeated-operation timings in milliseconds.
type Summary struct {
	Worst float64
	Best  float64
	Avg   float64
}

// Summarize computes worst, best, and arithmetic-mean over the given
// samples, each rounded to two decimals. It reports ok=false when there
// are no samples (e.g. every repetition of an operation failed).
func Summarize(samples []float64) (s Summary, ok bool) {
	if len(samples) == 0 {
		return Summary{}, false
	}

	worst := samples[0]
	best := samples[0]
	sum := 0.0
	for _, v := range samples {
		if v > worst {
			worst = v
		}
		if v < best {
			best = v
		}
		sum += v
	}

	return Summary{
		Worst: Round(worst),
		Best:  Round(best),
		Avg:   Round(sum / float64(len(samples))),
	}, true
}
