package probe

import (
	"math"
	"time"
)

// Round rounds a millisecond measurement to two decimal places.
func Round(ms float64) float64 {
	return math.Round(ms*100) / 100
}

// Time executes op once and returns its wall-clock duration in
// milliseconds, rounded to two decimal places. The op's error is
// returned unchanged. The duration is measured on failures too, so a
// slow failure is distinguishable from a fast one.
func Time(op func() error) (float64, error) {
	start := time.Now()
	err := op()
	return Round(float64(time.Since(start)) / float64(time.Millisecond)), err
}

// TimeValue is Time for operations that produce a value.
func TimeValue[T any](op func() (T, error)) (T, float64, error) {
	start := time.Now()
	v, err := op()
	return v, Round(float64(time.Since(start)) / float64(time.Millisecond)), err
}
