package probe

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestRound_TwoDecimals(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.234, 1.23},
		{1.235, 1.24},
		{0, 0},
		{99.999, 100},
	}
	for _, c := range cases {
		if got := Round(c.in); got != c.want {
			t.Errorf("Round(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTime_MeasuresDelay(t *testing.T) {
	const delay = 50 * time.Millisecond

	elapsed, err := Time(func() error {
		time.Sleep(delay)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed < 50 {
		t.Errorf("elapsed %v ms, want at least 50", elapsed)
	}
	if elapsed > 500 {
		t.Errorf("elapsed %v ms, implausible scheduling jitter", elapsed)
	}
}

func TestTime_ResultIsRounded(t *testing.T) {
	elapsed, err := Time(func() error {
		time.Sleep(3 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	scaled := elapsed * 100
	if math.Abs(scaled-math.Round(scaled)) > 1e-9 {
		t.Errorf("elapsed %v is not rounded to two decimals", elapsed)
	}
}

func TestTime_PropagatesErrorUnchanged(t *testing.T) {
	sentinel := errors.New("backend exploded")

	elapsed, err := Time(func() error {
		time.Sleep(10 * time.Millisecond)
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
	// A slow failure still reports how slow it was.
	if elapsed < 10 {
		t.Errorf("elapsed %v ms on failure, want at least 10", elapsed)
	}
}

func TestTimeValue_ReturnsValue(t *testing.T) {
	v, elapsed, err := TimeValue(func() (string, error) {
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "hello" {
		t.Errorf("expected 'hello', got %q", v)
	}
	if elapsed < 0 {
		t.Errorf("negative elapsed %v", elapsed)
	}
}

func TestTimeValue_ErrorAndValue(t *testing.T) {
	sentinel := errors.New("nope")

	v, _, err := TimeValue(func() (int, error) {
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
	if v != 0 {
		t.Errorf("expected zero value, got %d", v)
	}
}
