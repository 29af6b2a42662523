package probe

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPool_RunsAllTasks(t *testing.T) {
	pool := NewPool(3, testLogger())

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			count.Add(1)
		})
	}
	wg.Wait()
	pool.Close()

	if got := count.Load(); got != 8 {
		t.Errorf("expected 8 tasks run, got %d", got)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	pool := NewPool(2, testLogger())
	defer pool.Close()

	var running atomic.Int32
	var peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("expected at most 2 concurrent tasks, observed %d", got)
	}
}

func TestPool_InvalidSizeFallsBack(t *testing.T) {
	pool := NewPool(0, testLogger())
	defer pool.Close()

	done := make(chan struct{})
	pool.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran on fallback-sized pool")
	}
}
