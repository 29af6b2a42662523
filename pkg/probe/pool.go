package probe

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultPoolSize is the default number of pool workers, an upper
// bound on simultaneously running probes across all passes.
const DefaultPoolSize = 4

// Task is a unit of work submitted to a Pool.
type Task func()

// Pool is a fixed-size worker pool shared by all orchestration passes.
// It is safe for concurrent Submit. Workers that pick up a task which
// never returns (an abandoned probe stuck on an unresponsive backend)
// stay occupied; the pool size bounds the damage.
type Pool struct {
	tasks  chan Task
	wg     sync.WaitGroup
	logger *logrus.Logger
}

// NewPool starts size workers. The task queue is buffered so that
// submitting a full pass of probes does not block the caller even when
// all workers are busy.
func NewPool(size int, logger *logrus.Logger) *Pool {
	if size < 1 {
		size = DefaultPoolSize
	}

	p := &Pool{
		tasks:  make(chan Task, size*4),
		logger: logger,
	}
	for i := 1; i <= size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// worker drains the task queue until the pool is closed.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.logger.Debugf("pool worker %d started", id)
	for task := range p.tasks {
		task()
	}
	p.logger.Debugf("pool worker %d shutting down", id)
}

// Submit enqueues a task for execution. It blocks only when the queue
// buffer is full.
func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// Close stops accepting tasks and waits for the workers to finish what
// is already queued.
func (p *Pool) Close() {
	close(p.tasks)
	p.wg.Wait()
}
