package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool runs submitted jobs concurrently and delivers their results on a
// channel. Submit never blocks: each job gets its own goroutine, and a
// bounded pool makes the goroutine wait for a worker slot before executing.
type Pool struct {
	workers    int
	slots      chan struct{}
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	inFlight   atomic.Int64

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewPool creates a pool running at most workers jobs at once.
// workers <= 0 means no bound.
func NewPool(workers int) *Pool {
	if workers < 0 {
		workers = 0
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		workers:    workers,
		results:    make(chan Result, 64),
		ctx:        ctx,
		cancelFunc: cancel,
	}
	if workers > 0 {
		p.slots = make(chan struct{}, workers)
	}
	return p
}

// Submit schedules job for execution. It returns false once the pool has
// been closed by Wait or Shutdown.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	p.wg.Add(1)
	p.inFlight.Add(1)
	go p.run(job)
	return true
}

func (p *Pool) run(job Job) {
	defer p.wg.Done()
	defer p.inFlight.Add(-1)

	if p.slots != nil {
		select {
		case p.slots <- struct{}{}:
			defer func() { <-p.slots }()
		case <-p.ctx.Done():
			return
		}
	}

	result := job.Execute(p.ctx)
	select {
	case p.results <- result:
	case <-p.ctx.Done():
	}
}

// Results returns the channel on which job results arrive. It is closed
// after Wait or Shutdown once every job has finished.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// InFlight returns the number of submitted jobs that have not finished
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Workers returns the concurrency bound, 0 when unbounded
func (p *Pool) Workers() int {
	return p.workers
}

// Wait stops intake, waits for all submitted jobs and closes Results.
// Results must be drained concurrently or Wait may block.
func (p *Pool) Wait() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	p.closeResults()
}

// Shutdown cancels running jobs and then waits like Wait
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.Wait()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
		p.cancelFunc()
	})
}
