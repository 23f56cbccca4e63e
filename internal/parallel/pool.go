// Package parallel runs per-row pixel work across a fixed set of goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// bandJob is one band of a Rows call.
type bandJob struct {
	band Band
	fn   func(y0, y1 int)
	done *sync.WaitGroup
}

// WorkerPool is a fixed set of goroutines pulling row bands from a shared
// queue. Bands of uneven cost (wedge edges, empty rows) balance themselves
// because an idle worker takes the next band.
//
// WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	jobs    chan bandJob

	// mu guards closed; senders hold it for reading while queueing.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &WorkerPool{
		workers: workers,
		jobs:    make(chan bandJob, workers*2),
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		j.fn(j.band.Y0, j.band.Y1)
		j.done.Done()
	}
}

// run queues every band and waits for all of them. On a closed pool the
// bands run on the calling goroutine.
func (p *WorkerPool) run(bands []Band, fn func(y0, y1 int)) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		for _, b := range bands {
			fn(b.Y0, b.Y1)
		}
		return
	}

	var done sync.WaitGroup
	done.Add(len(bands))
	for _, b := range bands {
		p.jobs <- bandJob{band: b, fn: fn, done: &done}
	}
	p.mu.RUnlock()
	done.Wait()
}

// Close stops the workers after the queued bands have run. It is safe to
// call more than once.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

var (
	sharedOnce sync.Once
	shared     *WorkerPool
)

// Shared returns a process-wide pool sized to GOMAXPROCS. It is never closed.
func Shared() *WorkerPool {
	sharedOnce.Do(func() {
		shared = NewWorkerPool(0)
	})
	return shared
}
