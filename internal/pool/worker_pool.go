package pool

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Task represents a unit of work to be executed
type Task func() error

// WorkerPool runs every submitted task on its own goroutine, immediately. Tasks are
// long-lived batch runs that must not wait behind each other; maxWorkers is a soft
// limit that is only reported (Overflowed) and logged when exceeded.
// Stop waits for every task to return.
type WorkerPool struct {
	maxWorkers  int
	wg          sync.WaitGroup
	activeCount int32
	totalTasks  int64
	failedTasks int64
	overflowed  int64
	avgExecTime int64 // nanoseconds
	started     bool
	stopped     bool
	mu          sync.RWMutex
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	return &WorkerPool{
		maxWorkers: maxWorkers,
	}
}

// Start opens the pool for submissions
func (p *WorkerPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	if p.stopped {
		return fmt.Errorf("worker pool already stopped")
	}

	p.started = true
	return nil
}

func (p *WorkerPool) execute(task Task) {
	start := time.Now()
	atomic.AddInt64(&p.totalTasks, 1)
	defer atomic.AddInt32(&p.activeCount, -1)

	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.failedTasks, 1)
			log.Printf("❌ Worker task panicked: %v", r)
		}
	}()

	if err := task(); err != nil {
		atomic.AddInt64(&p.failedTasks, 1)
	}

	elapsed := time.Since(start).Nanoseconds()
	// Simple moving average
	oldAvg := atomic.LoadInt64(&p.avgExecTime)
	atomic.StoreInt64(&p.avgExecTime, (oldAvg*9+elapsed)/10)
}

// Submit starts task on a new goroutine and returns without waiting for it
func (p *WorkerPool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return fmt.Errorf("worker pool not started")
	}

	if active := atomic.AddInt32(&p.activeCount, 1); int(active) > p.maxWorkers {
		atomic.AddInt64(&p.overflowed, 1)
		log.Printf("⚠️  %d tasks running, above the configured limit of %d", active, p.maxWorkers)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.execute(task)
	}()
	return nil
}

// Stop refuses new tasks and waits for every running task to return
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.stopped = true
	p.mu.Unlock()

	p.wg.Wait()
}

// WorkerPoolStats is a point-in-time view of the pool
type WorkerPoolStats struct {
	MaxWorkers    int
	ActiveWorkers int32
	TotalTasks    int64
	FailedTasks   int64
	Overflowed    int64 // tasks started while the soft limit was already reached
	AvgExecTime   time.Duration
}

// GetStats returns current statistics
func (p *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		MaxWorkers:    p.maxWorkers,
		ActiveWorkers: atomic.LoadInt32(&p.activeCount),
		TotalTasks:    atomic.LoadInt64(&p.totalTasks),
		FailedTasks:   atomic.LoadInt64(&p.failedTasks),
		Overflowed:    atomic.LoadInt64(&p.overflowed),
		AvgExecTime:   time.Duration(atomic.LoadInt64(&p.avgExecTime)),
	}
}
