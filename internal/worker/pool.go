package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"verification-api/internal/utils"
)

var (
	ErrQueueFull       = errors.New("worker queue is full")
	ErrPoolStopped     = errors.New("worker pool is stopped")
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out")
)

// Job is a unit of background work. Task receives the pool context, which is
// cancelled when shutdown gives up waiting.
type Job struct {
	ID      string
	Task    func(ctx context.Context) error
	RetryOn func(error) bool
	OnDone  func(error)
}

type WorkerPool struct {
	workers    int
	maxRetries int
	backoff    time.Duration
	jobQueue   chan Job
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	stats   PoolStats
	stopped bool
}

type PoolStats struct {
	SubmittedJobs int64
	CompletedJobs int64
	FailedJobs    int64
	RejectedJobs  int64
	Workers       int
	QueuedJobs    int
}

func NewWorkerPool(workers, queueSize, maxRetries int) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &WorkerPool{
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    100 * time.Millisecond,
		jobQueue:   make(chan Job, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		stats:      PoolStats{Workers: workers},
	}

	utils.LogSuccess("WorkerPool", "Created pool: %d workers, queue %d, max retries %d", workers, queueSize, maxRetries)
	return pool
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	utils.LogSuccess("WorkerPool", "All %d workers started", p.workers)
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.executeJob(id, job)
		}
	}
}

func (p *WorkerPool) executeJob(workerID int, job Job) {
	startTime := time.Now()
	var err error

retry:
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			utils.LogWarning("WorkerPool", "Worker #%d: retry #%d for job %s", workerID, attempt, job.ID)
			select {
			case <-time.After(p.backoff * time.Duration(attempt)):
			case <-p.ctx.Done():
				err = p.ctx.Err()
				break retry
			}
		}

		err = job.Task(p.ctx)
		if err == nil || (job.RetryOn != nil && !job.RetryOn(err)) {
			break
		}
	}

	p.mu.Lock()
	if err == nil {
		p.stats.CompletedJobs++
	} else {
		p.stats.FailedJobs++
	}
	p.mu.Unlock()

	if err == nil {
		utils.LogDebug("WorkerPool", "Worker #%d: job %s done in %v", workerID, job.ID, time.Since(startTime))
	} else {
		utils.LogError("WorkerPool", fmt.Sprintf("Worker #%d: job %s failed after %v", workerID, job.ID, time.Since(startTime)), err)
	}

	if job.OnDone != nil {
		job.OnDone(err)
	}
}

// Submit enqueues without blocking; a full queue returns ErrQueueFull.
func (p *WorkerPool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobQueue <- job:
		p.stats.SubmittedJobs++
		return nil
	default:
		p.stats.RejectedJobs++
		utils.LogWarning("WorkerPool", "Queue full, job %s rejected", job.ID)
		return ErrQueueFull
	}
}

// Shutdown stops intake, lets workers drain the queue and cancels them if the
// timeout passes first.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		utils.LogSuccess("WorkerPool", "All workers stopped")
		return nil
	case <-time.After(timeout):
		p.cancel()
		utils.LogWarning("WorkerPool", "Shutdown timeout exceeded, cancelling workers")
		return ErrShutdownTimeout
	}
}

func (p *WorkerPool) GetStats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	stats.QueuedJobs = len(p.jobQueue)
	return stats
}
