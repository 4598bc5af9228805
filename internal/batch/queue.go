package batch

import (
	"context"
	"sync"
	"time"

	"carstudio/internal/domain"
	"carstudio/internal/infra"
)

// Task is one unit of queued work. It must respect ctx at its suspension
// points; the queue cancels ctx when the per-task timeout elapses.
type Task func(ctx context.Context)

// Queue is the process-wide bounded-concurrency queue. A fixed worker count
// bounds simultaneous provider calls across all jobs; admission is FIFO.
type Queue struct {
	tasks       chan Task
	workers     int
	taskTimeout time.Duration
	logger      infra.Logger
	wg          sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewQueue builds a queue with the given worker count, pending-task capacity
// and per-task timeout. Start must be called before Enqueue.
func NewQueue(workers, capacity int, taskTimeout time.Duration, logger infra.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		tasks:       make(chan Task, capacity),
		workers:     workers,
		taskTimeout: taskTimeout,
		logger:      logger,
	}
}

// Start launches the worker goroutines. Workers drain remaining tasks after
// ctx is cancelled so accepted jobs still run to completion during shutdown;
// their task contexts are cancelled instead, which stops them cooperatively.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for task := range q.tasks {
		tctx := ctx
		cancel := func() {}
		if q.taskTimeout > 0 {
			tctx, cancel = context.WithTimeout(ctx, q.taskTimeout)
		}
		start := time.Now()
		task(tctx)
		cancel()
		q.logger.Debug().Int("worker", id).Dur("elapsed", time.Since(start)).Msg("queue: task finished")
	}
}

// Enqueue admits a task without blocking the caller. It fails with
// ErrQueueFull when the pending buffer is exhausted and with a closed-queue
// error during shutdown.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.ErrQueueFull
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Close stops admission and waits for in-flight and pending tasks to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.wg.Wait()
}
