package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"carstudio/internal/domain"
)

func TestQueueBoundsConcurrency(t *testing.T) {
	q := NewQueue(2, 16, 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	var current, max atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		err := q.Enqueue(func(ctx context.Context) {
			defer wg.Done()
			n := current.Add(1)
			for {
				m := max.Load()
				if n <= m || max.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	wg.Wait()
	if got := max.Load(); got > 2 {
		t.Fatalf("concurrency bound exceeded: %d workers ran at once", got)
	}
}

func TestQueueRejectsWhenFull(t *testing.T) {
	q := NewQueue(1, 1, 0, zerolog.Nop())
	// Not started: nothing drains the channel.
	if err := q.Enqueue(func(context.Context) {}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if err := q.Enqueue(func(context.Context) {}); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("second Enqueue = %v, want ErrQueueFull", err)
	}
}

func TestQueueTaskTimeoutFreesWorker(t *testing.T) {
	q := NewQueue(1, 4, 20*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	timedOut := make(chan error, 1)
	if err := q.Enqueue(func(ctx context.Context) {
		<-ctx.Done()
		timedOut <- ctx.Err()
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case err := <-timedOut:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("task context = %v, want DeadlineExceeded", err)
		}
	case <-time.After(time.Second):
		t.Fatal("task was never cancelled")
	}

	// The slot is free again for the next task.
	ran := make(chan struct{})
	if err := q.Enqueue(func(context.Context) { close(ran) }); err != nil {
		t.Fatalf("Enqueue after timeout: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker slot was not released after timeout")
	}
}

func TestQueueCloseRejectsNewTasks(t *testing.T) {
	q := NewQueue(1, 4, 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	q.Close()
	if err := q.Enqueue(func(context.Context) {}); err == nil {
		t.Fatal("Enqueue after Close should fail")
	}
}
