package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/walletmatch/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := len(q.jobs); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if err := q.Enqueue(ctx, model.RowJob{Index: 0, AnchorID: "a"}); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := len(q.jobs); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	job := <-q.Dequeue(ctx)
	if job.AnchorID != "a" {
		t.Errorf("expected anchor a, got %v", job.AnchorID)
	}
}

func TestInMemoryQueue_BlocksWhenFull(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if err := q.Enqueue(ctx, model.RowJob{Index: 0}); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}

	// A full queue waits until the deadline instead of dropping the job.
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(waitCtx, model.RowJob{Index: 1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if l := len(q.jobs); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}
}

func TestInMemoryQueue_PreservesOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()
	const n = 100

	go func() {
		for i := 0; i < n; i++ {
			if err := q.Enqueue(ctx, model.RowJob{Index: i}); err != nil {
				t.Errorf("enqueue %d: %v", i, err)
				return
			}
		}
		_ = q.Close()
	}()

	next := 0
	for job := range q.Dequeue(ctx) {
		if job.Index != next {
			t.Fatalf("expected job %d, got %d", next, job.Index)
		}
		next++
	}
	if next != n {
		t.Errorf("expected %d jobs, got %d", n, next)
	}
}

func TestInMemoryQueue_ConcurrentConsumers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(8))
	ctx := context.Background()
	const n = 1000

	go func() {
		for i := 0; i < n; i++ {
			_ = q.Enqueue(ctx, model.RowJob{Index: i})
		}
		_ = q.Close()
	}()

	var (
		mu   sync.Mutex
		seen = make(map[int]bool, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range q.Dequeue(ctx) {
				mu.Lock()
				if seen[job.Index] {
					t.Errorf("job %d delivered twice", job.Index)
				}
				seen[job.Index] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("expected %d distinct jobs, got %d", n, len(seen))
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, model.RowJob{Index: i}); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if err := q.Enqueue(ctx, model.RowJob{Index: 2}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// queued jobs are still delivered, then the channel closes
	got := 0
	timeout := time.After(time.Second)
	jobs := q.Dequeue(ctx)
	for {
		select {
		case _, ok := <-jobs:
			if !ok {
				if got != 2 {
					t.Errorf("expected 2 drained jobs, got %d", got)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			got++
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}

func TestInMemoryQueue_DequeueStopsOnCancel(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	jobs := q.Dequeue(ctx)
	cancel()

	select {
	case _, ok := <-jobs:
		if ok {
			t.Error("expected no job after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("expected dequeue channel to close after cancellation")
	}
}
