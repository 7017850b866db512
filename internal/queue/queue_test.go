package queue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/seantiz/asyncread/internal/queue"
)

func TestQueueFIFO(t *testing.T) {
	q := queue.New[int]()
	for i := range 200 {
		q.Enqueue(i)
	}

	if got := q.Len(); got != 200 {
		t.Fatalf("Len() = %d, want 200", got)
	}

	for i := range 200 {
		v, ok := q.TryDequeue(0)
		if !ok {
			t.Fatalf("TryDequeue[%d]: queue unexpectedly empty", i)
		}
		if v != i {
			t.Fatalf("TryDequeue[%d] = %d, want %d", i, v, i)
		}
	}

	if got := q.Len(); got != 0 {
		t.Errorf("Len() after drain = %d, want 0", got)
	}
}

func TestQueueTryDequeueTimeout(t *testing.T) {
	q := queue.New[string]()

	start := time.Now()
	_, ok := q.TryDequeue(50 * time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("TryDequeue on empty queue returned an item")
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("TryDequeue returned after %v, want >= 50ms", elapsed)
	}
}

func TestQueueTryDequeueZeroTimeoutPolls(t *testing.T) {
	q := queue.New[string]()

	start := time.Now()
	if _, ok := q.TryDequeue(0); ok {
		t.Fatal("TryDequeue(0) on empty queue returned an item")
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("TryDequeue(0) blocked for %v", elapsed)
	}
}

func TestQueueTryDequeueWakesOnEnqueue(t *testing.T) {
	q := queue.New[int]()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Enqueue(42)
	}()

	start := time.Now()
	v, ok := q.TryDequeue(5 * time.Second)
	if !ok {
		t.Fatal("TryDequeue timed out waiting for enqueued item")
	}
	if v != 42 {
		t.Errorf("TryDequeue = %d, want 42", v)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("TryDequeue took %v, expected prompt wakeup", elapsed)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers, perProducer = 8, 500
	q := queue.New[[2]int]()

	var wg sync.WaitGroup
	for p := range producers {
		wg.Go(func() {
			for i := range perProducer {
				q.Enqueue([2]int{p, i})
			}
		})
	}

	// Per-producer order must be preserved even though producers interleave.
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	received := 0
	for received < producers*perProducer {
		v, ok := q.TryDequeue(time.Second)
		if !ok {
			t.Fatalf("timed out after %d items", received)
		}
		if v[1] <= last[v[0]] {
			t.Fatalf("producer %d: item %d dequeued after %d", v[0], v[1], last[v[0]])
		}
		last[v[0]] = v[1]
		received++
	}
	wg.Wait()

	if got := q.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}

func TestQueueDrain(t *testing.T) {
	q := queue.New[int]()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	if v, _ := q.TryDequeue(0); v != 1 {
		t.Fatalf("TryDequeue = %d, want 1", v)
	}

	got := q.Drain()
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Drain() = %v, want [2 3]", got)
	}
	if got := q.Drain(); len(got) != 0 {
		t.Errorf("second Drain() = %v, want empty", got)
	}

	// The queue stays usable after a drain.
	q.Enqueue(4)
	if v, ok := q.TryDequeue(0); !ok || v != 4 {
		t.Errorf("TryDequeue after Drain = %d, %v; want 4, true", v, ok)
	}
}

func TestQueueCompactionKeepsOrder(t *testing.T) {
	q := queue.New[int]()
	next := 0
	for round := range 10 {
		for range 100 {
			q.Enqueue(next)
			next++
		}
		for range 70 {
			if _, ok := q.TryDequeue(0); !ok {
				t.Fatalf("round %d: unexpected empty queue", round)
			}
		}
	}

	want := next - q.Len()
	for q.Len() > 0 {
		v, _ := q.TryDequeue(0)
		if v != want {
			t.Fatalf("TryDequeue = %d, want %d", v, want)
		}
		want++
	}
}
