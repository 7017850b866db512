package completion_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seantiz/asyncread/internal/completion"
	"github.com/seantiz/asyncread/internal/goid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestHandleResolve(t *testing.T) {
	h := completion.New[int]()
	if h.State() != completion.Pending {
		t.Fatalf("State() = %v, want pending", h.State())
	}

	if !h.Resolve(7) {
		t.Fatal("first Resolve returned false")
	}

	select {
	case <-h.Done():
	default:
		t.Fatal("Done() not closed after Resolve")
	}

	v, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v != 7 {
		t.Errorf("Wait = %d, want 7", v)
	}
	if h.State() != completion.Resolved {
		t.Errorf("State() = %v, want resolved", h.State())
	}
}

func TestHandleReject(t *testing.T) {
	boom := errors.New("boom")
	h := completion.New[int]()
	if !h.Reject(boom) {
		t.Fatal("first Reject returned false")
	}

	_, err := h.Wait(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Wait error = %v, want %v", err, boom)
	}
	if h.State() != completion.Rejected {
		t.Errorf("State() = %v, want rejected", h.State())
	}
}

func TestHandleRejectNil(t *testing.T) {
	h := completion.New[string]()
	h.Reject(nil)

	if _, err := h.Result(); !errors.Is(err, completion.ErrNilFault) {
		t.Errorf("Result error = %v, want ErrNilFault", err)
	}
}

func TestHandleSingleAssignment(t *testing.T) {
	h := completion.New[int]()
	h.Resolve(1)

	if h.Resolve(2) {
		t.Error("second Resolve returned true")
	}
	if h.Reject(errors.New("late")) {
		t.Error("Reject after Resolve returned true")
	}

	v, err := h.Result()
	if v != 1 || err != nil {
		t.Errorf("Result() = %d, %v; want 1, nil", v, err)
	}
}

func TestHandleConcurrentSettleOneWinner(t *testing.T) {
	for range 50 {
		h := completion.New[int]()
		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})

		for i := range 16 {
			wg.Go(func() {
				<-start
				var ok bool
				if i%2 == 0 {
					ok = h.Resolve(i)
				} else {
					ok = h.Reject(errors.New("fault"))
				}
				if ok {
					wins.Add(1)
				}
			})
		}
		close(start)
		wg.Wait()

		if got := wins.Load(); got != 1 {
			t.Fatalf("%d settle calls won, want exactly 1", got)
		}

		// The outcome stays whatever the winner set.
		v1, e1 := h.Result()
		h.Resolve(999)
		v2, e2 := h.Result()
		if v1 != v2 || !errors.Is(e2, e1) {
			t.Fatalf("outcome changed after settle: (%d, %v) -> (%d, %v)", v1, e1, v2, e2)
		}
	}
}

func TestHandleWaitContextCancel(t *testing.T) {
	h := completion.New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want DeadlineExceeded", err)
	}
	if h.State() != completion.Pending {
		t.Errorf("State() = %v after cancelled wait, want pending", h.State())
	}
}

func TestHandleManyWaiters(t *testing.T) {
	h := completion.New[int]()
	var wg sync.WaitGroup
	results := make([]int, 10)

	for i := range results {
		wg.Go(func() {
			v, _ := h.Wait(context.Background())
			results[i] = v
		})
	}

	h.Resolve(5)
	wg.Wait()

	for i, v := range results {
		if v != 5 {
			t.Errorf("waiter %d got %d, want 5", i, v)
		}
	}
}

func TestThenInlineRunsOnSettlingGoroutine(t *testing.T) {
	h := completion.New[int]()
	ran := make(chan uint64, 1)
	h.Then(completion.Inline, func(int, error) {
		ran <- goid.Current()
	})

	settler := make(chan uint64, 1)
	go func() {
		settler <- goid.Current()
		h.Resolve(1)
	}()

	settlerID := <-settler
	if got := <-ran; got != settlerID {
		t.Errorf("inline continuation ran on goroutine %d, want settler %d", got, settlerID)
	}
}

func TestThenPoolRunsOffSettlingGoroutine(t *testing.T) {
	pool := completion.NewPool(discardLogger())
	h := completion.New[int]()
	ran := make(chan uint64, 1)
	h.Then(pool, func(int, error) {
		ran <- goid.Current()
	})

	settler := make(chan uint64, 1)
	go func() {
		settler <- goid.Current()
		h.Resolve(1)
	}()

	settlerID := <-settler
	if got := <-ran; got == settlerID {
		t.Errorf("pool continuation ran on settling goroutine %d", got)
	}
	pool.Wait()
}

func TestThenInlineBlocksSettler(t *testing.T) {
	h := completion.New[int]()
	release := make(chan struct{})
	h.Then(completion.Inline, func(int, error) { <-release })

	returned := make(chan struct{})
	go func() {
		h.Resolve(1)
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("Resolve returned while inline continuation was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-returned
}

func TestThenPoolDoesNotBlockSettler(t *testing.T) {
	pool := completion.NewPool(discardLogger())
	h := completion.New[int]()
	release := make(chan struct{})
	h.Then(pool, func(int, error) { <-release })

	returned := make(chan struct{})
	go func() {
		h.Resolve(1)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Resolve blocked on a pool continuation")
	}

	close(release)
	pool.Wait()
}

func TestThenAfterSettleRunsImmediately(t *testing.T) {
	h := completion.New[string]()
	h.Resolve("done")

	var got string
	h.Then(completion.Inline, func(v string, _ error) { got = v })
	if got != "done" {
		t.Errorf("continuation got %q, want %q", got, "done")
	}
}

func TestThenReceivesFault(t *testing.T) {
	boom := errors.New("boom")
	pool := completion.NewPool(discardLogger())
	h := completion.New[int]()

	errCh := make(chan error, 1)
	h.Then(pool, func(_ int, err error) { errCh <- err })
	h.Reject(boom)

	if err := <-errCh; !errors.Is(err, boom) {
		t.Errorf("continuation error = %v, want %v", err, boom)
	}
	pool.Wait()
}

func TestThenPanicIsContained(t *testing.T) {
	pool := completion.NewPool(discardLogger())
	h := completion.New[int]()
	after := make(chan int, 1)

	h.Then(pool, func(int, error) { panic("continuation bug") })
	h.Then(pool, func(v int, _ error) { after <- v })

	if !h.Resolve(3) {
		t.Fatal("Resolve returned false")
	}
	if v := <-after; v != 3 {
		t.Errorf("second continuation got %d, want 3", v)
	}
	pool.Wait()
}

func TestThenNilDispatcherPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Then(nil, fn) did not panic")
		}
	}()
	completion.New[int]().Then(nil, func(int, error) {})
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    completion.Policy
		wantErr bool
	}{
		{"inline", completion.PolicyInline, false},
		{"INLINE", completion.PolicyInline, false},
		{" pool ", completion.PolicyPool, false},
		{"threadpool", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := completion.ParsePolicy(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPolicyDispatcher(t *testing.T) {
	if d := completion.PolicyInline.Dispatcher(nil); d != completion.Inline {
		t.Errorf("PolicyInline.Dispatcher() = %T, want Inline", d)
	}
	if _, ok := completion.PolicyPool.Dispatcher(nil).(*completion.Pool); !ok {
		t.Error("PolicyPool.Dispatcher() is not a *Pool")
	}
}
