package completion

import (
	"context"
	"errors"
	"sync"
)

// ErrNilFault is the fault recorded when Reject is called with a nil error.
var ErrNilFault = errors.New("completion: rejected with nil error")

// State is the lifecycle state of a Handle. A handle starts Pending and moves
// to Resolved or Rejected exactly once.
type State int

const (
	Pending State = iota
	Resolved
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Handle is a single-assignment future/promise pair. Exactly one party settles
// it, with either a value or a fault; any number of goroutines may observe it.
// Once settled a Handle is immutable.
type Handle[T any] struct {
	mu    sync.Mutex
	state State
	value T
	err   error
	done  chan struct{}
	conts []continuation[T]
}

type continuation[T any] struct {
	d  Dispatcher
	fn func(T, error)
}

// New creates a pending handle.
func New[T any]() *Handle[T] {
	return &Handle[T]{done: make(chan struct{})}
}

// Resolve settles the handle with v. It reports whether this call performed
// the transition; calls on an already settled handle are no-ops.
func (h *Handle[T]) Resolve(v T) bool {
	return h.settle(Resolved, v, nil)
}

// Reject settles the handle with err. A nil err is recorded as ErrNilFault.
// It reports whether this call performed the transition.
func (h *Handle[T]) Reject(err error) bool {
	if err == nil {
		err = ErrNilFault
	}
	var zero T
	return h.settle(Rejected, zero, err)
}

// settle records the outcome and hands every registered continuation to its
// dispatcher. Dispatch happens on the settling goroutine, outside the lock.
func (h *Handle[T]) settle(state State, v T, err error) bool {
	h.mu.Lock()
	if h.state != Pending {
		h.mu.Unlock()
		return false
	}
	h.state = state
	h.value = v
	h.err = err
	conts := h.conts
	h.conts = nil
	close(h.done)
	h.mu.Unlock()

	for _, c := range conts {
		c.d.Dispatch(func() { c.fn(v, err) })
	}
	return true
}

// Done returns a channel that is closed once the handle is settled.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// State returns the current state.
func (h *Handle[T]) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Result returns the settled value and fault without blocking. While the
// handle is pending it returns the zero value and a nil error; use State to
// tell the two apart.
func (h *Handle[T]) Result() (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.err
}

// Wait blocks the calling goroutine until the handle settles or ctx ends. The
// caller resumes on its own goroutine. If ctx ends first its error is returned
// and the handle is left untouched.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then registers fn to run once the handle settles. Where fn runs is decided
// by d and nothing else: d receives fn on the goroutine that settles the
// handle, or on the calling goroutine if the handle is already settled.
// Then panics if d or fn is nil.
func (h *Handle[T]) Then(d Dispatcher, fn func(T, error)) {
	if d == nil {
		panic("completion: nil dispatcher")
	}
	if fn == nil {
		panic("completion: nil continuation")
	}

	h.mu.Lock()
	if h.state == Pending {
		h.conts = append(h.conts, continuation[T]{d: d, fn: fn})
		h.mu.Unlock()
		return
	}
	v, err := h.value, h.err
	h.mu.Unlock()

	d.Dispatch(func() { fn(v, err) })
}
