package completion

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
)

// Dispatcher decides which execution context runs a continuation.
type Dispatcher interface {
	Dispatch(fn func())
}

// Inline runs continuations synchronously on whichever goroutine settles the
// handle. When that goroutine is the reader worker, the continuation holds the
// worker until it returns, and no further requests are serviced meanwhile.
var Inline Dispatcher = inlineDispatcher{}

type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(fn func()) {
	runGuarded(slog.Default(), fn)
}

// Pool hands every continuation to its own goroutine on the Go scheduler, so
// settling a handle never runs caller code on the settling goroutine.
type Pool struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewPool creates a dispatcher backed by the runtime's goroutine scheduler.
// Panics raised by continuations are recovered and logged to logger.
func NewPool(logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{logger: logger}
}

// Dispatch starts fn on a new goroutine and returns immediately.
func (p *Pool) Dispatch(fn func()) {
	p.wg.Go(func() {
		runGuarded(p.logger, fn)
	})
}

// Wait blocks until every dispatched continuation, including ones dispatched
// by running continuations, has returned. It must not race with a Dispatch on
// an idle pool.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// runGuarded keeps a panicking continuation from taking down the goroutine it
// runs on.
func runGuarded(logger *slog.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("continuation panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}

// Policy names a continuation scheduling policy in configuration.
type Policy string

const (
	PolicyInline Policy = "inline"
	PolicyPool   Policy = "pool"
)

// ParsePolicy parses a policy name, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyInline, PolicyPool:
		return p, nil
	default:
		return "", fmt.Errorf("unknown continuation policy %q", s)
	}
}

// Dispatcher returns the dispatcher implementing p. Unknown policies get a pool.
func (p Policy) Dispatcher(logger *slog.Logger) Dispatcher {
	if p == PolicyInline {
		return Inline
	}
	return NewPool(logger)
}
