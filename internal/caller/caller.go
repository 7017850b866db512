// Package caller implements the reader's client loops: a background loop that
// reads on a fixed interval and an interactive loop that reads once per input
// line. Both resume after each read through a continuation registered with an
// explicit completion.Dispatcher.
package caller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seantiz/asyncread/internal/completion"
	"github.com/seantiz/asyncread/internal/goid"
)

const (
	// DefaultInterval is the pause between background reads.
	DefaultInterval = 2 * time.Second

	// DefaultPrompt is written before each interactive input line.
	DefaultPrompt = "Enter some text or type 'exit' to quit"

	exitCommand = "exit"

	// backgroundHeadStart lets the background loop issue its first read
	// before the interactive loop starts.
	backgroundHeadStart = 5 * time.Millisecond
)

// ErrNoDispatcher is returned when Options carries no Dispatcher.
var ErrNoDispatcher = errors.New("caller: dispatcher is required")

// Source is the read surface the loops consume.
type Source interface {
	Read() *completion.Handle[int64]
	WorkerGoroutine() uint64
}

// Options configures the caller loops.
type Options struct {
	// Dispatcher picks where each continuation resumes. Required.
	Dispatcher completion.Dispatcher
	Interval   time.Duration
	Prompt     string
	Out        io.Writer
	Logger     *slog.Logger
}

func (o Options) withDefaults() (Options, error) {
	if o.Dispatcher == nil {
		return o, ErrNoDispatcher
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Prompt == "" {
		o.Prompt = DefaultPrompt
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o, nil
}

// logResumed records where a continuation resumed.
func logResumed(logger *slog.Logger, src Source, msg string, args ...any) {
	g := goid.Current()
	logger.Info(msg, append(args,
		"goroutine", g,
		"on_worker", g == src.WorkerGoroutine(),
	)...)
}

// Background reads from src, logs the value and waits opts.Interval, until
// ctx is cancelled. Cancellation is checked between iterations; a read already
// issued is waited for. It returns a non-nil error only if a read faults.
func Background(ctx context.Context, src Source, opts Options) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}
	logger := opts.Logger.With("caller", "background")
	logger.Info("background caller starting", "goroutine", goid.Current())

	var (
		mu    sync.Mutex
		timer *time.Timer
		done  = make(chan error, 1)
	)

	var step func()
	step = func() {
		mu.Lock()
		timer = nil
		if ctx.Err() != nil {
			mu.Unlock()
			done <- nil
			return
		}
		mu.Unlock()

		src.Read().Then(opts.Dispatcher, func(v int64, err error) {
			if err != nil {
				done <- fmt.Errorf("background read: %w", err)
				return
			}
			logResumed(logger, src, "background read", "seq", v)

			mu.Lock()
			defer mu.Unlock()
			if ctx.Err() != nil {
				done <- nil
				return
			}
			timer = time.AfterFunc(opts.Interval, step)
		})
	}
	step()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	mu.Lock()
	if timer != nil && timer.Stop() {
		mu.Unlock()
		return nil
	}
	mu.Unlock()

	// A read or a timer callback is in flight and will observe ctx.
	return <-done
}

// Interactive writes a prompt, reads a line from in and, unless the line is
// "exit", issues a read and continues from that read's continuation. The next
// line is therefore read on whatever goroutine opts.Dispatcher resumes on.
// It returns nil on "exit" or end of input, and ctx.Err() if ctx ends first;
// in that case a pending line read is left blocked until in yields.
func Interactive(ctx context.Context, src Source, in io.Reader, opts Options) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}
	logger := opts.Logger.With("caller", "interactive")
	logger.Info("interactive caller starting", "goroutine", goid.Current())

	scanner := bufio.NewScanner(in)
	done := make(chan error, 1)

	var step func()
	step = func() {
		if ctx.Err() != nil {
			done <- ctx.Err()
			return
		}

		fmt.Fprintln(opts.Out, opts.Prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				done <- fmt.Errorf("read input: %w", err)
				return
			}
			done <- nil
			return
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		logResumed(logger, src, "interactive input", "line", line)
		if line == exitCommand {
			done <- nil
			return
		}

		src.Read().Then(opts.Dispatcher, func(v int64, err error) {
			if err != nil {
				done <- fmt.Errorf("interactive read: %w", err)
				return
			}
			logResumed(logger, src, "interactive read", "seq", v)
			step()
		})
	}
	go step()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Scenario selects which caller loops Run drives.
type Scenario string

const (
	// ScenarioInteractive runs the interactive loop alone.
	ScenarioInteractive Scenario = "interactive"

	// ScenarioMixed runs the background loop alongside the interactive loop
	// and cancels it once the interactive loop ends.
	ScenarioMixed Scenario = "mixed"
)

// ParseScenario parses a scenario name, case-insensitively.
func ParseScenario(s string) (Scenario, error) {
	switch sc := Scenario(strings.ToLower(strings.TrimSpace(s))); sc {
	case ScenarioInteractive, ScenarioMixed:
		return sc, nil
	default:
		return "", fmt.Errorf("unknown scenario %q", s)
	}
}

// Run drives the given scenario against src until the interactive loop ends.
func Run(ctx context.Context, src Source, in io.Reader, sc Scenario, opts Options) error {
	switch sc {
	case ScenarioInteractive:
		return Interactive(ctx, src, in, opts)
	case ScenarioMixed:
	default:
		return fmt.Errorf("unknown scenario %q", sc)
	}

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()

	var g errgroup.Group
	g.Go(func() error {
		return Background(bgCtx, src, opts)
	})

	select {
	case <-time.After(backgroundHeadStart):
	case <-ctx.Done():
	}

	g.Go(func() error {
		defer cancelBg()
		return Interactive(ctx, src, in, opts)
	})

	return g.Wait()
}
