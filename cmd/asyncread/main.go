// asyncread runs the reader demo: a background caller and an interactive
// caller share one reader, with continuation scheduling chosen by config.
// Usage: ASYNCREAD_DELAY_READ=true ASYNCREAD_CONTINUATIONS=inline go run ./cmd/asyncread
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seantiz/asyncread/internal/api"
	"github.com/seantiz/asyncread/internal/caller"
	"github.com/seantiz/asyncread/internal/completion"
	"github.com/seantiz/asyncread/internal/config"
	"github.com/seantiz/asyncread/internal/goid"
	"github.com/seantiz/asyncread/internal/reader"
)

const stopTimeout = 5 * time.Second

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	logger.Info("asyncread: starting",
		"goroutine", goid.Current(),
		"scenario", cfg.Scenario,
		"continuations", cfg.Continuations,
		"delay_read", cfg.Reader.DelayRead,
		"fail_abandoned", cfg.Reader.FailAbandoned,
		"listen_addr", cfg.ListenAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rd := reader.New(cfg.Reader, logger)
	dispatcher := cfg.Continuations.Dispatcher(logger)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	if cfg.ListenAddr != "" {
		srv := api.NewServer(cfg.ListenAddr, rd, logger)
		g.Go(func() error {
			return srv.Run(runCtx)
		})
	}

	g.Go(func() error {
		// The scenario ending ends the process, server included.
		defer cancelRun()
		return caller.Run(runCtx, rd, os.Stdin, cfg.Scenario, caller.Options{
			Dispatcher: dispatcher,
			Interval:   cfg.BackgroundInterval,
			Out:        os.Stdout,
			Logger:     logger,
		})
	})

	runErr := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := rd.Stop(stopCtx); err != nil {
		logger.Error("reader did not stop", "error", err)
	}
	// After a signal an interactive continuation may still be blocked on
	// stdin, so only join the pool on a normal exit.
	if pool, ok := dispatcher.(*completion.Pool); ok && ctx.Err() == nil {
		pool.Wait()
	}

	if runErr != nil && ctx.Err() == nil {
		log.Fatalf("asyncread: %v", runErr)
	}
	logger.Info("asyncread: stopped")
}
