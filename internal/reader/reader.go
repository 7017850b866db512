package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/seantiz/asyncread/internal/completion"
	"github.com/seantiz/asyncread/internal/goid"
	"github.com/seantiz/asyncread/internal/model"
	"github.com/seantiz/asyncread/internal/queue"
)

const (
	// DefaultReadLatency is the simulated I/O latency applied in delay mode.
	DefaultReadLatency = 100 * time.Millisecond

	// DefaultPollTimeout bounds how long the worker waits on an empty queue
	// before re-checking the run flag, and so bounds shutdown latency.
	DefaultPollTimeout = 100 * time.Millisecond
)

// ErrStopped is the fault given to reads that can no longer be serviced
// because the reader has stopped. It is only produced when FailAbandoned is set.
var ErrStopped = errors.New("reader stopped")

// Config holds reader construction options. Zero durations select defaults.
type Config struct {
	// DelayRead makes the worker block for ReadLatency before fulfilling each
	// request, simulating slow I/O.
	DelayRead   bool
	ReadLatency time.Duration
	PollTimeout time.Duration

	// FailAbandoned rejects requests still queued when the worker exits, and
	// reads issued after stop, with ErrStopped. When false such requests are
	// left pending forever.
	FailAbandoned bool
}

// Stats is a point-in-time snapshot of reader state.
type Stats struct {
	Running         bool   `json:"running"`
	DelayRead       bool   `json:"delay_read"`
	FailAbandoned   bool   `json:"fail_abandoned"`
	QueueDepth      int    `json:"queue_depth"`
	NextSeq         int64  `json:"next_seq"`
	Fulfilled       int64  `json:"fulfilled"`
	Abandoned       int64  `json:"abandoned"`
	WorkerGoroutine uint64 `json:"worker_goroutine"`
}

// request is one pending read.
type request struct {
	id         string
	handle     *completion.Handle[int64]
	enqueuedAt time.Time
}

// Reader services read requests on a single dedicated worker goroutine and
// returns increasing sequence numbers through completion handles.
type Reader struct {
	cfg     Config
	logger  *slog.Logger
	queue   *queue.Queue[*request]
	broker  *Broker
	run     atomic.Bool
	stopped *completion.Handle[struct{}]

	// Mirrors of worker-owned state, written by the worker for Stats only.
	nextSeq   atomic.Int64
	fulfilled atomic.Int64
	abandoned atomic.Int64
	workerID  atomic.Uint64
}

// New creates a reader and starts its worker goroutine.
func New(cfg Config, logger *slog.Logger) *Reader {
	if cfg.ReadLatency <= 0 {
		cfg.ReadLatency = DefaultReadLatency
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reader{
		cfg:     cfg,
		logger:  logger,
		queue:   queue.New[*request](),
		broker:  NewBroker(),
		stopped: completion.New[struct{}](),
	}
	r.run.Store(true)

	go r.loop()

	return r
}

// Read enqueues a read request and returns its handle without blocking. The
// handle resolves with the next sequence number once the worker services it.
// Read is safe for concurrent use.
func (r *Reader) Read() *completion.Handle[int64] {
	h := completion.New[int64]()

	if r.cfg.FailAbandoned && !r.run.Load() {
		h.Reject(ErrStopped)
		r.logger.Debug("read rejected, reader stopped")
		return h
	}

	req := &request{
		id:         model.NewID(),
		handle:     h,
		enqueuedAt: time.Now(),
	}
	r.queue.Enqueue(req)
	readsEnqueuedTotal.Inc()
	queueDepth.Inc()

	r.logger.Debug("read enqueued", "request_id", req.id)

	// Stop may have raced with the check above. The worker drains again after
	// signalling stopped, so anything enqueued after that drain is ours.
	if r.cfg.FailAbandoned && !r.run.Load() {
		select {
		case <-r.stopped.Done():
			r.rejectQueued()
		default:
		}
	}

	return h
}

// Stop asks the worker to exit and waits until it has. It is idempotent and
// safe for concurrent use. A request the worker has already dequeued is still
// fulfilled; requests left in the queue are abandoned (see Config.FailAbandoned).
// If ctx ends first its error is returned; the worker still stops.
//
// Stop must not be called from a continuation running inline on the worker.
func (r *Reader) Stop(ctx context.Context) error {
	if r.run.CompareAndSwap(true, false) {
		r.logger.Info("reader stop requested", "goroutine", goid.Current())
	}

	if _, err := r.stopped.Wait(ctx); err != nil {
		return fmt.Errorf("wait for reader worker: %w", err)
	}
	return nil
}

// Stopped returns a channel that is closed once the worker has exited.
func (r *Reader) Stopped() <-chan struct{} {
	return r.stopped.Done()
}

// Events returns the broker publishing every fulfilled reading. It is closed
// when the worker exits.
func (r *Reader) Events() *Broker {
	return r.broker
}

// WorkerGoroutine returns the goroutine id of the worker, or 0 before it has
// started. Intended for log output.
func (r *Reader) WorkerGoroutine() uint64 {
	return r.workerID.Load()
}

// Stats returns a snapshot of the reader's state.
func (r *Reader) Stats() Stats {
	running := true
	select {
	case <-r.stopped.Done():
		running = false
	default:
	}

	return Stats{
		Running:         running,
		DelayRead:       r.cfg.DelayRead,
		FailAbandoned:   r.cfg.FailAbandoned,
		QueueDepth:      r.queue.Len(),
		NextSeq:         r.nextSeq.Load(),
		Fulfilled:       r.fulfilled.Load(),
		Abandoned:       r.abandoned.Load(),
		WorkerGoroutine: r.workerID.Load(),
	}
}

// loop is the worker. It is the only code that dequeues requests, settles
// their handles or touches the sequence counter.
func (r *Reader) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	id := goid.Current()
	r.workerID.Store(id)
	r.logger.Info("reader worker starting",
		"goroutine", id,
		"delay_read", r.cfg.DelayRead,
		"poll_timeout", r.cfg.PollTimeout.String(),
	)

	var next int64
	for r.run.Load() {
		req, ok := r.queue.TryDequeue(r.cfg.PollTimeout)
		if !ok {
			continue
		}
		queueDepth.Dec()

		if r.cfg.DelayRead {
			time.Sleep(r.cfg.ReadLatency)
		}

		seq := next
		next++
		r.nextSeq.Store(next)
		r.fulfill(req, seq)
	}

	r.logger.Info("reader worker stopping", "goroutine", id, "next_seq", next)

	if r.cfg.FailAbandoned {
		r.rejectQueued()
	} else if n := r.queue.Len(); n > 0 {
		r.abandoned.Add(int64(n))
		readsAbandonedTotal.WithLabelValues(outcomePending).Add(float64(n))
		r.logger.Warn("abandoning queued reads", "count", n)
	}

	r.broker.Close()
	r.stopped.Resolve(struct{}{})

	if r.cfg.FailAbandoned {
		r.rejectQueued()
	}
}

// fulfill resolves req with seq. Continuations registered with an inline
// dispatcher run here, on the worker, before the next request is dequeued.
func (r *Reader) fulfill(req *request, seq int64) {
	now := time.Now()
	readsFulfilledTotal.Inc()
	readServiceDuration.Observe(now.Sub(req.enqueuedAt).Seconds())
	r.fulfilled.Add(1)

	r.logger.Debug("read fulfilled",
		"request_id", req.id,
		"seq", seq,
		"goroutine", r.workerID.Load(),
	)
	r.broker.Publish(model.NewReading(req.id, seq, req.enqueuedAt, now))

	req.handle.Resolve(seq)
}

// rejectQueued fails every request still in the queue with ErrStopped.
func (r *Reader) rejectQueued() {
	reqs := r.queue.Drain()
	if len(reqs) == 0 {
		return
	}

	queueDepth.Sub(float64(len(reqs)))
	r.abandoned.Add(int64(len(reqs)))
	readsAbandonedTotal.WithLabelValues(outcomeRejected).Add(float64(len(reqs)))
	r.logger.Warn("rejecting queued reads", "count", len(reqs))

	for _, req := range reqs {
		req.handle.Reject(fmt.Errorf("read %s: %w", req.id, ErrStopped))
	}
}
