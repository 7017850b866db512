// Package reader implements an asynchronous read source. A single worker
// goroutine, started by New and kept for the reader's whole lifetime, takes
// requests off an unbounded FIFO queue and settles each request's completion
// handle with the next value of a sequence counter.
//
// Settling happens on the worker goroutine. Whether a caller's continuation
// then runs on the worker or elsewhere is decided by the completion.Dispatcher
// the caller registers it with; see package completion.
package reader
