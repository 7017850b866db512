// Package completion provides a single-assignment future/promise handle whose
// continuation scheduling is an explicit parameter. Every continuation is
// registered together with a Dispatcher that picks the execution context it
// resumes on: Inline resumes on the goroutine that settled the handle, Pool
// resumes on a separate goroutine.
package completion
