package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/seantiz/asyncread/internal/reader"
)

// readWaitTimeout bounds how long POST /v1/reads waits for the worker.
const readWaitTimeout = 15 * time.Second

// readResponse is the JSON response for POST /v1/reads.
type readResponse struct {
	RequestID string `json:"request_id"`
	Seq       int64  `json:"seq"`
	WaitMS    int64  `json:"wait_ms"`
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	if !s.source.Stats().Running {
		s.writeError(w, http.StatusServiceUnavailable, reader.ErrStopped.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readWaitTimeout)
	defer cancel()

	httpReadsWaiting.Inc()
	start := time.Now()
	seq, err := s.source.Read().Wait(ctx)
	httpReadsWaiting.Dec()

	switch {
	case errors.Is(err, reader.ErrStopped):
		s.writeError(w, http.StatusServiceUnavailable, reader.ErrStopped.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, "read not serviced in time")
		return
	case errors.Is(err, context.Canceled):
		return // Client disconnected.
	case err != nil:
		s.logger.Error("read", "error", err)
		s.writeError(w, http.StatusInternalServerError, "read failed")
		return
	}

	s.writeJSON(w, http.StatusOK, readResponse{
		RequestID: middleware.GetReqID(r.Context()),
		Seq:       seq,
		WaitMS:    time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleStreamReads(w http.ResponseWriter, r *http.Request) {
	// Subscribe before writing headers. If the worker has already exited the
	// channel is closed and the loop below ends immediately.
	ch, unsub := s.source.Events().Subscribe()
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("set write deadline for SSE", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case reading, ok := <-ch:
			if !ok {
				// Worker exited; send explicit done event before closing.
				_ = writeSSEEvent(w, "done", "reader stopped")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			data, err := json.Marshal(reading)
			if err != nil {
				s.logger.Error("encode reading", "error", err)
				continue
			}
			if err := writeSSEEvent(w, "reading", string(data)); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
