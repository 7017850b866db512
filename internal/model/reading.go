package model

import "time"

// Reading is a fulfilled read as reported by the HTTP API and the event stream.
type Reading struct {
	RequestID   string    `json:"request_id"`
	Seq         int64     `json:"seq"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	FulfilledAt time.Time `json:"fulfilled_at"`
	WaitMS      int64     `json:"wait_ms"`
}

// NewReading builds a Reading, deriving WaitMS from the two timestamps.
func NewReading(requestID string, seq int64, enqueuedAt, fulfilledAt time.Time) Reading {
	return Reading{
		RequestID:   requestID,
		Seq:         seq,
		EnqueuedAt:  enqueuedAt.UTC(),
		FulfilledAt: fulfilledAt.UTC(),
		WaitMS:      fulfilledAt.Sub(enqueuedAt).Milliseconds(),
	}
}
