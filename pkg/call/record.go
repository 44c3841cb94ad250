package call

import (
	"context"
	"time"
)

// TurnRecord is one immutable conversation turn. Appended only by the
// session run goroutine; numbers are gap-free and strictly increasing.
type TurnRecord struct {
	Number  int
	Speaker string // "caller" or "agent"
	Text    string

	StartedAt time.Time
	EndedAt   time.Time

	// Latency is caller-utterance-end to reply-ready, set on agent turns.
	Latency time.Duration
}

// Record is the persisted outcome of one call.
type Record struct {
	CallID  string
	Caller  string
	State   string
	Started time.Time
	Ended   time.Time

	ErrorCount int

	// ErrorCategory is set when the session ended on a fatal error:
	// "transport", "stt", "auth", or "internal".
	ErrorCategory string

	Turns []TurnRecord
}

// Recorder persists call records. Write-only: the orchestration path never
// reads them back.
type Recorder interface {
	// SaveCall persists one record. Must be idempotent by CallID.
	SaveCall(ctx context.Context, rec Record) error
}

// NopRecorder discards records. Used when persistence is not configured.
type NopRecorder struct{}

// SaveCall implements Recorder.
func (NopRecorder) SaveCall(ctx context.Context, rec Record) error { return nil }
