// Package stt provides streaming speech-to-text for live calls.
//
// A Transcriber opens one Stream per call. Audio frames go in; partial and
// final transcript Results come out. The Consumer sits on top of a Stream
// and turns raw results into utterance boundaries, silence timeouts, and
// barge-in events for the session state machine.
package stt

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNotConnected indicates the stream is not open.
	ErrNotConnected = errors.New("stt: not connected")

	// ErrStreamClosed indicates the stream was closed.
	ErrStreamClosed = errors.New("stt: stream closed")

	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("stt: API key required")
)

// Transcriber is the capability interface for speech-to-text vendors.
type Transcriber interface {
	// Start opens a live transcription stream for one call.
	Start(ctx context.Context, cfg StreamConfig) (Stream, error)

	// Close releases provider resources.
	Close() error
}

// Stream is one live transcription session.
type Stream interface {
	// SendAudio forwards an encoded audio frame to the engine.
	SendAudio(audio []byte) error

	// Results returns the transcript result channel. It is closed when
	// the stream ends; a Result with Err set reports a stream failure.
	Results() <-chan Result

	// Close stops the stream and releases resources.
	Close() error
}

// StreamConfig declares the audio format and engine options for a stream.
type StreamConfig struct {
	Encoding   string // wire encoding, e.g. "mulaw"
	SampleRate int
	Channels   int
	Language   string
	Model      string
}

// Result is one transcription update.
type Result struct {
	Text       string
	Confidence float64

	// SegmentFinal means the engine finalized this segment (`is_final`).
	// Multiple final segments can occur within a single user turn.
	SegmentFinal bool

	// SpeechFinal means the engine detected end of speech
	// (`speech_final`). This is the turn-boundary signal.
	SpeechFinal bool

	// Err reports a stream-level failure; the channel closes after it.
	Err error
}

// APIError represents an error from the transcription API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("stt: API error %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus exposes the status code for failure classification.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}
