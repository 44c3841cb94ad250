// Package dialogue turns finalized caller utterances into agent replies.
//
// A Responder is the capability interface over the LLM dialogue service.
// The Orchestrator sits above it: it trims conversation history to a
// sliding window, injects the system persona and any retrieved knowledge
// context, post-processes the reply for spoken delivery, and substitutes
// canned fallback lines when the dependency is unavailable.
package dialogue

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNoAPIKey indicates the API key was not provided.
	ErrNoAPIKey = errors.New("dialogue: API key required")

	// ErrEmptyReply indicates the service returned no usable text.
	ErrEmptyReply = errors.New("dialogue: empty reply")
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerAgent  Speaker = "agent"
)

// Turn is one utterance in the conversation history.
type Turn struct {
	Speaker Speaker
	Text    string
}

// Request is a fully assembled dialogue service request. The Orchestrator
// builds it; providers translate it to their wire format verbatim.
type Request struct {
	// System is the persona instruction, with knowledge context appended
	// when a lookup matched.
	System string

	// History is the trimmed turn window, oldest first.
	History []Turn

	// Transcript is the new caller utterance.
	Transcript string
}

// Responder is the capability interface for dialogue service vendors.
type Responder interface {
	// Respond returns the agent's reply text for one request.
	Respond(ctx context.Context, req Request) (string, error)

	// Close releases provider resources.
	Close() error
}

// Knowledge looks up reference context for a caller question. An empty
// result with a nil error means no match; the dialogue proceeds without
// injected context.
type Knowledge interface {
	Lookup(ctx context.Context, query string) (string, error)
}

// APIError represents an error from the dialogue service.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("dialogue: API error %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus exposes the status code for failure classification.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}
