// Package telephony implements the bidirectional audio streaming transport
// between the telephony provider and the call orchestrator. One WebSocket
// connection carries one call: JSON control events plus base64 μ-law media
// frames in both directions.
package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Event identifies the type of a transport message.
type Event string

const (
	// Provider → core events
	EventConnected Event = "connected" // session start, carries caller id
	EventStart     Event = "start"     // stream parameters
	EventMedia     Event = "media"     // audio frame (both directions)
	EventStop      Event = "stop"      // stream end

	// Core → provider events
	EventMark  Event = "mark"  // playback-position marker (echoed back)
	EventClear Event = "clear" // discard provider-side buffered audio
)

// Message is the envelope for all transport messages. Exactly one payload
// field is set, matching the Event.
type Message struct {
	Event     Event  `json:"event"`
	StreamID  string `json:"streamId,omitempty"`
	Connected *ConnectedPayload `json:"connected,omitempty"`
	Start     *StartPayload     `json:"start,omitempty"`
	Media     *MediaPayload     `json:"media,omitempty"`
	Mark      *MarkPayload      `json:"mark,omitempty"`
	Stop      *StopPayload      `json:"stop,omitempty"`
}

// ConnectedPayload opens a session.
type ConnectedPayload struct {
	CallID string `json:"callId"`
	Caller string `json:"caller"`
}

// StartPayload declares the stream's media parameters.
type StartPayload struct {
	CallID      string      `json:"callId"`
	Tracks      []string    `json:"tracks"`
	MediaFormat MediaFormat `json:"mediaFormat"`
}

// MediaFormat declares the audio encoding contract for a stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one encoded audio frame.
type MediaPayload struct {
	SequenceNumber uint64 `json:"sequenceNumber,omitempty"`
	Track          string `json:"track,omitempty"`
	Timestamp      int64  `json:"timestamp,omitempty"` // ms since stream start
	Payload        string `json:"payload"`             // base64 encoded audio
}

// MarkPayload names a position in the outbound audio stream. The provider
// echoes it back once everything queued before it has played out.
type MarkPayload struct {
	Name string `json:"name"`
}

// StopPayload ends the stream.
type StopPayload struct {
	CallID string `json:"callId"`
}

// Audio track identifiers.
const (
	TrackInbound  = "inbound"
	TrackOutbound = "outbound"
)

// ParseMessage parses a JSON transport message from bytes.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("telephony: parse message: %w", err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("telephony: message missing event type")
	}
	return &msg, nil
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// Audio decodes the base64 media payload. Returns an error for non-media
// messages or malformed payloads.
func (m *Message) Audio() ([]byte, error) {
	if m.Event != EventMedia || m.Media == nil {
		return nil, fmt.Errorf("telephony: not a media message")
	}
	data, err := base64.StdEncoding.DecodeString(m.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("telephony: decode media payload: %w", err)
	}
	return data, nil
}

// NewMediaMessage builds an outbound media message from raw encoded audio.
func NewMediaMessage(streamID string, audio []byte) *Message {
	return &Message{
		Event:    EventMedia,
		StreamID: streamID,
		Media: &MediaPayload{
			Payload: base64.StdEncoding.EncodeToString(audio),
		},
	}
}

// NewMarkMessage builds an outbound mark message.
func NewMarkMessage(streamID, name string) *Message {
	return &Message{
		Event:    EventMark,
		StreamID: streamID,
		Mark:     &MarkPayload{Name: name},
	}
}

// NewClearMessage builds an outbound clear message.
func NewClearMessage(streamID string) *Message {
	return &Message{Event: EventClear, StreamID: streamID}
}
