// Package tts provides a unified interface for text-to-speech providers.
//
// Providers synthesize speech as a chunked stream so playout can begin
// before the full utterance is rendered. ElevenLabs emits telephony μ-law
// directly; OpenAI emits linear PCM that the codec bridge downsamples on the
// outbound path. All providers implement Synthesizer, enabling vendor swaps
// without changing caller code.
package tts

import (
	"context"
	"time"
)

// Synthesizer converts text into a stream of encoded audio chunks.
type Synthesizer interface {
	// Stream starts synthesis and returns a stream of audio chunks as
	// they become available. Cancel ctx to stop mid-utterance.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream is a streaming synthesis response.
// Callers read until Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio chunk.
	// Returns nil when the stream is complete (not an error).
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error

	// Format returns the audio format metadata.
	Format() AudioFormat
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	// EncodingULaw8 is μ-law 8kHz, the telephony wire format.
	EncodingULaw8 Encoding = "ulaw_8000"

	// EncodingPCM8 is 8kHz mono PCM16.
	EncodingPCM8 Encoding = "pcm_8000"

	// EncodingPCM24 is 24kHz mono PCM16, the OpenAI speech output.
	EncodingPCM24 Encoding = "pcm_24000"
)

// SampleRate returns the sample rate for an encoding.
func (e Encoding) SampleRate() int {
	switch e {
	case EncodingULaw8, EncodingPCM8:
		return 8000
	case EncodingPCM24:
		return 24000
	default:
		return 8000
	}
}

// IsULaw reports whether the encoding is already in the wire format.
func (e Encoding) IsULaw() bool {
	return e == EncodingULaw8
}

// Result summarizes a completed synthesis for metrics.
type Result struct {
	CharCount int
	Bytes     int
	FirstByte time.Duration
}
