// Package codec converts between the telephony wire format (G.711 μ-law,
// 8kHz mono) and the linear PCM16 the speech engines work with.
//
// The bridge is stateless per frame except for the Assembler, which buffers
// partial codec blocks when frame sizes do not align to block boundaries.
package codec

import (
	"fmt"
)

// Wire format contracts. Inbound and outbound telephony audio is
// narrowband μ-law; the engines speak linear PCM16.
const (
	WireEncoding   = "audio/x-mulaw"
	WireSampleRate = 8000
	WireChannels   = 1

	// PCMBytesPerSample is the width of one linear sample.
	PCMBytesPerSample = 2
)

// FormatError reports a malformed or mismatched audio format. Frames that
// produce it are dropped and logged; they never reach the engines.
type FormatError struct {
	Got  string
	Want string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("codec: unsupported audio format %q (want %q)", e.Got, e.Want)
}

// CheckFormat validates a declared stream format against the wire contract.
func CheckFormat(encoding string, sampleRate, channels int) error {
	if encoding != WireEncoding {
		return &FormatError{Got: encoding, Want: WireEncoding}
	}
	if sampleRate != WireSampleRate {
		return &FormatError{
			Got:  fmt.Sprintf("%s@%d", encoding, sampleRate),
			Want: fmt.Sprintf("%s@%d", WireEncoding, WireSampleRate),
		}
	}
	if channels != WireChannels {
		return &FormatError{
			Got:  fmt.Sprintf("%d channels", channels),
			Want: "mono",
		}
	}
	return nil
}

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// muLawToPCM is the μ-law expansion table, built once at init.
var muLawToPCM [256]int16

func init() {
	for i := 0; i < 256; i++ {
		u := ^byte(i)
		sign := u & 0x80
		exponent := (u >> 4) & 0x07
		mantissa := u & 0x0F
		sample := (int32(mantissa)<<3 + muLawBias) << exponent
		sample -= muLawBias
		if sign != 0 {
			sample = -sample
		}
		muLawToPCM[i] = int16(sample)
	}
}

// DecodeULaw expands μ-law bytes into linear PCM16 samples.
func DecodeULaw(data []byte) []int16 {
	samples := make([]int16, len(data))
	for i, b := range data {
		samples[i] = muLawToPCM[b]
	}
	return samples
}

// EncodeULaw compresses linear PCM16 samples into μ-law bytes.
func EncodeULaw(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = encodeSample(s)
	}
	return out
}

func encodeSample(s int16) byte {
	sign := byte(0)
	v := int32(s)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias

	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((v >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

// Assembler buffers trailing partial blocks so frames that split a sample
// (or codec block) across boundaries still decode cleanly. Push returns the
// longest prefix that aligns to the block size; the remainder is held until
// the next frame arrives.
type Assembler struct {
	blockSize int
	pending   []byte
}

// NewAssembler creates an Assembler for the given block size in bytes.
// PCM16 streams use PCMBytesPerSample; μ-law streams use 1.
func NewAssembler(blockSize int) *Assembler {
	if blockSize < 1 {
		blockSize = 1
	}
	return &Assembler{blockSize: blockSize}
}

// Push appends a frame and returns all complete blocks accumulated so far.
func (a *Assembler) Push(frame []byte) []byte {
	a.pending = append(a.pending, frame...)
	n := (len(a.pending) / a.blockSize) * a.blockSize
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, a.pending[:n])
	a.pending = append(a.pending[:0], a.pending[n:]...)
	return out
}

// Pending returns the number of buffered bytes awaiting block completion.
func (a *Assembler) Pending() int {
	return len(a.pending)
}
