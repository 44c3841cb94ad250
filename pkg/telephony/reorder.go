package telephony

import (
	"log/slog"
	"sort"
)

// Frame is one decoded inbound audio frame with its ordering metadata.
type Frame struct {
	Seq       uint64
	Track     string
	Timestamp int64
	Payload   []byte
}

// ReorderBuffer delivers inbound frames in non-decreasing sequence order.
// Frames arriving ahead of the expected sequence are held inside a bounded
// window and released once the gap fills; frames outside the window, and
// frames older than the delivery point, are dropped and logged.
type ReorderBuffer struct {
	next    uint64
	window  uint64
	held    map[uint64]Frame
	dropped uint64
	started bool
	logger  *slog.Logger
}

// DefaultReorderWindow tolerates minor out-of-order delivery without
// introducing meaningful latency at 20ms frames.
const DefaultReorderWindow = 3

// NewReorderBuffer creates a buffer with the given window size.
func NewReorderBuffer(window int, logger *slog.Logger) *ReorderBuffer {
	if window < 1 {
		window = DefaultReorderWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReorderBuffer{
		window: uint64(window),
		held:   make(map[uint64]Frame),
		logger: logger.With("component", "telephony.reorder"),
	}
}

// Push offers a frame and returns the frames now deliverable in order.
func (b *ReorderBuffer) Push(f Frame) []Frame {
	if !b.started {
		// First frame anchors the sequence space.
		b.started = true
		b.next = f.Seq + 1
		return []Frame{f}
	}

	switch {
	case f.Seq < b.next:
		b.drop(f, "late")
		return nil
	case f.Seq == b.next:
		b.next++
		out := []Frame{f}
		return append(out, b.drain()...)
	case f.Seq-b.next <= b.window:
		b.held[f.Seq] = f
		if uint64(len(b.held)) >= b.window {
			// The gap frame is presumed lost; skip to the oldest
			// held frame so the stream keeps moving.
			return b.skipGap()
		}
		return nil
	default:
		b.drop(f, "outside window")
		return nil
	}
}

// Dropped returns the number of frames discarded so far.
func (b *ReorderBuffer) Dropped() uint64 {
	return b.dropped
}

// drain releases consecutively held frames starting at next.
func (b *ReorderBuffer) drain() []Frame {
	var out []Frame
	for {
		f, ok := b.held[b.next]
		if !ok {
			return out
		}
		delete(b.held, b.next)
		b.next++
		out = append(out, f)
	}
}

// skipGap abandons the missing sequence numbers and flushes held frames.
func (b *ReorderBuffer) skipGap() []Frame {
	seqs := make([]uint64, 0, len(b.held))
	for seq := range b.held {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	b.logger.Warn("sequence gap abandoned",
		"expected", b.next,
		"resumed_at", seqs[0],
	)
	b.dropped += seqs[0] - b.next

	out := make([]Frame, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, b.held[seq])
		delete(b.held, seq)
	}
	b.next = seqs[len(seqs)-1] + 1
	return out
}

func (b *ReorderBuffer) drop(f Frame, reason string) {
	b.dropped++
	b.logger.Warn("dropped frame",
		"seq", f.Seq,
		"expected", b.next,
		"reason", reason,
	)
}
