package telephony_test

import (
	"testing"

	"github.com/switchboard-ai/switchboard/pkg/telephony"
)

func frame(seq uint64) telephony.Frame {
	return telephony.Frame{Seq: seq, Track: telephony.TrackInbound, Payload: []byte{byte(seq)}}
}

func seqs(frames []telephony.Frame) []uint64 {
	out := make([]uint64, len(frames))
	for i, f := range frames {
		out[i] = f.Seq
	}
	return out
}

func TestReorderBuffer(t *testing.T) {
	t.Run("in-order frames pass through", func(t *testing.T) {
		b := telephony.NewReorderBuffer(3, nil)
		for seq := uint64(1); seq <= 4; seq++ {
			out := b.Push(frame(seq))
			if len(out) != 1 || out[0].Seq != seq {
				t.Fatalf("seq %d: expected single frame, got %v", seq, seqs(out))
			}
		}
		if b.Dropped() != 0 {
			t.Errorf("expected no drops, got %d", b.Dropped())
		}
	})

	t.Run("swap within window reassembled", func(t *testing.T) {
		b := telephony.NewReorderBuffer(3, nil)
		b.Push(frame(1))

		if out := b.Push(frame(3)); out != nil {
			t.Fatalf("expected frame 3 held, got %v", seqs(out))
		}
		out := b.Push(frame(2))
		if len(out) != 2 || out[0].Seq != 2 || out[1].Seq != 3 {
			t.Fatalf("expected [2 3], got %v", seqs(out))
		}
	})

	t.Run("frame outside window dropped", func(t *testing.T) {
		b := telephony.NewReorderBuffer(3, nil)
		b.Push(frame(1))

		if out := b.Push(frame(10)); out != nil {
			t.Fatalf("expected drop, got %v", seqs(out))
		}
		if b.Dropped() != 1 {
			t.Errorf("expected 1 drop, got %d", b.Dropped())
		}
	})

	t.Run("late frame dropped", func(t *testing.T) {
		b := telephony.NewReorderBuffer(3, nil)
		b.Push(frame(5))
		b.Push(frame(6))

		if out := b.Push(frame(4)); out != nil {
			t.Fatalf("expected drop, got %v", seqs(out))
		}
		if b.Dropped() != 1 {
			t.Errorf("expected 1 drop, got %d", b.Dropped())
		}
	})

	t.Run("lost frame gap abandoned when window fills", func(t *testing.T) {
		b := telephony.NewReorderBuffer(3, nil)
		b.Push(frame(1))

		// Frame 2 never arrives; 3, 4, 5 fill the window.
		b.Push(frame(3))
		b.Push(frame(4))
		out := b.Push(frame(5))
		if len(out) != 3 || out[0].Seq != 3 || out[2].Seq != 5 {
			t.Fatalf("expected [3 4 5] after gap abandonment, got %v", seqs(out))
		}

		// Stream resumes normally afterwards.
		next := b.Push(frame(6))
		if len(next) != 1 || next[0].Seq != 6 {
			t.Fatalf("expected [6], got %v", seqs(next))
		}
	})

	t.Run("first frame anchors sequence space", func(t *testing.T) {
		b := telephony.NewReorderBuffer(3, nil)
		out := b.Push(frame(100))
		if len(out) != 1 || out[0].Seq != 100 {
			t.Fatalf("expected [100], got %v", seqs(out))
		}
	})
}
