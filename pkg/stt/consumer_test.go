package stt_test

import (
	"testing"
	"time"

	"github.com/switchboard-ai/switchboard/pkg/codec"
	"github.com/switchboard-ai/switchboard/pkg/stt"
)

func waitEvent(t *testing.T, events <-chan stt.Event, kind stt.EventKind) stt.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func loudFrame() []byte {
	samples := make([]int16, 160)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 8000
		} else {
			samples[i] = -8000
		}
	}
	return codec.EncodeULaw(samples)
}

func quietFrame() []byte {
	return codec.EncodeULaw(make([]int16, 160))
}

func TestConsumerEndOfTurn(t *testing.T) {
	stream := stt.NewMockStream()
	c := stt.NewConsumer(stream, nil, stt.ConsumerConfig{}, nil)
	defer c.Close()

	stream.Push(stt.Result{Text: "what are", SegmentFinal: false})
	stream.Push(stt.Result{Text: "what are your", SegmentFinal: true})
	stream.Push(stt.Result{Text: "hours", SegmentFinal: true, SpeechFinal: true})

	ev := waitEvent(t, c.Events(), stt.EventEndOfTurn)
	if ev.Text != "what are your hours" {
		t.Errorf("expected joined utterance, got %q", ev.Text)
	}
}

func TestConsumerPartialsExposed(t *testing.T) {
	stream := stt.NewMockStream()
	c := stt.NewConsumer(stream, nil, stt.ConsumerConfig{}, nil)
	defer c.Close()

	stream.Push(stt.Result{Text: "hel", SegmentFinal: false})

	ev := waitEvent(t, c.Events(), stt.EventPartial)
	if ev.Text != "hel" {
		t.Errorf("expected partial text, got %q", ev.Text)
	}
}

func TestConsumerSilenceBoundary(t *testing.T) {
	stream := stt.NewMockStream()
	c := stt.NewConsumer(stream, nil, stt.ConsumerConfig{
		SilenceThreshold: 50 * time.Millisecond,
		Tick:             10 * time.Millisecond,
	}, nil)
	defer c.Close()

	ev := waitEvent(t, c.Events(), stt.EventEndOfTurn)
	if ev.Text != "" {
		t.Errorf("expected empty silence boundary, got %q", ev.Text)
	}
}

func TestConsumerSilenceFlushesPendingSegments(t *testing.T) {
	stream := stt.NewMockStream()
	c := stt.NewConsumer(stream, nil, stt.ConsumerConfig{
		SilenceThreshold: 50 * time.Millisecond,
		Tick:             10 * time.Millisecond,
	}, nil)
	defer c.Close()

	// Final segment without a speech_final marker flushes on silence.
	stream.Push(stt.Result{Text: "hello there", SegmentFinal: true})

	ev := waitEvent(t, c.Events(), stt.EventEndOfTurn)
	if ev.Text != "hello there" {
		t.Errorf("expected flushed segment, got %q", ev.Text)
	}
}

func TestConsumerBargeIn(t *testing.T) {
	t.Run("fires while agent speaking", func(t *testing.T) {
		stream := stt.NewMockStream()
		c := stt.NewConsumer(stream, func() bool { return true }, stt.ConsumerConfig{}, nil)
		defer c.Close()

		c.Write(loudFrame())
		c.Write(loudFrame())

		waitEvent(t, c.Events(), stt.EventBargeIn)
	})

	t.Run("silent while agent idle", func(t *testing.T) {
		stream := stt.NewMockStream()
		c := stt.NewConsumer(stream, func() bool { return false }, stt.ConsumerConfig{}, nil)
		defer c.Close()

		c.Write(loudFrame())
		c.Write(loudFrame())

		select {
		case ev := <-c.Events():
			if ev.Kind == stt.EventBargeIn {
				t.Error("unexpected barge-in while not speaking")
			}
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("quiet frames do not trigger", func(t *testing.T) {
		stream := stt.NewMockStream()
		c := stt.NewConsumer(stream, func() bool { return true }, stt.ConsumerConfig{}, nil)
		defer c.Close()

		for i := 0; i < 10; i++ {
			c.Write(quietFrame())
		}

		select {
		case ev := <-c.Events():
			if ev.Kind == stt.EventBargeIn {
				t.Error("unexpected barge-in from silence")
			}
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestConsumerForwardsAudio(t *testing.T) {
	stream := stt.NewMockStream()
	c := stt.NewConsumer(stream, nil, stt.ConsumerConfig{}, nil)
	defer c.Close()

	frame := quietFrame()
	if err := c.Write(frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := stream.Sent()
	if len(sent) != 1 || len(sent[0]) != len(frame) {
		t.Fatalf("expected forwarded frame, got %d frames", len(sent))
	}
}

func TestConsumerStreamError(t *testing.T) {
	stream := stt.NewMockStream()
	c := stt.NewConsumer(stream, nil, stt.ConsumerConfig{}, nil)
	defer c.Close()

	stream.Push(stt.Result{Err: stt.ErrStreamClosed})

	ev := waitEvent(t, c.Events(), stt.EventError)
	if ev.Err == nil {
		t.Error("expected error payload")
	}
}

func TestConsumerCloseClosesStream(t *testing.T) {
	stream := stt.NewMockStream()
	c := stt.NewConsumer(stream, nil, stt.ConsumerConfig{}, nil)

	c.Close()
	if !stream.Closed() {
		t.Error("expected underlying stream closed")
	}
}
