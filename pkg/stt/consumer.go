package stt

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/switchboard-ai/switchboard/pkg/codec"
)

// EventKind identifies a consumer event.
type EventKind int

const (
	// EventPartial is an interim transcript, exposed for latency
	// measurement only. Never persisted as a turn.
	EventPartial EventKind = iota

	// EventEndOfTurn marks an utterance boundary. Empty Text means the
	// silence threshold elapsed without speech content.
	EventEndOfTurn

	// EventBargeIn fires when inbound speech energy is observed while
	// the agent is speaking, independent of transcript finality.
	EventBargeIn

	// EventError reports a stream failure.
	EventError
)

// Event is one consumer output.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// ConsumerConfig tunes utterance and barge-in detection.
type ConsumerConfig struct {
	// SilenceThreshold declares end-of-turn when no speech activity is
	// observed for this long. Default 3s.
	SilenceThreshold time.Duration

	// BargeInEnergy is the normalized frame energy treated as speech.
	BargeInEnergy float64

	// BargeInFrames is how many consecutive energetic frames constitute
	// a barge-in. Filters out clicks and line noise.
	BargeInFrames int

	// Tick is the silence check interval. Default 250ms.
	Tick time.Duration
}

func (c *ConsumerConfig) withDefaults() {
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = 3 * time.Second
	}
	if c.BargeInEnergy <= 0 {
		c.BargeInEnergy = 0.02
	}
	if c.BargeInFrames <= 0 {
		c.BargeInFrames = 2
	}
	if c.Tick <= 0 {
		c.Tick = 250 * time.Millisecond
	}
}

// Consumer accumulates inbound audio, forwards it to the transcription
// stream, and emits utterance boundaries. It owns the silence timer and
// barge-in detection; the session state machine consumes its events.
type Consumer struct {
	stream Stream
	cfg    ConsumerConfig
	logger *slog.Logger

	// speaking reports whether the session is currently in Speaking;
	// inbound speech during playout becomes a barge-in event.
	speaking func() bool

	events     chan Event
	done       chan struct{}
	lastSpeech atomic.Int64 // UnixNano

	// energyRun is only touched from Write's calling goroutine.
	energyRun int
}

// NewConsumer wires a consumer onto an open transcription stream and
// starts its event loop. speaking must be safe for concurrent use.
func NewConsumer(stream Stream, speaking func() bool, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if speaking == nil {
		speaking = func() bool { return false }
	}

	c := &Consumer{
		stream:   stream,
		cfg:      cfg,
		logger:   logger.With("component", "stt.consumer"),
		speaking: speaking,
		events:   make(chan Event, 32),
		done:     make(chan struct{}),
	}
	c.touch()
	go c.run()
	return c
}

// Events returns the consumer's event channel.
func (c *Consumer) Events() <-chan Event {
	return c.events
}

// LastActivity returns the monotonically advancing last-speech timestamp.
func (c *Consumer) LastActivity() time.Time {
	return time.Unix(0, c.lastSpeech.Load())
}

// Write feeds one μ-law wire frame. It performs barge-in energy detection
// locally, then forwards the frame to the transcription engine.
func (c *Consumer) Write(frame []byte) error {
	energy := codec.Energy(codec.DecodeULaw(frame))
	if energy >= c.cfg.BargeInEnergy {
		c.touch()
		c.energyRun++
		// Fire exactly once per continuous burst of speech.
		if c.energyRun == c.cfg.BargeInFrames && c.speaking() {
			c.emit(Event{Kind: EventBargeIn})
		}
	} else {
		c.energyRun = 0
	}

	return c.stream.SendAudio(frame)
}

// Close stops the consumer and its underlying stream.
func (c *Consumer) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	close(c.done)
	return c.stream.Close()
}

func (c *Consumer) run() {
	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	var segments []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(segments, " "))
		segments = segments[:0]
		c.emit(Event{Kind: EventEndOfTurn, Text: text})
		c.touch()
	}

	for {
		select {
		case <-c.done:
			return

		case res, ok := <-c.stream.Results():
			if !ok {
				return
			}
			if res.Err != nil {
				c.emit(Event{Kind: EventError, Err: res.Err})
				return
			}

			if res.Text != "" {
				c.touch()
				if res.SegmentFinal {
					segments = append(segments, res.Text)
				} else {
					c.emit(Event{Kind: EventPartial, Text: res.Text})
				}
			}
			if res.SpeechFinal && len(segments) > 0 {
				flush()
			}

		case <-ticker.C:
			idle := time.Since(c.LastActivity())
			if idle < c.cfg.SilenceThreshold {
				continue
			}
			// Finalized speech that never got a speech_final marker
			// flushes on the silence timer; with nothing pending the
			// empty boundary reports caller silence.
			flush()
		}
	}
}

func (c *Consumer) touch() {
	c.lastSpeech.Store(time.Now().UnixNano())
}

func (c *Consumer) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		// The session loop has stalled; dropping a partial is harmless,
		// anything else is worth a log line.
		if ev.Kind != EventPartial {
			c.logger.Warn("event buffer full, dropping", "kind", ev.Kind)
		}
	}
}
