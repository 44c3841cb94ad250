// Package call implements the per-call session state machine that bridges
// the telephony transport, streaming transcription, dialogue, and speech
// playout.
//
// Each session is owned by exactly one goroutine. Every external input is
// converted into an internal event and handled serially, so state
// transitions are totally ordered and turn numbers are gap-free. The only
// shared mutable state across sessions is the guard registry.
package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/switchboard-ai/switchboard/pkg/codec"
	"github.com/switchboard-ai/switchboard/pkg/dialogue"
	"github.com/switchboard-ai/switchboard/pkg/guard"
	"github.com/switchboard-ai/switchboard/pkg/stt"
	"github.com/switchboard-ai/switchboard/pkg/telephony"
	"github.com/switchboard-ai/switchboard/pkg/tts"
)

// Canned lines spoken by the session itself, outside the dialogue service.
const (
	stillTherePrompt   = "Are you still there?"
	idleGoodbye        = "I haven't heard anything for a while, so I'll let you go. Goodbye!"
	apologyLine        = "I'm sorry, something went wrong on my end. Please call back in a few minutes."
	terminateGoodbye   = "Thanks for calling. Goodbye!"
	maxDurationWarning = "Just so you know, we've been on the call for quite a while. Is there anything else I can help you with?"
)

// endGraceTimeout bounds how long Ending waits for the provider to confirm
// the farewell finished playing before the session is torn down anyway.
const endGraceTimeout = 5 * time.Second

// Config holds per-session tunables.
type Config struct {
	// SilenceThreshold is how long without speech declares an utterance
	// boundary. Default 3s.
	SilenceThreshold time.Duration

	// MaxIdle is caller inactivity that ends the call. Default 20s.
	MaxIdle time.Duration

	// MaxDuration emits a warning turn when exceeded. It does not force
	// termination. Default 30m.
	MaxDuration time.Duration

	STTModel    string
	STTLanguage string
}

func (c *Config) withDefaults() {
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = 3 * time.Second
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = 20 * time.Second
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 30 * time.Minute
	}
}

// Transport is the session's outbound audio surface. *telephony.Conn
// implements it in production.
type Transport interface {
	SendAudio(audio []byte) error
	SendMark(name string) error
	SendClear() error
	Close() error
}

// Deps bundles the collaborators a session needs. Transcriber, Synth,
// Guards, and Recorder are shared across sessions and must be safe for
// concurrent use.
type Deps struct {
	Transport    Transport
	Transcriber  stt.Transcriber
	Orchestrator *dialogue.Orchestrator
	Synth        tts.Synthesizer
	Guards       *guard.Registry
	Recorder     Recorder
	Logger       *slog.Logger
}

// Session is one live call. Created when the transport opens, destroyed
// (and persisted) when the call ends.
type Session struct {
	id     string
	caller string
	cfg    Config
	deps   Deps
	logger *slog.Logger

	events chan event
	done   chan struct{}

	// state is written only by the run goroutine; read anywhere.
	state atomic.Int32

	// Everything below is owned by the run goroutine.
	reorder  *telephony.ReorderBuffer
	consumer *stt.Consumer

	turns        []TurnRecord
	errorCount   int
	startedAt    time.Time
	lastCallerAt time.Time

	silenceStrikes int
	interrupted    bool
	pendingText    string
	pendingMark    string
	processStart   time.Time

	playCancel    context.CancelFunc
	processCancel context.CancelFunc

	endTimer *time.Timer
	warned   bool
	failed   bool
	category string
	finished bool
}

// NewSession creates a session for one provider call id.
func NewSession(id string, deps Deps, cfg Config) *Session {
	cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Recorder == nil {
		deps.Recorder = NopRecorder{}
	}

	s := &Session{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "call.session", "call_id", id),
		events: make(chan event, 256),
		done:   make(chan struct{}),
	}
	s.reorder = telephony.NewReorderBuffer(telephony.DefaultReorderWindow, s.logger)
	s.state.Store(int32(StateConnecting))
	return s
}

// ID returns the provider call id.
func (s *Session) ID() string { return s.id }

// Caller returns the caller identifier, once known.
func (s *Session) Caller() string { return s.caller }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session has finished and persisted its record.
func (s *Session) Done() <-chan struct{} { return s.done }

// HandleMessage translates one provider transport message into a session
// event. Called from the transport read goroutine.
func (s *Session) HandleMessage(msg *telephony.Message) {
	switch msg.Event {
	case telephony.EventConnected:
		if msg.Connected != nil {
			s.post(event{kind: evConnected, caller: msg.Connected.Caller})
		}
	case telephony.EventStart:
		if msg.Start != nil {
			s.post(event{kind: evStart, format: msg.Start.MediaFormat})
		}
	case telephony.EventMedia:
		audio, err := msg.Audio()
		if err != nil {
			// Malformed frame: drop and continue the session.
			s.logger.Warn("dropping malformed media frame", "error", err)
			return
		}
		s.post(event{kind: evMedia, frame: telephony.Frame{
			Seq:       msg.Media.SequenceNumber,
			Track:     msg.Media.Track,
			Timestamp: msg.Media.Timestamp,
			Payload:   audio,
		}})
	case telephony.EventMark:
		if msg.Mark != nil {
			s.post(event{kind: evMarkEcho, mark: msg.Mark.Name})
		}
	case telephony.EventStop:
		s.post(event{kind: evStop})
	}
}

// TransportClosed reports that the telephony channel dropped.
func (s *Session) TransportClosed(err error) {
	s.post(event{kind: evTransportClosed, err: err})
}

// Status feeds a provider lifecycle webhook status into the session.
// Idempotent under duplicate delivery.
func (s *Session) Status(status string) {
	s.post(event{kind: evStatus, status: status})
}

// Terminate asks the session to end the call. Safe to call repeatedly and
// from any goroutine.
func (s *Session) Terminate(reason string) {
	s.post(event{kind: evTerminate, reason: reason})
}

// Run drives the session until it reaches a terminal state. Call once, in
// its own goroutine.
func (s *Session) Run() {
	s.startedAt = time.Now()
	s.lastCallerAt = s.startedAt

	maxDur := time.NewTimer(s.cfg.MaxDuration)
	defer maxDur.Stop()

	s.endTimer = time.NewTimer(time.Hour)
	if !s.endTimer.Stop() {
		<-s.endTimer.C
	}
	defer s.endTimer.Stop()

	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-maxDur.C:
			s.onMaxDuration()
		case <-s.endTimer.C:
			s.logger.Warn("farewell playout unconfirmed, ending anyway")
			s.finish()
		}
		if s.State().terminal() {
			return
		}
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case evConnected:
		s.onConnected(ev.caller)
	case evStart:
		s.onStart(ev.format)
	case evMedia:
		s.onMedia(ev.frame)
	case evEndOfTurn:
		s.onEndOfTurn(ev.text)
	case evBargeIn:
		s.onBargeIn()
	case evSTTError:
		s.logger.Error("transcription stream failed", "error", ev.err)
		s.fail("stt")
	case evReply:
		s.onReply(ev)
	case evPlayoutDone:
		s.onPlayoutDone(ev)
	case evMarkEcho:
		s.onMarkEcho(ev.mark)
	case evStop:
		s.beginEnding("")
	case evTransportClosed:
		s.onTransportClosed()
	case evStatus:
		s.onStatus(ev.status)
	case evTerminate:
		s.logger.Info("terminate requested", "reason", ev.reason)
		s.beginEnding(terminateGoodbye)
	}
}

func (s *Session) onConnected(caller string) {
	if s.State() != StateConnecting {
		return
	}
	s.caller = caller
	s.setState(StateGreeting)
}

// onStart validates the stream format, opens the transcription stream, and
// kicks off the greeting.
func (s *Session) onStart(format telephony.MediaFormat) {
	if s.consumer != nil || s.State().terminal() {
		return
	}

	if err := codec.CheckFormat(format.Encoding, format.SampleRate, format.Channels); err != nil {
		s.logger.Error("unsupported stream format", "error", err)
		s.fail("transport")
		return
	}

	stream, err := guard.Do(context.Background(), s.deps.Guards.STT, func(ctx context.Context) (stt.Stream, error) {
		return s.deps.Transcriber.Start(ctx, stt.StreamConfig{
			Encoding:   "mulaw",
			SampleRate: codec.WireSampleRate,
			Channels:   1,
			Language:   s.cfg.STTLanguage,
			Model:      s.cfg.STTModel,
		})
	})
	if err != nil {
		s.logger.Error("transcription start failed", "error", err)
		if guard.Classify(err) == guard.KindAuth {
			s.fail("auth")
		} else {
			s.fail("stt")
		}
		return
	}

	s.consumer = stt.NewConsumer(stream, func() bool {
		return s.State() == StateSpeaking
	}, stt.ConsumerConfig{SilenceThreshold: s.cfg.SilenceThreshold}, s.logger)
	go s.pumpConsumer()

	if s.State() == StateConnecting {
		// Provider sent start without a connected event.
		s.setState(StateGreeting)
	}

	go func() {
		reply := s.deps.Orchestrator.Opening(context.Background())
		s.post(event{kind: evReply, text: reply.Text, fallback: reply.Fallback})
	}()
}

func (s *Session) onMedia(frame telephony.Frame) {
	if s.consumer == nil {
		return
	}
	for _, f := range s.reorder.Push(frame) {
		if f.Track != "" && f.Track != telephony.TrackInbound {
			continue
		}
		if err := s.consumer.Write(f.Payload); err != nil {
			s.logger.Warn("audio forward failed", "error", err)
			return
		}
	}
}

func (s *Session) onEndOfTurn(text string) {
	st := s.State()
	if st == StateEnding || st.terminal() {
		return
	}

	if text == "" {
		if time.Since(s.lastCallerAt) >= s.cfg.MaxIdle {
			s.beginEnding(idleGoodbye)
			return
		}
		if st != StateListening {
			// Silence boundaries during agent speech say nothing about
			// the caller; only Listening silence counts toward a prompt.
			return
		}
		s.silenceStrikes++
		if s.silenceStrikes == 1 {
			s.speakPrompt(stillTherePrompt)
		}
		return
	}

	s.silenceStrikes = 0
	s.lastCallerAt = time.Now()

	if st != StateListening {
		// One in-flight pipeline: hold the utterance until the session
		// returns to Listening. Back-to-back holds join into one turn.
		if s.pendingText != "" {
			s.pendingText += " " + text
		} else {
			s.pendingText = text
		}
		return
	}
	s.processUtterance(text)
}

func (s *Session) processUtterance(text string) {
	s.setState(StateProcessing)
	s.processStart = time.Now()

	history := s.historySnapshot()
	s.appendTurn("caller", text, 0)

	resumed := s.interrupted
	s.interrupted = false

	ctx, cancel := context.WithCancel(context.Background())
	s.processCancel = cancel

	go func() {
		defer cancel()
		reply := s.deps.Orchestrator.Respond(ctx, history, text, resumed)
		s.post(event{kind: evReply, text: reply.Text, fallback: reply.Fallback, resumed: resumed})
	}()
}

func (s *Session) onReply(ev event) {
	st := s.State()
	if st != StateProcessing && st != StateGreeting {
		return
	}
	if ev.fallback {
		s.errorCount++
	}

	var latency time.Duration
	if st == StateProcessing {
		latency = time.Since(s.processStart)
	}
	s.appendTurn("agent", ev.text, latency)
	s.speak(ev.text)
}

func (s *Session) onBargeIn() {
	if s.State() != StateSpeaking {
		return
	}
	s.setState(StateInterrupted)

	if s.playCancel != nil {
		s.playCancel()
		s.playCancel = nil
	}
	s.pendingMark = ""
	if err := s.deps.Transport.SendClear(); err != nil {
		s.logger.Warn("clear failed", "error", err)
	}
	s.interrupted = true

	s.enterListening()
}

func (s *Session) onMarkEcho(mark string) {
	if mark == "" || mark != s.pendingMark {
		return
	}
	s.pendingMark = ""

	switch s.State() {
	case StateSpeaking:
		s.enterListening()
	case StateEnding:
		s.finish()
	}
}

// onPlayoutDone handles playout goroutine failures. Successful playout is
// confirmed by the provider's mark echo instead.
func (s *Session) onPlayoutDone(ev event) {
	if ev.mark != s.pendingMark {
		return
	}
	s.pendingMark = ""
	if ev.err != nil {
		s.logger.Warn("playout failed", "error", ev.err)
		s.errorCount++
	}

	switch s.State() {
	case StateSpeaking:
		s.enterListening()
	case StateEnding:
		s.finish()
	}
}

func (s *Session) enterListening() {
	s.setState(StateListening)
	if s.pendingText != "" {
		text := s.pendingText
		s.pendingText = ""
		s.processUtterance(text)
	}
}

// speak starts playout of one agent utterance.
func (s *Session) speak(text string) {
	mark := fmt.Sprintf("utt-%d", len(s.turns))
	s.pendingMark = mark
	s.setState(StateSpeaking)

	ctx, cancel := context.WithCancel(context.Background())
	s.playCancel = cancel
	go s.playout(ctx, text, mark)
}

// speakPrompt records and speaks a session-generated agent line.
func (s *Session) speakPrompt(text string) {
	s.appendTurn("agent", text, 0)
	s.speak(text)
}

func (s *Session) onTransportClosed() {
	if s.State().terminal() {
		return
	}
	// No audio channel left: skip straight to persistence.
	s.setState(StateEnding)
	s.finish()
}

func (s *Session) onStatus(status string) {
	switch status {
	case "completed", "failed":
		s.beginEnding("")
	default:
		s.logger.Debug("status update", "status", status)
	}
}

func (s *Session) onMaxDuration() {
	if s.warned || s.State().terminal() {
		return
	}
	s.warned = true
	s.logger.Info("max call duration reached")
	if s.State() == StateListening {
		s.speakPrompt(maxDurationWarning)
	}
}

// fail marks the session fatally broken, apologizes if the audio channel
// still works, and ends the call.
func (s *Session) fail(category string) {
	if s.failed || s.State() == StateEnding || s.State().terminal() {
		return
	}
	s.failed = true
	s.category = category
	s.setState(StateFailed)
	s.beginEnding(apologyLine)
}

// beginEnding transitions to Ending, speaking farewell first when one is
// given and the transport is still up.
func (s *Session) beginEnding(farewell string) {
	st := s.State()
	if st == StateEnding || (st.terminal() && st != StateFailed) {
		return
	}

	if s.playCancel != nil {
		s.playCancel()
		s.playCancel = nil
	}
	if s.processCancel != nil {
		s.processCancel()
		s.processCancel = nil
	}
	s.pendingText = ""
	s.setState(StateEnding)

	if farewell == "" {
		s.finish()
		return
	}

	s.appendTurn("agent", farewell, 0)
	mark := fmt.Sprintf("utt-%d", len(s.turns))
	s.pendingMark = mark

	ctx, cancel := context.WithCancel(context.Background())
	s.playCancel = cancel
	go s.playout(ctx, farewell, mark)

	s.endTimer.Reset(endGraceTimeout)
}

// finish persists the record and tears the session down. Runs at most once.
func (s *Session) finish() {
	if s.finished {
		return
	}
	s.finished = true

	if s.playCancel != nil {
		s.playCancel()
	}
	if s.processCancel != nil {
		s.processCancel()
	}
	if s.consumer != nil {
		s.consumer.Close()
	}
	s.deps.Transport.Close()

	final := StateEnded
	recState := "ended"
	if s.failed {
		final = StateFailed
		recState = "failed"
	}

	rec := Record{
		CallID:        s.id,
		Caller:        s.caller,
		State:         recState,
		Started:       s.startedAt,
		Ended:         time.Now(),
		ErrorCount:    s.errorCount,
		ErrorCategory: s.category,
		Turns:         s.turns,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.Recorder.SaveCall(ctx, rec); err != nil {
		s.logger.Error("call record persistence failed", "error", err)
	}

	s.setState(final)
	s.logger.Info("call finished",
		"state", recState,
		"turns", len(s.turns),
		"errors", s.errorCount,
		"duration", time.Since(s.startedAt).Round(time.Millisecond))
	close(s.done)
}

func (s *Session) setState(st State) {
	prev := State(s.state.Load())
	if prev == st {
		return
	}
	s.state.Store(int32(st))
	s.logger.Debug("state transition", "from", prev.String(), "to", st.String())
}

func (s *Session) appendTurn(speaker, text string, latency time.Duration) {
	now := time.Now()
	s.turns = append(s.turns, TurnRecord{
		Number:    len(s.turns) + 1,
		Speaker:   speaker,
		Text:      text,
		StartedAt: now,
		EndedAt:   now,
		Latency:   latency,
	})
}

// historySnapshot converts the recorded turns into dialogue history.
func (s *Session) historySnapshot() []dialogue.Turn {
	out := make([]dialogue.Turn, 0, len(s.turns))
	for _, t := range s.turns {
		speaker := dialogue.SpeakerCaller
		if t.Speaker == "agent" {
			speaker = dialogue.SpeakerAgent
		}
		out = append(out, dialogue.Turn{Speaker: speaker, Text: t.Text})
	}
	return out
}

func (s *Session) pumpConsumer() {
	for ev := range s.consumer.Events() {
		switch ev.Kind {
		case stt.EventPartial:
			s.logger.Debug("partial transcript", "text", ev.Text)
		case stt.EventEndOfTurn:
			s.post(event{kind: evEndOfTurn, text: ev.Text})
		case stt.EventBargeIn:
			s.post(event{kind: evBargeIn})
		case stt.EventError:
			s.post(event{kind: evSTTError, err: ev.Err})
		}
	}
}

// post delivers an event to the run goroutine. Media frames are dropped
// when the queue is full; everything else blocks until accepted or the
// session ends.
func (s *Session) post(ev event) {
	select {
	case <-s.done:
		return
	default:
	}

	if ev.kind == evMedia {
		select {
		case s.events <- ev:
		default:
			s.logger.Warn("event queue full, dropping media frame")
		}
		return
	}

	select {
	case s.events <- ev:
	case <-s.done:
	}
}
