package dialogue

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/switchboard-ai/switchboard/pkg/guard"
)

// Canned lines used when the dialogue dependency is exhausted. The caller
// hears one of these instead of silence or an error.
const (
	fallbackQuestion = "I'm having trouble reaching that information right now. Could you ask me again in a moment?"
	fallbackGeneral  = "Sorry, I'm having a little trouble on my end right now. Could you say that again?"
	fallbackGreeting = "Hello! Thanks for calling. How can I help you today?"
)

// knowledgeTimeout bounds the optional context lookup. A slow knowledge
// service must not stall the turn; the dialogue proceeds without context.
const knowledgeTimeout = 2 * time.Second

// OrchestratorConfig tunes reply assembly and post-processing.
type OrchestratorConfig struct {
	// Persona is the system instruction describing the agent.
	Persona string

	// Greeting is the static opening line. When empty the opening line is
	// generated by the responder.
	Greeting string

	// HistoryWindow bounds how many prior turns are sent with each
	// request. Default 12.
	HistoryWindow int

	// WordCap bounds reply length for spoken delivery. Default 200.
	WordCap int
}

func (c *OrchestratorConfig) withDefaults() {
	if c.Persona == "" {
		c.Persona = "You are a friendly phone agent. Answer briefly, in plain spoken language."
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 12
	}
	if c.WordCap <= 0 {
		c.WordCap = 200
	}
}

// Reply is the orchestrator's output for one caller turn.
type Reply struct {
	Text string

	// Fallback marks a canned substitute produced after the dependency
	// guard was exhausted. Counted as an error on the session record.
	Fallback bool
}

// Orchestrator assembles dialogue requests and makes replies safe to
// speak. It never returns an error to the session: a failed dependency
// becomes a fallback line.
type Orchestrator struct {
	responder Responder
	knowledge Knowledge
	dep       *guard.Dependency
	cfg       OrchestratorConfig
	logger    *slog.Logger
}

// NewOrchestrator wires the orchestrator. knowledge may be nil when no
// lookup service is configured.
func NewOrchestrator(responder Responder, knowledge Knowledge, dep *guard.Dependency, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		responder: responder,
		knowledge: knowledge,
		dep:       dep,
		cfg:       cfg,
		logger:    logger.With("component", "dialogue.orchestrator"),
	}
}

// Opening returns the call's first line. A configured static greeting
// wins; otherwise the responder generates one, with a canned greeting as
// the last resort.
func (o *Orchestrator) Opening(ctx context.Context) Reply {
	if o.cfg.Greeting != "" {
		return Reply{Text: o.cfg.Greeting}
	}

	text, err := guard.Do(ctx, o.dep, func(ctx context.Context) (string, error) {
		return o.responder.Respond(ctx, Request{
			System:     o.cfg.Persona,
			Transcript: "The call just connected. Greet the caller in one short sentence.",
		})
	})
	if err != nil {
		o.logger.Warn("opening line failed, using canned greeting", "error", err)
		return Reply{Text: fallbackGreeting, Fallback: true}
	}
	return Reply{Text: polish(text, o.cfg.WordCap, false)}
}

// Respond produces the agent's reply for one finalized caller utterance.
// history is the full session history, oldest first; the orchestrator
// trims it. resumed marks a turn that follows a barge-in, so the reply
// acknowledges the interruption.
func (o *Orchestrator) Respond(ctx context.Context, history []Turn, transcript string, resumed bool) Reply {
	req := Request{
		System:     o.cfg.Persona,
		History:    o.trimHistory(history),
		Transcript: transcript,
	}

	if kctx := o.lookupContext(ctx, transcript); kctx != "" {
		req.System += "\n\nUse the following reference information when relevant:\n" + kctx
	}

	text, err := guard.Do(ctx, o.dep, func(ctx context.Context) (string, error) {
		return o.responder.Respond(ctx, req)
	})
	if err != nil {
		o.logger.Warn("dialogue exhausted, substituting fallback", "error", err)
		return Reply{Text: o.fallbackLine(transcript), Fallback: true}
	}

	return Reply{Text: polish(text, o.cfg.WordCap, resumed)}
}

// trimHistory keeps the most recent window of turns.
func (o *Orchestrator) trimHistory(history []Turn) []Turn {
	if len(history) <= o.cfg.HistoryWindow {
		return history
	}
	return history[len(history)-o.cfg.HistoryWindow:]
}

// lookupContext queries the knowledge service for question-shaped
// utterances. Lookup failures are absorbed; the turn proceeds without
// injected context.
func (o *Orchestrator) lookupContext(ctx context.Context, transcript string) string {
	if o.knowledge == nil || !looksLikeQuestion(transcript) {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, knowledgeTimeout)
	defer cancel()

	kctx, err := o.knowledge.Lookup(ctx, transcript)
	if err != nil {
		o.logger.Warn("knowledge lookup failed, proceeding without context", "error", err)
		return ""
	}
	return kctx
}

func (o *Orchestrator) fallbackLine(transcript string) string {
	if looksLikeQuestion(strings.TrimSpace(transcript)) {
		return fallbackQuestion
	}
	return fallbackGeneral
}
