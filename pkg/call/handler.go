package call

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/switchboard-ai/switchboard/pkg/dialogue"
	"github.com/switchboard-ai/switchboard/pkg/guard"
	"github.com/switchboard-ai/switchboard/pkg/stt"
	"github.com/switchboard-ai/switchboard/pkg/telephony"
	"github.com/switchboard-ai/switchboard/pkg/tts"
)

// Handler owns the HTTP-facing surfaces of the call subsystem: the media
// stream WebSocket, the provider status webhook, and the health endpoint.
type Handler struct {
	Registry     *Registry
	Transcriber  stt.Transcriber
	Orchestrator *dialogue.Orchestrator
	Synth        tts.Synthesizer
	Guards       *guard.Registry
	Recorder     Recorder
	Config       Config
	Logger       *slog.Logger
}

// Media handles one provider media-stream connection. It creates the
// session on the first identifying message and feeds it until the socket
// closes.
func (h *Handler) Media(ws *websocket.Conn) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn := telephony.NewConn(ws, logger)

	var sess *Session
	err := conn.ReadLoop(func(msg *telephony.Message) {
		if msg.Event == telephony.EventStart && msg.StreamID != "" {
			conn.SetStreamID(msg.StreamID)
		}

		if sess == nil {
			sess = NewSession(callID(msg), Deps{
				Transport:    conn,
				Transcriber:  h.Transcriber,
				Orchestrator: h.Orchestrator,
				Synth:        h.Synth,
				Guards:       h.Guards,
				Recorder:     h.Recorder,
				Logger:       logger,
			}, h.Config)
			h.Registry.Add(sess)
			go sess.Run()
		}
		sess.HandleMessage(msg)
	})

	if sess == nil {
		conn.Close()
		return
	}

	sess.TransportClosed(err)
	<-sess.Done()
	h.Registry.Remove(sess.ID())
}

// callID extracts the provider call id from the first message, falling
// back to a generated id when the provider omits one.
func callID(msg *telephony.Message) string {
	switch {
	case msg.Connected != nil && msg.Connected.CallID != "":
		return msg.Connected.CallID
	case msg.Start != nil && msg.Start.CallID != "":
		return msg.Start.CallID
	default:
		return uuid.NewString()
	}
}

// statusCallback is the provider lifecycle webhook body.
type statusCallback struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

// StatusWebhook translates provider call status callbacks into session
// events. Duplicate deliveries and callbacks for finished calls are
// acknowledged without effect.
func (h *Handler) StatusWebhook(c *fiber.Ctx) error {
	var cb statusCallback
	if err := c.BodyParser(&cb); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed status callback")
	}
	if cb.CallID == "" || cb.Status == "" {
		return fiber.NewError(fiber.StatusBadRequest, "call_id and status are required")
	}

	if sess, ok := h.Registry.Get(cb.CallID); ok {
		sess.Status(cb.Status)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Health reports dependency circuit state and active call count.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "ok",
		"active_calls": h.Registry.Len(),
		"dependencies": h.Guards.Health(),
	})
}
