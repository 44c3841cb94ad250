package call

import "github.com/switchboard-ai/switchboard/pkg/telephony"

// eventKind tags the session's internal event queue. Every external input
// (transport messages, consumer output, webhooks, admin actions) becomes an
// event so the run goroutine stays the only writer of session state.
type eventKind int

const (
	evConnected eventKind = iota
	evStart
	evMedia
	evStop
	evMarkEcho
	evTransportClosed

	evEndOfTurn
	evBargeIn
	evSTTError

	evReply
	evPlayoutDone

	evStatus
	evTerminate
)

type event struct {
	kind eventKind

	caller string
	frame  telephony.Frame
	format telephony.MediaFormat
	mark   string
	text   string
	status string
	reason string
	err    error

	// reply fields
	fallback bool
	resumed  bool
}
