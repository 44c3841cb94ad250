package call

// State is the session lifecycle state. Transitions happen only inside the
// session's run goroutine; other goroutines read it through Session.State.
type State int32

const (
	StateConnecting State = iota
	StateGreeting
	StateListening
	StateProcessing
	StateSpeaking
	StateInterrupted
	StateEnding
	StateEnded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateGreeting:
		return "greeting"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateInterrupted:
		return "interrupted"
	case StateEnding:
		return "ending"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// terminal reports whether no further transitions can occur.
func (s State) terminal() bool {
	return s == StateEnded || s == StateFailed
}
