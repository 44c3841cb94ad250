package guard

import (
	"context"
	"errors"
	"net"
)

// Sentinel errors.
var (
	// ErrUnavailable is returned when a dependency's circuit is open and
	// the call was short-circuited without touching the network.
	ErrUnavailable = errors.New("guard: dependency unavailable")
)

// Kind classifies a dependency failure for retry and breaker decisions.
type Kind int

const (
	// KindTransient covers timeouts and 5xx responses. Retried.
	KindTransient Kind = iota

	// KindRateLimit covers 429-class responses. Retried with backoff and
	// counted toward the circuit breaker.
	KindRateLimit

	// KindAuth covers invalid credentials or configuration. Never
	// retried; opens the dependency's circuit immediately.
	KindAuth

	// KindPermanent covers everything else (malformed requests and other
	// non-retryable 4xx). Not retried.
	KindPermanent
)

// String returns a human-readable failure kind.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimit:
		return "rate_limit"
	case KindAuth:
		return "auth"
	default:
		return "permanent"
	}
}

// HTTPStatuser is implemented by provider error types that carry an HTTP
// status code. Classification prefers it over error sniffing.
type HTTPStatuser interface {
	HTTPStatus() int
}

// Classify maps a dependency error to its failure kind.
func Classify(err error) Kind {
	if err == nil {
		return KindPermanent
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var statuser HTTPStatuser
	if errors.As(err, &statuser) {
		switch code := statuser.HTTPStatus(); {
		case code == 401 || code == 403:
			return KindAuth
		case code == 429:
			return KindRateLimit
		case code >= 500:
			return KindTransient
		default:
			return KindPermanent
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}

	// Connection-level failures without a status are worth retrying.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransient
	}

	return KindPermanent
}
