// Package guard wraps every call to an external AI dependency with a
// request timeout, bounded retries with jittered exponential backoff, and a
// per-dependency circuit breaker.
//
// Breaker state is process-wide, not per-call: it reflects the health of the
// dependency itself. Sessions share one Registry and never mutate
// DependencyHealth directly.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"
)

// Options tunes a dependency wrapper. Zero values fall back to defaults.
type Options struct {
	// Timeout is the hard per-request timeout.
	Timeout time.Duration

	// MaxRetries bounds retry attempts after the first call.
	MaxRetries int

	// BackoffBase is the first retry delay; subsequent delays grow
	// exponentially with jitter.
	BackoffBase time.Duration

	// TripAfter is the consecutive-failure count that opens the breaker.
	TripAfter int

	// Cooloff is how long an open breaker waits before half-open probes.
	Cooloff time.Duration

	Logger *slog.Logger
}

func (o *Options) withDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 250 * time.Millisecond
	}
	if o.TripAfter <= 0 {
		o.TripAfter = 3
	}
	if o.Cooloff <= 0 {
		o.Cooloff = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Dependency guards one external service. All sessions share the same
// Dependency for a given service.
type Dependency struct {
	name   string
	opts   Options
	cb     *gobreaker.CircuitBreaker[any]
	logger *slog.Logger

	// forceTrip is set on auth failures so ReadyToTrip opens the breaker
	// without waiting for the consecutive-failure threshold.
	forceTrip atomic.Bool

	mu       sync.RWMutex
	openedAt time.Time
}

// NewDependency creates a guarded dependency wrapper.
func NewDependency(name string, opts Options) *Dependency {
	opts.withDefaults()

	d := &Dependency{
		name:   name,
		opts:   opts,
		logger: opts.Logger.With("component", "guard", "dependency", name),
	}

	d.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.Cooloff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return d.forceTrip.Load() || counts.ConsecutiveFailures >= uint32(opts.TripAfter)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.mu.Lock()
			if to == gobreaker.StateOpen {
				d.openedAt = time.Now()
			}
			d.mu.Unlock()
			if to == gobreaker.StateClosed {
				d.forceTrip.Store(false)
			}
			d.logger.Warn("breaker state change", "from", from.String(), "to", to.String())
		},
	})

	return d
}

// Name returns the dependency identifier.
func (d *Dependency) Name() string {
	return d.name
}

// Do executes fn against dependency d under the guard's full discipline:
// per-attempt timeout, classification-driven retries, and the shared
// circuit breaker. While the breaker is open it returns ErrUnavailable
// immediately without incurring network latency.
func Do[T any](ctx context.Context, d *Dependency, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T

	backoff := retry.WithMaxRetries(
		uint64(d.opts.MaxRetries),
		retry.WithJitter(d.opts.BackoffBase/4, retry.NewExponential(d.opts.BackoffBase)),
	)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := d.cb.Execute(func() (any, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
			defer cancel()

			v, err := fn(attemptCtx)
			if err != nil && Classify(err) == KindAuth {
				// Operator-visible: credentials are wrong, retrying
				// cannot help, and the breaker must open now.
				d.forceTrip.Store(true)
				d.logger.Error("auth failure, opening circuit", "error", err)
			}
			return v, err
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return fmt.Errorf("%w: %s", ErrUnavailable, d.name)
			}
			switch Classify(err) {
			case KindTransient, KindRateLimit:
				return retry.RetryableError(err)
			default:
				return err
			}
		}

		var ok bool
		if result, ok = v.(T); !ok && v != nil {
			return fmt.Errorf("guard: %s returned unexpected type %T", d.name, v)
		}
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Health is a point-in-time snapshot of one dependency's circuit state.
type Health struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	NextRetry           time.Time `json:"next_retry,omitzero"`
}

// Health reports the dependency's current circuit state.
func (d *Dependency) Health() Health {
	h := Health{
		Name:                d.name,
		State:               d.cb.State().String(),
		ConsecutiveFailures: d.cb.Counts().ConsecutiveFailures,
	}
	if d.cb.State() == gobreaker.StateOpen {
		d.mu.RLock()
		h.NextRetry = d.openedAt.Add(d.opts.Cooloff)
		d.mu.RUnlock()
	}
	return h
}

// Registry holds the process-wide guards for the three AI dependencies.
type Registry struct {
	STT      *Dependency
	Dialogue *Dependency
	TTS      *Dependency
}

// NewRegistry creates guards for the stt, dialogue, and tts dependencies
// with shared options.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		STT:      NewDependency("stt", opts),
		Dialogue: NewDependency("dialogue", opts),
		TTS:      NewDependency("tts", opts),
	}
}

// Health reports all dependency circuits.
func (r *Registry) Health() []Health {
	return []Health{r.STT.Health(), r.Dialogue.Health(), r.TTS.Health()}
}
