package sim

import "github.com/sirupsen/logrus"

// Event defines the interface for all simulation events.
// Each event must have a Timestamp (in ticks) and an Execute method
// that advances simulation state when invoked.
type Event interface {
	Timestamp() int64
	Execute(*Simulator)
}

// Timer is the continuation event every suspension point resolves to: when
// the clock reaches its timestamp the scheduler runs fn. A cancelled timer is
// discarded without touching the clock.
type Timer struct {
	time      int64
	label     string
	fn        func()
	cancelled bool
}

// Timestamp returns the scheduled time of the Timer.
func (t *Timer) Timestamp() int64 {
	return t.time
}

// Execute runs the continuation.
func (t *Timer) Execute(sim *Simulator) {
	if t.label != "" {
		logrus.Tracef("<< %s at %d ticks", t.label, t.time)
	}
	t.fn()
}

// Cancel prevents the continuation from running. Cancelling an already
// executed timer has no effect.
func (t *Timer) Cancel() {
	t.cancelled = true
}

// Cancelled reports whether Cancel was called.
func (t *Timer) Cancelled() bool {
	return t.cancelled
}

// cancellable is implemented by events the scheduler may skip.
type cancellable interface {
	Cancelled() bool
}
