// sim/simulator.go
package sim

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Time units. One tick is one simulated second; configuration is expressed
// in hours and converted at the boundary.
const (
	TicksPerHour int64 = 3600
	HoursPerDay  int64 = 24
	TicksPerDay        = TicksPerHour * HoursPerDay
)

// MaxTicks is the latest representable instant. Conversions and schedules
// saturate here instead of wrapping.
const MaxTicks int64 = math.MaxInt64

// Hours converts a duration in hours to ticks, rounding to the nearest tick.
// Negative and NaN inputs become zero; inputs too large for int64 saturate
// at MaxTicks.
func Hours(h float64) int64 {
	if h <= 0 || math.IsNaN(h) {
		return 0
	}
	ticks := math.Round(h * float64(TicksPerHour))
	if ticks >= float64(MaxTicks) {
		return MaxTicks
	}
	return int64(ticks)
}

// AddTicks returns t+d for a non-negative d, saturating at MaxTicks.
func AddTicks(t, d int64) int64 {
	if d > MaxTicks-t {
		return MaxTicks
	}
	return t + d
}

// ToHours converts ticks to fractional hours.
func ToHours(ticks int64) float64 {
	return float64(ticks) / float64(TicksPerHour)
}

// eventEntry wraps an Event with a sequence ID for deterministic FIFO
// tie-breaking when timestamps are equal.
type eventEntry struct {
	event Event
	seqID int64
}

// EventQueue is a min-heap ordered by (Timestamp, seqID).
// Implements heap.Interface.
type EventQueue []eventEntry

func (eq EventQueue) Len() int { return len(eq) }

func (eq EventQueue) Less(i, j int) bool {
	if eq[i].event.Timestamp() != eq[j].event.Timestamp() {
		return eq[i].event.Timestamp() < eq[j].event.Timestamp()
	}
	return eq[i].seqID < eq[j].seqID
}

func (eq EventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *EventQueue) Push(x any) {
	*eq = append(*eq, x.(eventEntry))
}

func (eq *EventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	*eq = old[:n-1]
	return item
}

// Simulator is the simulation context: logical clock, pending resumptions and
// the run's random streams. Every process, resource and buffer of a run holds
// a pointer to the same Simulator; independent runs share nothing.
type Simulator struct {
	Clock   int64
	Horizon int64
	RNG     *PartitionedRNG

	queue     EventQueue
	nextSeq   int64
	executed  int64
	processes []*Process
	stopped   bool
}

// NewSimulator creates a simulator that stops once the clock would pass horizon.
func NewSimulator(horizon int64, key SimulationKey) *Simulator {
	if horizon < 0 {
		panic(fmt.Sprintf("NewSimulator: horizon must be non-negative, got %d", horizon))
	}
	return &Simulator{
		Horizon: horizon,
		RNG:     NewPartitionedRNG(key),
		queue:   make(EventQueue, 0),
	}
}

// Now returns the current simulated time in ticks.
func (sim *Simulator) Now() int64 {
	return sim.Clock
}

// Schedule pushes an event into the queue. Scheduling into the past is a
// programming error.
func (sim *Simulator) Schedule(ev Event) {
	if ev.Timestamp() < sim.Clock {
		panic(fmt.Sprintf("Schedule: event %T at %d is before clock %d", ev, ev.Timestamp(), sim.Clock))
	}
	sim.nextSeq++
	heap.Push(&sim.queue, eventEntry{event: ev, seqID: sim.nextSeq})
}

// ScheduleAfter registers fn to run at now+delay and returns the timer so the
// caller may cancel it. A negative delay is a programming error.
func (sim *Simulator) ScheduleAfter(delay int64, fn func()) *Timer {
	return sim.scheduleLabeled(delay, "", fn)
}

func (sim *Simulator) scheduleLabeled(delay int64, label string, fn func()) *Timer {
	if delay < 0 {
		panic(fmt.Sprintf("ScheduleAfter: negative delay %d at clock %d", delay, sim.Clock))
	}
	if fn == nil {
		panic("ScheduleAfter: fn must not be nil")
	}
	t := &Timer{time: AddTicks(sim.Clock, delay), label: label, fn: fn}
	sim.Schedule(t)
	return t
}

// Pending returns the number of queued events, cancelled ones included.
func (sim *Simulator) Pending() int {
	return len(sim.queue)
}

// Executed returns the number of events executed so far.
func (sim *Simulator) Executed() int64 {
	return sim.executed
}

// Processes returns every process spawned on this simulator in spawn order.
func (sim *Simulator) Processes() []*Process {
	return sim.processes
}

// Step advances to the earliest pending event and executes exactly that one.
// It returns false when nothing was executed: the queue is empty, or the next
// event lies beyond the horizon (in which case the clock moves to the horizon).
func (sim *Simulator) Step() bool {
	for len(sim.queue) > 0 {
		next := sim.queue[0].event
		if c, ok := next.(cancellable); ok && c.Cancelled() {
			heap.Pop(&sim.queue)
			continue
		}
		if next.Timestamp() > sim.Horizon {
			sim.Clock = max(sim.Clock, sim.Horizon)
			sim.stopped = true
			return false
		}
		heap.Pop(&sim.queue)
		if next.Timestamp() < sim.Clock {
			panic(fmt.Sprintf("Clock went backwards: %d < %d", next.Timestamp(), sim.Clock))
		}
		sim.Clock = next.Timestamp()
		sim.executed++
		next.Execute(sim)
		return true
	}
	return false
}

// Run executes events until the horizon is reached or no events remain.
func (sim *Simulator) Run() {
	logrus.Debugf("[tick %07d] Simulation started, horizon=%d", sim.Clock, sim.Horizon)
	for sim.Step() {
	}
	logrus.Debugf("[tick %07d] Simulation ended after %d events (%d pending)", sim.Clock, sim.executed, len(sim.queue))
}

// RunUntil executes events up to and including time t (capped at the horizon).
// It lets a caller advance a run in slices, e.g. one simulated day at a time.
// A t at or before the current clock executes only events due now.
func (sim *Simulator) RunUntil(t int64) {
	limit := sim.Horizon
	sim.Horizon = max(sim.Clock, min(t, limit))
	for sim.Step() {
	}
	sim.Horizon = limit
	sim.stopped = false
}

// Stopped reports whether the last Step halted at the horizon with events
// still pending.
func (sim *Simulator) Stopped() bool {
	return sim.stopped
}
