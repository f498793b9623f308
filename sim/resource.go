package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// FailurePolicy decides what a failure does to a unit that is busy when it
// breaks down.
type FailurePolicy string

const (
	// FailureCompleteInFlight lets in-flight work finish. If no unit is idle at
	// failure time, the next released unit goes to repair ahead of every
	// waiting acquirer.
	FailureCompleteInFlight FailurePolicy = "complete"

	// FailurePreempt takes the most recently acquired busy unit immediately.
	// Its holder's remaining work is suspended and resumes after the repair.
	FailurePreempt FailurePolicy = "preempt"
)

// ParseFailurePolicy maps a flag value to a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case FailureCompleteInFlight, FailurePreempt:
		return FailurePolicy(s), nil
	case "":
		return FailureCompleteInFlight, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q; valid: complete, preempt", s)
	}
}

// Breakdown describes one failure of one unit and its repair.
type Breakdown struct {
	Resource       string
	FailedAt       int64 // when the failure was sampled to happen
	RepairStart    int64 // when the unit was actually taken out of rotation
	RepairDuration int64
	Preempted      bool // the unit was taken from a holder mid-task
	Repaired       bool
}

// End returns when the unit returns to the pool.
func (b *Breakdown) End() int64 {
	return b.RepairStart + b.RepairDuration
}

// FailureConfig parameterizes a resource's failure injector.
type FailureConfig struct {
	MTBFHours float64 // mean time between failures of one unit; <= 0 disables failures
	MTTRHours float64 // mean repair time, exponentially distributed
	Policy    FailurePolicy
	Stream    *Stream

	OnRepairStart func(*Breakdown)
	OnRepairEnd   func(*Breakdown)
}

// PoolState is a point-in-time view of a resource. Busy + Idle + UnderRepair
// always equals Total.
type PoolState struct {
	Total       int
	Busy        int
	Idle        int
	UnderRepair int
}

type acquireRequest struct {
	proc  *Process
	since int64
	k     func(*Grant)
}

type pendingFailure struct {
	failedAt int64
}

type holdWork struct {
	timer     *Timer
	end       int64
	remaining int64
	suspended bool
	k         func()
}

// Grant is the handle of one acquired unit. It must be released exactly once.
type Grant struct {
	res        *Resource
	proc       *Process
	acquiredAt int64
	released   bool
	work       *holdWork
}

// AcquiredAt returns when the unit was granted.
func (g *Grant) AcquiredAt() int64 { return g.acquiredAt }

// Suspended reports whether the unit was pre-empted for repair mid-task.
func (g *Grant) Suspended() bool { return g.work != nil && g.work.suspended }

// Resource models a pool of identical machines. Acquisition is FIFO; a unit
// is either idle, busy with exactly one holder, or under repair.
type Resource struct {
	Name string

	sim      *Simulator
	capacity int
	busy     int
	repair   int

	waiters []acquireRequest
	holders []*Grant
	pending []pendingFailure

	failures *FailureConfig

	lastAccount  int64
	busyTicks    int64
	repairTicks  int64
	acquisitions int64
	breakdowns   int64
}

// NewResource creates a pool of capacity identical units.
func NewResource(sim *Simulator, name string, capacity int) *Resource {
	if capacity <= 0 {
		panic(fmt.Sprintf("NewResource(%s): capacity must be positive, got %d", name, capacity))
	}
	return &Resource{Name: name, sim: sim, capacity: capacity, lastAccount: sim.Clock}
}

// Capacity returns the configured unit count.
func (r *Resource) Capacity() int { return r.capacity }

// State returns the current pool state.
func (r *Resource) State() PoolState {
	return PoolState{
		Total:       r.capacity,
		Busy:        r.busy,
		Idle:        r.idle(),
		UnderRepair: r.repair,
	}
}

// QueueLen returns the number of processes waiting to acquire a unit.
func (r *Resource) QueueLen() int { return len(r.waiters) }

// Acquisitions returns how many grants have been issued.
func (r *Resource) Acquisitions() int64 { return r.acquisitions }

// Breakdowns returns how many repairs have started.
func (r *Resource) Breakdowns() int64 { return r.breakdowns }

// Utilization returns the cumulative fraction of unit-time spent busy.
func (r *Resource) Utilization() float64 {
	busy, _ := r.integrals()
	denom := float64(r.capacity) * float64(r.sim.Clock)
	if denom <= 0 {
		return 0
	}
	return min(1.0, float64(busy)/denom)
}

// Availability returns the cumulative fraction of unit-time not under repair.
func (r *Resource) Availability() float64 {
	_, rep := r.integrals()
	denom := float64(r.capacity) * float64(r.sim.Clock)
	if denom <= 0 {
		return 1
	}
	return 1 - min(1.0, float64(rep)/denom)
}

func (r *Resource) integrals() (busy, repair int64) {
	dt := r.sim.Clock - r.lastAccount
	return r.busyTicks + int64(r.busy)*dt, r.repairTicks + int64(r.repair)*dt
}

func (r *Resource) idle() int {
	return r.capacity - r.busy - r.repair
}

// account integrates busy/repair time up to now. Call before changing counts.
func (r *Resource) account() {
	r.busyTicks, r.repairTicks = r.integrals()
	r.lastAccount = r.sim.Clock
}

func (r *Resource) check() {
	if r.busy < 0 || r.repair < 0 || r.idle() < 0 {
		panic(fmt.Sprintf("Resource(%s): invalid pool state busy=%d repair=%d capacity=%d", r.Name, r.busy, r.repair, r.capacity))
	}
}

// Acquire grants a unit to p and runs k with the grant. If no unit is idle,
// or earlier acquirers or repairs are queued, p suspends until a release
// frees a unit for it.
func (r *Resource) Acquire(p *Process, k func(*Grant)) {
	if p == nil || k == nil {
		panic(fmt.Sprintf("Resource(%s).Acquire: process and continuation must not be nil", r.Name))
	}
	if r.idle() > 0 && len(r.waiters) == 0 && len(r.pending) == 0 {
		g := r.grant(p)
		p.wake(func() { k(g) })
		return
	}
	p.block(r.Name)
	r.waiters = append(r.waiters, acquireRequest{proc: p, since: r.sim.Clock, k: k})
}

func (r *Resource) grant(p *Process) *Grant {
	r.account()
	r.busy++
	r.check()
	r.acquisitions++
	g := &Grant{res: r, proc: p, acquiredAt: r.sim.Clock}
	r.holders = append(r.holders, g)
	return g
}

// Work holds the unit for d ticks and then runs k. The hold is the only span
// during which FailurePreempt may interrupt the holder.
func (g *Grant) Work(d int64, k func()) {
	if g.released {
		panic(fmt.Sprintf("Resource(%s): Work on released grant", g.res.Name))
	}
	if g.work != nil {
		panic(fmt.Sprintf("Resource(%s): Work while previous work is in flight", g.res.Name))
	}
	w := &holdWork{end: g.proc.Now() + d, k: k}
	g.work = w
	w.timer = g.proc.Sleep(d, g.finishWork)
}

func (g *Grant) finishWork() {
	w := g.work
	g.work = nil
	w.k()
}

// Release returns the unit to the pool. Releasing twice, or while work is in
// flight, is a programming error.
func (g *Grant) Release() {
	r := g.res
	if g.released {
		panic(fmt.Sprintf("Resource(%s): release without matching acquire", r.Name))
	}
	if g.work != nil {
		panic(fmt.Sprintf("Resource(%s): release while work is in flight", r.Name))
	}
	g.released = true
	for i, h := range r.holders {
		if h == g {
			r.holders = append(r.holders[:i], r.holders[i+1:]...)
			break
		}
	}
	r.account()
	r.busy--
	r.check()
	r.unitFreed()
}

// unitFreed hands a newly idle unit to a queued repair first, then to the
// oldest waiting acquirer.
func (r *Resource) unitFreed() {
	if len(r.pending) > 0 {
		f := r.pending[0]
		r.pending = r.pending[1:]
		r.account()
		r.repair++
		r.check()
		r.startRepair(f, nil)
		return
	}
	if len(r.waiters) > 0 && r.idle() > 0 {
		w := r.waiters[0]
		r.waiters = r.waiters[1:]
		g := r.grant(w.proc)
		w.proc.wake(func() { w.k(g) })
	}
}

// StartFailures attaches a failure injector. It runs as its own process:
// sleep a sampled time-to-failure, take one unit out of rotation, repeat.
// With capacity units each failing at rate 1/MTBF, the pool fails at rate
// capacity/MTBF.
func (r *Resource) StartFailures(cfg FailureConfig) {
	if cfg.MTBFHours <= 0 {
		return
	}
	if cfg.Stream == nil {
		panic(fmt.Sprintf("Resource(%s).StartFailures: stream must not be nil", r.Name))
	}
	if cfg.Policy == "" {
		cfg.Policy = FailureCompleteInFlight
	}
	r.failures = &cfg
	r.sim.Spawn(r.Name+"/failures", func(p *Process) {
		var next func()
		next = func() {
			ttf := cfg.Stream.DurationExp(cfg.MTBFHours / float64(r.capacity))
			p.Sleep(ttf, func() {
				r.fail()
				next()
			})
		}
		next()
	})
}

func (r *Resource) fail() {
	if r.repair+len(r.pending) >= r.capacity {
		// every unit is already down or queued for repair
		return
	}
	f := pendingFailure{failedAt: r.sim.Clock}
	if r.idle() > 0 {
		r.account()
		r.repair++
		r.check()
		r.startRepair(f, nil)
		return
	}
	if r.failures.Policy == FailurePreempt {
		if victim := r.preemptible(); victim != nil {
			r.preempt(victim)
			r.startRepair(f, victim)
			return
		}
	}
	logrus.Debugf("[tick %07d] %s failure queued until a unit is released", r.sim.Clock, r.Name)
	r.pending = append(r.pending, f)
}

// preemptible returns the most recently acquired holder whose work can be
// suspended.
func (r *Resource) preemptible() *Grant {
	for i := len(r.holders) - 1; i >= 0; i-- {
		g := r.holders[i]
		if g.work != nil && !g.work.suspended {
			return g
		}
	}
	return nil
}

func (r *Resource) preempt(g *Grant) {
	w := g.work
	w.timer.Cancel()
	w.remaining = max(0, w.end-r.sim.Clock)
	w.suspended = true
	r.account()
	r.busy--
	r.repair++
	r.check()
	g.proc.block(r.Name + "/repair")
	logrus.Debugf("[tick %07d] %s pre-empted %s with %d ticks of work left", r.sim.Clock, r.Name, g.proc.Name, w.remaining)
}

func (r *Resource) startRepair(f pendingFailure, victim *Grant) {
	cfg := r.failures
	b := &Breakdown{
		Resource:       r.Name,
		FailedAt:       f.failedAt,
		RepairStart:    r.sim.Clock,
		RepairDuration: cfg.Stream.DurationExp(cfg.MTTRHours),
		Preempted:      victim != nil,
	}
	r.breakdowns++
	logrus.Debugf("[tick %07d] %s breakdown, repair %d ticks", r.sim.Clock, r.Name, b.RepairDuration)
	if cfg.OnRepairStart != nil {
		cfg.OnRepairStart(b)
	}
	r.sim.ScheduleAfter(b.RepairDuration, func() {
		r.finishRepair(b, victim)
	})
}

func (r *Resource) finishRepair(b *Breakdown, victim *Grant) {
	b.Repaired = true
	r.account()
	r.repair--
	if victim != nil {
		w := victim.work
		r.busy++
		r.check()
		w.suspended = false
		w.end = r.sim.Clock + w.remaining
		w.timer = victim.proc.Sleep(w.remaining, victim.finishWork)
	} else {
		r.check()
		r.unitFreed()
	}
	if r.failures.OnRepairEnd != nil {
		r.failures.OnRepairEnd(b)
	}
}
