package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ProcessState describes where a process is suspended.
type ProcessState string

const (
	ProcessReady    ProcessState = "ready"
	ProcessSleeping ProcessState = "sleeping"
	ProcessBlocked  ProcessState = "blocked"
)

// Process is a unit of concurrent control flow. Its body is a chain of
// continuations: every suspension point (Sleep, Resource.Acquire,
// Container.Get, Store.Get) takes the code to run on resumption, and the
// scheduler runs that code when the process is woken. Only one continuation
// runs at a time, so a process never observes another mid-step.
type Process struct {
	Name string

	sim     *Simulator
	state   ProcessState
	waitOn  string
	resumes int64
}

// Spawn registers a new process whose body starts at the current time, after
// every event already scheduled for this instant.
func (sim *Simulator) Spawn(name string, body func(p *Process)) *Process {
	if body == nil {
		panic(fmt.Sprintf("Spawn(%q): body must not be nil", name))
	}
	p := &Process{Name: name, sim: sim, state: ProcessReady}
	sim.processes = append(sim.processes, p)
	sim.scheduleLabeled(0, "start "+name, func() {
		p.resumes++
		body(p)
	})
	return p
}

// Sim returns the simulator the process belongs to.
func (p *Process) Sim() *Simulator {
	return p.sim
}

// Now returns the current simulated time.
func (p *Process) Now() int64 {
	return p.sim.Clock
}

// State returns the current suspension state.
func (p *Process) State() ProcessState {
	return p.state
}

// WaitingOn names the resource or buffer a blocked process waits on.
func (p *Process) WaitingOn() string {
	return p.waitOn
}

// Resumes returns how many times the process has been resumed.
func (p *Process) Resumes() int64 {
	return p.resumes
}

// Sleep suspends the process for delay ticks, then runs k.
func (p *Process) Sleep(delay int64, k func()) *Timer {
	p.state = ProcessSleeping
	p.waitOn = ""
	return p.sim.scheduleLabeled(delay, p.Name, func() {
		p.resume()
		k()
	})
}

// SleepUntil suspends the process until absolute time t (or now, if t has
// already passed), then runs k.
func (p *Process) SleepUntil(t int64, k func()) *Timer {
	return p.Sleep(max(0, t-p.sim.Clock), k)
}

// block marks the process as waiting on a named resource or buffer.
func (p *Process) block(on string) {
	p.state = ProcessBlocked
	p.waitOn = on
	logrus.Tracef("[tick %07d] %s blocked on %s", p.sim.Clock, p.Name, on)
}

// wake schedules k for the current instant on behalf of p.
func (p *Process) wake(k func()) {
	p.sim.scheduleLabeled(0, p.Name, func() {
		p.resume()
		k()
	})
}

func (p *Process) resume() {
	p.state = ProcessReady
	p.waitOn = ""
	p.resumes++
}
