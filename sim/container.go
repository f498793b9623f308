package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// ErrInvalidAmount is returned when a Container is asked to move a
// non-positive or non-finite quantity.
var ErrInvalidAmount = errors.New("amount must be a positive finite number")

// levelEpsilon absorbs floating-point residue when comparing levels.
const levelEpsilon = 1e-9

type containerGetter struct {
	proc   *Process
	amount float64
	since  int64
	k      func()
	// peek waiters are woken without withdrawing.
	peek bool
}

// Container models a bulk quantity (tonnes of clay, m² of tiles). Put never
// blocks; Get suspends until the level covers the requested amount and then
// deducts it in the same step as the wake-up, so two getters can never claim
// the same material.
type Container struct {
	Name string

	sim     *Simulator
	level   float64
	softCap float64
	getters []containerGetter

	minLevel float64
	maxLevel float64
	totalIn  float64
	totalOut float64
}

// NewContainer creates a container with an initial level. softCap is only
// reported (see Overflow); 0 means no cap.
func NewContainer(sim *Simulator, name string, initial, softCap float64) *Container {
	if initial < 0 || math.IsNaN(initial) {
		panic(fmt.Sprintf("NewContainer(%s): initial level must be non-negative, got %v", name, initial))
	}
	return &Container{
		Name:     name,
		sim:      sim,
		level:    initial,
		softCap:  softCap,
		minLevel: initial,
		maxLevel: initial,
	}
}

func validAmount(amount float64) bool {
	return amount > 0 && !math.IsNaN(amount) && !math.IsInf(amount, 0)
}

// Level returns the current quantity.
func (c *Container) Level() float64 {
	return c.level
}

// SoftCap returns the reporting cap (0 when uncapped).
func (c *Container) SoftCap() float64 {
	return c.softCap
}

// Space returns the room left below the soft cap, or +Inf when uncapped.
func (c *Container) Space() float64 {
	if c.softCap <= 0 {
		return math.Inf(1)
	}
	return math.Max(0, c.softCap-c.level)
}

// Overflow returns how far the level exceeds the soft cap.
func (c *Container) Overflow() float64 {
	if c.softCap <= 0 {
		return 0
	}
	return math.Max(0, c.level-c.softCap)
}

// MinLevel returns the lowest level observed so far.
func (c *Container) MinLevel() float64 { return c.minLevel }

// MaxLevel returns the highest level observed so far.
func (c *Container) MaxLevel() float64 { return c.maxLevel }

// Totals returns the cumulative quantity put and got.
func (c *Container) Totals() (in, out float64) { return c.totalIn, c.totalOut }

// Waiting returns the number of processes blocked in Get or WaitFor.
func (c *Container) Waiting() int {
	return len(c.getters)
}

// Put adds amount to the level and serves every waiting getter the new level
// can satisfy, longest-waiting first.
func (c *Container) Put(amount float64) error {
	if !validAmount(amount) {
		return fmt.Errorf("container %s: put %v: %w", c.Name, amount, ErrInvalidAmount)
	}
	c.level += amount
	c.totalIn += amount
	c.maxLevel = math.Max(c.maxLevel, c.level)
	logrus.Tracef("[tick %07d] %s +%.3f -> %.3f", c.sim.Clock, c.Name, amount, c.level)
	c.serve()
	return nil
}

// Get withdraws amount and then runs k. If the level is insufficient the
// process suspends until a Put makes it sufficient.
func (c *Container) Get(p *Process, amount float64, k func()) error {
	if !validAmount(amount) {
		return fmt.Errorf("container %s: get %v: %w", c.Name, amount, ErrInvalidAmount)
	}
	if p == nil || k == nil {
		panic(fmt.Sprintf("Container(%s).Get: process and continuation must not be nil", c.Name))
	}
	if c.covers(amount) {
		c.withdraw(amount)
		p.wake(k)
		return nil
	}
	p.block(c.Name)
	c.getters = append(c.getters, containerGetter{proc: p, amount: amount, since: c.sim.Clock, k: k})
	return nil
}

// WaitFor suspends p until the level covers amount, then runs k without
// withdrawing anything. Callers that need several containers at once wait on
// each short one in turn and then take everything with TryGet.
func (c *Container) WaitFor(p *Process, amount float64, k func()) error {
	if !validAmount(amount) {
		return fmt.Errorf("container %s: wait for %v: %w", c.Name, amount, ErrInvalidAmount)
	}
	if p == nil || k == nil {
		panic(fmt.Sprintf("Container(%s).WaitFor: process and continuation must not be nil", c.Name))
	}
	if c.covers(amount) {
		p.wake(k)
		return nil
	}
	p.block(c.Name)
	c.getters = append(c.getters, containerGetter{proc: p, amount: amount, since: c.sim.Clock, k: k, peek: true})
	return nil
}

// TryGet withdraws amount if the level covers it and reports whether it did.
// It never blocks.
func (c *Container) TryGet(amount float64) (bool, error) {
	if !validAmount(amount) {
		return false, fmt.Errorf("container %s: get %v: %w", c.Name, amount, ErrInvalidAmount)
	}
	if !c.covers(amount) {
		return false, nil
	}
	c.withdraw(amount)
	return true, nil
}

// Covers reports whether the level covers amount.
func (c *Container) Covers(amount float64) bool {
	return c.covers(amount)
}

func (c *Container) covers(amount float64) bool {
	return c.level+levelEpsilon >= amount
}

func (c *Container) withdraw(amount float64) {
	c.level -= amount
	if c.level < 0 {
		// only float residue can land here; covers() already checked
		c.level = 0
	}
	c.totalOut += amount
	c.minLevel = math.Min(c.minLevel, c.level)
	logrus.Tracef("[tick %07d] %s -%.3f -> %.3f", c.sim.Clock, c.Name, amount, c.level)
}

// serve scans the waiters in arrival order and satisfies every one that fits.
// A waiter that does not fit stays queued without blocking those behind it.
func (c *Container) serve() {
	if len(c.getters) == 0 {
		return
	}
	remaining := c.getters[:0]
	for _, g := range c.getters {
		if c.covers(g.amount) {
			if !g.peek {
				c.withdraw(g.amount)
			}
			g.proc.wake(g.k)
			continue
		}
		remaining = append(remaining, g)
	}
	for i := len(remaining); i < len(c.getters); i++ {
		c.getters[i] = containerGetter{}
	}
	c.getters = remaining
}
