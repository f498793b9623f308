package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainer_Put_InvalidAmount_ReturnsError(t *testing.T) {
	s := NewSimulator(10, NewSimulationKey(1))
	c := NewContainer(s, "clay", 5, 0)
	for _, amt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		err := c.Put(amt)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount=%v", amt)
	}
	assert.Equal(t, 5.0, c.Level(), "failed puts must not change the level")
}

func TestContainer_Get_InvalidAmount_ReturnsError(t *testing.T) {
	s := NewSimulator(10, NewSimulationKey(1))
	c := NewContainer(s, "clay", 5, 0)
	p := &Process{Name: "p", sim: s}
	assert.ErrorIs(t, c.Get(p, 0, func() {}), ErrInvalidAmount)
	assert.ErrorIs(t, c.Get(p, -2, func() {}), ErrInvalidAmount)
}

func TestContainer_Get_Sufficient_DeductsImmediately(t *testing.T) {
	// GIVEN a container with 10 units
	s := NewSimulator(10, NewSimulationKey(1))
	c := NewContainer(s, "clay", 10, 0)
	var at int64 = -1

	// WHEN a process gets 4
	s.Spawn("p", func(p *Process) {
		require.NoError(t, c.Get(p, 4, func() { at = p.Now() }))
		// deduction happens before the continuation runs
		assert.Equal(t, 6.0, c.Level())
	})
	s.Run()

	// THEN it resumes at once and the level drops
	assert.Equal(t, int64(0), at)
	assert.Equal(t, 6.0, c.Level())
	in, out := c.Totals()
	assert.Equal(t, 0.0, in)
	assert.Equal(t, 4.0, out)
}

func TestContainer_Get_Insufficient_BlocksUntilPut(t *testing.T) {
	// GIVEN an empty container and a getter for 5
	s := NewSimulator(100, NewSimulationKey(1))
	c := NewContainer(s, "kaolin", 0, 0)
	var at int64 = -1
	s.Spawn("p", func(p *Process) {
		require.NoError(t, c.Get(p, 5, func() { at = p.Now() }))
	})

	// WHEN 3 then 3 more arrive
	s.ScheduleAfter(10, func() { require.NoError(t, c.Put(3)) })
	s.ScheduleAfter(20, func() { require.NoError(t, c.Put(3)) })
	s.Run()

	// THEN the getter wakes at 20 with the deduction applied
	assert.Equal(t, int64(20), at)
	assert.InDelta(t, 1.0, c.Level(), 1e-12)
	assert.Equal(t, 0, c.Waiting())
}

func TestContainer_Put_SkipsWaiterThatDoesNotFit(t *testing.T) {
	// GIVEN a big getter queued before a small one
	s := NewSimulator(100, NewSimulationKey(1))
	c := NewContainer(s, "silica", 0, 0)
	woke := map[string]int64{}
	s.Spawn("big", func(p *Process) {
		require.NoError(t, c.Get(p, 10, func() { woke["big"] = p.Now() }))
	})
	s.Spawn("small", func(p *Process) {
		require.NoError(t, c.Get(p, 2, func() { woke["small"] = p.Now() }))
	})

	// WHEN only 3 units arrive
	s.ScheduleAfter(5, func() { require.NoError(t, c.Put(3)) })
	s.RunUntil(50)

	// THEN the small getter is served and the big one keeps waiting
	assert.Equal(t, int64(5), woke["small"])
	_, bigWoke := woke["big"]
	assert.False(t, bigWoke)
	assert.Equal(t, 1.0, c.Level())
	assert.Equal(t, 1, c.Waiting())
}

func TestContainer_Put_ServesLongestWaitingFirst(t *testing.T) {
	// GIVEN two equal getters, a queued first
	s := NewSimulator(100, NewSimulationKey(1))
	c := NewContainer(s, "feldspar", 0, 0)
	var order []string
	for _, name := range []string{"a", "b"} {
		name := name
		s.Spawn(name, func(p *Process) {
			require.NoError(t, c.Get(p, 4, func() { order = append(order, name) }))
		})
	}

	// WHEN only enough for one arrives, then enough for the other
	s.ScheduleAfter(1, func() { require.NoError(t, c.Put(4)) })
	s.ScheduleAfter(2, func() { require.NoError(t, c.Put(4)) })
	s.Run()

	// THEN they are served in arrival order
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestContainer_WaitFor_WakesWithoutWithdrawing(t *testing.T) {
	// GIVEN a process waiting for 5 units of an empty container
	s := NewSimulator(100, NewSimulationKey(1))
	c := NewContainer(s, "kaolin", 0, 0)
	var at int64 = -1
	s.Spawn("line", func(p *Process) {
		require.NoError(t, c.WaitFor(p, 5, func() { at = p.Now() }))
	})

	// WHEN 3 then 3 more arrive
	s.ScheduleAfter(10, func() { require.NoError(t, c.Put(3)) })
	s.ScheduleAfter(20, func() { require.NoError(t, c.Put(3)) })
	s.Run()

	// THEN it wakes once the level covers the amount and the level is untouched
	assert.Equal(t, int64(20), at)
	assert.Equal(t, 6.0, c.Level())
	assert.Equal(t, 0, c.Waiting())
}

func TestContainer_WaitFor_DoesNotStarveGetterBehind(t *testing.T) {
	// GIVEN a waiter queued ahead of a getter for the same amount
	s := NewSimulator(100, NewSimulationKey(1))
	c := NewContainer(s, "clay", 0, 0)
	var waited, got bool
	s.Spawn("waiter", func(p *Process) {
		require.NoError(t, c.WaitFor(p, 4, func() { waited = true }))
	})
	s.Spawn("getter", func(p *Process) {
		require.NoError(t, c.Get(p, 4, func() { got = true }))
	})

	// WHEN exactly 4 arrive
	s.ScheduleAfter(1, func() { require.NoError(t, c.Put(4)) })
	s.Run()

	// THEN both wake and only the getter withdrew
	assert.True(t, waited)
	assert.True(t, got)
	assert.Equal(t, 0.0, c.Level())
}

func TestContainer_TryGet(t *testing.T) {
	s := NewSimulator(100, NewSimulationKey(1))
	c := NewContainer(s, "glaze", 5, 0)

	ok, err := c.TryGet(6)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 5.0, c.Level())

	ok, err = c.TryGet(5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.0, c.Level())

	_, err = c.TryGet(0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.True(t, c.Covers(0))
}

func TestContainer_LevelNeverNegative(t *testing.T) {
	// GIVEN several getters competing for random puts
	s := NewSimulator(10_000, NewSimulationKey(3))
	c := NewContainer(s, "clay", 2, 0)
	rng := s.RNG.ForSubsystem("test")
	for i := 0; i < 4; i++ {
		s.Spawn("getter", func(p *Process) {
			var loop func()
			loop = func() {
				require.NoError(t, c.Get(p, 1+rng.Float64()*3, func() {
					p.Sleep(int64(rng.Intn(20)), loop)
				}))
			}
			loop()
		})
	}
	s.Spawn("putter", func(p *Process) {
		var loop func()
		loop = func() {
			p.Sleep(int64(1+rng.Intn(10)), func() {
				require.NoError(t, c.Put(rng.Float64()*4+0.1))
				loop()
			})
		}
		loop()
	})

	// WHEN the run is stepped to the horizon
	// THEN the level is never negative
	for s.Step() {
		if c.Level() < 0 {
			t.Fatalf("t=%d: negative level %v", s.Clock, c.Level())
		}
	}
	assert.GreaterOrEqual(t, c.MinLevel(), 0.0)
}

func TestContainer_SoftCap_ReportedNotEnforced(t *testing.T) {
	s := NewSimulator(10, NewSimulationKey(1))
	c := NewContainer(s, "fg", 90, 100)
	assert.Equal(t, 10.0, c.Space())
	require.NoError(t, c.Put(25))
	assert.Equal(t, 115.0, c.Level())
	assert.Equal(t, 15.0, c.Overflow())
	assert.Equal(t, 0.0, c.Space())
	assert.Equal(t, 115.0, c.MaxLevel())

	uncapped := NewContainer(s, "raw", 0, 0)
	assert.True(t, math.IsInf(uncapped.Space(), 1))
	assert.Equal(t, 0.0, uncapped.Overflow())
}

func TestNewContainer_NegativeInitial_Panics(t *testing.T) {
	s := NewSimulator(10, NewSimulationKey(1))
	assert.Panics(t, func() { NewContainer(s, "bad", -1, 0) })
}
