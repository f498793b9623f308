package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// === SimulationKey Tests ===

func TestSimulationKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
	}{
		{"positive seed", 42},
		{"zero seed", 0},
		{"negative seed", -1},
		{"max int64", math.MaxInt64},
		{"min int64", math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewSimulationKey(tt.seed)
			if int64(key) != tt.seed {
				t.Errorf("NewSimulationKey(%d) = %d, want %d", tt.seed, key, tt.seed)
			}
		})
	}
}

// === PartitionedRNG Tests ===

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// GIVEN two partitioned RNGs with the same key
	rng1 := NewPartitionedRNG(NewSimulationKey(42))
	rng2 := NewPartitionedRNG(NewSimulationKey(42))

	// WHEN three values are drawn from the same subsystem of each
	vals1 := make([]float64, 3)
	vals2 := make([]float64, 3)
	for i := 0; i < 3; i++ {
		vals1[i] = rng1.ForSubsystem(SubsystemDemand).Float64()
		vals2[i] = rng2.ForSubsystem(SubsystemDemand).Float64()
	}

	// THEN the sequences are identical
	assert.Equal(t, vals1, vals2)
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// GIVEN two RNGs with the same key
	rngA := NewPartitionedRNG(NewSimulationKey(42))
	rngB := NewPartitionedRNG(NewSimulationKey(42))

	// WHEN one of them draws heavily from another subsystem first
	for i := 0; i < 100; i++ {
		rngA.ForSubsystem(SubsystemYield).Float64()
	}
	a := rngA.ForSubsystem(SubsystemSupply).Float64()
	b := rngB.ForSubsystem(SubsystemSupply).Float64()

	// THEN the supply stream is unaffected
	assert.Equal(t, b, a, "drawing from yield must not shift the supply stream")
}

func TestPartitionedRNG_ForSubsystem_Cached(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(7))
	s1 := rng.ForSubsystem(SubsystemMachine("kiln"))
	s2 := rng.ForSubsystem(SubsystemMachine("kiln"))
	assert.Same(t, s1, s2)
	assert.Equal(t, "machine_kiln", s1.Name())
	assert.Equal(t, NewSimulationKey(7), rng.Key())
}

func TestPartitionedRNG_DifferentSubsystems_DifferentSequences(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(42))
	a := rng.ForSubsystem(SubsystemFailures("kiln")).Float64()
	b := rng.ForSubsystem(SubsystemMachine("kiln")).Float64()
	assert.NotEqual(t, a, b)
}

// === Stream sampler Tests ===

func TestStream_Normal_ZeroStd_ReturnsMean(t *testing.T) {
	s := NewPartitionedRNG(NewSimulationKey(1)).ForSubsystem("t")
	assert.Equal(t, 3.5, s.Normal(3.5, 0))
	assert.Equal(t, 3.5, s.Normal(3.5, -1))
}

func TestStream_DurationNormal_NeverNegative(t *testing.T) {
	// GIVEN a distribution centred below zero
	s := NewPartitionedRNG(NewSimulationKey(1)).ForSubsystem("t")

	// WHEN many durations are drawn
	// THEN every one is floored at zero
	for i := 0; i < 1000; i++ {
		d := s.DurationNormal(-1, 2)
		if d < 0 {
			t.Fatalf("draw %d: negative duration %d", i, d)
		}
	}
}

func TestStream_Exponential_InvalidMean_ReturnsZero(t *testing.T) {
	s := NewPartitionedRNG(NewSimulationKey(1)).ForSubsystem("t")
	for _, mean := range []float64{0, -3, math.Inf(1), math.NaN()} {
		assert.Equal(t, 0.0, s.Exponential(mean), "mean=%v", mean)
	}
}

func TestStream_Exponential_MeanConverges(t *testing.T) {
	s := NewPartitionedRNG(NewSimulationKey(99)).ForSubsystem("t")
	const n = 20000
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += s.Exponential(4)
	}
	assert.InDelta(t, 4.0, sum/n, 0.2)
}

func TestStream_Bernoulli_Clamped(t *testing.T) {
	s := NewPartitionedRNG(NewSimulationKey(1)).ForSubsystem("t")
	for i := 0; i < 100; i++ {
		assert.True(t, s.Bernoulli(1.5))
		assert.False(t, s.Bernoulli(-0.5))
	}
}

func TestStream_Uniform_WithinBounds(t *testing.T) {
	s := NewPartitionedRNG(NewSimulationKey(1)).ForSubsystem("t")
	for i := 0; i < 1000; i++ {
		v := s.Uniform(1.25, 2.5)
		if v < 1.25 || v >= 2.5 {
			t.Fatalf("Uniform(1.25, 2.5) = %v out of range", v)
		}
	}
}

func TestStream_Choice(t *testing.T) {
	s := NewPartitionedRNG(NewSimulationKey(5)).ForSubsystem("t")

	t.Run("never picks non-positive weights", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			assert.Equal(t, 1, s.Choice([]float64{0, 2, -1}))
		}
	})

	t.Run("all non-positive returns zero", func(t *testing.T) {
		assert.Equal(t, 0, s.Choice([]float64{0, 0}))
		assert.Equal(t, 0, s.Choice(nil))
	})

	t.Run("frequencies follow weights", func(t *testing.T) {
		counts := make([]int, 3)
		const n = 30000
		for i := 0; i < n; i++ {
			counts[s.Choice([]float64{0.55, 0.30, 0.15})]++
		}
		assert.InDelta(t, 0.55, float64(counts[0])/n, 0.02)
		assert.InDelta(t, 0.30, float64(counts[1])/n, 0.02)
		assert.InDelta(t, 0.15, float64(counts[2])/n, 0.02)
	})
}

func TestStream_Read_Deterministic(t *testing.T) {
	a := NewPartitionedRNG(NewSimulationKey(3)).ForSubsystem(SubsystemIDs)
	b := NewPartitionedRNG(NewSimulationKey(3)).ForSubsystem(SubsystemIDs)
	bufA, bufB := make([]byte, 16), make([]byte, 16)
	n, err := a.Read(bufA)
	assert.NoError(t, err)
	assert.Equal(t, 16, n)
	_, _ = b.Read(bufB)
	assert.Equal(t, bufA, bufB)
}

func TestStream_Draws_Counted(t *testing.T) {
	s := NewPartitionedRNG(NewSimulationKey(1)).ForSubsystem("t")
	s.Float64()
	s.Normal(0, 1)
	s.Intn(5)
	assert.Equal(t, int64(3), s.Draws())
}
