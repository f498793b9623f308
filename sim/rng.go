package sim

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey, identical configuration and
// identical horizon MUST produce bit-for-bit identical event logs.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemDemand drives order inter-arrival times, sizes and product picks.
	SubsystemDemand = "demand"

	// SubsystemSupply drives supplier lead times and on-time draws.
	SubsystemSupply = "supply"

	// SubsystemProductMix drives the product chosen for each new batch.
	SubsystemProductMix = "product_mix"

	// SubsystemYield drives the firing yield split.
	SubsystemYield = "yield"

	// SubsystemIDs feeds the identifier generator. Kept separate so that
	// changing ID formats never shifts any other stream.
	SubsystemIDs = "ids"
)

// SubsystemMachine returns the subsystem name for a machine group's
// processing-time and failure draws.
func SubsystemMachine(key string) string {
	return fmt.Sprintf("machine_%s", key)
}

// SubsystemFailures returns the subsystem name for a machine group's failure injector.
func SubsystemFailures(key string) string {
	return fmt.Sprintf("failures_%s", key)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*Stream
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*Stream),
	}
}

// ForSubsystem returns a deterministically-seeded stream for the named subsystem.
// The same subsystem name always returns the same *Stream instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *Stream {
	if s, ok := p.subsystems[name]; ok {
		return s
	}
	derivedSeed := int64(p.key) ^ fnv1a64(name)
	s := &Stream{name: name, rng: rand.New(rand.NewSource(derivedSeed))}
	p.subsystems[name] = s
	return s
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// === Stream ===

// Stream is a named pseudo-random sequence. Every sampler clamps at the
// sampling boundary so callers never see negative durations or NaN.
type Stream struct {
	name  string
	rng   *rand.Rand
	draws int64
}

// Name returns the subsystem name the stream was derived for.
func (s *Stream) Name() string { return s.name }

// Draws returns how many samples have been taken from the stream.
func (s *Stream) Draws() int64 { return s.draws }

// Float64 returns a uniform sample in [0, 1).
func (s *Stream) Float64() float64 {
	s.draws++
	return s.rng.Float64()
}

// Normal returns a Gaussian sample. The result may be negative; use
// NormalNonNeg or DurationNormal where a negative value is meaningless.
func (s *Stream) Normal(mean, stdDev float64) float64 {
	s.draws++
	if stdDev <= 0 {
		return mean
	}
	return s.rng.NormFloat64()*stdDev + mean
}

// NormalNonNeg returns a Gaussian sample floored at zero.
func (s *Stream) NormalNonNeg(mean, stdDev float64) float64 {
	return math.Max(0, s.Normal(mean, stdDev))
}

// Exponential returns an exponential sample with the given mean.
// A non-positive or non-finite mean yields zero.
func (s *Stream) Exponential(mean float64) float64 {
	s.draws++
	if mean <= 0 || math.IsInf(mean, 0) || math.IsNaN(mean) {
		return 0
	}
	return s.rng.ExpFloat64() * mean
}

// Bernoulli returns true with probability p. p is clamped to [0, 1].
func (s *Stream) Bernoulli(p float64) bool {
	return s.Float64() < math.Min(1, math.Max(0, p))
}

// Uniform returns a sample in [lo, hi).
func (s *Stream) Uniform(lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + s.Float64()*(hi-lo)
}

// Choice returns an index drawn proportionally to weights. Non-positive
// weights are never picked; if every weight is non-positive index 0 is returned.
func (s *Stream) Choice(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	u := s.Float64() * total
	if total <= 0 {
		return 0
	}
	cum := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cum += w
		last = i
		if u < cum {
			return i
		}
	}
	return last
}

// Intn returns a uniform integer in [0, n).
func (s *Stream) Intn(n int) int {
	s.draws++
	if n <= 0 {
		return 0
	}
	return s.rng.Intn(n)
}

// DurationNormal samples a Gaussian duration in hours and converts it to
// ticks, flooring negative samples to zero.
func (s *Stream) DurationNormal(meanHours, stdHours float64) int64 {
	return Hours(s.NormalNonNeg(meanHours, stdHours))
}

// DurationExp samples an exponential duration in hours and converts it to ticks.
func (s *Stream) DurationExp(meanHours float64) int64 {
	return Hours(s.Exponential(meanHours))
}

// Read fills p with pseudo-random bytes. It makes a Stream usable as an
// io.Reader for identifier generation.
func (s *Stream) Read(p []byte) (int, error) {
	s.draws++
	return s.rng.Read(p)
}
