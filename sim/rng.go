package sim

import (
	"hash/fnv"
	"math/rand"
)

// RunSeed identifies a reproducible run. Two runs with the same seed, profile
// and candidate stream MUST make identical decisions.
type RunSeed int64

// Subsystem names for PartitionedRNG.
const (
	// SubsystemStream draws candidate attributes in the local venue.
	// Uses the master seed directly.
	SubsystemStream = "stream"

	// SubsystemExplore draws randomized acceptance of borderline candidates.
	SubsystemExplore = "explore"

	// SubsystemPlan draws the supply plan's per-type admission lotteries.
	SubsystemPlan = "supply-plan"
)

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem,
// so enabling exploration never perturbs the candidate stream.
//
// Derivation formula:
//   - For SubsystemStream: uses the seed directly
//   - For all other subsystems: seed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	seed       RunSeed
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a seed.
func NewPartitionedRNG(seed RunSeed) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derived := int64(p.seed)
	if name != SubsystemStream {
		derived ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(derived))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the seed used to create this PartitionedRNG.
func (p *PartitionedRNG) Seed() RunSeed {
	return p.seed
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
