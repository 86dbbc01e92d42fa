package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustForce_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		admitted int // admitted candidates lacking a
		has      bool
		want     Forced
	}{
		// capacity 10, min a = 5
		{"R=6 need=5 still has slack", 4, false, Unforced},
		{"R=5 need=5 lacking a is rejected", 5, false, ForcedReject},
		{"R=5 need=5 carrying a is accepted", 5, true, ForcedAccept},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestState(t, 10, map[string]int{"a": 5}, nil)
			admitN(t, s, tt.admitted)
			var c Candidate
			if tt.has {
				c = cand(t, s, "a")
			} else {
				c = cand(t, s)
			}
			assert.Equal(t, tt.want, MustForce(c, s).Forced)
		})
	}
}

func TestMustForce_SatisfiedAttributeNeverForces(t *testing.T) {
	// GIVEN a minimum already met with a single slot left
	s := newTestState(t, 3, map[string]int{"a": 2}, nil)
	admitN(t, s, 2, "a")

	// THEN candidates lacking a are not forced out
	assert.Equal(t, Unforced, MustForce(cand(t, s), s).Forced)
}

func TestMustForce_ConflictPrefersAccept(t *testing.T) {
	// GIVEN two attributes that each need the last slots
	s := newTestState(t, 4, map[string]int{"a": 2, "b": 2}, nil)
	admitN(t, s, 1, "a", "b")
	// R=3, need a=1, need b=1: slack remains
	assert.Equal(t, Unforced, MustForce(cand(t, s, "a"), s).Forced)

	admitN(t, s, 2)
	// R=1, need a=1, need b=1: a carrier lacking b hits both rules
	g := MustForce(cand(t, s, "a"), s)
	assert.Equal(t, ForcedAccept, g.Forced)
	assert.True(t, g.Conflict)
}

func TestMustForce_Scenario1Shape(t *testing.T) {
	// capacity 100, min a = 50, freq 0.1
	s := newTestState(t, 100, map[string]int{"a": 50}, map[string]float64{"a": 0.1})
	admitN(t, s, 49)

	// R=51, need=50: one more non-a still fits
	assert.Equal(t, Unforced, MustForce(cand(t, s), s).Forced)
	admitN(t, s, 1)

	// R=50, need=50: only a carriers may enter
	assert.Equal(t, ForcedReject, MustForce(cand(t, s), s).Forced)
	assert.Equal(t, ForcedAccept, MustForce(cand(t, s, "a"), s).Forced)
}

func TestForced_String(t *testing.T) {
	assert.Equal(t, "unforced", Unforced.String())
	assert.Equal(t, "forced-accept", ForcedAccept.String())
	assert.Equal(t, "forced-reject", ForcedReject.String())
}

func TestConfidenceZ(t *testing.T) {
	assert.Equal(t, 0.0, ConfidenceZ(0.5))
	assert.Equal(t, 0.0, ConfidenceZ(0.2))
	assert.InDelta(t, 1.6449, ConfidenceZ(0.95), 1e-3)
	assert.InDelta(t, 0.6745, ConfidenceZ(0.75), 1e-3)
}

func TestProjectedSupply(t *testing.T) {
	s := newTestState(t, 100, map[string]int{"a": 10}, map[string]float64{"a": 0.5})
	id, _ := s.Attributes.ID("a")

	assert.InDelta(t, 50, ProjectedSupply(s, id, 100, 0), 1e-9)
	// 50 - 2*sqrt(25) = 40
	assert.InDelta(t, 40, ProjectedSupply(s, id, 100, 2), 1e-9)
	assert.Equal(t, 0.0, ProjectedSupply(s, id, 0, 0))
	assert.Equal(t, 0.0, ProjectedSupply(s, id, 1, 10))
}

func TestRequiredOverlap(t *testing.T) {
	s := newTestState(t, 10, map[string]int{"a": 6, "b": 7}, nil)
	a, _ := s.Attributes.ID("a")
	b, _ := s.Attributes.ID("b")
	assert.Equal(t, 3, RequiredOverlap(s, a, b))

	s2 := newTestState(t, 10, map[string]int{"a": 3, "b": 4}, nil)
	assert.Equal(t, 0, RequiredOverlap(s2, a, b))
}

func TestEndangers(t *testing.T) {
	// GIVEN R=100, a needs 40 at frequency 0.5 and b needs 60 at frequency 0.5
	s := newTestState(t, 100, map[string]int{"a": 40, "b": 60}, map[string]float64{"a": 0.5, "b": 0.5})

	// THEN a carrier of a leaves b 49.5 expected arrivals for 60 needed
	assert.True(t, Endangers(cand(t, s, "a"), s, 0))
	// AND a carrier of b leaves a 49.5 for 40, unless a confidence bound
	// pushes the supply below the need
	assert.False(t, Endangers(cand(t, s, "b"), s, 0))
	assert.True(t, Endangers(cand(t, s, "b"), s, 2.5))
	assert.False(t, Endangers(cand(t, s, "a", "b"), s, 2.5))
}

// TestPolicies_NeverStrandMinimums drives every policy under every built-in
// profile on random streams and checks that no minimum becomes unreachable
// except right after a conflict the guard had to resolve.
func TestPolicies_NeverStrandMinimums(t *testing.T) {
	freqs := map[string]float64{"a": 0.3, "b": 0.2, "c": 0.6}
	minimums := map[string]int{"a": 40, "b": 30, "c": 50}

	for _, profile := range BuiltinProfileNames() {
		for _, policy := range ValidAdmissionPolicyNames() {
			for seed := int64(1); seed <= 5; seed++ {
				t.Run(profile+"/"+policy, func(t *testing.T) {
					p, _ := BuiltinProfile(profile)
					p.Policy = policy
					p.BufferMultiplier = 0
					s := newTestStateWithProfile(t, 100, minimums, freqs, p)
					pol := NewAdmissionPolicy(p, NewPartitionedRNG(RunSeed(seed)))
					rng := rand.New(rand.NewSource(seed))

					conflicted := false
					for i := 0; !s.Full() && i < 20000; i++ {
						c := randomCandidate(rng, s, freqs, i)
						s.Observe(c)
						d := pol.Decide(c, s)
						require.NoError(t, s.Apply(c, d.Accept))
						if cm, ok := pol.(Committer); ok {
							cm.Commit(c, s, d)
						}
						if d.Reason == ReasonForcedConflict {
							conflicted = true
						}
						if !conflicted {
							require.Empty(t, s.Unreachable(), "step %d reason %s", i, d.Reason)
						}
					}
					if s.Full() && !conflicted {
						assert.True(t, s.AllSatisfied())
					}
				})
			}
		}
	}
}
