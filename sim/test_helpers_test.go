package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestState builds a RunState with no buffer so minimums equal the given counts.
func newTestState(t *testing.T, capacity int, minimums map[string]int, freqs map[string]float64) *RunState {
	t.Helper()
	p := DefaultProfile()
	p.BufferMultiplier = 0
	return newTestStateWithProfile(t, capacity, minimums, freqs, p)
}

func newTestStateWithProfile(t *testing.T, capacity int, minimums map[string]int, freqs map[string]float64, p Profile) *RunState {
	t.Helper()
	init := RunInit{Capacity: capacity, RelativeFrequencies: freqs}
	for a, m := range minimums {
		init.Constraints = append(init.Constraints, Constraint{Attribute: a, MinCount: m})
	}
	s, err := NewRunState(init, p)
	require.NoError(t, err)
	return s
}

// cand builds a candidate carrying the named attributes.
func cand(t *testing.T, s *RunState, attrs ...string) Candidate {
	t.Helper()
	m := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		m[a] = true
	}
	c, unknown := s.Attributes.Candidate(0, m)
	require.Empty(t, unknown)
	return c
}

// admitN applies n accepts of a candidate carrying attrs.
func admitN(t *testing.T, s *RunState, n int, attrs ...string) {
	t.Helper()
	c := cand(t, s, attrs...)
	for i := 0; i < n; i++ {
		require.NoError(t, s.Apply(c, true))
	}
}

// randomCandidate draws each attribute independently with its frequency.
func randomCandidate(rng *rand.Rand, s *RunState, freqs map[string]float64, index int) Candidate {
	c := Candidate{Index: index, Has: make([]bool, s.Attributes.Len())}
	for id := range c.Has {
		c.Has[id] = rng.Float64() < freqs[s.Attributes.Name(id)]
	}
	return c
}
