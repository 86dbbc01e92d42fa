package workload

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioSpecs_AreValid(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		spec, err := ScenarioSpec(n)
		require.NoError(t, err)
		assert.NoError(t, spec.Validate(), spec.Name)
		_, err = NewStream(spec, rand.New(rand.NewSource(1)))
		assert.NoError(t, err, spec.Name)
	}
	_, err := ScenarioSpec(4)
	assert.Error(t, err)
}

func TestStream_MarginalsMatchFrequencies(t *testing.T) {
	// GIVEN scenario 2, whose rare attribute is correlated with the others
	spec := ScenarioRareCreatives()
	s, err := NewStream(spec, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	// WHEN drawing many candidates
	const n = 40000
	counts := map[string]int{}
	for i := 0; i < n; i++ {
		idx, attrs := s.Next()
		require.Equal(t, i, idx)
		for a, v := range attrs {
			if v {
				counts[a]++
			}
		}
	}

	// THEN every marginal is within sampling noise of its frequency
	for a, p := range spec.Frequencies {
		got := float64(counts[a]) / n
		tol := 4 * math.Sqrt(p*(1-p)/n)
		assert.InDelta(t, p, got, tol, a)
	}
	assert.Equal(t, n, s.Drawn())
}

func TestStream_CorrelationSign(t *testing.T) {
	spec := ScenarioRareCreatives()
	s, err := NewStream(spec, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	const n = 20000
	var tl, bl, both int
	for i := 0; i < n; i++ {
		_, attrs := s.Next()
		if attrs["techno_lover"] {
			tl++
		}
		if attrs["berlin_local"] {
			bl++
		}
		if attrs["techno_lover"] && attrs["berlin_local"] {
			both++
		}
	}
	// strongly negative correlation: joint rate well below independence
	independent := float64(tl) / n * float64(bl) / n
	assert.Less(t, float64(both)/n, independent*0.8)
}

func TestStream_Deterministic(t *testing.T) {
	draw := func() []map[string]bool {
		s, err := NewStream(ScenarioSixAttributes(), rand.New(rand.NewSource(9)))
		require.NoError(t, err)
		out := make([]map[string]bool, 100)
		for i := range out {
			_, out[i] = s.Next()
		}
		return out
	}
	assert.Equal(t, draw(), draw())
}

func TestStream_DegenerateFrequencies(t *testing.T) {
	spec := &StreamSpec{Frequencies: map[string]float64{"always": 1, "never": 0}}
	s, err := NewStream(spec, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, attrs := s.Next()
		assert.True(t, attrs["always"])
		assert.False(t, attrs["never"])
	}
}

func TestNewStream_ShrinksIndefiniteCorrelations(t *testing.T) {
	// GIVEN three attributes that are pairwise perfectly anti-correlated,
	// which no covariance matrix can represent
	spec := &StreamSpec{
		Frequencies: map[string]float64{"a": 0.5, "b": 0.5, "c": 0.5},
		Correlations: symmetric(map[[2]string]float64{
			{"a", "b"}: -1, {"a", "c"}: -1, {"b", "c"}: -1,
		}),
	}
	_, err := NewStream(spec, rand.New(rand.NewSource(1)))
	assert.NoError(t, err)

	_, err = NewStream(&StreamSpec{}, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestLoadStreamSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: custom
constraints:
  - {attribute: a, min_count: 100}
frequencies: {a: 0.2, b: 0.5}
correlations:
  a: {b: 0.3}
`), 0644))

	spec, err := LoadStreamSpec(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, spec.Capacity)
	assert.Equal(t, DefaultRejectionCap, spec.RejectionCap)
	assert.Equal(t, []string{"a", "b"}, spec.Attributes())
	assert.NoError(t, spec.Validate())

	require.NoError(t, os.WriteFile(path, []byte("capacty: 10\n"), 0644))
	_, err = LoadStreamSpec(path)
	assert.Error(t, err)
}

func TestStreamSpec_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StreamSpec)
	}{
		{"zero capacity", func(s *StreamSpec) { s.Capacity = 0 }},
		{"zero rejection cap", func(s *StreamSpec) { s.RejectionCap = 0 }},
		{"minimum above capacity", func(s *StreamSpec) { s.Constraints[0].MinCount = 2000 }},
		{"constraint without frequency", func(s *StreamSpec) { delete(s.Frequencies, "young") }},
		{"frequency above one", func(s *StreamSpec) { s.Frequencies["young"] = 1.2 }},
		{"correlation below minus one", func(s *StreamSpec) { s.Correlations["young"]["well_dressed"] = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := ScenarioTwoSymmetric()
			tt.mutate(spec)
			assert.Error(t, spec.Validate())
		})
	}
}
