package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/bouncer/sim"
)

func TestSimulate_Batch(t *testing.T) {
	// GIVEN a batch of small feasible games
	cfg := SimulationConfig{
		Games:       6,
		Scenario:    1,
		Profile:     sim.DefaultProfile(),
		Seed:        100,
		Spec:        feasibleSpec(),
		Parallelism: 2,
	}

	// WHEN simulated
	rep, err := Simulate(context.Background(), cfg)

	// THEN each game ran with its own seed and the statistics are consistent
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Games)
	assert.Equal(t, 6, rep.Completed)
	require.Len(t, rep.Results, 6)
	for i, r := range rep.Results {
		assert.Equal(t, sim.RunSeed(100+i), r.Seed)
		assert.Equal(t, 20, r.Admitted)
	}
	assert.LessOrEqual(t, float64(rep.MinRejections), rep.MeanRejections)
	assert.LessOrEqual(t, rep.MeanRejections, float64(rep.MaxRejections))
}

func TestSimulate_Deterministic(t *testing.T) {
	cfg := SimulationConfig{Games: 3, Scenario: 1, Profile: sim.DefaultProfile(), Seed: 9, Spec: feasibleSpec()}
	a, err := Simulate(context.Background(), cfg)
	require.NoError(t, err)
	b, err := Simulate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Results, b.Results)
}

// TestSimulate_BuiltinScenarios plays the built-in presets with their own
// profiles. Every game must complete, not merely end.
func TestSimulate_BuiltinScenarios(t *testing.T) {
	if testing.Short() {
		t.Skip("plays full-size games")
	}
	for scenario := 1; scenario <= 3; scenario++ {
		t.Run(sim.ScenarioProfile(scenario).Name, func(t *testing.T) {
			cfg := SimulationConfig{
				Games:       3,
				Scenario:    scenario,
				Profile:     sim.ScenarioProfile(scenario),
				Seed:        1,
				Parallelism: 3,
			}
			rep, err := Simulate(context.Background(), cfg)
			require.NoError(t, err)
			require.Len(t, rep.Results, 3)
			for _, r := range rep.Results {
				assert.Equal(t, KindCompleted, r.Outcome, "seed %d: %s", r.Seed, r.Reason)
				assert.Equal(t, 1000, r.Admitted)
			}
			assert.Equal(t, 3, rep.Completed)
		})
	}
}

func TestSimulate_InvalidInput(t *testing.T) {
	_, err := Simulate(context.Background(), SimulationConfig{Games: 0})
	assert.Error(t, err)

	_, err = Simulate(context.Background(), SimulationConfig{Games: 1, Scenario: 9, Profile: sim.DefaultProfile()})
	assert.ErrorContains(t, err, "unknown scenario")
}

func TestSummarize_Report(t *testing.T) {
	results := []GameResult{
		{Outcome: KindCompleted, Rejected: 100},
		{Outcome: KindCompleted, Rejected: 300},
		{Outcome: KindFailed, Rejected: 20000, Reason: "rejection cap of 20000 reached"},
		{Outcome: KindStopped},
	}
	rep := summarize(SimulationConfig{Scenario: 2, Profile: sim.Profile{Name: "x"}}, results)
	assert.Equal(t, 4, rep.Games)
	assert.Equal(t, 2, rep.Completed)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Stopped)
	assert.Equal(t, 200.0, rep.MeanRejections)
	assert.Equal(t, 100, rep.MinRejections)
	assert.Equal(t, 300, rep.MaxRejections)

	empty := summarize(SimulationConfig{}, []GameResult{{Outcome: KindFailed}})
	assert.Equal(t, 0, empty.MinRejections)
	assert.Equal(t, 0.0, empty.MeanRejections)
}
