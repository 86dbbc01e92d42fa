package session

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/bouncer/sim"
	"github.com/inference-sim/bouncer/sim/venue"
	"github.com/inference-sim/bouncer/sim/workload"
)

// SimulationConfig configures a batch of offline games.
type SimulationConfig struct {
	Games    int
	Scenario int
	Profile  sim.Profile
	// Seed is the first game's seed; game i uses Seed+i for both its
	// candidate stream and its policy.
	Seed sim.RunSeed
	// Spec overrides the scenario's built-in stream.
	Spec *workload.StreamSpec
	// Parallelism bounds concurrent games; 0 means unbounded.
	Parallelism int
	Metrics     *Metrics
}

// GameResult is the outcome of one simulated game.
type GameResult struct {
	Seed     sim.RunSeed `yaml:"seed"`
	Outcome  Kind        `yaml:"outcome"`
	Admitted int         `yaml:"admitted"`
	Rejected int         `yaml:"rejected"`
	Reason   string      `yaml:"reason,omitempty"`
}

// SimulationReport aggregates a batch. Rejection statistics cover completed
// games only.
type SimulationReport struct {
	Scenario       int          `yaml:"scenario"`
	Profile        string       `yaml:"profile"`
	Games          int          `yaml:"games"`
	Completed      int          `yaml:"completed"`
	Failed         int          `yaml:"failed"`
	Stopped        int          `yaml:"stopped"`
	MeanRejections float64      `yaml:"mean_rejections"`
	MinRejections  int          `yaml:"min_rejections"`
	MaxRejections  int          `yaml:"max_rejections"`
	Results        []GameResult `yaml:"results"`
}

// Simulate plays cfg.Games independent games against in-process venues.
// Each game owns its venue, state and policy.
func Simulate(ctx context.Context, cfg SimulationConfig) (*SimulationReport, error) {
	if cfg.Games <= 0 {
		return nil, fmt.Errorf("games must be positive, got %d", cfg.Games)
	}
	specFor := workload.ScenarioSpec
	if cfg.Spec != nil {
		specFor = venue.Fixed(cfg.Spec)
	}
	spec, err := specFor(cfg.Scenario)
	if err != nil {
		return nil, err
	}

	results := make([]GameResult, cfg.Games)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Parallelism > 0 {
		g.SetLimit(cfg.Parallelism)
	}
	for i := 0; i < cfg.Games; i++ {
		seed := cfg.Seed + sim.RunSeed(i)
		g.Go(func() error {
			runner := NewRunner(venue.New(specFor, seed), Config{
				Scenario:      cfg.Scenario,
				PlayerID:      fmt.Sprintf("sim-%d", seed),
				Capacity:      spec.Capacity,
				Profile:       cfg.Profile,
				Seed:          seed,
				Metrics:       cfg.Metrics,
				ProgressEvery: -1,
			})
			out, err := runner.Run(gctx)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = GameResult{
				Seed:     seed,
				Outcome:  out.Kind,
				Admitted: out.Admitted,
				Rejected: out.Rejected,
				Reason:   out.Reason,
			}
			logrus.Debugf("simulate: seed %d: %s", seed, out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summarize(cfg, results), nil
}

func summarize(cfg SimulationConfig, results []GameResult) *SimulationReport {
	rep := &SimulationReport{
		Scenario: cfg.Scenario,
		Profile:  cfg.Profile.Name,
		Games:    len(results),
		Results:  results,
	}
	total := 0
	rep.MinRejections = math.MaxInt
	for _, r := range results {
		switch r.Outcome {
		case KindCompleted:
			rep.Completed++
			total += r.Rejected
			rep.MinRejections = min(rep.MinRejections, r.Rejected)
			rep.MaxRejections = max(rep.MaxRejections, r.Rejected)
		case KindFailed:
			rep.Failed++
		default:
			rep.Stopped++
		}
	}
	if rep.Completed == 0 {
		rep.MinRejections = 0
		return rep
	}
	rep.MeanRejections = float64(total) / float64(rep.Completed)
	return rep
}
