package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/bouncer/sim"
	"github.com/inference-sim/bouncer/sim/session"
	"github.com/inference-sim/bouncer/sim/workload"
)

var (
	simGames       int    // Number of simulated games
	simParallelism int    // Concurrent games
	simStreamPath  string // Custom stream spec YAML
	simReportPath  string // Report output; empty prints to stdout
)

// simulateCmd plays many offline games against the in-process venue
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Evaluate a profile over many simulated games",
	Run: func(cmd *cobra.Command, args []string) {
		if simStreamPath == "" {
			if err := validateScenario(scenario); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		profile, err := resolveProfile(profileRef, policyName, scenario)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		var spec *workload.StreamSpec
		if simStreamPath != "" {
			spec, err = workload.LoadStreamSpec(simStreamPath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logrus.Infof("Simulating %d games of scenario %d with profile %s (policy %s)",
			simGames, scenario, profile.Name, profile.Policy)
		startTime := time.Now()
		rep, err := session.Simulate(ctx, session.SimulationConfig{
			Games:       simGames,
			Scenario:    scenario,
			Profile:     profile,
			Seed:        sim.RunSeed(seed),
			Spec:        spec,
			Parallelism: simParallelism,
			Metrics:     serveMetrics(metricsAddr),
		})
		if err != nil {
			logrus.Fatalf("simulation failed: %v", err)
		}
		logrus.Infof("Simulation complete in %s", time.Since(startTime).Round(time.Millisecond))

		data, err := yaml.Marshal(rep)
		if err != nil {
			logrus.Fatalf("encoding report: %v", err)
		}
		if simReportPath == "" {
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return
		}
		if err := os.WriteFile(simReportPath, data, 0o644); err != nil {
			logrus.Fatalf("writing report: %v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "games=%d completed=%d failed=%d mean_rejections=%.1f min=%d max=%d\n",
			rep.Games, rep.Completed, rep.Failed, rep.MeanRejections, rep.MinRejections, rep.MaxRejections)
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simGames, "games", 20, "Number of games to simulate")
	simulateCmd.Flags().IntVar(&simParallelism, "parallelism", 4, "Games simulated concurrently (0 = unbounded)")
	simulateCmd.Flags().StringVar(&simStreamPath, "stream", "", "Stream spec YAML replacing the scenario's built-in stream")
	simulateCmd.Flags().StringVar(&simReportPath, "report", "", "Write the full YAML report here instead of stdout")

	rootCmd.AddCommand(simulateCmd)
}
