package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/bouncer/sim"
	"github.com/inference-sim/bouncer/sim/checkpoint"
	"github.com/inference-sim/bouncer/sim/remote"
	"github.com/inference-sim/bouncer/sim/session"
	"github.com/inference-sim/bouncer/sim/trace"
)

var (
	// Shared flags
	logLevel    string // Log verbosity level
	scenario    int    // Game scenario number (1-3)
	profileRef  string // Built-in profile name or YAML path; empty picks the scenario's profile
	policyName  string // Overrides the profile's admission policy
	seed        int64  // Seed for exploration and simulated streams
	metricsAddr string // Address serving /metrics; empty disables it

	// Remote game flags
	baseURL           string        // Game server base URL
	playerID          string        // Player id sent with /new-game
	connectTimeout    time.Duration // Dial timeout
	readTimeout       time.Duration // Response header timeout
	retries           uint          // Retries per request after the first attempt
	backoffFactor     time.Duration // Initial retry delay, doubled per attempt
	requestsPerSecond float64       // Client-side request pacing; 0 disables it
	checkpointPath    string        // Checkpoint file; empty disables resume
	tracePath         string        // Decision trace output; empty disables tracing
)

// validateScenario rejects scenario numbers the game does not define.
func validateScenario(n int) error {
	if n < 1 || n > 3 {
		return fmt.Errorf("--scenario must be 1, 2 or 3, got %d", n)
	}
	return nil
}

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "bouncer",
	Short: "Online admission engine for the venue constraint game",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd plays one game against the remote server
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play a game against the game server",
	Run: func(cmd *cobra.Command, args []string) {
		if err := applyEnv(cmd); err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := validateScenario(scenario); err != nil {
			logrus.Fatalf("%v", err)
		}
		if baseURL == "" {
			logrus.Fatalf("--base-url not provided")
		}
		if playerID == "" {
			logrus.Fatalf("--player-id not provided")
		}

		profile, err := resolveProfile(profileRef, policyName, scenario)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		clientCfg := remote.DefaultConfig(baseURL)
		clientCfg.ConnectTimeout = connectTimeout
		clientCfg.ReadTimeout = readTimeout
		clientCfg.Retries = retries
		clientCfg.BackoffFactor = backoffFactor
		clientCfg.RequestsPerSecond = requestsPerSecond

		cfg := session.Config{
			Scenario: scenario,
			PlayerID: playerID,
			Profile:  profile,
			Seed:     sim.RunSeed(seed),
			Metrics:  serveMetrics(metricsAddr),
		}
		if checkpointPath != "" {
			cfg.Store = checkpoint.NewStore(checkpointPath)
		}
		if tracePath != "" {
			cfg.TraceLevel = trace.TraceLevelDecisions
		}

		logrus.Infof("Starting scenario %d against %s with profile %s (policy %s)",
			scenario, baseURL, profile.Name, profile.Policy)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out, err := session.NewRunner(remote.NewClient(clientCfg), cfg).Run(ctx)
		if err != nil {
			logrus.Fatalf("run failed: %v", err)
		}
		if tracePath != "" {
			if err := out.Trace.WriteYAML(tracePath); err != nil {
				logrus.Errorf("%v", err)
			}
		}
		fmt.Println(out.String())
		if out.Kind == session.KindStopped && out.Err != nil && !errors.Is(out.Err, context.Canceled) {
			os.Exit(1)
		}
	},
}

// serveMetrics starts a /metrics endpoint on addr and returns the collectors
// it exposes. Returns nil when addr is empty.
func serveMetrics(addr string) *session.Metrics {
	if addr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	m := session.NewMetrics(reg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logrus.Errorf("metrics server: %v", err)
		}
	}()
	logrus.Infof("Serving metrics on %s/metrics", addr)
	return m
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().IntVar(&scenario, "scenario", 1, "Game scenario (1, 2 or 3)")
	rootCmd.PersistentFlags().StringVar(&profileRef, "profile", "", "Built-in profile name or path to a profile YAML (default: the scenario's profile)")
	rootCmd.PersistentFlags().StringVar(&policyName, "policy", "", fmt.Sprintf("Override the profile's admission policy (%v)", sim.ValidAdmissionPolicyNames()))
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "Seed for exploration and simulated candidate streams")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	runCmd.Flags().StringVar(&baseURL, "base-url", "", "Game server base URL")
	runCmd.Flags().StringVar(&playerID, "player-id", "", "Player id")
	runCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 5*time.Second, "Connection timeout")
	runCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "Read timeout")
	runCmd.Flags().UintVar(&retries, "retries", 5, "Retries for transient failures")
	runCmd.Flags().DurationVar(&backoffFactor, "backoff", 500*time.Millisecond, "Initial retry delay, doubled per attempt")
	runCmd.Flags().Float64Var(&requestsPerSecond, "rps", 0, "Maximum requests per second (0 = unlimited)")
	runCmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint file used to resume an interrupted game")
	runCmd.Flags().StringVar(&tracePath, "trace", "", "Write every decision and a summary to this YAML file")

	rootCmd.AddCommand(runCmd)
}
