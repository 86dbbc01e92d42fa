package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// envConfig holds the settings that may come from the environment.
// Explicit flags take precedence.
type envConfig struct {
	BaseURL    string        `env:"BOUNCER_BASE_URL"`
	PlayerID   string        `env:"BOUNCER_PLAYER_ID"`
	Scenario   int           `env:"BOUNCER_SCENARIO"`
	Checkpoint string        `env:"BOUNCER_CHECKPOINT"`
	Timeout    time.Duration `env:"BOUNCER_TIMEOUT"`
	Retries    *uint         `env:"BOUNCER_RETRIES"`
}

func parseEnv() (envConfig, error) {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return envConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// applyEnv copies environment settings into every flag of cmd the user did
// not set explicitly.
func applyEnv(cmd *cobra.Command) error {
	cfg, err := parseEnv()
	if err != nil {
		return err
	}
	values := map[string]string{}
	if cfg.BaseURL != "" {
		values["base-url"] = cfg.BaseURL
	}
	if cfg.PlayerID != "" {
		values["player-id"] = cfg.PlayerID
	}
	if cfg.Scenario != 0 {
		values["scenario"] = strconv.Itoa(cfg.Scenario)
	}
	if cfg.Checkpoint != "" {
		values["checkpoint"] = cfg.Checkpoint
	}
	if cfg.Timeout > 0 {
		values["read-timeout"] = cfg.Timeout.String()
	}
	if cfg.Retries != nil {
		values["retries"] = strconv.FormatUint(uint64(*cfg.Retries), 10)
	}

	flags := cmd.Flags()
	for name, v := range values {
		f := flags.Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		if err := flags.Set(name, v); err != nil {
			return fmt.Errorf("applying env to --%s: %w", name, err)
		}
	}
	return nil
}
