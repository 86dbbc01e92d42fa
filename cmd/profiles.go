package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/bouncer/sim"
)

// resolveProfile picks the tuning profile for a run.
// ref is a built-in profile name or a YAML path; empty selects the built-in
// profile of the scenario. A non-empty policy overrides the profile's.
func resolveProfile(ref, policy string, scenario int) (sim.Profile, error) {
	var p sim.Profile
	switch {
	case ref == "":
		p = sim.ScenarioProfile(scenario)
	default:
		if builtin, ok := sim.BuiltinProfile(ref); ok {
			p = builtin
			break
		}
		loaded, err := sim.LoadProfile(ref)
		if err != nil {
			return sim.Profile{}, fmt.Errorf("profile %q is neither a built-in (%v) nor a readable file: %w", ref, sim.BuiltinProfileNames(), err)
		}
		p = *loaded
	}
	if policy != "" {
		p.Policy = policy
	}
	if err := p.Validate(); err != nil {
		return sim.Profile{}, fmt.Errorf("invalid profile %s: %w", p.Name, err)
	}
	return p, nil
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List or show tuning profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in profiles",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range sim.BuiltinProfileNames() {
			p, _ := sim.BuiltinProfile(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s policy=%s endgame=%d base_start=%.2f\n", name, p.Policy, p.EndgameWindow, p.BaseStart)
		}
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show [name-or-path]",
	Short: "Print a profile as YAML, ready to edit and pass to --profile",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ref := profileRef
		if len(args) == 1 {
			ref = args[0]
		}
		p, err := resolveProfile(ref, policyName, scenario)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			logrus.Fatalf("encoding profile: %v", err)
		}
		if err := enc.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	},
}

func init() {
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	rootCmd.AddCommand(profilesCmd)
}
