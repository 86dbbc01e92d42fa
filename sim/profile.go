package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Profile holds every tunable of the admission pipeline, loadable from YAML.
// The structural algorithm is shared across scenarios; only these numbers differ.
type Profile struct {
	Name   string `yaml:"name"`
	Policy string `yaml:"policy"`

	EndgameWindow int `yaml:"endgame_window"`

	WHelp          float64 `yaml:"w_help"`
	WPenalty       float64 `yaml:"w_penalty"`
	WCorr          float64 `yaml:"w_corr"`
	WLookahead     float64 `yaml:"w_lookahead"`
	LookaheadDepth float64 `yaml:"lookahead_depth"`
	WSynergy       float64 `yaml:"w_synergy"`
	ScarcityGain   float64 `yaml:"scarcity_gain"`
	ScarcityClip   float64 `yaml:"scarcity_clip"`

	BaseStart        float64 `yaml:"base_start"`
	BufferMultiplier float64 `yaml:"buffer_multiplier"`

	// PriorStrength is k0 in the estimator's prior weight min(0.9, k0/seen).
	PriorStrength    float64 `yaml:"prior_strength"`
	DefaultFrequency float64 `yaml:"default_frequency"`
	HistoryWindow    int     `yaml:"history_window"`
	RecencyWindow    int     `yaml:"recency_window"`

	Feedback FeedbackConfig `yaml:"feedback"`

	// EndgameConfidence is the one-sided confidence level of the endgame
	// supply projection. 0.5 projects the plain expected value.
	EndgameConfidence float64 `yaml:"endgame_confidence"`
	// DeficitCriticality gates the deficit-first shortcut; 0 accepts every
	// contributor. Gated contributors still pass when they endanger no other
	// open constraint.
	DeficitCriticality float64 `yaml:"deficit_criticality"`
	// SupplyPlan rations candidate types ahead of deficit-first so every open
	// minimum keeps its share of the remaining seats.
	SupplyPlan bool `yaml:"supply_plan"`
	// PlanMargin pads each need by PlanMargin*sqrt(need) seats in the plan.
	PlanMargin         float64 `yaml:"plan_margin"`
	ExploreProbability float64 `yaml:"explore_probability"`

	DualStep      float64 `yaml:"dual_step"`
	DualTolerance float64 `yaml:"dual_tolerance"`
}

// FeedbackConfig tunes the rejection-rate feedback of the threshold controller.
type FeedbackConfig struct {
	High         float64 `yaml:"high"`
	Mid          float64 `yaml:"mid"`
	Low          float64 `yaml:"low"`
	HighFactor   float64 `yaml:"high_factor"`
	MidFactor    float64 `yaml:"mid_factor"`
	LowFactor    float64 `yaml:"low_factor"`
	PressureGate float64 `yaml:"pressure_gate"`
	Hysteresis   float64 `yaml:"hysteresis"`
}

// DefaultProfile returns the general-purpose profile used when no scenario matches.
func DefaultProfile() Profile {
	return Profile{
		Name:              "default",
		Policy:            "adaptive",
		EndgameWindow:     50,
		WHelp:             2.0,
		WPenalty:          0.5,
		WCorr:             0.1,
		WLookahead:        0.3,
		LookaheadDepth:    3,
		ScarcityClip:      5.0,
		BaseStart:         0.5,
		PriorStrength:     100,
		DefaultFrequency:  0.2,
		HistoryWindow:     100,
		RecencyWindow:     200,
		EndgameConfidence: 0.5,
		PlanMargin:        1.0,
		Feedback: FeedbackConfig{
			High: 0.9, Mid: 0.8, Low: 0.3,
			HighFactor: 0.8, MidFactor: 0.9, LowFactor: 1.2,
			PressureGate: 0.1,
		},
		DualStep:      0.05,
		DualTolerance: 0.0,
	}
}

// Built-in scenario profiles. Numbers are the tuned values for each game scenario.
func scenarioProfiles() map[string]Profile {
	s1 := DefaultProfile()
	s1.Name = "scenario-1"
	s1.EndgameWindow = 30
	s1.WHelp, s1.WPenalty, s1.WCorr = 1.5, 0.3, 0.15
	s1.BaseStart = 0.3

	s2 := DefaultProfile()
	s2.Name = "scenario-2"
	s2.EndgameWindow = 80
	s2.WHelp, s2.WPenalty, s2.WCorr = 2.0, 0.5, 0.2
	s2.BaseStart = 0.45
	s2.BufferMultiplier = 0.05
	s2.ScarcityGain = 1.0
	s2.WSynergy = 2.3
	s2.Feedback.High, s2.Feedback.Mid, s2.Feedback.Low = 0.85, 0.7, 0.25
	s2.Feedback.LowFactor = 1.15
	s2.SupplyPlan = true

	s3 := DefaultProfile()
	s3.Name = "scenario-3"
	s3.EndgameWindow = 120
	s3.WHelp, s3.WPenalty, s3.WCorr = 3.0, 0.8, 0.3
	s3.BaseStart = 0.7
	s3.BufferMultiplier = 0.1
	s3.ScarcityGain = 1.0
	s3.ScarcityClip = 6.0
	s3.WSynergy = 1.0
	s3.DeficitCriticality = 0.5
	s3.EndgameConfidence = 0.75
	s3.SupplyPlan = true
	s3.PlanMargin = 1.5

	d := DefaultProfile()
	return map[string]Profile{
		d.Name:  d,
		s1.Name: s1,
		s2.Name: s2,
		s3.Name: s3,
	}
}

// BuiltinProfileNames returns sorted built-in profile names.
func BuiltinProfileNames() []string {
	profiles := scenarioProfiles()
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BuiltinProfile returns the named built-in profile.
func BuiltinProfile(name string) (Profile, bool) {
	p, ok := scenarioProfiles()[name]
	return p, ok
}

// ScenarioProfile returns the built-in profile for a game scenario number,
// falling back to scenario 2 for unknown numbers.
func ScenarioProfile(scenario int) Profile {
	if p, ok := BuiltinProfile(fmt.Sprintf("scenario-%d", scenario)); ok {
		return p
	}
	p, _ := BuiltinProfile("scenario-2")
	return p
}

// LoadProfile reads a YAML profile. A top-level "extends" key names the
// built-in profile whose values are used for every key the file omits.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile parses YAML profile bytes. See LoadProfile.
func ParseProfile(data []byte) (*Profile, error) {
	var head struct {
		Extends string `yaml:"extends"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	base := DefaultProfile()
	if head.Extends != "" {
		p, ok := BuiltinProfile(head.Extends)
		if !ok {
			return nil, fmt.Errorf("unknown base profile %q; valid: %v", head.Extends, BuiltinProfileNames())
		}
		base = p
	}

	doc := struct {
		Extends string `yaml:"extends"`
		Profile `yaml:",inline"`
	}{Profile: base}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	return &doc.Profile, nil
}

// Validate checks policy names and parameter ranges.
func (p *Profile) Validate() error {
	if !IsValidAdmissionPolicy(p.Policy) {
		return fmt.Errorf("unknown policy %q; valid: %v", p.Policy, ValidAdmissionPolicyNames())
	}
	if p.EndgameWindow < 0 {
		return fmt.Errorf("endgame_window must be non-negative, got %d", p.EndgameWindow)
	}
	for name, v := range map[string]float64{
		"w_help":            p.WHelp,
		"w_penalty":         p.WPenalty,
		"w_corr":            p.WCorr,
		"w_lookahead":       p.WLookahead,
		"lookahead_depth":   p.LookaheadDepth,
		"w_synergy":         p.WSynergy,
		"scarcity_gain":     p.ScarcityGain,
		"base_start":        p.BaseStart,
		"buffer_multiplier": p.BufferMultiplier,
		"prior_strength":    p.PriorStrength,
		"dual_step":         p.DualStep,
		"plan_margin":       p.PlanMargin,
	} {
		if err := validateFiniteNonNegative(name, v); err != nil {
			return err
		}
	}
	if err := validateFiniteNonNegative("scarcity_clip", p.ScarcityClip); err != nil {
		return err
	}
	if p.ScarcityClip == 0 {
		return fmt.Errorf("scarcity_clip must be positive")
	}
	if math.IsNaN(p.DualTolerance) || math.IsInf(p.DualTolerance, 0) {
		return fmt.Errorf("dual_tolerance must be a finite number, got %f", p.DualTolerance)
	}
	for name, v := range map[string]float64{
		"default_frequency":   p.DefaultFrequency,
		"explore_probability": p.ExploreProbability,
		"feedback.high":       p.Feedback.High,
		"feedback.mid":        p.Feedback.Mid,
		"feedback.low":        p.Feedback.Low,
		"feedback.hysteresis": p.Feedback.Hysteresis,
	} {
		if err := validateUnitInterval(name, v); err != nil {
			return err
		}
	}
	if p.Feedback.Low > p.Feedback.Mid || p.Feedback.Mid > p.Feedback.High {
		return fmt.Errorf("feedback bands must satisfy low <= mid <= high, got %v/%v/%v",
			p.Feedback.Low, p.Feedback.Mid, p.Feedback.High)
	}
	for name, v := range map[string]float64{
		"feedback.high_factor": p.Feedback.HighFactor,
		"feedback.mid_factor":  p.Feedback.MidFactor,
		"feedback.low_factor":  p.Feedback.LowFactor,
	} {
		if err := validateFiniteNonNegative(name, v); err != nil {
			return err
		}
	}
	if err := validateFiniteNonNegative("feedback.pressure_gate", p.Feedback.PressureGate); err != nil {
		return err
	}
	if p.EndgameConfidence < 0.5 || p.EndgameConfidence >= 1 || math.IsNaN(p.EndgameConfidence) {
		return fmt.Errorf("endgame_confidence must be in [0.5, 1), got %f", p.EndgameConfidence)
	}
	if err := validateFiniteNonNegative("deficit_criticality", p.DeficitCriticality); err != nil {
		return err
	}
	if p.HistoryWindow < 1 {
		return fmt.Errorf("history_window must be at least 1, got %d", p.HistoryWindow)
	}
	if p.RecencyWindow < 0 {
		return fmt.Errorf("recency_window must be non-negative, got %d", p.RecencyWindow)
	}
	return nil
}

func validateFiniteNonNegative(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val < 0 {
		return fmt.Errorf("%s must be non-negative, got %f", name, val)
	}
	return nil
}

func validateUnitInterval(name string, val float64) error {
	if math.IsNaN(val) || val < 0 || val > 1 {
		return fmt.Errorf("%s must be in [0, 1], got %f", name, val)
	}
	return nil
}
