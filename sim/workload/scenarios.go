package workload

import "fmt"

// Built-in game presets modeled on the three public game scenarios.
// Each returns a valid StreamSpec ready for use with NewStream.

// ScenarioSpec returns the preset for scenario 1, 2 or 3.
func ScenarioSpec(scenario int) (*StreamSpec, error) {
	switch scenario {
	case 1:
		return ScenarioTwoSymmetric(), nil
	case 2:
		return ScenarioRareCreatives(), nil
	case 3:
		return ScenarioSixAttributes(), nil
	}
	return nil, fmt.Errorf("unknown scenario %d; valid: 1, 2, 3", scenario)
}

// ScenarioTwoSymmetric has two equally common, mildly correlated attributes
// that each need 60% of the venue.
func ScenarioTwoSymmetric() *StreamSpec {
	return &StreamSpec{
		Name: "scenario-1", Capacity: 1000, RejectionCap: DefaultRejectionCap,
		Constraints: []ConstraintSpec{
			{Attribute: "young", MinCount: 600},
			{Attribute: "well_dressed", MinCount: 600},
		},
		Frequencies: map[string]float64{"young": 0.3225, "well_dressed": 0.3225},
		Correlations: map[string]map[string]float64{
			"young":        {"young": 1, "well_dressed": 0.1837},
			"well_dressed": {"young": 0.1837, "well_dressed": 1},
		},
	}
}

// ScenarioRareCreatives has one rare attribute and two strongly
// anti-correlated majority attributes.
func ScenarioRareCreatives() *StreamSpec {
	return &StreamSpec{
		Name: "scenario-2", Capacity: 1000, RejectionCap: DefaultRejectionCap,
		Constraints: []ConstraintSpec{
			{Attribute: "techno_lover", MinCount: 650},
			{Attribute: "well_connected", MinCount: 450},
			{Attribute: "creative", MinCount: 300},
			{Attribute: "berlin_local", MinCount: 750},
		},
		Frequencies: map[string]float64{
			"techno_lover": 0.6265, "well_connected": 0.47, "creative": 0.0623, "berlin_local": 0.398,
		},
		Correlations: symmetric(map[[2]string]float64{
			{"techno_lover", "well_connected"}: -0.4696,
			{"techno_lover", "creative"}:       0.0946,
			{"techno_lover", "berlin_local"}:   -0.6549,
			{"well_connected", "creative"}:     0.1420,
			{"well_connected", "berlin_local"}: 0.5724,
			{"creative", "berlin_local"}:       0.1445,
		}),
	}
}

// ScenarioSixAttributes has six constraints, two of them on rare and
// positively correlated attributes.
func ScenarioSixAttributes() *StreamSpec {
	return &StreamSpec{
		Name: "scenario-3", Capacity: 1000, RejectionCap: DefaultRejectionCap,
		Constraints: []ConstraintSpec{
			{Attribute: "underground_veteran", MinCount: 500},
			{Attribute: "international", MinCount: 650},
			{Attribute: "fashion_forward", MinCount: 550},
			{Attribute: "queer_friendly", MinCount: 250},
			{Attribute: "vinyl_collector", MinCount: 200},
			{Attribute: "german_speaker", MinCount: 800},
		},
		Frequencies: map[string]float64{
			"underground_veteran": 0.6795, "international": 0.5735, "fashion_forward": 0.691,
			"queer_friendly": 0.0461, "vinyl_collector": 0.0447, "german_speaker": 0.4565,
		},
		Correlations: symmetric(map[[2]string]float64{
			{"underground_veteran", "international"}:   -0.0812,
			{"underground_veteran", "fashion_forward"}: -0.1687,
			{"underground_veteran", "queer_friendly"}:  0.0370,
			{"underground_veteran", "vinyl_collector"}: 0.0722,
			{"underground_veteran", "german_speaker"}:  0.1127,
			{"international", "fashion_forward"}:       0.3755,
			{"international", "queer_friendly"}:        0.0047,
			{"international", "vinyl_collector"}:       -0.0401,
			{"international", "german_speaker"}:        -0.7173,
			{"fashion_forward", "queer_friendly"}:      -0.0035,
			{"fashion_forward", "vinyl_collector"}:     -0.0122,
			{"fashion_forward", "german_speaker"}:      -0.3560,
			{"queer_friendly", "vinyl_collector"}:      0.4868,
			{"queer_friendly", "german_speaker"}:       0.0292,
			{"vinyl_collector", "german_speaker"}:      0.0503,
		}),
	}
}

// symmetric expands pairwise correlations into the nested wire form with a
// unit diagonal.
func symmetric(pairs map[[2]string]float64) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	set := func(a, b string, v float64) {
		if out[a] == nil {
			out[a] = map[string]float64{a: 1}
		}
		out[a][b] = v
	}
	for p, v := range pairs {
		set(p[0], p[1], v)
		set(p[1], p[0], v)
	}
	return out
}
