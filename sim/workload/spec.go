// Package workload generates synthetic candidate streams for offline games.
//
// A StreamSpec describes a game: venue capacity, constraints and the
// attribute statistics announced at start. NewStream draws candidates whose
// marginal frequencies match the StreamSpec and whose attributes co-occur
// according to the correlations.
package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultRejectionCap is the number of rejections after which a game fails.
const DefaultRejectionCap = 20000

// ConstraintSpec is one minimum-count requirement.
type ConstraintSpec struct {
	Attribute string `yaml:"attribute"`
	MinCount  int    `yaml:"min_count"`
}

// StreamSpec is the YAML description of a game.
type StreamSpec struct {
	Name         string                        `yaml:"name"`
	Capacity     int                           `yaml:"capacity"`
	RejectionCap int                           `yaml:"rejection_cap"`
	Constraints  []ConstraintSpec              `yaml:"constraints"`
	Frequencies  map[string]float64            `yaml:"frequencies"`
	Correlations map[string]map[string]float64 `yaml:"correlations"`
}

// LoadStreamSpec loads a game description from a YAML file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadStreamSpec(path string) (*StreamSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stream spec: %w", err)
	}
	var spec StreamSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing stream spec: %w", err)
	}
	spec.applyDefaults()
	return &spec, nil
}

func (s *StreamSpec) applyDefaults() {
	if s.Capacity == 0 {
		s.Capacity = 1000
	}
	if s.RejectionCap == 0 {
		s.RejectionCap = DefaultRejectionCap
	}
}

// Attributes returns every attribute named by frequencies or constraints, sorted.
func (s *StreamSpec) Attributes() []string {
	seen := make(map[string]bool)
	for a := range s.Frequencies {
		seen[a] = true
	}
	for _, c := range s.Constraints {
		seen[c.Attribute] = true
	}
	names := make([]string, 0, len(seen))
	for a := range seen {
		names = append(names, a)
	}
	sort.Strings(names)
	return names
}

// Validate checks that all fields of the StreamSpec are valid.
func (s *StreamSpec) Validate() error {
	if s.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", s.Capacity)
	}
	if s.RejectionCap <= 0 {
		return fmt.Errorf("rejection_cap must be positive, got %d", s.RejectionCap)
	}
	for i, c := range s.Constraints {
		if c.Attribute == "" {
			return fmt.Errorf("constraint[%d]: attribute must not be empty", i)
		}
		if c.MinCount < 0 || c.MinCount > s.Capacity {
			return fmt.Errorf("constraint[%d] %q: min_count must be in [0, %d], got %d", i, c.Attribute, s.Capacity, c.MinCount)
		}
		if _, ok := s.Frequencies[c.Attribute]; !ok {
			return fmt.Errorf("constraint[%d] %q: no frequency given", i, c.Attribute)
		}
	}
	for a, f := range s.Frequencies {
		if math.IsNaN(f) || f < 0 || f > 1 {
			return fmt.Errorf("frequency of %q must be in [0, 1], got %f", a, f)
		}
	}
	for a1, row := range s.Correlations {
		for a2, c := range row {
			if math.IsNaN(c) || c < -1 || c > 1 {
				return fmt.Errorf("correlation %q/%q must be in [-1, 1], got %f", a1, a2, c)
			}
		}
	}
	return nil
}
