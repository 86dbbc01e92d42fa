package sim

import (
	"errors"
	"fmt"
	"math"
)

// ErrVenueFull is returned when an accept is applied to a full venue.
var ErrVenueFull = errors.New("venue is at capacity")

// Constraint is a required minimum count of admitted candidates carrying Attribute.
type Constraint struct {
	Attribute string
	MinCount  int
}

// RunInit is everything the engine learns at run start.
type RunInit struct {
	Capacity            int
	Constraints         []Constraint
	RelativeFrequencies map[string]float64
	Correlations        map[string]map[string]float64
}

// RunState is the single-owner record of one run, mutated once per candidate.
// Per-attribute slices are indexed by attribute id in Attributes.
type RunState struct {
	Capacity    int
	Attributes  *AttributeSet
	Minimums    []int
	Constrained []bool

	AdmittedCounts []int
	AdmittedTotal  int
	RejectedTotal  int

	Estimator   *Estimator
	Correlation [][]float64
	History     *DecisionHistory

	// DualPrices are the per-attribute multipliers of the dual policy.
	DualPrices []float64

	// TypeCounts tallies observed candidates by Signature. Nil when the run
	// has more than MaxTypedConstraints constraints.
	TypeCounts map[uint64]int
}

// MaxTypedConstraints bounds the constraints tallied jointly in TypeCounts.
const MaxTypedConstraints = 12

// NewRunState builds the initial state for a run.
// Constraint minimums are inflated by ceil(BufferMultiplier*sqrt(capacity)),
// capped at capacity. Attributes without a supplied frequency get
// DefaultFrequency as their prior.
func NewRunState(init RunInit, p Profile) (*RunState, error) {
	if init.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", init.Capacity)
	}
	names := make([]string, 0, len(init.Constraints)+len(init.RelativeFrequencies))
	for _, c := range init.Constraints {
		if c.MinCount < 0 {
			return nil, fmt.Errorf("constraint %q: min count must be non-negative, got %d", c.Attribute, c.MinCount)
		}
		names = append(names, c.Attribute)
	}
	for name := range init.RelativeFrequencies {
		names = append(names, name)
	}
	attrs, err := NewAttributeSet(names...)
	if err != nil {
		return nil, fmt.Errorf("building attribute set: %w", err)
	}

	buffer := 0
	if p.BufferMultiplier > 0 {
		buffer = int(math.Ceil(p.BufferMultiplier * math.Sqrt(float64(init.Capacity))))
	}
	n := attrs.Len()
	minimums := make([]int, n)
	constrained := make([]bool, n)
	for _, c := range init.Constraints {
		id, _ := attrs.ID(c.Attribute)
		m := min(init.Capacity, c.MinCount+buffer)
		if !constrained[id] || m > minimums[id] {
			minimums[id] = m
		}
		constrained[id] = true
	}

	prior := make([]float64, n)
	for id := 0; id < n; id++ {
		if f, ok := init.RelativeFrequencies[attrs.Name(id)]; ok {
			prior[id] = f
		} else {
			prior[id] = p.DefaultFrequency
		}
	}

	return &RunState{
		Capacity:       init.Capacity,
		Attributes:     attrs,
		Minimums:       minimums,
		Constrained:    constrained,
		AdmittedCounts: make([]int, n),
		Estimator:      NewEstimator(prior, p.PriorStrength, p.RecencyWindow),
		Correlation:    correlationMatrix(attrs, init.Correlations),
		History:        NewDecisionHistory(p.HistoryWindow),
		DualPrices:     make([]float64, n),
		TypeCounts:     newTypeCounts(constrained),
	}, nil
}

func newTypeCounts(constrained []bool) map[uint64]int {
	if len(constrainedIDs(constrained)) > MaxTypedConstraints {
		return nil
	}
	return make(map[uint64]int)
}

func constrainedIDs(constrained []bool) []int {
	var ids []int
	for id, c := range constrained {
		if c {
			ids = append(ids, id)
		}
	}
	return ids
}

// correlationMatrix converts the nested wire map into an id-indexed matrix.
// Unknown attribute names are dropped; values are clamped to [-1, 1].
func correlationMatrix(attrs *AttributeSet, corr map[string]map[string]float64) [][]float64 {
	n := attrs.Len()
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for a1, row := range corr {
		i, ok := attrs.ID(a1)
		if !ok {
			continue
		}
		for a2, v := range row {
			j, ok := attrs.ID(a2)
			if !ok || math.IsNaN(v) {
				continue
			}
			m[i][j] = math.Max(-1, math.Min(1, v))
		}
	}
	return m
}

// Remaining returns the open slots, capacity minus admitted.
func (s *RunState) Remaining() int {
	return s.Capacity - s.AdmittedTotal
}

// Full reports whether the venue reached capacity.
func (s *RunState) Full() bool {
	return s.AdmittedTotal >= s.Capacity
}

// Need returns the remaining shortfall for attribute id, floored at 0.
func (s *RunState) Need(id int) int {
	if !s.Constrained[id] {
		return 0
	}
	return max(0, s.Minimums[id]-s.AdmittedCounts[id])
}

// Needs returns the shortfall of every attribute.
func (s *RunState) Needs() []int {
	out := make([]int, s.Attributes.Len())
	for id := range out {
		out[id] = s.Need(id)
	}
	return out
}

// AllSatisfied reports whether every constraint has reached its minimum.
func (s *RunState) AllSatisfied() bool {
	for id := range s.Minimums {
		if s.Need(id) > 0 {
			return false
		}
	}
	return true
}

// Frequency returns the current estimate of P(attribute id).
func (s *RunState) Frequency(id int) float64 {
	return s.Estimator.Frequency[id]
}

// ConstrainedIDs returns the constrained attribute ids in id order. Bit j of
// a Signature refers to the j-th of them.
func (s *RunState) ConstrainedIDs() []int {
	return constrainedIDs(s.Constrained)
}

// Signature encodes which constrained attributes the candidate carries.
func (s *RunState) Signature(c Candidate) uint64 {
	var sig uint64
	for j, id := range s.ConstrainedIDs() {
		if c.has(id) {
			sig |= 1 << j
		}
	}
	return sig
}

// OpenSignature is the Signature mask of constraints still in deficit.
func (s *RunState) OpenSignature() uint64 {
	var sig uint64
	for j, id := range s.ConstrainedIDs() {
		if s.Need(id) > 0 {
			sig |= 1 << j
		}
	}
	return sig
}

// Observe folds a newly seen candidate into the estimator and refreshes the
// frequency estimates. Call once per candidate before deciding on it.
func (s *RunState) Observe(c Candidate) {
	s.Estimator.Observe(c)
	s.Estimator.Refresh()
	if s.TypeCounts != nil {
		s.TypeCounts[s.Signature(c)]++
	}
}

// Apply commits a decision. Accepting into a full venue returns ErrVenueFull
// and leaves the state untouched.
func (s *RunState) Apply(c Candidate, accepted bool) error {
	if accepted {
		if s.Full() {
			return ErrVenueFull
		}
		s.AdmittedTotal++
		for id := range s.AdmittedCounts {
			if c.has(id) {
				s.AdmittedCounts[id]++
			}
		}
		s.Estimator.RecordAccepted(c)
	} else {
		s.RejectedTotal++
	}
	s.History.Record(accepted)
	return nil
}

// Unreachable returns the constrained attributes whose need exceeds the
// remaining slots. Empty while every minimum is still reachable.
func (s *RunState) Unreachable() []string {
	var out []string
	r := s.Remaining()
	for id := range s.Minimums {
		if s.Need(id) > r {
			out = append(out, s.Attributes.Name(id))
		}
	}
	return out
}

// CountsByName returns admitted counts keyed by attribute name.
func (s *RunState) CountsByName() map[string]int {
	out := make(map[string]int, s.Attributes.Len())
	for id, v := range s.AdmittedCounts {
		out[s.Attributes.Name(id)] = v
	}
	return out
}
