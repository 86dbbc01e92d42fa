package sim

import "math"

// DualPolicy prices each constraint with a Lagrange multiplier λ_a kept in
// RunState.DualPrices. With target rate r_a = min[a]/capacity and y_a = 1 if
// the candidate carries a, the candidate's cost is Σ λ_a (r_a - y_a); it is
// accepted when the cost is at most the tolerance τ. After every accept
// λ_a ← max(0, λ_a + η (r_a - y_a)), so prices of attributes admitted below
// their target rate rise.
type DualPolicy struct {
	step      float64
	tolerance float64
}

// NewDualPolicy creates a DualPolicy from the profile's DualStep (η) and DualTolerance (τ).
func NewDualPolicy(p Profile) *DualPolicy {
	return &DualPolicy{step: p.DualStep, tolerance: p.DualTolerance}
}

// Decide implements AdmissionPolicy.
func (dp *DualPolicy) Decide(c Candidate, s *RunState) Decision {
	if d, ok := guard(c, s); ok {
		return d
	}
	if s.AllSatisfied() {
		return Decision{Accept: true, Reason: ReasonSatisfied}
	}
	if Contributes(c, s) {
		return Decision{Accept: true, Reason: ReasonDeficit}
	}
	cost := dp.Cost(c, s)
	return Decision{Accept: cost <= dp.tolerance, Reason: ReasonDualPrice, Score: cost, Threshold: dp.tolerance}
}

// Cost returns Σ λ_a (r_a - y_a) over constrained attributes.
func (dp *DualPolicy) Cost(c Candidate, s *RunState) float64 {
	cost := 0.0
	for id := range s.Minimums {
		if !s.Constrained[id] {
			continue
		}
		cost += s.DualPrices[id] * dp.gap(c, s, id)
	}
	return cost
}

// Commit implements Committer: prices move only on accepts.
func (dp *DualPolicy) Commit(c Candidate, s *RunState, d Decision) {
	if !d.Accept {
		return
	}
	for id := range s.Minimums {
		if !s.Constrained[id] {
			continue
		}
		s.DualPrices[id] = math.Max(0, s.DualPrices[id]+dp.step*dp.gap(c, s, id))
	}
}

func (dp *DualPolicy) gap(c Candidate, s *RunState, id int) float64 {
	target := float64(s.Minimums[id]) / float64(s.Capacity)
	if c.has(id) {
		return target - 1
	}
	return target
}
