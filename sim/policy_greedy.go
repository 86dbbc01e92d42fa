package sim

// GreedyPolicy admits exactly the candidates that reduce an open deficit,
// subject to the feasibility guard, and everyone once all minimums are met.
// Candidates that help nothing are rejected while any deficit remains.
type GreedyPolicy struct{}

// Decide implements AdmissionPolicy.
func (g *GreedyPolicy) Decide(c Candidate, s *RunState) Decision {
	if d, ok := guard(c, s); ok {
		return d
	}
	if s.AllSatisfied() {
		return Decision{Accept: true, Reason: ReasonSatisfied}
	}
	if Contributes(c, s) {
		return Decision{Accept: true, Reason: ReasonDeficit}
	}
	return Decision{Accept: false, Reason: ReasonNoContribution}
}
