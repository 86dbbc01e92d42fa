package sim

import (
	"fmt"
	"sort"
)

// Reason names the pipeline stage that produced a decision.
type Reason string

const (
	ReasonForcedAccept      Reason = "forced-accept"
	ReasonForcedConflict    Reason = "forced-accept-conflict"
	ReasonForcedReject      Reason = "forced-reject"
	ReasonSatisfied         Reason = "all-satisfied"
	ReasonSupplyPlan        Reason = "supply-plan"
	ReasonDeficit           Reason = "deficit-first"
	ReasonEndgameInfeasible Reason = "endgame-infeasible"
	ReasonEndgameValue      Reason = "endgame-value"
	ReasonEndgameNoValue    Reason = "endgame-no-value"
	ReasonScore             Reason = "score"
	ReasonBelowThreshold    Reason = "below-threshold"
	ReasonExplore           Reason = "explore"
	ReasonDualPrice         Reason = "dual-price"
	ReasonNoContribution    Reason = "no-contribution"
	ReasonVenueFull         Reason = "venue-full"
)

// Decision is the outcome for one candidate.
// Score and Threshold are set only by stages that compute them.
type Decision struct {
	Accept    bool
	Reason    Reason
	Score     float64
	Threshold float64
}

// AdmissionPolicy decides whether a candidate is admitted.
// Decide may read but never mutate the RunState; the caller applies the
// decision with RunState.Apply.
type AdmissionPolicy interface {
	Decide(c Candidate, s *RunState) Decision
}

// Committer is implemented by policies that learn from applied decisions.
// Called after RunState.Apply.
type Committer interface {
	Commit(c Candidate, s *RunState, d Decision)
}

// validAdmissionPolicies is the set of recognized policy names.
// Unexported to prevent mutation.
var validAdmissionPolicies = map[string]bool{"adaptive": true, "greedy": true, "dual": true}

// IsValidAdmissionPolicy returns true if name is a recognized policy.
func IsValidAdmissionPolicy(name string) bool { return validAdmissionPolicies[name] }

// ValidAdmissionPolicyNames returns sorted valid policy names.
func ValidAdmissionPolicyNames() []string {
	names := make([]string, 0, len(validAdmissionPolicies))
	for n := range validAdmissionPolicies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewAdmissionPolicy creates the policy named by p.Policy.
// rng is used only when the profile enables randomized acceptance and may be nil otherwise.
// Panics on unrecognized names (Profile.Validate catches them first).
func NewAdmissionPolicy(p Profile, rng *PartitionedRNG) AdmissionPolicy {
	switch p.Policy {
	case "adaptive":
		return NewAdaptivePolicy(p, rng)
	case "greedy":
		return &GreedyPolicy{}
	case "dual":
		return NewDualPolicy(p)
	default:
		panic(fmt.Sprintf("unknown admission policy %q; valid policies: %v", p.Policy, ValidAdmissionPolicyNames()))
	}
}

// guard runs the hard feasibility guard and converts a forced outcome into a
// decision. ok is false when the candidate is unforced.
func guard(c Candidate, s *RunState) (Decision, bool) {
	if s.Full() {
		return Decision{Accept: false, Reason: ReasonVenueFull}, true
	}
	g := MustForce(c, s)
	switch g.Forced {
	case ForcedAccept:
		if g.Conflict {
			return Decision{Accept: true, Reason: ReasonForcedConflict}, true
		}
		return Decision{Accept: true, Reason: ReasonForcedAccept}, true
	case ForcedReject:
		return Decision{Accept: false, Reason: ReasonForcedReject}, true
	}
	return Decision{}, false
}
