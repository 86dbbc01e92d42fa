package sim

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Forced is the outcome of the hard feasibility guard.
type Forced int

const (
	Unforced Forced = iota
	ForcedAccept
	ForcedReject
)

func (f Forced) String() string {
	switch f {
	case ForcedAccept:
		return "forced-accept"
	case ForcedReject:
		return "forced-reject"
	default:
		return "unforced"
	}
}

// GuardResult carries the guard outcome plus whether it resolved a conflict
// (some attribute demanded accept while another demanded reject).
type GuardResult struct {
	Forced   Forced
	Conflict bool
}

// MustForce is the hard feasibility guard. It must run before anything else
// on every decision.
//
// For every constrained attribute a with need[a] and R open slots, the margin
// is exhausted when (R-1) < need[a]: after this seat is taken, fewer slots
// remain than a still requires. A candidate carrying a must then be accepted;
// a candidate lacking a must be rejected. Accept wins when both fire.
func MustForce(c Candidate, s *RunState) GuardResult {
	r := s.Remaining()
	mustAccept, mustReject := false, false
	for id := range s.Minimums {
		need := s.Need(id)
		if need == 0 || r-1 >= need {
			continue
		}
		if c.has(id) {
			mustAccept = true
		} else {
			mustReject = true
		}
	}
	switch {
	case mustAccept:
		return GuardResult{Forced: ForcedAccept, Conflict: mustReject}
	case mustReject:
		return GuardResult{Forced: ForcedReject}
	default:
		return GuardResult{Forced: Unforced}
	}
}

// ConfidenceZ converts a one-sided confidence level in [0.5, 1) into a
// standard normal quantile. 0.5 yields 0.
func ConfidenceZ(level float64) float64 {
	if level <= 0.5 {
		return 0
	}
	return distuv.UnitNormal.Quantile(level)
}

// ProjectedSupply is a lower confidence bound on how many of the next slots
// arrivals will carry attribute id, using the normal approximation to
// Binomial(slots, p): slots*p - z*sqrt(slots*p*(1-p)), floored at 0.
// With z = 0 it is the plain expected value.
func ProjectedSupply(s *RunState, id, slots int, z float64) float64 {
	if slots <= 0 {
		return 0
	}
	p := s.Frequency(id)
	n := float64(slots)
	mean := n * p
	if z == 0 {
		return mean
	}
	return math.Max(0, mean-z*math.Sqrt(n*p*(1-p)))
}

// RequiredOverlap is how many of the remaining slots must carry both a and b
// for both minimums to fit: max(0, need[a] + need[b] - R).
func RequiredOverlap(s *RunState, a, b int) int {
	return max(0, s.Need(a)+s.Need(b)-s.Remaining())
}

// Endangers reports whether admitting c leaves some open constraint it does
// not carry with less projected supply over the remaining R-1 slots than it
// still needs.
func Endangers(c Candidate, s *RunState, z float64) bool {
	slots := s.Remaining() - 1
	for id := range s.Minimums {
		need := s.Need(id)
		if need == 0 || c.has(id) {
			continue
		}
		if ProjectedSupply(s, id, slots, z) < float64(need) {
			return true
		}
	}
	return false
}
