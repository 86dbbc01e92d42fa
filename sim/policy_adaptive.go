package sim

import (
	"math/rand"

	"github.com/sirupsen/logrus"
)

const (
	// planRefreshDivisor re-solves the supply plan after R/planRefreshDivisor
	// admissions, so the plan tracks the needs more closely as R shrinks.
	planRefreshDivisor = 20
	// planObserveInterval re-solves it after this many observations without
	// an admission, picking up the refined type estimates.
	planObserveInterval = 250
)

// AdaptivePolicy is the full decision pipeline. Per candidate, in order:
//  1. hard feasibility guard (forced reject / forced accept)
//  2. accept everyone once every minimum is met
//  3. supply plan (when enabled): reject types the plan rations out
//  4. deficit-first: accept anyone reducing an open deficit
//  5. endgame (R <= EndgameWindow): expectation-based feasibility, then
//     accept only on positive expected value
//  6. score against the dynamic threshold
//
// Rejected candidates in step 6 may be accepted at random with
// ExploreProbability; off by default.
type AdaptivePolicy struct {
	profile   Profile
	scorer    Scorer
	threshold *ThresholdController
	z         float64
	explore   *rand.Rand
	planner   *supplyPlanner
}

// supplyPlanner caches the supply plan between refreshes.
type supplyPlanner struct {
	margin   float64
	lottery  *rand.Rand
	plan     *SupplyPlan
	solved   bool
	open     uint64
	admitted int
	observed int
}

// NewAdaptivePolicy creates an AdaptivePolicy. A nil rng stands for seed 0.
func NewAdaptivePolicy(p Profile, rng *PartitionedRNG) *AdaptivePolicy {
	ap := &AdaptivePolicy{
		profile:   p,
		scorer:    NewScorer(p),
		threshold: NewThresholdController(p),
		z:         ConfidenceZ(p.EndgameConfidence),
	}
	if rng == nil {
		rng = NewPartitionedRNG(0)
	}
	if p.ExploreProbability > 0 {
		ap.explore = rng.ForSubsystem(SubsystemExplore)
	}
	if p.SupplyPlan {
		ap.planner = &supplyPlanner{margin: p.PlanMargin, lottery: rng.ForSubsystem(SubsystemPlan)}
	}
	return ap
}

// Decide implements AdmissionPolicy.
func (ap *AdaptivePolicy) Decide(c Candidate, s *RunState) Decision {
	if d, ok := guard(c, s); ok {
		return d
	}
	if s.AllSatisfied() {
		return Decision{Accept: true, Reason: ReasonSatisfied}
	}
	plan := ap.planner.current(s)
	if plan != nil {
		rate := plan.AdmitRate(s.Signature(c))
		if ap.planner.lottery.Float64() >= rate {
			return Decision{Accept: false, Reason: ReasonSupplyPlan, Score: rate}
		}
	}
	if ap.deficitShortcut(c, s, plan != nil) {
		return Decision{Accept: true, Reason: ReasonDeficit}
	}

	if s.Remaining() <= ap.profile.EndgameWindow {
		if !EndgameFeasible(c, s, ap.z) {
			return Decision{Accept: false, Reason: ReasonEndgameInfeasible}
		}
		ev := ExpectedValue(c, s, ap.profile.LookaheadDepth)
		if ev > 0 {
			return Decision{Accept: true, Reason: ReasonEndgameValue, Score: ev}
		}
		return Decision{Accept: false, Reason: ReasonEndgameNoValue, Score: ev}
	}

	score := ap.scorer.Score(c, s)
	thr := ap.threshold.Threshold(s)
	if score >= thr {
		return Decision{Accept: true, Reason: ReasonScore, Score: score, Threshold: thr}
	}
	if ap.explore != nil && ap.explore.Float64() < ap.profile.ExploreProbability {
		return Decision{Accept: true, Reason: ReasonExplore, Score: score, Threshold: thr}
	}
	return Decision{Accept: false, Reason: ReasonBelowThreshold, Score: score, Threshold: thr}
}

// Plan returns the supply plan in force for s, or nil when planning is
// disabled or infeasible.
func (ap *AdaptivePolicy) Plan(s *RunState) *SupplyPlan {
	return ap.planner.current(s)
}

// deficitShortcut accepts contributors outright. With DeficitCriticality set
// and no supply plan having cleared the candidate, it takes only contributors
// that are critical or that leave every other open constraint enough
// projected supply.
func (ap *AdaptivePolicy) deficitShortcut(c Candidate, s *RunState, planned bool) bool {
	if !Contributes(c, s) {
		return false
	}
	if ap.profile.DeficitCriticality <= 0 || planned {
		return true
	}
	return Criticality(c, s) > ap.profile.DeficitCriticality || !Endangers(c, s, ap.z)
}

// current returns the cached plan, re-solving it when the open constraints
// change, after enough admissions, or after enough observations.
func (sp *supplyPlanner) current(s *RunState) *SupplyPlan {
	if sp == nil {
		return nil
	}
	open := s.OpenSignature()
	moved := s.AdmittedTotal - sp.admitted
	if moved < 0 {
		moved = -moved
	}
	stale := !sp.solved || open != sp.open ||
		moved >= max(1, s.Remaining()/planRefreshDivisor) ||
		s.Estimator.TotalObserved-sp.observed >= planObserveInterval
	if !stale {
		return sp.plan
	}
	plan, err := SolveSupplyPlan(s, sp.margin)
	if err != nil {
		logrus.Debugf("supply plan: %v; deciding without one", err)
	}
	sp.plan, sp.solved, sp.open = plan, true, open
	sp.admitted, sp.observed = s.AdmittedTotal, s.Estimator.TotalObserved
	return sp.plan
}
