package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdmissionPolicy_Names(t *testing.T) {
	assert.Equal(t, []string{"adaptive", "dual", "greedy"}, ValidAdmissionPolicyNames())
	for _, name := range ValidAdmissionPolicyNames() {
		t.Run(name, func(t *testing.T) {
			p := DefaultProfile()
			p.Policy = name
			assert.NotNil(t, NewAdmissionPolicy(p, nil))
		})
	}
	p := DefaultProfile()
	p.Policy = "fifo"
	assert.Panics(t, func() { NewAdmissionPolicy(p, nil) })
}

// TestPolicies_GuardDominates verifies no policy can override a forced outcome.
func TestPolicies_GuardDominates(t *testing.T) {
	for _, name := range ValidAdmissionPolicyNames() {
		t.Run(name, func(t *testing.T) {
			p := DefaultProfile()
			p.Policy = name
			// GIVEN R=5 and a still needing 5
			s := newTestStateWithProfile(t, 10, map[string]int{"a": 5}, nil, p)
			admitN(t, s, 5)
			pol := NewAdmissionPolicy(p, nil)

			// THEN carriers are accepted and everyone else is rejected
			d := pol.Decide(cand(t, s, "a"), s)
			assert.True(t, d.Accept)
			assert.Equal(t, ReasonForcedAccept, d.Reason)

			d = pol.Decide(cand(t, s), s)
			assert.False(t, d.Accept)
			assert.Equal(t, ReasonForcedReject, d.Reason)
		})
	}
}

func TestPolicies_AcceptAllOnceSatisfied(t *testing.T) {
	for _, name := range ValidAdmissionPolicyNames() {
		t.Run(name, func(t *testing.T) {
			p := DefaultProfile()
			p.Policy = name
			s := newTestStateWithProfile(t, 100, map[string]int{"a": 3}, nil, p)
			admitN(t, s, 3, "a")
			d := NewAdmissionPolicy(p, nil).Decide(cand(t, s), s)
			assert.True(t, d.Accept)
			assert.Equal(t, ReasonSatisfied, d.Reason)
		})
	}
}

func TestPolicies_RejectWhenFull(t *testing.T) {
	for _, name := range ValidAdmissionPolicyNames() {
		t.Run(name, func(t *testing.T) {
			p := DefaultProfile()
			p.Policy = name
			s := newTestStateWithProfile(t, 2, nil, nil, p)
			admitN(t, s, 2)
			d := NewAdmissionPolicy(p, nil).Decide(cand(t, s), s)
			assert.False(t, d.Accept)
			assert.Equal(t, ReasonVenueFull, d.Reason)
		})
	}
}

func TestAdaptivePolicy_DeficitFirst(t *testing.T) {
	s := newTestState(t, 1000, map[string]int{"a": 100}, map[string]float64{"a": 0.5})
	pol := NewAdaptivePolicy(DefaultProfile(), nil)

	d := pol.Decide(cand(t, s, "a"), s)
	assert.True(t, d.Accept)
	assert.Equal(t, ReasonDeficit, d.Reason)
}

func TestAdaptivePolicy_CriticalityGatesDeficitShortcut(t *testing.T) {
	p := DefaultProfile()
	p.DeficitCriticality = 0.5
	p.BufferMultiplier = 0

	t.Run("plentiful contributor that endangers another constraint is scored", func(t *testing.T) {
		// GIVEN a's criticality is 100/(1000*0.5) = 0.2 and b needs 900 while
		// only about 500 of the remaining arrivals will carry it
		s := newTestStateWithProfile(t, 1000, map[string]int{"a": 100, "b": 900}, map[string]float64{"a": 0.5, "b": 0.5}, p)

		d := NewAdaptivePolicy(p, nil).Decide(cand(t, s, "a"), s)
		assert.Equal(t, ReasonBelowThreshold, d.Reason)
		assert.False(t, d.Accept)
		assert.Less(t, d.Score, d.Threshold)
	})

	t.Run("plentiful contributor endangering nothing passes", func(t *testing.T) {
		s := newTestStateWithProfile(t, 1000, map[string]int{"a": 100}, map[string]float64{"a": 0.5}, p)

		d := NewAdaptivePolicy(p, nil).Decide(cand(t, s, "a"), s)
		assert.True(t, d.Accept)
		assert.Equal(t, ReasonDeficit, d.Reason)
	})

	t.Run("scarce contributor passes", func(t *testing.T) {
		s := newTestStateWithProfile(t, 1000, map[string]int{"a": 100, "b": 900}, map[string]float64{"a": 0.1, "b": 0.5}, p)

		d := NewAdaptivePolicy(p, nil).Decide(cand(t, s, "a"), s)
		assert.True(t, d.Accept)
		assert.Equal(t, ReasonDeficit, d.Reason)
	})
}

func TestAdaptivePolicy_SupplyPlanGatesDeficitShortcut(t *testing.T) {
	// GIVEN a and b each need 70 of 100 seats: the plan refuses carriers of
	// neither and always takes carriers of both
	p := DefaultProfile()
	p.BufferMultiplier = 0
	p.SupplyPlan = true
	p.PlanMargin = 0
	s := newTestStateWithProfile(t, 100, map[string]int{"a": 70, "b": 70}, map[string]float64{"a": 0.5, "b": 0.5, "c": 0.5}, p)
	pol := NewAdaptivePolicy(p, NewPartitionedRNG(1))

	d := pol.Decide(cand(t, s, "c"), s)
	assert.False(t, d.Accept)
	assert.Equal(t, ReasonSupplyPlan, d.Reason)

	d = pol.Decide(cand(t, s, "a", "b"), s)
	assert.True(t, d.Accept)
	assert.Equal(t, ReasonDeficit, d.Reason)

	plan := pol.Plan(s)
	require.NotNil(t, plan)
	assert.InDelta(t, 0.75, plan.AdmitRate(s.Signature(cand(t, s, "a"))), 1e-6)
}

func TestAdaptivePolicy_SupplyPlanOverridesCriticalityGate(t *testing.T) {
	// GIVEN the same plentiful contributor the criticality gate would score
	p := DefaultProfile()
	p.BufferMultiplier = 0
	p.DeficitCriticality = 0.5
	p.SupplyPlan = true
	s := newTestStateWithProfile(t, 1000, map[string]int{"a": 100, "b": 900}, map[string]float64{"a": 0.5, "b": 0.5}, p)
	pol := NewAdaptivePolicy(p, NewPartitionedRNG(1))

	// THEN a carrier of both, which the plan always admits, skips the gate
	d := pol.Decide(cand(t, s, "a", "b"), s)
	assert.True(t, d.Accept)
	assert.Equal(t, ReasonDeficit, d.Reason)
}

// TestAdaptivePolicy_GatedRunKeepsAdmitting replays a stream where needs end
// up small next to R*freq, so contributors stop looking critical. The run
// must still fill the venue rather than reject everyone until the cap.
func TestAdaptivePolicy_GatedRunKeepsAdmitting(t *testing.T) {
	freqs := map[string]float64{"a": 0.3, "b": 0.2, "c": 0.6}
	minimums := map[string]int{"a": 300, "b": 200, "c": 600}
	base, _ := BuiltinProfile("scenario-3")
	withoutPlan := base
	withoutPlan.SupplyPlan = false

	for name, p := range map[string]Profile{"scenario-3": base, "criticality gate only": withoutPlan} {
		t.Run(name, func(t *testing.T) {
			s := newTestStateWithProfile(t, 1000, minimums, freqs, p)
			pol := NewAdaptivePolicy(p, NewPartitionedRNG(1))
			rng := rand.New(rand.NewSource(1))

			conflicted := false
			for i := 0; !s.Full() && i < 200000; i++ {
				c := randomCandidate(rng, s, freqs, i)
				s.Observe(c)
				d := pol.Decide(c, s)
				require.NoError(t, s.Apply(c, d.Accept))
				conflicted = conflicted || d.Reason == ReasonForcedConflict
			}

			require.True(t, s.Full(), "admitted %d, needs %v after %d rejections", s.AdmittedTotal, s.Needs(), s.RejectedTotal)
			assert.Less(t, s.RejectedTotal, 20000)
			if !conflicted {
				assert.True(t, s.AllSatisfied(), "needs %v", s.Needs())
			}
		})
	}
}

func TestAdaptivePolicy_ScoreAgainstThreshold(t *testing.T) {
	// GIVEN a non-contributing candidate early in the run
	p := DefaultProfile()
	s := newTestStateWithProfile(t, 1000, map[string]int{"a": 100}, map[string]float64{"a": 0.5, "b": 0.5}, p)
	pol := NewAdaptivePolicy(p, nil)

	// THEN it is scored (negative: it takes a seat from a) and rejected
	d := pol.Decide(cand(t, s, "b"), s)
	assert.False(t, d.Accept)
	assert.Equal(t, ReasonBelowThreshold, d.Reason)
	assert.Less(t, d.Score, d.Threshold)
}

func TestAdaptivePolicy_Endgame(t *testing.T) {
	p := DefaultProfile()
	p.EndgameWindow = 50

	t.Run("infeasible projection rejects", func(t *testing.T) {
		// R=40, a needs 30 at frequency 0.5: expected supply 19.5 is short
		s := newTestStateWithProfile(t, 100, map[string]int{"a": 30}, map[string]float64{"a": 0.5, "b": 0.5}, p)
		admitN(t, s, 60, "b")
		d := NewAdaptivePolicy(p, nil).Decide(cand(t, s, "b"), s)
		assert.False(t, d.Accept)
		assert.Equal(t, ReasonEndgameInfeasible, d.Reason)
	})

	t.Run("feasible but no value rejects", func(t *testing.T) {
		// R=40, a needs 10 at frequency 0.5: supply 19.5 covers it
		s := newTestStateWithProfile(t, 100, map[string]int{"a": 30}, map[string]float64{"a": 0.5, "b": 0.5}, p)
		admitN(t, s, 20, "a")
		admitN(t, s, 40, "b")
		d := NewAdaptivePolicy(p, nil).Decide(cand(t, s, "b"), s)
		assert.False(t, d.Accept)
		assert.Equal(t, ReasonEndgameNoValue, d.Reason)
		assert.LessOrEqual(t, d.Score, 0.0)
	})
}

func TestAdaptivePolicy_ExploreIsDeterministic(t *testing.T) {
	p := DefaultProfile()
	p.ExploreProbability = 0.5
	decide := func() []bool {
		s := newTestStateWithProfile(t, 1000, map[string]int{"a": 100}, map[string]float64{"a": 0.5, "b": 0.5}, p)
		pol := NewAdaptivePolicy(p, NewPartitionedRNG(7))
		out := make([]bool, 50)
		for i := range out {
			out[i] = pol.Decide(cand(t, s, "b"), s).Accept
		}
		return out
	}
	first := decide()
	assert.Equal(t, first, decide())
	assert.Contains(t, first, true)
	assert.Contains(t, first, false)
}

func TestGreedyPolicy(t *testing.T) {
	s := newTestState(t, 100, map[string]int{"a": 10}, map[string]float64{"a": 0.1, "b": 0.9})
	g := &GreedyPolicy{}

	assert.Equal(t, Decision{Accept: true, Reason: ReasonDeficit}, g.Decide(cand(t, s, "a"), s))
	assert.Equal(t, Decision{Accept: false, Reason: ReasonNoContribution}, g.Decide(cand(t, s, "b"), s))
}

func TestDualPolicy_PricesRiseForLaggingAttribute(t *testing.T) {
	// GIVEN a dual policy with zero tolerance and starting prices at zero
	p := DefaultProfile()
	p.Policy = "dual"
	p.DualStep = 0.1
	s := newTestStateWithProfile(t, 100, map[string]int{"a": 40}, map[string]float64{"a": 0.4, "b": 0.6}, p)
	dp := NewDualPolicy(p)
	a, _ := s.Attributes.ID("a")

	// WHEN a zero-cost non-carrier is accepted
	c := cand(t, s, "b")
	d := dp.Decide(c, s)
	require.True(t, d.Accept)
	assert.Equal(t, ReasonDualPrice, d.Reason)
	require.NoError(t, s.Apply(c, true))
	dp.Commit(c, s, d)

	// THEN a's price rises by step * target rate and the next non-carrier costs more than τ
	assert.InDelta(t, 0.04, s.DualPrices[a], 1e-12)
	assert.InDelta(t, 0.04*0.4, dp.Cost(c, s), 1e-12)
	assert.False(t, dp.Decide(c, s).Accept)

	// AND an accepted carrier pushes the price back down, floored at 0
	carrier := cand(t, s, "a")
	dp.Commit(carrier, s, Decision{Accept: true})
	assert.Equal(t, 0.0, s.DualPrices[a])

	// rejects leave prices unchanged
	s.DualPrices[a] = 0.3
	dp.Commit(c, s, Decision{Accept: false})
	assert.Equal(t, 0.3, s.DualPrices[a])
}
