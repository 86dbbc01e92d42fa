package sim

import "math"

// minFrequency floors frequency estimates in ratios so a never-seen
// attribute yields a clipped scarcity instead of +Inf.
const minFrequency = 1e-6

// Scorer computes the scalar desirability of a candidate.
// Score never mutates the state: two calls on the same state and candidate
// return the same value.
type Scorer struct {
	WHelp          float64
	WPenalty       float64
	WCorr          float64
	WLookahead     float64
	LookaheadDepth float64
	WSynergy       float64
	ScarcityGain   float64
	ScarcityClip   float64
}

// NewScorer copies the scoring weights out of a profile.
func NewScorer(p Profile) Scorer {
	return Scorer{
		WHelp:          p.WHelp,
		WPenalty:       p.WPenalty,
		WCorr:          p.WCorr,
		WLookahead:     p.WLookahead,
		LookaheadDepth: p.LookaheadDepth,
		WSynergy:       p.WSynergy,
		ScarcityGain:   p.ScarcityGain,
		ScarcityClip:   p.ScarcityClip,
	}
}

// Urgency is need[id] / max(1, R).
func Urgency(s *RunState, id int) float64 {
	return float64(s.Need(id)) / float64(max(1, s.Remaining()))
}

// Scarcity is need / (R * freq), clipped to [0, clip]. An attribute is scarce
// when its base rate is far below what the remaining slots require.
func Scarcity(s *RunState, id int, clip float64) float64 {
	need := float64(s.Need(id))
	if need == 0 {
		return 0
	}
	r := s.Remaining()
	if r <= 0 {
		return clip
	}
	p := math.Max(minFrequency, s.Frequency(id))
	return math.Min(clip, need/(float64(r)*p))
}

// Score combines direct contribution, scarcity amplification, correlation
// synergy with still-needed attributes, a lookahead correlation term and an
// overlap bonus for candidates carrying two jointly tight attributes.
func (sc Scorer) Score(c Candidate, s *RunState) float64 {
	n := s.Attributes.Len()
	score := 0.0

	for id := 0; id < n; id++ {
		if !s.Constrained[id] {
			continue
		}
		u := Urgency(s, id)
		amp := 1 + sc.ScarcityGain*Scarcity(s, id, sc.ScarcityClip)
		if c.has(id) {
			score += sc.WHelp * u * amp
		} else if s.Need(id) > 0 {
			score -= sc.WPenalty * u * amp
		}
	}

	if sc.WCorr > 0 {
		for a1 := 0; a1 < n; a1++ {
			if !c.has(a1) {
				continue
			}
			for a2 := 0; a2 < n; a2++ {
				if a2 == a1 || s.Need(a2) == 0 {
					continue
				}
				if corr := s.Correlation[a1][a2]; corr > 0 {
					score += sc.WCorr * corr * Urgency(s, a2)
				}
			}
		}
	}

	if sc.WLookahead > 0 {
		score += sc.WLookahead * LookaheadScore(c, s, sc.LookaheadDepth)
	}

	if sc.WSynergy > 0 {
		score += sc.WSynergy * sc.overlapBonus(c, s)
	}
	return score
}

// overlapBonus returns the largest urgency among pairs of needed attributes
// the candidate carries together whose minimums can only both be met through
// overlapping admits.
func (sc Scorer) overlapBonus(c Candidate, s *RunState) float64 {
	best := 0.0
	n := s.Attributes.Len()
	for a := 0; a < n; a++ {
		if !c.has(a) || s.Need(a) == 0 {
			continue
		}
		for b := a + 1; b < n; b++ {
			if !c.has(b) || s.Need(b) == 0 || RequiredOverlap(s, a, b) == 0 {
				continue
			}
			best = math.Max(best, math.Max(Urgency(s, a), Urgency(s, b)))
		}
	}
	return best
}

// LookaheadScore estimates future value from correlations: a candidate whose
// attributes co-occur with still-needed ones predicts more of them arriving.
// Each term is corr * freq[a2] * need[a2]/R, discounted by
// 1/(1 + depth*(1-corr)) so weak correlations count less.
func LookaheadScore(c Candidate, s *RunState, depth float64) float64 {
	r := float64(max(1, s.Remaining()))
	n := s.Attributes.Len()
	score := 0.0
	for a1 := 0; a1 < n; a1++ {
		if !c.has(a1) {
			continue
		}
		for a2 := 0; a2 < n; a2++ {
			if a2 == a1 {
				continue
			}
			corr := s.Correlation[a1][a2]
			need := s.Need(a2)
			if corr <= 0 || need == 0 {
				continue
			}
			discount := 1 / (1 + depth*(1-corr))
			score += corr * s.Frequency(a2) * discount * float64(need) / r
		}
	}
	return score
}

// Contributes reports whether the candidate carries any attribute still in deficit.
func Contributes(c Candidate, s *RunState) bool {
	for id := range s.Minimums {
		if c.has(id) && s.Need(id) > 0 {
			return true
		}
	}
	return false
}

// Criticality is the largest need / max(0.01, R*freq) over the deficits the
// candidate would reduce. Zero when it contributes to none.
func Criticality(c Candidate, s *RunState) float64 {
	r := float64(s.Remaining())
	best := 0.0
	for id := range s.Minimums {
		need := s.Need(id)
		if !c.has(id) || need == 0 {
			continue
		}
		best = math.Max(best, float64(need)/math.Max(0.01, r*s.Frequency(id)))
	}
	return best
}
