package sim

// EndgameFeasible is the expectation-based second line of defence used when
// few slots remain. For every constrained attribute it projects
// count + has + supply(R-1) and fails if any projection falls short of the
// minimum. z > 0 replaces the expected supply with a lower confidence bound.
func EndgameFeasible(c Candidate, s *RunState, z float64) bool {
	slots := s.Remaining() - 1
	for id := range s.Minimums {
		if !s.Constrained[id] {
			continue
		}
		cur := float64(s.AdmittedCounts[id])
		if c.has(id) {
			cur++
		}
		if cur+ProjectedSupply(s, id, slots, z) < float64(s.Minimums[id]) {
			return false
		}
	}
	return true
}

// ExpectedValue is the marginal value of admitting the candidate now:
// direct contribution (sum of 1/need over deficits it reduces) minus the
// opportunity cost of the seat (sum of (1-freq)*need/R over deficits it does
// not reduce), plus half the lookahead correlation term.
func ExpectedValue(c Candidate, s *RunState, depth float64) float64 {
	r := float64(max(1, s.Remaining()))
	direct, opportunity := 0.0, 0.0
	for id := range s.Minimums {
		need := s.Need(id)
		if need == 0 {
			continue
		}
		if c.has(id) {
			direct += 1 / float64(need)
		} else {
			opportunity += (1 - s.Frequency(id)) * float64(need) / r
		}
	}
	return direct - opportunity + 0.5*LookaheadScore(c, s, depth)
}
