package sim

import (
	"fmt"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	// minTypeMass drops candidate types too rare to matter from the program.
	minTypeMass = 1e-6
	// planPerturbation separates the share rows of the program so the simplex
	// never starts from a degenerate vertex.
	planPerturbation = 1e-9
	planTolerance    = 1e-10
	// minPlanRate is the admission rate below which a plan counts as infeasible.
	minPlanRate = 1e-9
)

// SupplyPlan is the statistical half of the feasibility guard. It assigns an
// admission rate to every candidate type (the set of open constraints a
// candidate carries) so that, if arrivals keep their estimated type mix, each
// open minimum gets at least its share of the remaining seats:
//
//	share[a] = min(1, (need[a] + margin*sqrt(need[a])) / R)
//
// Among the rate vectors meeting every share it picks the one admitting the
// most arrivals, which minimizes the expected rejections to fill the venue.
type SupplyPlan struct {
	open  uint64
	rates map[uint64]float64
	// Rate is the expected share of arrivals admitted under the plan.
	Rate float64
	// Margin is the safety margin the plan was solved with.
	Margin float64
}

type planType struct {
	sig  uint64
	mass float64
}

// SolveSupplyPlan plans admission rates for the current state. When the shares
// cannot be met with the given margin it retries without one; it returns nil
// when even that is infeasible or there is nothing left to plan.
func SolveSupplyPlan(s *RunState, margin float64) (*SupplyPlan, error) {
	if s.TypeCounts == nil || s.Remaining() <= 0 {
		return nil, nil
	}
	open := s.OpenSignature()
	if open == 0 {
		return nil, nil
	}
	types := typeMasses(s, open)
	if len(types) == 0 {
		return nil, nil
	}
	for _, m := range []float64{margin, 0} {
		plan, err := solvePlan(s, open, types, m)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			return plan, nil
		}
		if m == 0 {
			break
		}
	}
	return nil, nil
}

// AdmitRate returns the planned admission probability for a candidate with
// the given Signature. A type absent from the plan gets the best rate of any
// planned type whose attributes it carries, since carrying more needed
// attributes never hurts a share.
func (p *SupplyPlan) AdmitRate(sig uint64) float64 {
	key := sig & p.open
	if r, ok := p.rates[key]; ok {
		return r
	}
	best := 0.0
	for t, r := range p.rates {
		if t&^key == 0 {
			best = math.Max(best, r)
		}
	}
	return best
}

// typeMasses estimates the arrival probability of every type over the open
// constraints, blending the independent prior with observed type counts the
// same way the estimator blends marginals.
func typeMasses(s *RunState, open uint64) []planType {
	ids := s.ConstrainedIDs()
	observed := make(map[uint64]int)
	total := 0
	for sig, n := range s.TypeCounts {
		observed[sig&open] += n
		total += n
	}
	w := 1.0
	if total > 0 {
		w = math.Min(maxPriorWeight, s.Estimator.priorStrength/float64(total))
	}

	var types []planType
	for sig := uint64(0); sig <= open; sig++ {
		if sig&^open != 0 {
			continue
		}
		prior := 1.0
		for j, id := range ids {
			if open&(1<<j) == 0 {
				continue
			}
			p := s.Estimator.Prior[id]
			if sig&(1<<j) == 0 {
				p = 1 - p
			}
			prior *= p
		}
		mass := w * prior
		if total > 0 {
			mass += (1 - w) * float64(observed[sig]) / float64(total)
		}
		if mass >= minTypeMass {
			types = append(types, planType{sig: sig, mass: mass})
		}
	}
	return types
}

// solvePlan solves, in standard form,
//
//	maximize   Σ_t mass[t] x[t]
//	subject to Σ_t mass[t] (has[t][a] - share[a]) x[t] >= 0   for every open a
//	           0 <= x[t] <= 1
//
// with one slack per bound row and one surplus per share row. x = 0 is always
// feasible, so the slacks and surpluses form the starting basis. A nil plan
// means the optimum admits nobody.
func solvePlan(s *RunState, open uint64, types []planType, margin float64) (*SupplyPlan, error) {
	ids := s.ConstrainedIDs()
	var rows []int // bit positions of the open constraints
	shares := make([]float64, 0, bits.OnesCount64(open))
	r := float64(s.Remaining())
	for j, id := range ids {
		if open&(1<<j) == 0 {
			continue
		}
		need := float64(s.Need(id))
		rows = append(rows, j)
		shares = append(shares, math.Min(1, (need+margin*math.Sqrt(need))/r))
	}

	n, m := len(types), len(rows)
	a := mat.NewDense(n+m, 2*n+m, nil)
	b := make([]float64, n+m)
	c := make([]float64, 2*n+m)
	basic := make([]int, 0, n+m)
	for i, t := range types {
		a.Set(i, i, 1)
		a.Set(i, n+i, 1)
		b[i] = 1
		c[i] = -t.mass
		basic = append(basic, n+i)
		for k, j := range rows {
			has := 0.0
			if t.sig&(1<<j) != 0 {
				has = 1
			}
			a.Set(n+k, i, t.mass*(has-shares[k]))
		}
	}
	for k := range rows {
		a.Set(n+k, 2*n+k, -1)
		b[n+k] = -planPerturbation * float64(k+1)
		basic = append(basic, 2*n+k)
	}

	_, x, err := lp.Simplex(c, a, b, planTolerance, basic)
	if x == nil {
		return nil, fmt.Errorf("solving supply plan: %w", err)
	}
	// A numerical stop still leaves x at the last feasible vertex.
	plan := &SupplyPlan{open: open, rates: make(map[uint64]float64, n), Margin: margin}
	for i, t := range types {
		rate := math.Max(0, math.Min(1, x[i]))
		plan.rates[t.sig] = rate
		plan.Rate += t.mass * rate
	}
	if plan.Rate < minPlanRate {
		return nil, nil
	}
	return plan, nil
}
