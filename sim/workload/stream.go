package workload

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// shrinkSteps bounds how often the latent correlation matrix is pulled toward
// the identity before giving up on a Cholesky factorization.
const shrinkSteps = 20

// Stream draws candidates from a Gaussian copula: a latent vector
// z ~ N(0, Σ) is sampled and attribute i is present when z_i falls below the
// standard normal quantile of its frequency. Marginals are exact; pairwise
// co-occurrence follows the sign and rough strength of Σ.
//
// Not thread-safe.
type Stream struct {
	names      []string
	thresholds []float64
	lower      *mat.TriDense
	rng        *rand.Rand
	next       int

	latent *mat.VecDense
	noise  *mat.VecDense
}

// NewStream builds a stream for spec, drawing from rng.
// Correlations are symmetrised (the mean of both directions); if the
// resulting matrix is not positive definite its off-diagonal entries are
// shrunk until it is.
func NewStream(spec *StreamSpec, rng *rand.Rand) (*Stream, error) {
	names := spec.Attributes()
	n := len(names)
	if n == 0 {
		return nil, fmt.Errorf("stream needs at least one attribute")
	}

	thresholds := make([]float64, n)
	for i, a := range names {
		thresholds[i] = quantile(spec.Frequencies[a])
	}

	corr := make([]float64, n*n)
	for i, a1 := range names {
		for j, a2 := range names {
			if i == j {
				corr[i*n+j] = 1
				continue
			}
			corr[i*n+j] = (spec.Correlations[a1][a2] + spec.Correlations[a2][a1]) / 2
		}
	}
	lower, err := factorize(n, corr)
	if err != nil {
		return nil, err
	}
	return &Stream{
		names:      names,
		thresholds: thresholds,
		lower:      lower,
		rng:        rng,
		latent:     mat.NewVecDense(n, nil),
		noise:      mat.NewVecDense(n, nil),
	}, nil
}

// Attributes returns the attribute names in the order of Stream.Next vectors.
func (s *Stream) Attributes() []string { return s.names }

// Next draws the next candidate. It returns the arrival index and the
// attribute map.
func (s *Stream) Next() (int, map[string]bool) {
	for i := range s.names {
		s.noise.SetVec(i, s.rng.NormFloat64())
	}
	s.latent.MulVec(s.lower, s.noise)
	attrs := make(map[string]bool, len(s.names))
	for i, a := range s.names {
		attrs[a] = s.latent.AtVec(i) < s.thresholds[i]
	}
	idx := s.next
	s.next++
	return idx, attrs
}

// Drawn returns how many candidates the stream has produced.
func (s *Stream) Drawn() int { return s.next }

func quantile(p float64) float64 {
	switch {
	case p <= 0:
		return math.Inf(-1)
	case p >= 1:
		return math.Inf(1)
	}
	return distuv.UnitNormal.Quantile(p)
}

// factorize returns the lower Cholesky factor of the correlation matrix,
// shrinking off-diagonals toward zero until it is positive definite.
func factorize(n int, corr []float64) (*mat.TriDense, error) {
	data := make([]float64, len(corr))
	for step := 0; step <= shrinkSteps; step++ {
		scale := 1 - float64(step)/shrinkSteps
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					data[i*n+j] = 1
				} else {
					data[i*n+j] = corr[i*n+j] * scale
				}
			}
		}
		var chol mat.Cholesky
		if chol.Factorize(mat.NewSymDense(n, data)) {
			var lower mat.TriDense
			chol.LTo(&lower)
			return &lower, nil
		}
	}
	return nil, fmt.Errorf("correlation matrix could not be made positive definite")
}
