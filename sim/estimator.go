package sim

import "math"

// maxPriorWeight caps the prior's share of the blend, so observation always
// carries at least 10% from the first candidate on.
const maxPriorWeight = 0.9

// Estimator maintains online attribute frequency estimates, blending a prior
// with the observed rate of every candidate seen (admitted or not).
//
// It also owns the recency window of accepted candidates, which is purely
// diagnostic and never feeds back into Frequency.
type Estimator struct {
	Prior         []float64
	Frequency     []float64
	ObservedCount []int
	TotalObserved int

	priorStrength float64
	recent        *acceptedWindow
}

// NewEstimator creates an estimator from per-attribute priors.
// priorStrength is k0; recency is the size of the accepted-candidate window (0 disables it).
func NewEstimator(prior []float64, priorStrength float64, recency int) *Estimator {
	p := make([]float64, len(prior))
	for i, v := range prior {
		p[i] = clamp01(v)
	}
	freq := make([]float64, len(p))
	copy(freq, p)
	return &Estimator{
		Prior:         p,
		Frequency:     freq,
		ObservedCount: make([]int, len(p)),
		priorStrength: priorStrength,
		recent:        newAcceptedWindow(recency, len(p)),
	}
}

// Observe folds one candidate into the raw tallies. Call Refresh afterwards.
func (e *Estimator) Observe(c Candidate) {
	e.TotalObserved++
	for id := range e.ObservedCount {
		if c.has(id) {
			e.ObservedCount[id]++
		}
	}
}

// PriorWeight returns the current weight of the prior, min(0.9, k0/seen).
func (e *Estimator) PriorWeight() float64 {
	if e.TotalObserved <= 0 {
		return 1
	}
	return math.Min(maxPriorWeight, e.priorStrength/float64(e.TotalObserved))
}

// Refresh recomputes Frequency as a convex blend of prior and observed rate.
// A no-op before the first observation.
func (e *Estimator) Refresh() {
	if e.TotalObserved <= 0 {
		return
	}
	w := e.PriorWeight()
	n := float64(e.TotalObserved)
	for id := range e.Frequency {
		obs := float64(e.ObservedCount[id]) / n
		e.Frequency[id] = clamp01(w*e.Prior[id] + (1-w)*obs)
	}
}

// RecordAccepted pushes an admitted candidate into the recency window.
func (e *Estimator) RecordAccepted(c Candidate) {
	e.recent.push(c)
}

// RecentAcceptedRate returns the share of the recency window carrying attribute id.
// Returns 0 when the window is empty or disabled.
func (e *Estimator) RecentAcceptedRate(id int) float64 {
	return e.recent.rate(id)
}

// acceptedWindow is a bounded ring of accepted candidates' attribute vectors.
type acceptedWindow struct {
	rows   [][]bool
	next   int
	size   int
	counts []int
}

func newAcceptedWindow(capacity, attrs int) *acceptedWindow {
	return &acceptedWindow{rows: make([][]bool, capacity), counts: make([]int, attrs)}
}

func (w *acceptedWindow) push(c Candidate) {
	if len(w.rows) == 0 {
		return
	}
	if w.size == len(w.rows) {
		for id, v := range w.rows[w.next] {
			if v {
				w.counts[id]--
			}
		}
	} else {
		w.size++
	}
	row := make([]bool, len(w.counts))
	for id := range row {
		row[id] = c.has(id)
		if row[id] {
			w.counts[id]++
		}
	}
	w.rows[w.next] = row
	w.next = (w.next + 1) % len(w.rows)
}

func (w *acceptedWindow) rate(id int) float64 {
	if w.size == 0 || id >= len(w.counts) {
		return 0
	}
	return float64(w.counts[id]) / float64(w.size)
}

// snapshot returns the window rows oldest first.
func (w *acceptedWindow) snapshot() [][]bool {
	out := make([][]bool, 0, w.size)
	start := w.next - w.size
	if start < 0 {
		start += len(w.rows)
	}
	for i := 0; i < w.size; i++ {
		row := w.rows[(start+i)%len(w.rows)]
		cp := make([]bool, len(row))
		copy(cp, row)
		out = append(out, cp)
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
