package sim

import (
	"fmt"
	"maps"
)

// Snapshot is the serializable form of a RunState. It carries everything
// needed to resume a run: counts, estimator tallies, both rolling windows and
// the dual prices. Frequencies are recomputed on restore.
type Snapshot struct {
	Capacity    int      `json:"capacity"`
	Attributes  []string `json:"attributes"`
	Minimums    []int    `json:"minimums"`
	Constrained []bool   `json:"constrained"`

	AdmittedCounts []int `json:"admitted_counts"`
	AdmittedTotal  int   `json:"admitted_total"`
	RejectedTotal  int   `json:"rejected_total"`

	Prior         []float64   `json:"prior"`
	PriorStrength float64     `json:"prior_strength"`
	ObservedCount []int       `json:"observed_count"`
	TotalObserved int         `json:"total_observed"`
	Correlation   [][]float64 `json:"correlation"`

	HistoryWindow  int      `json:"history_window"`
	History        []bool   `json:"history"` // oldest first, true = accepted
	RecencyWindow  int      `json:"recency_window"`
	RecentAccepted [][]bool `json:"recent_accepted"`

	DualPrices []float64 `json:"dual_prices"`

	TypeCounts map[uint64]int `json:"type_counts,omitempty"`
}

// Snapshot copies the state into its serializable form.
func (s *RunState) Snapshot() Snapshot {
	e := s.Estimator
	return Snapshot{
		Capacity:       s.Capacity,
		Attributes:     s.Attributes.Names(),
		Minimums:       append([]int(nil), s.Minimums...),
		Constrained:    append([]bool(nil), s.Constrained...),
		AdmittedCounts: append([]int(nil), s.AdmittedCounts...),
		AdmittedTotal:  s.AdmittedTotal,
		RejectedTotal:  s.RejectedTotal,
		Prior:          append([]float64(nil), e.Prior...),
		PriorStrength:  e.priorStrength,
		ObservedCount:  append([]int(nil), e.ObservedCount...),
		TotalObserved:  e.TotalObserved,
		Correlation:    copyMatrix(s.Correlation),
		HistoryWindow:  s.History.Cap(),
		History:        s.History.Outcomes(),
		RecencyWindow:  len(e.recent.rows),
		RecentAccepted: e.recent.snapshot(),
		DualPrices:     append([]float64(nil), s.DualPrices...),
		TypeCounts:     maps.Clone(s.TypeCounts),
	}
}

// RestoreRunState rebuilds a RunState from a snapshot, validating that every
// per-attribute slice matches the attribute count.
func RestoreRunState(snap Snapshot) (*RunState, error) {
	if snap.Capacity <= 0 {
		return nil, fmt.Errorf("snapshot capacity must be positive, got %d", snap.Capacity)
	}
	attrs, err := NewAttributeSet(snap.Attributes...)
	if err != nil {
		return nil, fmt.Errorf("snapshot attributes: %w", err)
	}
	n := attrs.Len()
	if n != len(snap.Attributes) {
		return nil, fmt.Errorf("snapshot attributes contain duplicates")
	}
	for i, name := range snap.Attributes {
		if attrs.Name(i) != name {
			return nil, fmt.Errorf("snapshot attributes not in sorted order")
		}
	}
	lengths := map[string]int{
		"minimums":        len(snap.Minimums),
		"constrained":     len(snap.Constrained),
		"admitted_counts": len(snap.AdmittedCounts),
		"prior":           len(snap.Prior),
		"observed_count":  len(snap.ObservedCount),
		"correlation":     len(snap.Correlation),
		"dual_prices":     len(snap.DualPrices),
	}
	for field, l := range lengths {
		if l != n {
			return nil, fmt.Errorf("snapshot %s has %d entries, want %d", field, l, n)
		}
	}
	for i, row := range snap.Correlation {
		if len(row) != n {
			return nil, fmt.Errorf("snapshot correlation row %d has %d entries, want %d", i, len(row), n)
		}
	}
	if snap.AdmittedTotal < 0 || snap.AdmittedTotal > snap.Capacity {
		return nil, fmt.Errorf("snapshot admitted total %d outside [0, %d]", snap.AdmittedTotal, snap.Capacity)
	}
	if snap.RejectedTotal < 0 || snap.TotalObserved < 0 {
		return nil, fmt.Errorf("snapshot totals must be non-negative, got rejected=%d observed=%d", snap.RejectedTotal, snap.TotalObserved)
	}
	for i, name := range snap.Attributes {
		if m := snap.Minimums[i]; m < 0 || m > snap.Capacity {
			return nil, fmt.Errorf("snapshot minimum of %s is %d, outside [0, %d]", name, m, snap.Capacity)
		}
		if c := snap.AdmittedCounts[i]; c < 0 || c > snap.AdmittedTotal {
			return nil, fmt.Errorf("snapshot admitted count of %s is %d, outside [0, %d]", name, c, snap.AdmittedTotal)
		}
		if c := snap.ObservedCount[i]; c < 0 || c > snap.TotalObserved {
			return nil, fmt.Errorf("snapshot observed count of %s is %d, outside [0, %d]", name, c, snap.TotalObserved)
		}
	}
	typeCounts := newTypeCounts(snap.Constrained)
	if typeCounts != nil {
		limit := uint64(1) << len(constrainedIDs(snap.Constrained))
		seen := 0
		for sig, c := range snap.TypeCounts {
			if sig >= limit || c < 0 {
				return nil, fmt.Errorf("snapshot type count %d for signature %b is invalid", c, sig)
			}
			seen += c
			typeCounts[sig] = c
		}
		if seen > snap.TotalObserved {
			return nil, fmt.Errorf("snapshot type counts sum to %d, more than %d observed", seen, snap.TotalObserved)
		}
	}
	if snap.HistoryWindow < 1 {
		return nil, fmt.Errorf("snapshot history window must be at least 1, got %d", snap.HistoryWindow)
	}
	if snap.RecencyWindow < 0 {
		return nil, fmt.Errorf("snapshot recency window must be non-negative, got %d", snap.RecencyWindow)
	}

	est := NewEstimator(snap.Prior, snap.PriorStrength, snap.RecencyWindow)
	copy(est.ObservedCount, snap.ObservedCount)
	est.TotalObserved = snap.TotalObserved
	est.Refresh()
	for _, row := range tail(snap.RecentAccepted, snap.RecencyWindow) {
		if len(row) != n {
			return nil, fmt.Errorf("snapshot recent_accepted row has %d entries, want %d", len(row), n)
		}
		est.RecordAccepted(Candidate{Has: row})
	}

	hist := NewDecisionHistory(snap.HistoryWindow)
	for _, accepted := range tail(snap.History, snap.HistoryWindow) {
		hist.Record(accepted)
	}

	return &RunState{
		Capacity:       snap.Capacity,
		Attributes:     attrs,
		Minimums:       append([]int(nil), snap.Minimums...),
		Constrained:    append([]bool(nil), snap.Constrained...),
		AdmittedCounts: append([]int(nil), snap.AdmittedCounts...),
		AdmittedTotal:  snap.AdmittedTotal,
		RejectedTotal:  snap.RejectedTotal,
		Estimator:      est,
		Correlation:    copyMatrix(snap.Correlation),
		History:        hist,
		DualPrices:     append([]float64(nil), snap.DualPrices...),
		TypeCounts:     typeCounts,
	}, nil
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// tail returns the last n elements of xs.
func tail[T any](xs []T, n int) []T {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
