package sim

// DecisionHistory is a bounded ring of the most recent accept/reject outcomes.
// Not thread-safe; owned by RunState.
type DecisionHistory struct {
	window   []bool // true = rejected
	next     int
	size     int
	rejected int
}

// NewDecisionHistory creates a history that remembers the last capacity decisions.
// Panics if capacity < 1.
func NewDecisionHistory(capacity int) *DecisionHistory {
	if capacity < 1 {
		panic("decision history capacity must be at least 1")
	}
	return &DecisionHistory{window: make([]bool, capacity)}
}

// Record appends one decision, evicting the oldest once full.
func (h *DecisionHistory) Record(accepted bool) {
	rejected := !accepted
	if h.size == len(h.window) {
		if h.window[h.next] {
			h.rejected--
		}
	} else {
		h.size++
	}
	h.window[h.next] = rejected
	if rejected {
		h.rejected++
	}
	h.next = (h.next + 1) % len(h.window)
}

// Len returns the number of decisions currently remembered.
func (h *DecisionHistory) Len() int { return h.size }

// Cap returns the window size.
func (h *DecisionHistory) Cap() int { return len(h.window) }

// Full reports whether the window has seen at least Cap() decisions.
func (h *DecisionHistory) Full() bool { return h.size == len(h.window) }

// RejectionRate returns the fraction of remembered decisions that were rejections.
// Returns 0 for an empty history.
func (h *DecisionHistory) RejectionRate() float64 {
	if h.size == 0 {
		return 0
	}
	return float64(h.rejected) / float64(h.size)
}

// Outcomes returns remembered decisions oldest first (true = accepted).
func (h *DecisionHistory) Outcomes() []bool {
	out := make([]bool, 0, h.size)
	start := h.next - h.size
	if start < 0 {
		start += len(h.window)
	}
	for i := 0; i < h.size; i++ {
		out = append(out, !h.window[(start+i)%len(h.window)])
	}
	return out
}
