package sim

// feedbackMode is the controller's current reaction to the recent rejection rate.
type feedbackMode int

const (
	feedbackNeutral feedbackMode = iota
	feedbackLoosen
	feedbackLoosenMild
	feedbackTighten
)

// ThresholdController computes the acceptance cutoff for scored candidates.
//
// base = BaseStart * (1 - admitted/capacity) relaxes as the venue fills;
// pressure adds the shortfall rate of the most behind-schedule constraint.
// Once a full window of decisions is available, a high rejection rate scales
// base down and a low one (under pressure) scales it up. With hysteresis > 0
// the controller keeps its current mode until the rate moves back across the
// band edge by that margin.
type ThresholdController struct {
	baseStart float64
	feedback  FeedbackConfig
	mode      feedbackMode
}

// NewThresholdController creates a controller from a profile.
func NewThresholdController(p Profile) *ThresholdController {
	return &ThresholdController{baseStart: p.BaseStart, feedback: p.Feedback}
}

// Pressure returns max(0, max_a(min[a]/capacity - count[a]/max(1, admitted))).
func Pressure(s *RunState) float64 {
	worst := 0.0
	admitted := float64(max(1, s.AdmittedTotal))
	for id := range s.Minimums {
		if !s.Constrained[id] {
			continue
		}
		required := float64(s.Minimums[id]) / float64(s.Capacity)
		current := float64(s.AdmittedCounts[id]) / admitted
		worst = max(worst, required-current)
	}
	return worst
}

// Threshold returns the cutoff for the current state and advances the
// feedback mode.
func (tc *ThresholdController) Threshold(s *RunState) float64 {
	progress := float64(s.AdmittedTotal) / float64(s.Capacity)
	base := tc.baseStart * (1 - progress)
	pressure := Pressure(s)

	tc.mode = tc.nextMode(s.History, pressure)
	switch tc.mode {
	case feedbackLoosen:
		base *= tc.feedback.HighFactor
	case feedbackLoosenMild:
		base *= tc.feedback.MidFactor
	case feedbackTighten:
		base *= tc.feedback.LowFactor
	}
	return base + pressure
}

func (tc *ThresholdController) nextMode(h *DecisionHistory, pressure float64) feedbackMode {
	if h == nil || !h.Full() {
		return feedbackNeutral
	}
	f := tc.feedback
	rate := h.RejectionRate()
	switch {
	case rate > f.High || (tc.mode == feedbackLoosen && rate > f.High-f.Hysteresis):
		return feedbackLoosen
	case rate > f.Mid || (tc.mode == feedbackLoosenMild && rate > f.Mid-f.Hysteresis):
		return feedbackLoosenMild
	case pressure > f.PressureGate &&
		(rate < f.Low || (tc.mode == feedbackTighten && rate < f.Low+f.Hysteresis)):
		return feedbackTighten
	default:
		return feedbackNeutral
	}
}
