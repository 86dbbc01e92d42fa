package trace

// TraceSummary aggregates statistics from a RunTrace.
type TraceSummary struct {
	TotalDecisions     int            `yaml:"total_decisions"`
	AdmittedCount      int            `yaml:"admitted"`
	RejectedCount      int            `yaml:"rejected"`
	ReasonDistribution map[string]int `yaml:"reasons"` // reason → count of decisions
	// FirstForced is the person index of the first guard-forced decision; -1 when none.
	FirstForced int `yaml:"first_forced"`
}

// forcedReasons are the reasons the feasibility guard emits.
var forcedReasons = map[string]bool{
	"forced-accept":          true,
	"forced-accept-conflict": true,
	"forced-reject":          true,
}

// Summarize computes aggregate statistics from a RunTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(rt *RunTrace) *TraceSummary {
	summary := &TraceSummary{
		ReasonDistribution: make(map[string]int),
		FirstForced:        -1,
	}
	if rt == nil {
		return summary
	}

	summary.TotalDecisions = len(rt.Admissions)
	for _, a := range rt.Admissions {
		if a.Admitted {
			summary.AdmittedCount++
		} else {
			summary.RejectedCount++
		}
		summary.ReasonDistribution[a.Reason]++
		if summary.FirstForced < 0 && forcedReasons[a.Reason] {
			summary.FirstForced = a.PersonIndex
		}
	}
	return summary
}
