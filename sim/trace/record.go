// Package trace records per-candidate admission decisions for offline analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// AdmissionRecord captures a single admission decision.
type AdmissionRecord struct {
	PersonIndex int     `yaml:"person_index"`
	Admitted    bool    `yaml:"admitted"`
	Reason      string  `yaml:"reason"`
	Score       float64 `yaml:"score,omitempty"`
	Threshold   float64 `yaml:"threshold,omitempty"`
	// Totals after the decision was applied.
	AdmittedTotal int `yaml:"admitted_total"`
	RejectedTotal int `yaml:"rejected_total"`
}
