package trace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every admission decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// RunTrace collects decision records during one run.
type RunTrace struct {
	GameID     string            `yaml:"game_id"`
	Profile    string            `yaml:"profile"`
	Admissions []AdmissionRecord `yaml:"admissions"`
}

// NewRunTrace creates a RunTrace ready for recording.
func NewRunTrace(gameID, profile string) *RunTrace {
	return &RunTrace{
		GameID:     gameID,
		Profile:    profile,
		Admissions: make([]AdmissionRecord, 0),
	}
}

// RecordAdmission appends an admission decision record. Safe on a nil trace.
func (rt *RunTrace) RecordAdmission(record AdmissionRecord) {
	if rt == nil {
		return
	}
	rt.Admissions = append(rt.Admissions, record)
}

// traceFile is the on-disk layout: summary first so it is readable without
// scrolling past every decision.
type traceFile struct {
	GameID     string            `yaml:"game_id"`
	Profile    string            `yaml:"profile"`
	Summary    *TraceSummary     `yaml:"summary"`
	Admissions []AdmissionRecord `yaml:"admissions"`
}

// WriteYAML writes the trace and its summary to path.
func (rt *RunTrace) WriteYAML(path string) error {
	data, err := yaml.Marshal(traceFile{
		GameID:     rt.GameID,
		Profile:    rt.Profile,
		Summary:    Summarize(rt),
		Admissions: rt.Admissions,
	})
	if err != nil {
		return fmt.Errorf("encoding trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}
