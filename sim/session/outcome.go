package session

import (
	"fmt"

	"github.com/inference-sim/bouncer/sim/game"
	"github.com/inference-sim/bouncer/sim/trace"
)

// Kind classifies how a run ended.
type Kind string

const (
	// KindCompleted means the venue filled with every minimum met.
	KindCompleted Kind = "completed"
	// KindFailed means the source ended the game unsuccessfully.
	KindFailed Kind = "failed"
	// KindStopped means the run ended without a terminal status from the source.
	KindStopped Kind = "stopped"
)

// Outcome is the result of one run.
type Outcome struct {
	Kind   Kind
	GameID string
	// Status is the last status reported by the source; empty if none arrived.
	Status game.Status
	// Reason is the source's failure reason.
	Reason string
	// Admitted and Rejected are the source's counts.
	Admitted int
	Rejected int
	// LocalAdmitted and LocalRejected are the counts the engine applied.
	LocalAdmitted int
	LocalRejected int
	// Err is the error that stopped the run, if any.
	Err error
	// Trace holds the decision records when tracing is enabled.
	Trace *trace.RunTrace
}

// String renders the single result line printed at the end of a run.
func (o *Outcome) String() string {
	switch o.Kind {
	case KindCompleted:
		return fmt.Sprintf("completed: rejected=%d", o.Rejected)
	case KindFailed:
		return fmt.Sprintf("failed: reason=%s", o.Reason)
	default:
		status := string(o.Status)
		if status == "" {
			status = "unknown"
		}
		line := fmt.Sprintf("stopped: status=%s, admitted=%d, rejected(local)=%d", status, o.LocalAdmitted, o.LocalRejected)
		if o.Err != nil {
			line += fmt.Sprintf(", error=%v", o.Err)
		}
		return line
	}
}
