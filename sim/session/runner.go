// Package session drives one admission run against a game source: it fetches
// candidates, asks the admission policy for a decision, reports it, applies it
// to the run state and checkpoints after every step.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/bouncer/sim"
	"github.com/inference-sim/bouncer/sim/checkpoint"
	"github.com/inference-sim/bouncer/sim/game"
	"github.com/inference-sim/bouncer/sim/trace"
)

// DefaultProgressEvery is the admission interval between progress lines.
const DefaultProgressEvery = 100

// Source is the game server contract. A nil accept fetches the person
// awaiting a decision without deciding.
type Source interface {
	Start(ctx context.Context, scenario int, playerID string) (*game.NewGameResponse, error)
	DecideAndNext(ctx context.Context, gameID string, personIndex int, accept *bool) (*game.DecideResponse, error)
}

// Config configures a Runner.
type Config struct {
	Scenario int
	PlayerID string
	// Capacity is the venue size; 0 means game.DefaultCapacity.
	Capacity int
	Profile  sim.Profile
	Seed     sim.RunSeed
	// Store persists progress after every decision; nil disables checkpointing.
	Store *checkpoint.Store
	// TraceLevel selects what is recorded in Outcome.Trace.
	TraceLevel trace.TraceLevel
	// Metrics may be nil.
	Metrics *Metrics
	// ProgressEvery is the admission interval between progress lines; 0 means
	// DefaultProgressEvery and a negative value disables them.
	ProgressEvery int
}

// Runner plays one game. Not safe for concurrent use.
type Runner struct {
	src Source
	cfg Config
}

// NewRunner creates a Runner reading from src.
func NewRunner(src Source, cfg Config) *Runner {
	if cfg.Capacity == 0 {
		cfg.Capacity = game.DefaultCapacity
	}
	if cfg.ProgressEvery == 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	return &Runner{src: src, cfg: cfg}
}

// run is the mutable state of one Run call.
type run struct {
	gameID  string
	state   *sim.RunState
	pending *game.Person
	out     *Outcome
	// unknown holds attribute names already warned about.
	unknown map[string]bool
}

// Run plays the game to the end. Source failures and cancellation produce a
// stopped Outcome; the returned error is reserved for local failures (bad
// start payload, inconsistent state, checkpoint writes).
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	rn, err := r.resume()
	if err != nil {
		return nil, err
	}
	if rn == nil {
		rn, err = r.start(ctx)
		if err != nil {
			return nil, err
		}
		if rn.out.Kind != "" {
			r.cfg.Metrics.observeOutcome(rn.out)
			return rn.out, nil
		}
		if err := r.save(rn); err != nil {
			return nil, err
		}
	}
	if r.cfg.TraceLevel == trace.TraceLevelDecisions {
		rn.out.Trace = trace.NewRunTrace(rn.gameID, r.cfg.Profile.Name)
	}

	if err := r.loop(ctx, rn); err != nil {
		return nil, err
	}
	r.cfg.Metrics.observeOutcome(rn.out)
	if rn.out.Kind != KindStopped && r.cfg.Store != nil {
		if err := r.cfg.Store.Remove(); err != nil {
			logrus.Warnf("session: %v", err)
		}
	}
	return rn.out, nil
}

// resume loads the checkpoint. It returns nil when there is nothing usable
// to resume from.
func (r *Runner) resume() (*run, error) {
	if r.cfg.Store == nil {
		return nil, nil
	}
	cp, err := r.cfg.Store.Load()
	switch {
	case errors.Is(err, checkpoint.ErrCheckpointNotFound):
		return nil, nil
	case err != nil:
		logrus.Warnf("session: ignoring checkpoint %s: %v", r.cfg.Store.Path(), err)
		return nil, nil
	}
	if cp.Scenario != r.cfg.Scenario {
		logrus.Warnf("session: checkpoint is for scenario %d, not %d; starting fresh", cp.Scenario, r.cfg.Scenario)
		return nil, nil
	}
	if cp.Pending == nil {
		logrus.Warnf("session: checkpoint for game %s has no pending person; starting fresh", cp.GameID)
		return nil, nil
	}
	if cp.Profile != r.cfg.Profile.Name {
		logrus.Warnf("session: checkpoint was written with profile %q, continuing with %q", cp.Profile, r.cfg.Profile.Name)
	}
	st, err := sim.RestoreRunState(cp.State)
	if err != nil {
		return nil, fmt.Errorf("restoring checkpoint: %w", err)
	}
	logrus.Infof("session: resuming game %s at person %d (admitted=%d rejected=%d)",
		cp.GameID, cp.Pending.PersonIndex, st.AdmittedTotal, st.RejectedTotal)
	return &run{
		gameID:  cp.GameID,
		state:   st,
		pending: cp.Pending,
		out: &Outcome{
			GameID:        cp.GameID,
			Status:        game.StatusRunning,
			LocalAdmitted: st.AdmittedTotal,
			LocalRejected: st.RejectedTotal,
		},
	}, nil
}

// start opens a new game and fetches the first person. When the source
// fails, the returned run carries a stopped outcome.
func (r *Runner) start(ctx context.Context) (*run, error) {
	out := &Outcome{}
	resp, err := r.src.Start(ctx, r.cfg.Scenario, r.cfg.PlayerID)
	if err != nil {
		out.Kind, out.Err = KindStopped, fmt.Errorf("starting game: %w", err)
		return &run{out: out}, nil
	}
	st, err := sim.NewRunState(resp.RunInit(r.cfg.Capacity), r.cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", resp.GameID, err)
	}
	out.GameID = resp.GameID
	logrus.Infof("session: started game %s (scenario %d, %d constraints, profile %s)",
		resp.GameID, r.cfg.Scenario, len(resp.Constraints), r.cfg.Profile.Name)
	for id, need := range st.Minimums {
		if st.Constrained[id] {
			logrus.Debugf("session: constraint %s: need %d (freq %.3f)", st.Attributes.Name(id), need, st.Frequency(id))
		}
	}

	rn := &run{gameID: resp.GameID, state: st, out: out}
	first, err := r.src.DecideAndNext(ctx, resp.GameID, 0, nil)
	if err != nil {
		out.Kind, out.Err = KindStopped, fmt.Errorf("fetching first person: %w", err)
		return rn, nil
	}
	if !r.record(rn, first) {
		return rn, nil
	}
	rn.pending = first.NextPerson
	return rn, nil
}

// loop decides on pending people until the game ends.
func (r *Runner) loop(ctx context.Context, rn *run) error {
	policy := sim.NewAdmissionPolicy(r.cfg.Profile, sim.NewPartitionedRNG(r.cfg.Seed))
	committer, _ := policy.(sim.Committer)
	st := rn.state
	rn.unknown = make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			rn.out.Kind, rn.out.Err = KindStopped, err
			return nil
		}
		p := rn.pending
		c, unknown := st.Attributes.Candidate(p.PersonIndex, p.Attributes)
		for _, name := range unknown {
			if !rn.unknown[name] {
				rn.unknown[name] = true
				logrus.Warnf("session: ignoring unknown attribute %q (first seen on person %d)", name, p.PersonIndex)
			}
		}
		st.Observe(c)
		d := policy.Decide(c, st)

		accept := d.Accept
		resp, err := r.src.DecideAndNext(ctx, rn.gameID, p.PersonIndex, &accept)
		if err != nil {
			rn.out.Kind, rn.out.Err = KindStopped, fmt.Errorf("person %d: %w", p.PersonIndex, err)
			return nil
		}
		if err := st.Apply(c, d.Accept); err != nil {
			return fmt.Errorf("person %d: %w", p.PersonIndex, err)
		}
		if committer != nil {
			committer.Commit(c, st, d)
		}
		rn.out.LocalAdmitted, rn.out.LocalRejected = st.AdmittedTotal, st.RejectedTotal
		rn.out.Trace.RecordAdmission(trace.AdmissionRecord{
			PersonIndex:   p.PersonIndex,
			Admitted:      d.Accept,
			Reason:        string(d.Reason),
			Score:         d.Score,
			Threshold:     d.Threshold,
			AdmittedTotal: st.AdmittedTotal,
			RejectedTotal: st.RejectedTotal,
		})
		r.cfg.Metrics.observeDecision(d, st)
		if d.Accept && r.cfg.ProgressEvery > 0 && resp.AdmittedCount > 0 && resp.AdmittedCount%r.cfg.ProgressEvery == 0 {
			logrus.WithFields(logrus.Fields{
				"admitted": resp.AdmittedCount,
				"capacity": st.Capacity,
				"rejected": resp.RejectedCount,
			}).Info("progress")
		}

		if !r.record(rn, resp) {
			return nil
		}
		rn.pending = resp.NextPerson
		if err := r.save(rn); err != nil {
			return err
		}
	}
}

// record copies the source's view into the outcome and reports whether the
// game expects another decision.
func (r *Runner) record(rn *run, resp *game.DecideResponse) bool {
	out := rn.out
	out.Status = resp.Status
	out.Admitted, out.Rejected = resp.AdmittedCount, resp.RejectedCount
	switch {
	case resp.Status == game.StatusCompleted:
		out.Kind = KindCompleted
	case resp.Status == game.StatusFailed:
		out.Kind, out.Reason = KindFailed, resp.Reason
		if unmet := rn.state.Unreachable(); len(unmet) > 0 {
			logrus.Debugf("session: locally unreachable minimums at failure: %v", unmet)
		}
	case !resp.Running():
		out.Kind = KindStopped
	default:
		return true
	}
	logrus.Debugf("session: game %s ended %s with counts %v", rn.gameID, resp.Status, rn.state.CountsByName())
	return false
}

func (r *Runner) save(rn *run) error {
	if r.cfg.Store == nil {
		return nil
	}
	return r.cfg.Store.Save(&checkpoint.Checkpoint{
		GameID:   rn.gameID,
		Scenario: r.cfg.Scenario,
		Profile:  r.cfg.Profile.Name,
		State:    rn.state.Snapshot(),
		Pending:  rn.pending,
	})
}
