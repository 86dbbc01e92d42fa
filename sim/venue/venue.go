// Package venue emulates the game server in process.
//
// A Venue hands out games backed by synthetic candidate streams and enforces
// the same rules as the real server: the game completes when capacity is
// reached with every minimum met, and fails when capacity is reached with a
// minimum unmet or when the rejection cap is hit.
package venue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/bouncer/sim"
	"github.com/inference-sim/bouncer/sim/game"
	"github.com/inference-sim/bouncer/sim/workload"
)

var (
	// ErrUnknownGame is returned for a game id the venue never issued.
	ErrUnknownGame = errors.New("unknown game")
	// ErrIndexMismatch is returned when a decision names a person other than
	// the one awaiting a decision.
	ErrIndexMismatch = errors.New("person index does not match the pending person")
)

// SpecFunc resolves a scenario number to a game description.
type SpecFunc func(scenario int) (*workload.StreamSpec, error)

// Venue is an in-process game server. Safe for concurrent use.
type Venue struct {
	mu      sync.Mutex
	specFor SpecFunc
	seed    sim.RunSeed
	started int64
	games   map[string]*table
}

// New creates a venue. Game k (0-based) draws its stream from seed+k.
func New(specFor SpecFunc, seed sim.RunSeed) *Venue {
	if specFor == nil {
		specFor = workload.ScenarioSpec
	}
	return &Venue{specFor: specFor, seed: seed, games: make(map[string]*table)}
}

// Fixed returns a SpecFunc that serves spec for every scenario.
func Fixed(spec *workload.StreamSpec) SpecFunc {
	return func(int) (*workload.StreamSpec, error) { return spec, nil }
}

// table is the server-side state of one game.
type table struct {
	spec     *workload.StreamSpec
	stream   *workload.Stream
	status   game.Status
	reason   string
	admitted int
	rejected int
	counts   map[string]int
	pending  *game.Person
}

// Start opens a new game for scenario.
func (v *Venue) Start(_ context.Context, scenario int, playerID string) (*game.NewGameResponse, error) {
	spec, err := v.specFor(scenario)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %d: %w", scenario, err)
	}

	v.mu.Lock()
	seed := v.seed + sim.RunSeed(v.started)
	v.started++
	v.mu.Unlock()

	stream, err := workload.NewStream(spec, sim.NewPartitionedRNG(seed).ForSubsystem(sim.SubsystemStream))
	if err != nil {
		return nil, fmt.Errorf("scenario %d: %w", scenario, err)
	}
	id := uuid.NewString()
	t := &table{spec: spec, stream: stream, status: game.StatusRunning, counts: make(map[string]int)}

	v.mu.Lock()
	v.games[id] = t
	v.mu.Unlock()
	logrus.Debugf("venue: game %s started for player %q (scenario %d, seed %d)", id, playerID, scenario, seed)

	resp := &game.NewGameResponse{
		GameID: id,
		AttributeStatistics: game.AttributeStatistics{
			RelativeFrequencies: copyFloats(spec.Frequencies),
			Correlations:        spec.Correlations,
		},
	}
	for _, c := range spec.Constraints {
		resp.Constraints = append(resp.Constraints, game.Constraint{Attribute: c.Attribute, MinCount: c.MinCount})
	}
	return resp, nil
}

// DecideAndNext applies a decision on the pending person and draws the next.
// A nil accept returns the pending person without deciding, drawing the
// first one if needed.
func (v *Venue) DecideAndNext(_ context.Context, gameID string, personIndex int, accept *bool) (*game.DecideResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, gameID)
	}
	if t.status != game.StatusRunning {
		return t.response(), nil
	}
	if t.pending == nil {
		t.draw()
	}
	if accept == nil {
		return t.response(), nil
	}
	if personIndex != t.pending.PersonIndex {
		return nil, fmt.Errorf("%w: got %d, pending %d", ErrIndexMismatch, personIndex, t.pending.PersonIndex)
	}
	t.decide(*accept)
	return t.response(), nil
}

func (t *table) draw() {
	idx, attrs := t.stream.Next()
	t.pending = &game.Person{PersonIndex: idx, Attributes: attrs}
}

func (t *table) decide(accept bool) {
	if accept {
		t.admitted++
		for a, v := range t.pending.Attributes {
			if v {
				t.counts[a]++
			}
		}
	} else {
		t.rejected++
	}
	t.pending = nil

	switch {
	case t.admitted >= t.spec.Capacity:
		if unmet := t.unmet(); len(unmet) > 0 {
			t.finish(game.StatusFailed, "venue full but constraints unmet: "+strings.Join(unmet, ", "))
		} else {
			t.finish(game.StatusCompleted, "")
		}
	case t.rejected >= t.spec.RejectionCap:
		t.finish(game.StatusFailed, fmt.Sprintf("rejection cap of %d reached", t.spec.RejectionCap))
	default:
		t.draw()
	}
}

func (t *table) finish(status game.Status, reason string) {
	t.status = status
	t.reason = reason
	logrus.Debugf("venue: game %s: admitted=%d rejected=%d %s", status, t.admitted, t.rejected, reason)
}

func (t *table) unmet() []string {
	var out []string
	for _, c := range t.spec.Constraints {
		if t.counts[c.Attribute] < c.MinCount {
			out = append(out, fmt.Sprintf("%s (%d/%d)", c.Attribute, t.counts[c.Attribute], c.MinCount))
		}
	}
	sort.Strings(out)
	return out
}

func (t *table) response() *game.DecideResponse {
	resp := &game.DecideResponse{
		Status:        t.status,
		AdmittedCount: t.admitted,
		RejectedCount: t.rejected,
		Reason:        t.reason,
	}
	if t.status == game.StatusRunning && t.pending != nil {
		p := *t.pending
		p.Attributes = make(map[string]bool, len(t.pending.Attributes))
		for a, v := range t.pending.Attributes {
			p.Attributes[a] = v
		}
		resp.NextPerson = &p
	}
	return resp
}

func copyFloats(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
