// Package game defines the wire types of the venue game protocol and their
// conversion into engine inputs.
package game

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/inference-sim/bouncer/sim"
)

// DefaultCapacity is the venue size of every game scenario. The server never
// reports it.
const DefaultCapacity = 1000

// Status is the game state reported with every decision.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Constraint is one minimum-count requirement.
type Constraint struct {
	Attribute string `json:"attribute" validate:"required"`
	MinCount  int    `json:"minCount" validate:"gte=0"`
}

// AttributeStatistics are the priors supplied at game start.
// Correlations is directional: Correlations[a1][a2].
type AttributeStatistics struct {
	RelativeFrequencies map[string]float64            `json:"relativeFrequencies" validate:"dive,gte=0,lte=1"`
	Correlations        map[string]map[string]float64 `json:"correlations"`
}

// NewGameResponse is the payload returned by /new-game.
type NewGameResponse struct {
	GameID              string              `json:"gameId" validate:"required"`
	Constraints         []Constraint        `json:"constraints" validate:"dive"`
	AttributeStatistics AttributeStatistics `json:"attributeStatistics"`
}

// Person is one candidate as sent by the server. Missing attributes are false.
type Person struct {
	PersonIndex int             `json:"personIndex" validate:"gte=0"`
	Attributes  map[string]bool `json:"attributes"`
}

// DecideResponse is the payload returned by /decide-and-next.
// NextPerson is nil once the game has ended.
type DecideResponse struct {
	Status        Status  `json:"status" validate:"required,oneof=running completed failed"`
	AdmittedCount int     `json:"admittedCount" validate:"gte=0"`
	RejectedCount int     `json:"rejectedCount" validate:"gte=0"`
	NextPerson    *Person `json:"nextPerson,omitempty" validate:"omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// Running reports whether the game expects another decision.
func (r *DecideResponse) Running() bool {
	return r.Status == StatusRunning && r.NextPerson != nil
}

var validate = validator.New()

// Validate checks a decoded payload against its struct tags.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// RunInit converts the start payload into engine inputs for a venue of the
// given capacity.
func (r *NewGameResponse) RunInit(capacity int) sim.RunInit {
	init := sim.RunInit{
		Capacity:            capacity,
		RelativeFrequencies: r.AttributeStatistics.RelativeFrequencies,
		Correlations:        r.AttributeStatistics.Correlations,
	}
	for _, c := range r.Constraints {
		init.Constraints = append(init.Constraints, sim.Constraint{Attribute: c.Attribute, MinCount: c.MinCount})
	}
	return init
}
