// Package sim provides the online admission engine for the venue game.
//
// # Reading Guide
//
// Start with these three files to understand the decision kernel:
//   - state.go: RunState, the single-owner record mutated once per candidate
//   - feasibility.go: the hard guard that keeps every minimum reachable
//   - policy_adaptive.go: the per-candidate decision pipeline
//
// # Architecture
//
// The sim package holds the policy and its supporting online state; the
// collaborators live in sub-packages:
//   - sim/game/: wire types shared by the HTTP client and the local venue
//   - sim/remote/: HTTP client for the game server (retry, pacing, validation)
//   - sim/venue/: in-process emulator of the game server for offline runs
//   - sim/workload/: correlated attribute streams for the emulator
//   - sim/checkpoint/: resume support between fully committed steps
//   - sim/session/: the sequential fetch → decide → report → persist loop
//   - sim/trace/: decision trace recording
//
// # Key Interfaces
//
//   - AdmissionPolicy: accept or reject one candidate given the RunState
//   - Scorer: scalar desirability of a candidate (pure)
//   - ThresholdController: score cutoff with rejection-rate feedback
//
// Tunables live in Profile, loadable from YAML; built-in profiles cover the
// three game scenarios.
package sim
