/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"fmt"

	"github.com/Seednode/escaperoom/internal/session"
)

// Phase is one state of a room's lifecycle.
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseCaptain       Phase = "captain"
	PhaseInvestigation Phase = "investigation"
	PhasePuzzle        Phase = "puzzle"
	PhaseCompleted     Phase = "completed"
)

// Trigger is what fires a transition.
type Trigger int

const (
	TriggerVote Trigger = iota + 1
	TriggerAction
	TriggerTimeout
)

func (t Trigger) String() string {
	switch t {
	case TriggerVote:
		return "vote"
	case TriggerAction:
		return "action"
	case TriggerTimeout:
		return "timeout"
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

// Effect is the side effect a transition carries out on top of moving phase.
type Effect int

const (
	EffectNone Effect = iota
	EffectStartGame
	EffectElectCaptain
	EffectScoreAnswer
	EffectAdvanceStep
)

// Transition leaves a phase. An empty Next keeps the room where it is.
type Transition struct {
	Trigger  Trigger
	Proposal ProposalKind
	Next     Phase
	Effect   Effect
}

// PhaseSpec describes one phase of a mode.
type PhaseSpec struct {
	// Countdown phases end with their timeout transition once the game
	// duration has elapsed since the phase started.
	Countdown bool
	// Puzzle phases keep a current puzzle and receive clues.
	Puzzle bool
	// Captained phases always have a captain while anyone is in the room.
	Captained bool
	// Steps is the number of actions an AdvanceStep transition needs before
	// it leaves the phase.
	Steps       int
	Transitions []Transition
}

// Mode is the transition table a room runs with.
type Mode struct {
	Name     session.Mode
	Initial  Phase
	Terminal Phase
	Phases   map[Phase]PhaseSpec
}

// Lookup finds the transition out of phase for trigger. Vote transitions
// also match on the proposal kind.
func (m *Mode) Lookup(phase Phase, trigger Trigger, kind ProposalKind) (Transition, bool) {
	for _, t := range m.Phases[phase].Transitions {
		if t.Trigger != trigger {
			continue
		}
		if trigger == TriggerVote && t.Proposal != kind {
			continue
		}
		return t, true
	}
	return Transition{}, false
}

// Spec returns the description of phase.
func (m *Mode) Spec(phase Phase) PhaseSpec {
	return m.Phases[phase]
}

// Known reports whether phase belongs to m.
func (m *Mode) Known(phase Phase) bool {
	_, ok := m.Phases[phase]
	return ok
}

// Modes builds the transition tables. steps is the number of codes the
// escape mode's investigation needs.
func Modes(steps int) map[session.Mode]*Mode {
	return map[session.Mode]*Mode{
		session.ModeCollaborators: {
			Name:     session.ModeCollaborators,
			Initial:  PhaseLobby,
			Terminal: PhaseCompleted,
			Phases: map[Phase]PhaseSpec{
				PhaseLobby: {
					Transitions: []Transition{
						{Trigger: TriggerVote, Proposal: ProposalStart, Next: PhasePuzzle, Effect: EffectStartGame},
					},
				},
				PhasePuzzle: {
					Countdown: true,
					Puzzle:    true,
					Transitions: []Transition{
						{Trigger: TriggerVote, Proposal: ProposalAnswer, Effect: EffectScoreAnswer},
						{Trigger: TriggerTimeout, Next: PhaseCompleted},
					},
				},
				PhaseCompleted: {},
			},
		},
		session.ModeEscape: {
			Name:     session.ModeEscape,
			Initial:  PhaseLobby,
			Terminal: PhaseCompleted,
			Phases: map[Phase]PhaseSpec{
				PhaseLobby: {
					Transitions: []Transition{
						{Trigger: TriggerVote, Proposal: ProposalStart, Next: PhaseCaptain, Effect: EffectStartGame},
					},
				},
				PhaseCaptain: {
					Transitions: []Transition{
						{Trigger: TriggerVote, Proposal: ProposalCaptain, Next: PhaseInvestigation, Effect: EffectElectCaptain},
					},
				},
				PhaseInvestigation: {
					Countdown: true,
					Captained: true,
					Steps:     max(steps, 1),
					Transitions: []Transition{
						{Trigger: TriggerAction, Next: PhaseCompleted, Effect: EffectAdvanceStep},
						{Trigger: TriggerTimeout, Next: PhaseCompleted},
					},
				},
				PhaseCompleted: {},
			},
		},
	}
}
