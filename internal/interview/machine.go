// Package interview runs a mock interview session against the backend.
package interview

import (
	"errors"
	"fmt"

	"github.com/verte-zerg/mockprep/internal/model"
)

// Event drives the session machine.
type Event string

// Session events.
const (
	EventBegin          Event = "begin"
	EventRequireAuth    Event = "require_auth"
	EventAuthenticated  Event = "authenticated"
	EventSessionCreated Event = "session_created"
	EventAnswerAccepted Event = "answer_accepted"
	EventAdvance        Event = "advance"
	EventReportReady    Event = "report_ready"
	EventRetry          Event = "retry"
	EventAbandon        Event = "abandon"
	EventLoggedOut      Event = "logged_out"
)

// Effect is the side effect a transition asks the controller to perform.
type Effect int

// Transition effects.
const (
	EffectNone Effect = iota
	EffectShowSelection
	EffectStartTask
	EffectResetTimer
	EffectPersistReport
	EffectReset
)

// ErrInvalidTransition is returned when an event is not allowed in a phase.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition is a row of the session table.
type Transition struct {
	Next   model.Phase
	Effect Effect
}

type transitionKey struct {
	from  model.Phase
	event Event
}

// transitions is the complete session machine. Pairs not listed are rejected.
//
//nolint:gochecknoglobals // state machine definition
var transitions = map[transitionKey]Transition{
	{model.PhaseIdle, EventBegin}:       {model.PhaseSelecting, EffectShowSelection},
	{model.PhaseIdle, EventRequireAuth}: {model.PhaseAuthRequired, EffectNone},

	{model.PhaseAuthRequired, EventAuthenticated}: {model.PhaseSelecting, EffectShowSelection},
	{model.PhaseAuthRequired, EventAbandon}:       {model.PhaseIdle, EffectReset},

	{model.PhaseSelecting, EventSessionCreated}: {model.PhaseInProgress, EffectStartTask},
	{model.PhaseSelecting, EventAbandon}:        {model.PhaseIdle, EffectReset},
	{model.PhaseSelecting, EventLoggedOut}:      {model.PhaseAuthRequired, EffectNone},

	{model.PhaseInProgress, EventAnswerAccepted}: {model.PhaseInProgress, EffectNone},
	{model.PhaseInProgress, EventAdvance}:        {model.PhaseInProgress, EffectResetTimer},
	{model.PhaseInProgress, EventReportReady}:    {model.PhaseFinished, EffectPersistReport},
	{model.PhaseInProgress, EventAbandon}:        {model.PhaseIdle, EffectReset},
	{model.PhaseInProgress, EventLoggedOut}:      {model.PhaseAuthRequired, EffectReset},

	{model.PhaseFinished, EventRetry}:     {model.PhaseIdle, EffectReset},
	{model.PhaseFinished, EventAbandon}:   {model.PhaseIdle, EffectReset},
	{model.PhaseFinished, EventLoggedOut}: {model.PhaseAuthRequired, EffectReset},
}

// Fire looks up the transition for event in phase.
func Fire(from model.Phase, event Event) (Transition, error) {
	t, ok := transitions[transitionKey{from: from, event: event}]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, event, from)
	}
	return t, nil
}

// canFire reports whether event is allowed in phase.
func canFire(from model.Phase, event Event) bool {
	_, ok := transitions[transitionKey{from: from, event: event}]
	return ok
}

// allPhases returns every phase of the machine.
func allPhases() []model.Phase {
	return []model.Phase{
		model.PhaseIdle,
		model.PhaseAuthRequired,
		model.PhaseSelecting,
		model.PhaseInProgress,
		model.PhaseFinished,
	}
}

// allEvents returns every event of the machine.
func allEvents() []Event {
	return []Event{
		EventBegin,
		EventRequireAuth,
		EventAuthenticated,
		EventSessionCreated,
		EventAnswerAccepted,
		EventAdvance,
		EventReportReady,
		EventRetry,
		EventAbandon,
		EventLoggedOut,
	}
}
