// Package workflow holds the task state machine.
package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// State is the lifecycle state of a task. Values are the wire representation.
type State string

const (
	StateNew             State = "new task"
	StateInDevelopment   State = "in development"
	StateInQA            State = "in qa"
	StateInCodeReview    State = "in code review"
	StateReadyForRelease State = "ready for release"
	StateReleased        State = "released"
	StateArchived        State = "archived"
)

var ErrInvalidTransition = errors.New("invalid state transition")

// TransitionError describes a rejected transition.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %q -> %q", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// transitions lists the allowed next states.
// ARCHIVED has no outgoing edge, not even to itself.
var transitions = map[State][]State{
	StateNew:             {StateInDevelopment, StateArchived},
	StateInDevelopment:   {StateInQA},
	StateInQA:            {StateInDevelopment, StateInCodeReview},
	StateInCodeReview:    {StateReadyForRelease, StateInDevelopment},
	StateReadyForRelease: {StateReleased},
	StateReleased:        {StateArchived},
	StateArchived:        {},
}

// AllStates returns every state in workflow order.
func AllStates() []State {
	return []State{
		StateNew,
		StateInDevelopment,
		StateInQA,
		StateInCodeReview,
		StateReadyForRelease,
		StateReleased,
		StateArchived,
	}
}

// IsValid reports whether s is one of the enumerated states.
func (s State) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether s has no outgoing transition.
func (s State) IsTerminal() bool {
	return s == StateArchived
}

// CanTransitionTo reports whether moving from s to target is legal.
// Staying in the same non-terminal state is a no-op and always legal.
func (s State) CanTransitionTo(target State) bool {
	allowed, ok := transitions[s]
	if !ok || !target.IsValid() {
		return false
	}
	if s == target {
		return !s.IsTerminal()
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// ValidateTransition returns a *TransitionError wrapping ErrInvalidTransition
// when from -> to is not allowed.
func ValidateTransition(from, to State) error {
	if !from.CanTransitionTo(to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// ParseState matches the wire value case-insensitively.
func ParseState(raw string) (State, bool) {
	for _, s := range AllStates() {
		if strings.EqualFold(string(s), strings.TrimSpace(raw)) {
			return s, true
		}
	}
	return "", false
}
