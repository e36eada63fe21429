package statemachine

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when no transition matches the
// (state, event) pair.
var ErrInvalidTransition = errors.New("statemachine.invalid_transition")

// State is a named machine state.
type State string

// Event triggers a transition between states.
type Event string

// Transition maps an event in a source state to a target state.
type Transition struct {
	From  State
	To    State
	Event Event
}

// T is a shorthand transition constructor.
func T(from, to State, event Event) Transition {
	return Transition{From: from, To: to, Event: event}
}

type transitionKey struct {
	from  State
	event Event
}

// Machine is an immutable transition table, safe for concurrent use.
type Machine struct {
	transitions map[transitionKey]State
}

// New builds a machine from the given transitions. Duplicate
// (from, event) pairs panic: the table would be ambiguous.
func New(transitions ...Transition) *Machine {
	m := &Machine{transitions: make(map[transitionKey]State, len(transitions))}
	for _, t := range transitions {
		key := transitionKey{t.From, t.Event}
		if _, dup := m.transitions[key]; dup {
			panic(fmt.Sprintf("statemachine: duplicate transition %s/%s", t.From, t.Event))
		}
		m.transitions[key] = t.To
	}
	return m
}

// Fire returns the state reached by applying event in the given state,
// or ErrInvalidTransition when the table has no matching entry.
func (m *Machine) Fire(from State, event Event) (State, error) {
	to, ok := m.transitions[transitionKey{from, event}]
	if !ok {
		return from, fmt.Errorf("%w: %s/%s", ErrInvalidTransition, from, event)
	}
	return to, nil
}

// CanFire reports whether event is legal in the given state.
func (m *Machine) CanFire(from State, event Event) bool {
	_, ok := m.transitions[transitionKey{from, event}]
	return ok
}
