package workflow

import (
	"fmt"
	"sort"
)

// Lifecycle is the constraint for lifecycle enums used in a transition table
type Lifecycle interface {
	~string
	IsValid() bool
}

// TransitionBuilder builds an immutable transition table
type TransitionBuilder[S Lifecycle, T ~string] struct {
	configurations map[S]*stateConfig[S, T]
}

// StateConfiguration configures the outgoing transitions of one state
type StateConfiguration[S Lifecycle, T ~string] interface {
	// Permit allows a trigger to move the state to toState
	Permit(trigger T, toState S) StateConfiguration[S, T]
}

type stateConfig[S Lifecycle, T ~string] struct {
	fromState   S
	transitions map[T]S
}

// TransitionTable answers which (state, trigger) pairs are legal.
// It is safe for concurrent use once built.
type TransitionTable[S Lifecycle, T ~string] struct {
	transitions map[S]map[T]S
}

// NewBuilder creates a new transition builder
func NewBuilder[S Lifecycle, T ~string]() *TransitionBuilder[S, T] {
	return &TransitionBuilder[S, T]{
		configurations: make(map[S]*stateConfig[S, T]),
	}
}

// Configure returns the configuration for the given state
func (b *TransitionBuilder[S, T]) Configure(state S) StateConfiguration[S, T] {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", string(state)))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig[S, T]{
			fromState:   state,
			transitions: make(map[T]S),
		}
		b.configurations[state] = config
	}

	return config
}

// Build freezes the configured transitions into a table
func (b *TransitionBuilder[S, T]) Build() *TransitionTable[S, T] {
	table := &TransitionTable[S, T]{
		transitions: make(map[S]map[T]S, len(b.configurations)),
	}
	for state, config := range b.configurations {
		copied := make(map[T]S, len(config.transitions))
		for trigger, to := range config.transitions {
			copied[trigger] = to
		}
		table.transitions[state] = copied
	}
	return table
}

// Permit allows a trigger to move the state to toState
func (c *stateConfig[S, T]) Permit(trigger T, toState S) StateConfiguration[S, T] {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", string(toState)))
	}
	if _, exists := c.transitions[trigger]; exists {
		panic(fmt.Sprintf("duplicate transition %s from %s", string(trigger), string(c.fromState)))
	}

	c.transitions[trigger] = toState
	return c
}

// CanFire returns true if the trigger is permitted from the given state
func (t *TransitionTable[S, T]) CanFire(from S, trigger T) bool {
	_, ok := t.transitions[from][trigger]
	return ok
}

// Fire returns the target state for trigger, or ErrInvalidTransition
func (t *TransitionTable[S, T]) Fire(from S, trigger T) (S, error) {
	to, ok := t.transitions[from][trigger]
	if !ok {
		var zero S
		return zero, fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, string(trigger), string(from))
	}
	return to, nil
}

// PermittedTriggers returns the triggers allowed from the given state, sorted
func (t *TransitionTable[S, T]) PermittedTriggers(from S) []T {
	triggers := make([]T, 0, len(t.transitions[from]))
	for trigger := range t.transitions[from] {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
