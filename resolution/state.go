// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package resolution

import (
	"errors"
	"fmt"
	"slices"
)

// State is a step of the per record resolution.
type State int

const (
	StateSpatialPending State = iota
	StateSpatialResolved
	StateAPIPending
	StateAPIResolved
	StateUnresolved
	StateReclassified
	StateStandardized
	StateDone
)

var stateNames = []string{
	"SPATIAL_PENDING",
	"SPATIAL_RESOLVED",
	"API_PENDING",
	"API_RESOLVED",
	"UNRESOLVED",
	"RECLASSIFIED",
	"STANDARDIZED",
	"DONE",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	i := slices.Index(stateNames, string(text))
	if i < 0 {
		return fmt.Errorf("unknown state %q", text)
	}

	*s = State(i)

	return nil
}

// ErrInvalidTransition is returned when a step is run out of order.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State][]State{
	// invalid geometry skips straight to reclassification, pass-through records to the end
	StateSpatialPending:  {StateSpatialResolved, StateAPIPending, StateReclassified, StateDone},
	StateSpatialResolved: {StateAPIPending, StateReclassified},
	StateAPIPending:      {StateAPIResolved, StateUnresolved},
	StateAPIResolved:     {StateReclassified},
	StateUnresolved:      {StateReclassified},
	StateReclassified:    {StateStandardized},
	StateStandardized:    {StateDone},
}

// advance moves the resolution to state to, keeping the trace.
func (r *Resolution) advance(to State) error {
	if !slices.Contains(transitions[r.State], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
	}

	r.State = to
	r.Trace = append(r.Trace, to)

	return nil
}

// Reached reports whether the resolution went through state s.
func (r *Resolution) Reached(s State) bool {
	return slices.Contains(r.Trace, s)
}
