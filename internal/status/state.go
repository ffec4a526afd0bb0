// Package status tracks the connection state of the backend push feed.
package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/tradechat/internal/bus"
)

// State represents a daemon runtime state.
type State string

const (
	Booting      State = "BOOTING"
	AuthRequired State = "AUTH_REQUIRED"
	Connecting   State = "CONNECTING"
	Online       State = "ONLINE"
	Reconnecting State = "RECONNECTING"
	Offline      State = "OFFLINE"
	Error        State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:      {Connecting, AuthRequired, Offline, Error},
	AuthRequired: {Connecting, Offline, Error},
	Connecting:   {Online, AuthRequired, Reconnecting, Offline, Error},
	Online:       {Reconnecting, AuthRequired, Offline, Error},
	Reconnecting: {Connecting, Offline, Error},
	Offline:      {Connecting, Error},
	Error:        {Booting},
}

// Machine tracks and enforces feed state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	reason  string
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reason returns the note attached to the last transition, if any.
func (m *Machine) Reason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	return m.TransitionWith(to, "")
}

// TransitionWith is Transition with a human-readable reason, such as the
// error that caused a reconnect.
func (m *Machine) TransitionWith(to State, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.reason = reason
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(bus.KindFeedStatusChanged, StatusChange{
			From:   from,
			To:     to,
			Reason: reason,
		}))
	}
	return nil
}

// CanTransition reports whether to is reachable from the current state.
func (m *Machine) CanTransition(to State) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(validTransitions[m.current], to)
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From   State
	To     State
	Reason string
}
