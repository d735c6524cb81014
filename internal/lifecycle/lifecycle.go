// Package lifecycle tracks whether the host process is in the foreground.
package lifecycle

import (
	"fmt"
	"strings"
	"sync"
)

// State of the host application.
type State string

const (
	Active     State = "active"
	Inactive   State = "inactive"
	Background State = "background"
)

// ParseState accepts the state names case-insensitively.
func ParseState(v string) (State, error) {
	switch s := State(strings.ToLower(strings.TrimSpace(v))); s {
	case Active, Inactive, Background:
		return s, nil
	default:
		return "", fmt.Errorf("unknown lifecycle state %q", v)
	}
}

// Transition is a change between two states.
type Transition struct {
	From State
	To   State
}

// Foregrounded reports whether the process just became active.
func (t Transition) Foregrounded() bool {
	return t.To == Active && t.From != Active
}

// Monitor records the current state and fans transitions out to subscribers.
type Monitor struct {
	mu     sync.Mutex
	state  State
	subs   map[int]chan Transition
	nextID int
}

// NewMonitor starts in the active state.
func NewMonitor() *Monitor {
	return &Monitor{state: Active, subs: make(map[int]chan Transition)}
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Set records a new state and reports the transition, if any. A subscriber
// that is not keeping up loses its oldest buffered transition, never the
// newest one.
func (m *Monitor) Set(next State) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if next == m.state {
		return Transition{}, false
	}
	tr := Transition{From: m.state, To: next}
	m.state = next
	for _, ch := range m.subs {
		select {
		case ch <- tr:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- tr:
			default:
			}
		}
	}
	return tr, true
}

// Subscribe returns a channel of transitions and its cancel func.
func (m *Monitor) Subscribe() (<-chan Transition, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan Transition, 4)
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}
