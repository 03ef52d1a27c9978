package app

import (
	"fmt"
	"log/slog"
	"sync"
)

// SessionState is the client's position in the speed test cycle.
type SessionState int

const (
	Startup SessionState = iota
	LookingForServer
	SpeedTest
)

func (s SessionState) String() string {
	switch s {
	case Startup:
		return "Startup"
	case LookingForServer:
		return "LookingForServer"
	case SpeedTest:
		return "SpeedTest"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Startup is only ever left, never re-entered.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	switch s {
	case Startup:
		return next == LookingForServer
	case LookingForServer:
		return next == SpeedTest
	case SpeedTest:
		return next == LookingForServer
	default:
		return false
	}
}

// StateManager holds the session state. Only the orchestrator's control
// loop writes it; anything may read it.
type StateManager struct {
	mu    sync.RWMutex
	state SessionState
}

// NewStateManager creates a StateManager in the Startup state.
func NewStateManager() *StateManager {
	return &StateManager{state: Startup}
}

// Current returns the current state.
func (m *StateManager) Current() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Transition moves to next, refusing transitions the cycle does not allow.
func (m *StateManager) Transition(next SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.CanTransitionTo(next) {
		err := fmt.Errorf("invalid state transition %s -> %s", m.state, next)
		slog.Error("Failed to change session state", "error", err)
		return err
	}
	slog.Debug("Session state changed", "from", m.state, "to", next)
	m.state = next
	return nil
}
