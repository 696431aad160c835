package recorder

import (
	"fmt"
	"sync"
)

// State is the authoritative recording lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// InvalidTransitionError is returned when an operation is not valid in the
// current state. The operation is rejected synchronously with no side
// effects.
type InvalidTransitionError struct {
	Op   string
	From State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.From)
}

// StateMachine guards the recording lifecycle:
//
//	Idle → Recording → {Paused ⇄ Recording} → Idle
//	Recording|Paused → Error → Idle
//
// It performs no I/O. Transitions are only triggered by Recorder lifecycle
// calls; one mutex covers them all because pause, resume, stop, and the
// audio-error callback arrive from different goroutines.
type StateMachine struct {
	mu    sync.Mutex
	state State
}

func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateIdle}
}

// State returns the current state.
func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start transitions Idle → Recording.
func (m *StateMachine) Start() error {
	return m.transition("start recording", StateRecording, StateIdle)
}

// Pause transitions Recording → Paused.
func (m *StateMachine) Pause() error {
	return m.transition("pause", StatePaused, StateRecording)
}

// Resume transitions Paused → Recording.
func (m *StateMachine) Resume() error {
	return m.transition("resume", StateRecording, StatePaused)
}

// Stop transitions Recording, Paused, or Error → Idle. The Error case is the
// tail of a fatal teardown.
func (m *StateMachine) Stop() error {
	return m.transition("stop", StateIdle, StateRecording, StatePaused, StateError)
}

// Fail transitions Recording or Paused → Error. Used when every capture
// source has failed.
func (m *StateMachine) Fail() error {
	return m.transition("fail", StateError, StateRecording, StatePaused)
}

func (m *StateMachine) transition(op string, to State, from ...State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range from {
		if m.state == f {
			m.state = to
			return nil
		}
	}
	return &InvalidTransitionError{Op: op, From: m.state}
}
