package app

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/petems/heronote/internal/audio"
)

// Phase is the lifecycle position of one source.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseStopRequested
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopRequested:
		return "stop requested"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

var (
	// ErrInvalidTransition is wrapped by every rejected start or stop.
	ErrInvalidTransition = errors.New("invalid capture state transition")
	ErrAlreadyRunning    = fmt.Errorf("%w: already running", ErrInvalidTransition)
	ErrNotRunning        = fmt.Errorf("%w: not running", ErrInvalidTransition)
)

// StateError reports a start or stop that the source's phase does not allow.
type StateError struct {
	Source audio.Source
	Err    error
}

func (e *StateError) Error() string {
	if errors.Is(e.Err, ErrAlreadyRunning) {
		return e.Source.Label() + " capture is already running"
	}
	return e.Source.Label() + " capture is not running"
}

func (e *StateError) Unwrap() error { return e.Err }

// sourceState holds the flags shared between the controller and the capture
// goroutine of one source. running is written only by the capture goroutine
// and stopRequested only by the controller.
type sourceState struct {
	phase         atomic.Int32
	running       atomic.Bool
	stopRequested atomic.Bool
}

func (s *sourceState) load() Phase {
	return Phase(s.phase.Load())
}

func (s *sourceState) transition(from, to Phase) bool {
	return s.phase.CompareAndSwap(int32(from), int32(to))
}

func (s *sourceState) set(p Phase) {
	s.phase.Store(int32(p))
}
