// Package queue holds the generation pipeline: the display board, the batch
// sequencer, and the phase machine every placeholder moves through.
package queue

import (
	"errors"
	"fmt"
)

// Phase is the lifecycle position of one generation unit.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseQueued
	PhaseGenerating
	PhasePolling
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseQueued:
		return "queued"
	case PhaseGenerating:
		return "generating"
	case PhasePolling:
		return "polling"
	case PhaseTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Event drives a Phase forward.
type Event int

const (
	EventSubmit Event = iota
	EventStart
	EventAccept
	EventSucceed
	EventFail
	EventTimeOut
)

func (e Event) String() string {
	switch e {
	case EventSubmit:
		return "submit"
	case EventStart:
		return "start"
	case EventAccept:
		return "accept"
	case EventSucceed:
		return "succeed"
	case EventFail:
		return "fail"
	case EventTimeOut:
		return "timeout"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

var ErrInvalidTransition = errors.New("invalid phase transition")

// Transition returns the phase reached by applying ev to p.
func Transition(p Phase, ev Event) (Phase, error) {
	switch {
	case p == PhaseIdle && ev == EventSubmit:
		return PhaseQueued, nil
	case p == PhaseQueued && ev == EventStart:
		return PhaseGenerating, nil
	case p == PhaseQueued && ev == EventFail:
		// skipped after an earlier unit in the batch failed
		return PhaseTerminal, nil
	case p == PhaseGenerating && ev == EventAccept:
		return PhasePolling, nil
	case p == PhaseGenerating && (ev == EventSucceed || ev == EventFail):
		return PhaseTerminal, nil
	case p == PhasePolling && (ev == EventSucceed || ev == EventFail || ev == EventTimeOut):
		return PhaseTerminal, nil
	}
	return p, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, p)
}
