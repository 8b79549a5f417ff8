package device

import (
	"errors"
	"fmt"
)

// Event drives the lifecycle state machine.
type Event string

const (
	EventPowerOn  Event = "power_on"
	EventBooted   Event = "booted"
	EventPowerOff Event = "power_off"
	EventHalted   Event = "halted"
)

var (
	ErrNotOffline = errors.New("device is not offline")
	ErrNotOnline  = errors.New("device is not online")
	ErrLocked     = errors.New("safety lock engaged")
	ErrBadEvent   = errors.New("event not valid in current status")
)

// GuardError reports a rejected transition. It unwraps to one of the Err*
// sentinels so callers can use errors.Is.
type GuardError struct {
	From  Status
	Event Event
	Err   error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s from %s: %v", e.Event, e.From, e.Err)
}

func (e *GuardError) Unwrap() error { return e.Err }

func guard(from Status, ev Event, err error) error {
	return &GuardError{From: from, Event: ev, Err: err}
}

// Transition applies ev to from with the safety lock released.
func Transition(from Status, ev Event) (Status, error) {
	return TransitionLocked(from, ev, false)
}

// TransitionLocked applies ev to from. The lock only gates EventPowerOff.
// On error the returned status is from, unchanged.
func TransitionLocked(from Status, ev Event, locked bool) (Status, error) {
	switch ev {
	case EventPowerOn:
		if from != StatusOffline {
			return from, guard(from, ev, ErrNotOffline)
		}
		return StatusBooting, nil

	case EventBooted:
		if from != StatusBooting {
			return from, guard(from, ev, ErrBadEvent)
		}
		return StatusOnline, nil

	case EventPowerOff:
		if from != StatusOnline {
			return from, guard(from, ev, ErrNotOnline)
		}
		if locked {
			return from, guard(from, ev, ErrLocked)
		}
		return StatusShuttingDown, nil

	case EventHalted:
		if from != StatusShuttingDown {
			return from, guard(from, ev, ErrBadEvent)
		}
		return StatusOffline, nil
	}
	return from, guard(from, ev, ErrBadEvent)
}
