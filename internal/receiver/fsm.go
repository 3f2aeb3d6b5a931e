package receiver

import (
	"errors"
	"log"

	"github.com/looplab/fsm"
)

const (
	stateClosed      = "closed"
	stateConfiguring = "configuring"
	stateMonitoring  = "monitoring"
	stateFailed      = "failed"
)

const (
	eventOpen       = "open"
	eventConfigured = "configured"
	eventFail       = "fail"
	eventClose      = "close"
)

func newLifecycle(name string) *fsm.FSM {
	return fsm.NewFSM(
		stateClosed,
		fsm.Events{
			{Name: eventOpen, Src: []string{stateClosed, stateFailed}, Dst: stateConfiguring},
			{Name: eventConfigured, Src: []string{stateConfiguring}, Dst: stateMonitoring},
			{Name: eventFail, Src: []string{stateConfiguring, stateMonitoring}, Dst: stateFailed},
			{Name: eventClose, Src: []string{stateConfiguring, stateMonitoring, stateFailed}, Dst: stateClosed},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				log.Printf("receiver state device=%s %s -> %s", name, e.Src, e.Dst)
			},
		},
	)
}

// fire triggers event, ignoring transitions that are not valid from the
// current state (e.g. fail after close).
func fire(f *fsm.FSM, event string) {
	err := f.Event(event)
	if err == nil {
		return
	}
	var invalid fsm.InvalidEventError
	var noTransition fsm.NoTransitionError
	if errors.As(err, &invalid) || errors.As(err, &noTransition) {
		return
	}
	log.Printf("receiver fsm event=%s: %v", event, err)
}
