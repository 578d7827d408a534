package fsm

import (
	"context"

	"github.com/looplab/fsm"
)

// EventPrefix starts the name of every event built by Complete.
const EventPrefix = "to_"

// WrapEvent adapts fn to a looplab callback. A returned error is stored on
// the event and surfaces from FSM.Event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// EventTo names the event leading into dst.
func EventTo[S ~string](dst S) string {
	return EventPrefix + string(dst)
}

// Complete returns one event per state, each reachable from every state.
func Complete[S ~string](states ...S) fsm.Events {
	src := make([]string, 0, len(states))
	for _, s := range states {
		src = append(src, string(s))
	}
	events := make(fsm.Events, 0, len(states))
	for _, s := range states {
		events = append(events, fsm.EventDesc{Name: EventTo(s), Src: src, Dst: string(s)})
	}
	return events
}

// StringArg returns the i-th event argument if it is a string.
func StringArg(e *fsm.Event, i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	s, _ := e.Args[i].(string)
	return s
}
