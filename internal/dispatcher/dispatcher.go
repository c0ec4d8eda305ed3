// Package dispatcher implements the event dispatcher: a map from event type
// to an ordered list of handlers, invoked synchronously.
package dispatcher

import (
	"github.com/iGTsan/flow-inspector/internal/event"
	"github.com/iGTsan/flow-inspector/internal/rule"
)

// Dispatcher maps an [rule.EventType] to the ordered handlers registered for
// it.
//
// Registration ([Dispatcher.AddHandler]) is not synchronized: it happens
// only during setup, before any worker goroutine starts, exactly like the
// signature-builder registry in internal/ruleparser. [Dispatcher.Dispatch]
// itself takes no lock either; it only ever reads the handler slices built
// during that single-threaded setup phase.
type Dispatcher struct {
	handlers map[rule.EventType][]event.Handler
}

// New returns an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{handlers: make(map[rule.EventType][]event.Handler)}
}

// AddHandler appends h to the handler list for t.  Must be called before any
// call to Dispatch.
func (d *Dispatcher) AddHandler(t rule.EventType, h event.Handler) {
	d.handlers[t] = append(d.handlers[t], h)
}

// Dispatch invokes, in registration order, every handler registered for
// e.Type.  It runs synchronously on the calling goroutine (the worker that
// produced e).
func (d *Dispatcher) Dispatch(e *event.Event) {
	for _, h := range d.handlers[e.Type] {
		h(e)
	}
}
