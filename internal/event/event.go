// Package event defines the transient tuple produced when a rule matches a
// frame, and the type of the handlers that consume it.
package event

import (
	"github.com/iGTsan/flow-inspector/internal/frame"
	"github.com/iGTsan/flow-inspector/internal/rule"
)

// Event is the (event_type, rule, frame) tuple produced when a rule
// matches.  It is transient: it lives only for the duration of a single
// dispatch and must not be retained past the handler call that receives it.
type Event struct {
	Type  rule.EventType
	Rule  *rule.Rule
	Frame *frame.Frame
}

// Handler observes an Event by reference.  Handlers run synchronously, on
// the worker goroutine that produced the event, and must not block
// indefinitely.
type Handler func(e *Event)
