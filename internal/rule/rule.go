// Package rule defines the named, typed conjunction of signatures that the
// analyzer matches frames against.
package rule

import (
	"github.com/google/uuid"

	"github.com/iGTsan/flow-inspector/internal/signature"
)

// EventType is the closed set of event kinds a rule can produce.
type EventType string

// The built-in event types.  Unknown strings are rejected at parse time as
// EventInvalid.
const (
	EventInvalid    EventType = ""
	EventAlert      EventType = "Alert"
	EventNotify     EventType = "Notify"
	EventSaveToPcap EventType = "SaveToPcap"

	// EventTest1 and EventTest2 name event types with no built-in dispatcher
	// handler, for rule files exercising custom handler wiring end to end.
	EventTest1 EventType = "TestEvent1"
	EventTest2 EventType = "TestEvent2"
)

// ParseEventType validates s as an [EventType].
func ParseEventType(s string) (EventType, bool) {
	switch EventType(s) {
	case EventAlert, EventNotify, EventSaveToPcap, EventTest1, EventTest2:
		return EventType(s), true
	default:
		return EventInvalid, false
	}
}

// Rule is a named conjunction of signatures with an associated event type.
//
// Equality is defined as name, event type, and the content of its signatures
// (compared by value, in order), not pointer/handle identity: two rules
// loaded from different reloads that reference equivalent signatures compare
// equal.
type Rule struct {
	// ID is a random identifier assigned by New. Each reload constructs new
	// Rule values, so the same rule line gets a new ID on every reload.
	ID uuid.UUID

	Name       string
	EventType  EventType
	Signatures []*signature.Signature
}

// New returns a Rule.  signatures is held by reference, in the given order.
func New(name string, eventType EventType, signatures []*signature.Signature) *Rule {
	return &Rule{
		ID:         uuid.New(),
		Name:       name,
		EventType:  eventType,
		Signatures: signatures,
	}
}

// Check reports whether in satisfies every signature of r.  A rule with no
// signatures matches every frame.
func (r *Rule) Check(in signature.Input) bool {
	for _, s := range r.Signatures {
		if !s.Check(in) {
			return false
		}
	}

	return true
}

// Equal reports whether r and other are the same rule by name and signature
// content, regardless of signature handle identity.
func (r *Rule) Equal(other *Rule) bool {
	if r == nil || other == nil {
		return r == other
	}

	if r.Name != other.Name || r.EventType != other.EventType {
		return false
	}

	if len(r.Signatures) != len(other.Signatures) {
		return false
	}

	for i, s := range r.Signatures {
		if !s.Equal(other.Signatures[i]) {
			return false
		}
	}

	return true
}

// Hash folds the hashes of r's signatures together with its name, for use as
// a set key.
func (r *Rule) Hash() uint64 {
	// FNV-1a over the name bytes, then XOR in each signature's own content
	// hash. Signature order doesn't affect the hash; only conjunction order,
	// evaluated in Check, is order-sensitive.
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211

	h := uint64(offset64)
	for i := 0; i < len(r.Name); i++ {
		h ^= uint64(r.Name[i])
		h *= prime64
	}

	for _, s := range r.Signatures {
		h ^= s.Hash()
	}

	return h
}
