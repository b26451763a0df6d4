package events

import (
	"strings"
	"time"
)

// Kind is "<namespace>.<name>", e.g. "playback.started".
type Kind string

// Namespace is the part of the kind before the first dot.
func (k Kind) Namespace() string {
	namespace, _, _ := strings.Cut(string(k), ".")
	return namespace
}

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries what every session event has in common. Embed it and build it
// with NewBase.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

// Namespace groups the event with the others of its component, like
// "reply" for caption and reply updates.
func (b Base) Namespace() string {
	return b.kind.Namespace()
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
