// Package result separates "the resource does not exist yet" from "the
// lookup failed" for optional resources.
package result

import "fmt"

// Presence is the outcome of a Lookup.
type Presence int

const (
	Absent Presence = iota
	Present
	Failed
)

func (p Presence) String() string {
	switch p {
	case Absent:
		return "absent"
	case Present:
		return "present"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("presence(%d)", int(p))
}

// Lookup holds an optional resource. Value is set only when Present; Err
// only when Failed.
type Lookup[T any] struct {
	Presence Presence
	Value    *T
	Err      error
}

// Found wraps an existing value.
func Found[T any](v *T) Lookup[T] {
	return Lookup[T]{Presence: Present, Value: v}
}

// Missing reports a resource that does not exist yet.
func Missing[T any]() Lookup[T] {
	return Lookup[T]{Presence: Absent}
}

// Failure reports a lookup that could not determine presence.
func Failure[T any](err error) Lookup[T] {
	return Lookup[T]{Presence: Failed, Err: err}
}

func (l Lookup[T]) IsPresent() bool { return l.Presence == Present }
func (l Lookup[T]) IsAbsent() bool  { return l.Presence == Absent }
func (l Lookup[T]) IsFailed() bool  { return l.Presence == Failed }
