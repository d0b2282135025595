package events

import (
	"sync"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
)

// Kind names an engine notification.
type Kind string

const (
	PointerMovedOverSurface Kind = "pointerMovedOverSurface"
	AnnotationCreated       Kind = "annotationCreated"
	AnnotationRemoved       Kind = "annotationRemoved"
	AnnotationUpdated       Kind = "annotationUpdated"
)

// Event is one notification. Payload is an annotation.Coordinate for
// pointer moves and a []annotation.Record otherwise: [record] for created
// and removed, [new, old] for updated.
type Event struct {
	Kind    Kind `json:"kind"`
	Payload any  `json:"payload"`
}

// Records returns the record payload, or nil for pointer events.
func (e Event) Records() []annotation.Record {
	recs, _ := e.Payload.([]annotation.Record)
	return recs
}

// Sink receives engine notifications.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events with the given kind.
func (r *Recorder) OfKind(kind Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Created builds an annotationCreated event.
func Created(rec annotation.Record) Event {
	return Event{Kind: AnnotationCreated, Payload: []annotation.Record{rec}}
}

// Removed builds an annotationRemoved event.
func Removed(rec annotation.Record) Event {
	return Event{Kind: AnnotationRemoved, Payload: []annotation.Record{rec}}
}

// Updated builds an annotationUpdated event carrying the new and old snapshots.
func Updated(newRec, oldRec annotation.Record) Event {
	return Event{Kind: AnnotationUpdated, Payload: []annotation.Record{newRec, oldRec}}
}

// PointerMoved builds a pointerMovedOverSurface event in native coordinates.
func PointerMoved(p annotation.Coordinate) Event {
	return Event{Kind: PointerMovedOverSurface, Payload: p}
}
