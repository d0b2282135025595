// Package pointer turns mouse, touch and pen input into one stream of
// pointer events for the engine.
package pointer

import "sync"

// Kind is the input device that produced an event.
type Kind string

const (
	Mouse Kind = "mouse"
	Touch Kind = "touch"
	Pen   Kind = "pen"
)

// Action is what the pointer did.
type Action int

const (
	Move Action = iota
	Down
	Up
)

func (a Action) String() string {
	switch a {
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return "move"
	}
}

// Raw is a device event as the host received it. Type is the DOM event
// name, e.g. "mousedown", "touchmove" or "pointerup".
type Raw struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	// Kind overrides the kind inferred from Type, for "pointer*" events.
	Kind Kind `json:"pointerType,omitempty"`
	// ID identifies the touch or pointer; mice always use 0.
	ID int `json:"id,omitempty"`
}

// Event is a normalized pointer event in display coordinates.
type Event struct {
	Action Action
	X, Y   float64
	Kind   Kind
}

// Target receives normalized events.
type Target interface {
	PointerMove(x, y float64)
	PointerDown(x, y float64)
	PointerUp(x, y float64)
}

// Apply forwards ev to t.
func Apply(t Target, ev Event) {
	switch ev.Action {
	case Down:
		t.PointerDown(ev.X, ev.Y)
	case Up:
		t.PointerUp(ev.X, ev.Y)
	default:
		t.PointerMove(ev.X, ev.Y)
	}
}

var actions = map[string]Action{
	"mousedown":     Down,
	"mousemove":     Move,
	"mouseup":       Up,
	"touchstart":    Down,
	"touchmove":     Move,
	"touchend":      Up,
	"touchcancel":   Up,
	"pointerdown":   Down,
	"pointermove":   Move,
	"pointerup":     Up,
	"pointercancel": Up,
}

func kindOf(r Raw) Kind {
	if r.Kind != "" {
		return r.Kind
	}
	if len(r.Type) > 5 && r.Type[:5] == "touch" {
		return Touch
	}
	return Mouse
}

// Normalizer follows one primary contact at a time. Secondary touches are
// dropped so pinch gestures never reach the engine.
type Normalizer struct {
	// DragInProgress reports whether default touch handling (scrolling)
	// should be suppressed.
	DragInProgress func() bool

	mu      sync.Mutex
	primary *int
}

// Result is the outcome of normalizing one raw event.
type Result struct {
	Events []Event
	// PreventDefault asks the host to cancel the browser's own handling.
	PreventDefault bool
}

// Normalize converts raw into zero or more events. Touch contacts have no
// hover, so a touch press is preceded by a move to the same position.
func (n *Normalizer) Normalize(raw Raw) Result {
	action, ok := actions[raw.Type]
	if !ok {
		return Result{}
	}
	kind := kindOf(raw)
	ev := Event{Action: action, X: raw.X, Y: raw.Y, Kind: kind}

	var res Result
	if kind == Touch && n.DragInProgress != nil && n.DragInProgress() {
		res.PreventDefault = true
	}
	if kind == Mouse {
		res.Events = []Event{ev}
		return res
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	switch action {
	case Down:
		if n.primary != nil && *n.primary != raw.ID {
			return res
		}
		id := raw.ID
		n.primary = &id
		if kind == Touch {
			res.Events = append(res.Events, Event{Action: Move, X: raw.X, Y: raw.Y, Kind: kind})
		}
		res.Events = append(res.Events, ev)
	case Move:
		if n.primary != nil && *n.primary != raw.ID {
			return res
		}
		if n.primary == nil && kind == Touch {
			return res
		}
		res.Events = []Event{ev}
	case Up:
		if n.primary == nil || *n.primary != raw.ID {
			return res
		}
		n.primary = nil
		res.Events = []Event{ev}
	}
	return res
}

// Feed normalizes raw and applies the resulting events to t.
func (n *Normalizer) Feed(t Target, raw Raw) Result {
	res := n.Normalize(raw)
	for _, ev := range res.Events {
		Apply(t, ev)
	}
	return res
}
