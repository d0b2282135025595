package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/events"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/overlay"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/render"
)

var (
	ErrNotFound = errors.New("annotation not found")
	ErrNoLoader = errors.New("no image loader configured")
	// ErrImageLoad wraps failures to fetch or decode an annotation image.
	ErrImageLoad = errors.New("image load failed")
)

// State is the interaction state of an engine.
type State int

const (
	StateIdle State = iota
	StateHovering
	StateDraggingNew
	StateMoving
	StateRotating
	StateEditingText
)

func (s State) String() string {
	switch s {
	case StateHovering:
		return "hovering"
	case StateDraggingNew:
		return "dragging-new"
	case StateMoving:
		return "moving"
	case StateRotating:
		return "rotating"
	case StateEditingText:
		return "editing-text"
	default:
		return "idle"
	}
}

// Cursor is the pointer shape requested from the host surface.
type Cursor string

const (
	CursorDefault Cursor = "default"
	CursorMove    Cursor = "move"
)

// Surface is the host element the engine draws on.
type Surface interface {
	SetCursor(Cursor)
}

// ImageLoader fetches an image by reference.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// DragAttributes are the properties a drag source declares for the
// annotation it creates. Zero sizes fall back to the image's natural size.
type DragAttributes struct {
	ID       string
	Text     string
	Width    float64
	Height   float64
	Rotation float64
	Editable annotation.Editability
	Image    *annotation.Image
}

// DragItem is an item being dragged from an external source.
// Implementations must be comparable; the engine tells drags apart by
// item identity.
type DragItem interface {
	Attributes() DragAttributes
	// SetProxyVisible shows or hides the source's own drag image.
	SetProxyVisible(visible bool)
}

// HighlightTarget selects an annotation by record or by id.
type HighlightTarget struct {
	Record *annotation.Record
	ID     string
}

// Config wires an engine to its collaborators. Only Canvas is required.
type Config struct {
	Options   Options
	Canvas    render.Canvas
	Sink      events.Sink
	Surface   Surface
	PopupView overlay.PopupView
	HintView  overlay.HintView
	Loader    ImageLoader
	Logger    *slog.Logger

	// NaturalWidth and NaturalHeight are the base image size.
	NaturalWidth  float64
	NaturalHeight float64

	// OnImageLoad is called after every asynchronous image load.
	OnImageLoad func(elapsed time.Duration, err error)
	// OnRedraw is called, outside the engine lock, after any operation
	// that repainted the canvas.
	OnRedraw func()
}

type editSession struct {
	kind   State
	target *annotation.Annotation
	old    annotation.Record

	// Moving: pointer minus center at press time.
	offset annotation.Coordinate
	// Rotating: angle of the previous tick in degrees, nil until known.
	baseline *float64
}

// Engine is one annotatable surface: the annotation collection, the
// interaction state machine and the redraw logic. All methods are safe for
// concurrent use; events are delivered to the sink after the engine lock
// is released, so sinks may call back into the engine.
type Engine struct {
	mu sync.Mutex

	opts        Options
	canvas      render.Canvas
	renderer    *render.Renderer
	sink        events.Sink
	surface     Surface
	popup       *overlay.Popup
	hint        *overlay.Hint
	loader      ImageLoader
	onImageLoad func(time.Duration, error)
	onRedraw    func()
	stamp       *annotation.Stamper
	viewport    Viewport
	log         *slog.Logger

	annotations Collection
	hidden      bool

	state    State
	current  *annotation.Annotation
	dragged  *annotation.Annotation
	dragItem DragItem
	dragging bool
	edit     *editSession
	pointer  *annotation.Coordinate

	pending []events.Event
	redrawn bool
	loads   sync.WaitGroup
}

// New creates an engine.
func New(cfg Config) *Engine {
	sink := cfg.Sink
	if sink == nil {
		sink = events.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts := cfg.Options

	return &Engine{
		opts:        opts,
		canvas:      cfg.Canvas,
		renderer:    render.NewRenderer(opts.AnnotationStyle),
		sink:        sink,
		surface:     cfg.Surface,
		popup:       overlay.NewPopup(cfg.PopupView, opts.Popup, opts.Timing.PopupHideDelay),
		hint:        overlay.NewHint(cfg.HintView, opts.Hint, opts.Timing.HintHideDelay),
		loader:      cfg.Loader,
		onImageLoad: cfg.OnImageLoad,
		onRedraw:    cfg.OnRedraw,
		stamp:       annotation.NewStamper(),
		viewport:    Viewport{NaturalWidth: cfg.NaturalWidth, NaturalHeight: cfg.NaturalHeight},
		log:         logger,
	}
}

// --- Locking helpers ---

func (e *Engine) emit(ev events.Event) {
	e.pending = append(e.pending, ev)
}

// unlockAndFlush releases the lock, then delivers queued events.
func (e *Engine) unlockAndFlush() {
	pending := e.pending
	redrawn := e.redrawn
	e.pending = nil
	e.redrawn = false
	e.mu.Unlock()

	for _, ev := range pending {
		e.sink.Emit(ev)
	}
	if redrawn && e.onRedraw != nil {
		e.onRedraw()
	}
}

// --- Drawing ---

func (e *Engine) redraw(hl render.Highlight) {
	e.redrawn = true
	if e.hidden {
		e.canvas.Clear()
		return
	}
	e.renderer.Redraw(e.canvas, e.annotations.All(), hl)
}

func (e *Engine) drawOnTop(a *annotation.Annotation) {
	e.redrawn = true
	if !e.hidden {
		e.renderer.Draw(e.canvas, a, false)
	}
}

func (e *Engine) setCursor(c Cursor) {
	if e.surface != nil {
		e.surface.SetCursor(c)
	}
}

func (e *Engine) popupPosition(a *annotation.Annotation) annotation.Coordinate {
	return e.viewport.FromNative(a.Geometry.LowerVertex())
}

// --- Pointer input (display coordinates) ---

// PointerMove is the main clock of the state machine.
func (e *Engine) PointerMove(x, y float64) {
	e.mu.Lock()
	defer e.unlockAndFlush()

	p := e.viewport.ToNative(x, y)
	e.pointer = &p
	e.emit(events.PointerMoved(p))

	if e.dragged != nil {
		e.dragged.Geometry.Move(p)
		e.redraw(render.Highlight{})
		e.drawOnTop(e.dragged)
		return
	}

	if e.edit != nil {
		e.applyEdit(p)
		return
	}

	e.hover(p)
}

func (e *Engine) hover(p annotation.Coordinate) {
	top := e.annotations.HitTest(p)
	if top == nil {
		e.current = nil
		e.state = StateIdle
		e.setCursor(CursorDefault)
		e.popup.Hide(false)
		e.redraw(render.Highlight{})
		return
	}

	if top != e.current {
		e.current = top
		e.state = StateHovering
		e.hint.ShowMove()
		e.setCursor(CursorMove)
		e.redraw(render.Highlight{Annotation: top})
		e.popup.Show(top, e.popupPosition(top))
		return
	}

	if e.popup.Hidden() {
		e.popup.Show(top, e.popupPosition(top))
	}
}

func (e *Engine) applyEdit(p annotation.Coordinate) {
	s := e.edit
	g := s.target.Geometry

	switch s.kind {
	case StateMoving:
		g.Move(annotation.Coordinate{X: p.X - s.offset.X, Y: p.Y - s.offset.Y})
		e.redraw(render.Highlight{Annotation: s.target})

	case StateRotating:
		c := g.Center()
		angle := math.Atan2(p.Y-c.Y, p.X-c.X) * 180 / math.Pi
		if s.baseline != nil {
			g.Rotate(g.Rotation() + (*s.baseline - angle))
		}
		s.baseline = &angle
		e.redraw(render.Highlight{Annotation: s.target})
	}
}

// PointerDown starts moving the hovered annotation.
func (e *Engine) PointerDown(x, y float64) {
	e.mu.Lock()
	defer e.unlockAndFlush()

	a := e.current
	if a == nil || e.edit != nil || e.dragged != nil {
		return
	}
	if !a.Editable.CanEditStructure() {
		return
	}

	p := e.viewport.ToNative(x, y)
	e.pointer = &p
	e.popup.Hide(true)

	c := a.Geometry.Center()
	e.edit = &editSession{
		kind:   StateMoving,
		target: a,
		old:    a.Serialize(),
		offset: annotation.Coordinate{X: p.X - c.X, Y: p.Y - c.Y},
	}
	e.state = StateMoving
}

// PointerUp commits an active move or rotation.
func (e *Engine) PointerUp(x, y float64) {
	e.mu.Lock()
	defer e.unlockAndFlush()

	s := e.edit
	if s == nil || (s.kind != StateMoving && s.kind != StateRotating) {
		return
	}
	e.edit = nil
	e.current = nil
	e.state = StateIdle
	if e.annotations.Contains(s.target) {
		e.emit(events.Updated(s.target.Serialize(), s.old))
	}
}

// --- Drag source input (display coordinates) ---

// DragStarted marks that a drag began somewhere on the page.
func (e *Engine) DragStarted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dragging = true
}

// DragStopped marks that the drag ended, wherever it was dropped.
func (e *Engine) DragStopped() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dragging = false
}

// DragInProgress reports whether a drag is under way. Touch hosts use it
// to suppress scrolling.
func (e *Engine) DragInProgress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dragging || e.dragged != nil
}

// DragEnter synthesizes a new annotation from the dragged item at the
// pointer and hides the item's own proxy. A different item already over
// the surface is displaced and gets its proxy back.
func (e *Engine) DragEnter(item DragItem, x, y float64) {
	e.mu.Lock()
	defer e.unlockAndFlush()

	if item == nil || e.edit != nil {
		return
	}
	if e.dragItem != nil && e.dragItem != item {
		e.dragItem.SetProxyVisible(true)
	}

	attrs := item.Attributes()
	p := e.viewport.ToNative(x, y)
	e.pointer = &p

	width, height := attrs.Width, attrs.Height
	iw, ih := attrs.Image.Size()
	if width <= 0 {
		width = iw
	}
	if height <= 0 {
		height = ih
	}

	geom := annotation.NewGeometry(p, width, height, attrs.Rotation)
	e.dragged = annotation.New(attrs.ID, attrs.Image, attrs.Text, geom, attrs.Editable, e.stamp.Next())
	e.dragItem = item
	e.dragging = true
	e.current = nil
	e.state = StateDraggingNew
	e.popup.Hide(true)

	item.SetProxyVisible(false)
	e.redraw(render.Highlight{})
	e.drawOnTop(e.dragged)
}

// DragMove repositions the dragged annotation.
func (e *Engine) DragMove(x, y float64) {
	e.PointerMove(x, y)
}

// DragLeave discards the annotation dragged by item. It does nothing when
// item is not the one over the surface.
func (e *Engine) DragLeave(item DragItem) {
	e.mu.Lock()
	defer e.unlockAndFlush()

	if item == nil || e.dragged == nil || e.dragItem != item {
		return
	}
	item.SetProxyVisible(true)
	e.dragged = nil
	e.dragItem = nil
	e.state = StateIdle
	e.redraw(render.Highlight{})
}

// Drop commits the dragged annotation at the pointer.
func (e *Engine) Drop(x, y float64) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	e.dropLocked(x, y)
}

// DropItem is Drop for hosts with several drag sources: it commits only
// when item is the one over the surface.
func (e *Engine) DropItem(item DragItem, x, y float64) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if item == nil || e.dragItem != item {
		return
	}
	e.dropLocked(x, y)
}

func (e *Engine) dropLocked(x, y float64) {
	a := e.dragged
	if a == nil {
		return
	}
	p := e.viewport.ToNative(x, y)
	e.pointer = &p
	a.Geometry.Move(p)

	e.dragged = nil
	e.dragItem = nil
	e.dragging = false
	e.state = StateIdle

	e.annotations.Insert(a)
	e.redraw(render.Highlight{})
	e.emit(events.Created(a.Serialize()))
}

// --- Explicit actions ---

// StartRotate makes pointer moves rotate a until the next pointer-up.
func (e *Engine) StartRotate(a *annotation.Annotation) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	e.startRotateLocked(a)
}

func (e *Engine) startRotateLocked(a *annotation.Annotation) {
	if a == nil || !a.Editable.CanEditStructure() || !e.annotations.Contains(a) {
		return
	}
	if e.edit != nil {
		if e.edit.kind != StateEditingText {
			return
		}
		e.edit = nil
	}

	e.popup.Hide(true)
	e.hint.ShowRotate()
	e.setCursor(CursorDefault)

	s := &editSession{kind: StateRotating, target: a, old: a.Serialize()}
	if e.pointer != nil {
		c := a.Geometry.Center()
		angle := math.Atan2(e.pointer.Y-c.Y, e.pointer.X-c.X) * 180 / math.Pi
		s.baseline = &angle
	}
	e.edit = s
	e.current = a
	e.state = StateRotating
}

// Remove deletes a as a user action. Disabled annotations are left alone.
func (e *Engine) Remove(a *annotation.Annotation) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	e.removeLocked(a)
}

func (e *Engine) removeLocked(a *annotation.Annotation) {
	if a == nil || !a.Editable.CanEditStructure() {
		return
	}
	if !e.annotations.Remove(a) {
		return
	}
	e.forgetLocked(a)
	e.popup.Hide(true)
	e.emit(events.Removed(a.Serialize()))
	e.redraw(render.Highlight{})
}

// StartEditText begins a text edit on a if it allows one.
func (e *Engine) StartEditText(a *annotation.Annotation) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	e.startEditTextLocked(a)
}

func (e *Engine) startEditTextLocked(a *annotation.Annotation) {
	if a == nil || !a.Editable.CanEditText() || e.edit != nil || !e.annotations.Contains(a) {
		return
	}
	e.popup.Hide(true)
	e.edit = &editSession{kind: StateEditingText, target: a}
	e.current = a
	e.state = StateEditingText
	e.redraw(render.Highlight{Annotation: a})
}

// SetText changes the text of the annotation being edited. Every change
// emits an update event.
func (e *Engine) SetText(text string) {
	e.mu.Lock()
	defer e.unlockAndFlush()

	s := e.edit
	if s == nil || s.kind != StateEditingText {
		return
	}
	old := s.target.Serialize()
	s.target.Text = text
	e.emit(events.Updated(s.target.Serialize(), old))
	e.redraw(render.Highlight{Annotation: s.target})
}

// EndEditText leaves text editing.
func (e *Engine) EndEditText() {
	e.mu.Lock()
	defer e.unlockAndFlush()

	if e.edit == nil || e.edit.kind != StateEditingText {
		return
	}
	e.edit = nil
	e.current = nil
	e.state = StateIdle
	e.redraw(render.Highlight{})
}

// --- Popup actions ---

// PopupRotate starts rotating the popup's annotation.
func (e *Engine) PopupRotate() {
	e.mu.Lock()
	defer e.unlockAndFlush()
	e.startRotateLocked(e.popup.Target())
}

// PopupRemove removes the popup's annotation.
func (e *Engine) PopupRemove() {
	e.mu.Lock()
	defer e.unlockAndFlush()
	e.removeLocked(e.popup.Target())
}

// PopupEditText starts a text edit on the popup's annotation.
func (e *Engine) PopupEditText() {
	e.mu.Lock()
	defer e.unlockAndFlush()
	e.startEditTextLocked(e.popup.Target())
}

func (e *Engine) PopupPointerEnter() { e.popup.PointerEnter() }
func (e *Engine) PopupPointerLeave() { e.popup.PointerLeave() }

// PopupTarget returns a snapshot of the popup's annotation.
func (e *Engine) PopupTarget() (annotation.Record, bool) {
	a := e.popup.Target()
	if a == nil {
		return annotation.Record{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return a.Serialize(), true
}

// DragSourceHovered shows the default hint while the pointer is over a
// drag source.
func (e *Engine) DragSourceHovered() {
	e.hint.Show("", "")
}

// --- Host API ---

// AddOrReplace adds an annotation from rec, or replaces the annotation
// matching replaced in place. Records referencing an image by URL are
// inserted once the image has loaded; validation and the replaced lookup
// happen before this returns. Programmatic adds emit no event.
func (e *Engine) AddOrReplace(ctx context.Context, rec annotation.Record, replaced *annotation.Record) error {
	async, err := e.beginAdd(rec, replaced)
	if err != nil || !async {
		return err
	}
	go func() {
		defer e.loads.Done()
		if err := e.loadAndInsert(ctx, rec, replaced); err != nil {
			e.log.Warn("add annotation after image load", "image", rec.Image, "error", err)
		}
	}()
	return nil
}

// AddOrReplaceWait is AddOrReplace but blocks until the image has loaded
// and returns the load error, wrapped in ErrImageLoad.
func (e *Engine) AddOrReplaceWait(ctx context.Context, rec annotation.Record, replaced *annotation.Record) error {
	async, err := e.beginAdd(rec, replaced)
	if err != nil || !async {
		return err
	}
	defer e.loads.Done()
	return e.loadAndInsert(ctx, rec, replaced)
}

// beginAdd validates rec and inserts it at once when it needs no load.
// It reports true, with a load registered on e.loads, when the caller must
// load the image.
func (e *Engine) beginAdd(rec annotation.Record, replaced *annotation.Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, fmt.Errorf("add annotation: %w", err)
	}

	e.mu.Lock()
	if replaced != nil && e.annotations.FindByCreatedAt(replaced.CreatedAt) == nil {
		e.mu.Unlock()
		return false, fmt.Errorf("replace annotation %d: %w", replaced.CreatedAt, ErrNotFound)
	}
	if !rec.NeedsLoad() {
		defer e.unlockAndFlush()
		return false, e.insertLocked(rec, rec.Loaded, replaced)
	}
	if e.loader == nil {
		e.mu.Unlock()
		return false, fmt.Errorf("load %q: %w", rec.Image, ErrNoLoader)
	}
	e.loads.Add(1)
	e.mu.Unlock()
	return true, nil
}

func (e *Engine) loadAndInsert(ctx context.Context, rec annotation.Record, replaced *annotation.Record) error {
	start := time.Now()
	data, err := e.loader.Load(ctx, rec.Image)
	if e.onImageLoad != nil {
		e.onImageLoad(time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("load %q: %w: %w", rec.Image, ErrImageLoad, err)
	}

	e.mu.Lock()
	defer e.unlockAndFlush()
	return e.insertLocked(rec, &annotation.Image{Src: rec.Image, Data: data}, replaced)
}

func (e *Engine) insertLocked(rec annotation.Record, img *annotation.Image, replaced *annotation.Record) error {
	var old *annotation.Annotation
	if replaced != nil {
		old = e.annotations.FindByCreatedAt(replaced.CreatedAt)
		if old == nil {
			return fmt.Errorf("replace annotation %d: %w", replaced.CreatedAt, ErrNotFound)
		}
	}

	if rec.CreatedAt != 0 {
		if clash := e.annotations.FindByCreatedAt(rec.CreatedAt); clash != nil && clash != old {
			rec.CreatedAt = 0
		}
	}

	a, err := annotation.FromRecord(rec, img, e.stamp)
	if err != nil {
		return fmt.Errorf("build annotation: %w", err)
	}

	if old != nil {
		e.annotations.Replace(old, a)
		e.forgetLocked(old)
	} else {
		e.annotations.Insert(a)
	}
	e.redraw(render.Highlight{})
	return nil
}

// forgetLocked drops every reference the state machine holds to a.
func (e *Engine) forgetLocked(a *annotation.Annotation) {
	e.popup.Forget(a)
	if e.current == a {
		e.current = nil
	}
	if e.edit != nil && e.edit.target == a {
		e.edit = nil
	}
	if e.edit == nil && e.dragged == nil {
		e.state = StateIdle
	}
}

// WaitLoads blocks until all pending image loads have finished.
func (e *Engine) WaitLoads() {
	e.loads.Wait()
}

// List returns the records of all annotations in draw order.
func (e *Engine) List() []annotation.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	all := e.annotations.All()
	out := make([]annotation.Record, len(all))
	for i, a := range all {
		out[i] = a.Serialize()
	}
	return out
}

// Find returns the live annotation matching rec.
func (e *Engine) Find(rec annotation.Record) (*annotation.Annotation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.annotations.FindByCreatedAt(rec.CreatedAt)
	if a == nil {
		return nil, fmt.Errorf("find annotation %d: %w", rec.CreatedAt, ErrNotFound)
	}
	return a, nil
}

// RemoveRecord deletes the annotation matching rec. The host decides, so
// editability is not checked and no event is emitted.
func (e *Engine) RemoveRecord(rec annotation.Record) error {
	e.mu.Lock()
	defer e.unlockAndFlush()

	a := e.annotations.FindByCreatedAt(rec.CreatedAt)
	if a == nil {
		return fmt.Errorf("remove annotation %d: %w", rec.CreatedAt, ErrNotFound)
	}
	e.annotations.Remove(a)
	e.forgetLocked(a)
	e.popup.Hide(true)
	e.redraw(render.Highlight{})
	return nil
}

// RemoveAll deletes the annotations with the given id, or all of them
// when id is empty.
func (e *Engine) RemoveAll(id string) {
	e.mu.Lock()
	defer e.unlockAndFlush()

	var removed []*annotation.Annotation
	if id == "" {
		removed = e.annotations.Clear()
	} else {
		removed = e.annotations.RemoveByID(id)
	}
	for _, a := range removed {
		e.forgetLocked(a)
	}
	e.redraw(render.Highlight{})
}

// Hide blanks the surface until Show is called.
func (e *Engine) Hide() {
	e.mu.Lock()
	defer e.unlockAndFlush()

	e.hidden = true
	e.popup.Hide(true)
	e.hint.Hide()
	e.redraw(render.Highlight{})
}

// Show draws the annotations again after Hide.
func (e *Engine) Show() {
	e.mu.Lock()
	defer e.unlockAndFlush()

	e.hidden = false
	e.redraw(render.Highlight{})
}

// Hidden reports whether Hide is in effect.
func (e *Engine) Hidden() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hidden
}

// Highlight redraws with the target highlighted, as if hovered. A record
// must match a live annotation; an id is matched while drawing.
func (e *Engine) Highlight(target HighlightTarget) error {
	e.mu.Lock()
	defer e.unlockAndFlush()

	if target.Record != nil {
		a := e.annotations.FindByCreatedAt(target.Record.CreatedAt)
		if a == nil {
			return fmt.Errorf("highlight annotation %d: %w", target.Record.CreatedAt, ErrNotFound)
		}
		e.redraw(render.Highlight{Annotation: a})
		return nil
	}
	e.redraw(render.Highlight{ID: target.ID})
	return nil
}

// Redraw repaints the surface without highlight.
func (e *Engine) Redraw() {
	e.mu.Lock()
	defer e.unlockAndFlush()
	e.redraw(render.Highlight{})
}

// RenderTo draws every annotation onto c without highlight, ignoring Hide.
func (e *Engine) RenderTo(c render.Canvas) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderer.Redraw(c, e.annotations.All(), render.Highlight{})
}

// --- Surface geometry ---

// Resize sets the native size of the base image.
func (e *Engine) Resize(width, height float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.NaturalWidth = width
	e.viewport.NaturalHeight = height
}

// SetDisplaySize sets the size the surface is displayed at.
func (e *Engine) SetDisplaySize(width, height float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.DisplayWidth = width
	e.viewport.DisplayHeight = height
}

// Viewport returns the current display mapping.
func (e *Engine) Viewport() Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport
}

// --- Introspection ---

// State returns the interaction state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the hovered or edited annotation, if any.
func (e *Engine) Current() *annotation.Annotation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Len returns the number of annotations.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.annotations.Len()
}

// Options returns the settings the engine was created with.
func (e *Engine) Options() Options {
	return e.opts
}

// Hint returns the hint overlay.
func (e *Engine) Hint() *overlay.Hint { return e.hint }

// Popup returns the popup overlay.
func (e *Engine) Popup() *overlay.Popup { return e.popup }
