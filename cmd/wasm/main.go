//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sync"
	"syscall/js"

	_ "golang.org/x/image/webp"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/engine"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/events"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/overlay"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/pointer"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/render"
)

const maxImageBytes = 20 << 20

var (
	eng        *engine.Engine
	canvas     *render.CommandCanvas
	normalizer *pointer.Normalizer
	mu         sync.Mutex
)

var (
	listeners = map[string][]js.Value{}
	active    *dragItem
)

// notify carries engine and view notifications to js listeners. Frames,
// pointer positions and cursors only matter in their latest state.
var notify = events.NewQueue("render", "cursor", events.PointerMovedOverSurface)

func main() {
	go dispatch()

	api := js.Global().Get("Object").New()

	// --- Setup ---
	api.Set("create", js.FuncOf(create))
	api.Set("on", js.FuncOf(on))
	api.Set("resize", js.FuncOf(resize))
	api.Set("setDisplaySize", js.FuncOf(setDisplaySize))

	// --- Input ---
	api.Set("pointer", js.FuncOf(pointerInput))
	api.Set("dragStart", js.FuncOf(dragStart))
	api.Set("dragStop", js.FuncOf(dragStop))
	api.Set("dragEnter", js.FuncOf(dragEnter))
	api.Set("dragMove", js.FuncOf(dragMove))
	api.Set("dragLeave", js.FuncOf(dragLeave))
	api.Set("drop", js.FuncOf(drop))
	api.Set("dragSourceHover", js.FuncOf(dragSourceHover))
	api.Set("rotate", js.FuncOf(targetAction(func(a *annotation.Annotation) { eng.StartRotate(a) })))
	api.Set("remove", js.FuncOf(targetAction(func(a *annotation.Annotation) { eng.Remove(a) })))
	api.Set("editText", js.FuncOf(targetAction(func(a *annotation.Annotation) { eng.StartEditText(a) })))
	api.Set("setText", js.FuncOf(setText))
	api.Set("endEditText", js.FuncOf(simple(func() { eng.EndEditText() })))
	api.Set("popupRotate", js.FuncOf(simple(func() { eng.PopupRotate() })))
	api.Set("popupRemove", js.FuncOf(simple(func() { eng.PopupRemove() })))
	api.Set("popupEditText", js.FuncOf(simple(func() { eng.PopupEditText() })))
	api.Set("popupEnter", js.FuncOf(simple(func() { eng.PopupPointerEnter() })))
	api.Set("popupLeave", js.FuncOf(simple(func() { eng.PopupPointerLeave() })))

	// --- Host API ---
	api.Set("addAnnotation", js.FuncOf(addAnnotation))
	api.Set("getAnnotations", js.FuncOf(getAnnotations))
	api.Set("removeAnnotation", js.FuncOf(removeAnnotation))
	api.Set("removeAnnotations", js.FuncOf(removeAnnotations))
	api.Set("highlight", js.FuncOf(highlight))
	api.Set("hide", js.FuncOf(simple(func() { eng.Hide() })))
	api.Set("show", js.FuncOf(simple(func() { eng.Show() })))
	api.Set("redraw", js.FuncOf(simple(func() { eng.Redraw() })))
	api.Set("render", js.FuncOf(renderFrame))
	api.Set("state", js.FuncOf(state))

	js.Global().Set("dragDropAnnotate", api)
	js.Global().Set("dragDropAnnotateReady", js.ValueOf(true))

	select {}
}

// dispatch calls listeners outside any engine or overlay lock.
func dispatch() {
	notify.Run(func(ev events.Event) {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return
		}
		mu.Lock()
		fns := append([]js.Value(nil), listeners[string(ev.Kind)]...)
		mu.Unlock()
		for _, fn := range fns {
			fn.Invoke(string(data))
		}
	})
}

func post(kind string, payload any) {
	notify.Emit(events.Event{Kind: events.Kind(kind), Payload: payload})
}

func errorResult(err error) js.Value {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func okResult() js.Value {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func ready() error {
	if eng == nil {
		return fmt.Errorf("call create first")
	}
	return nil
}

// --- Host views ---

type view struct{}

func (view) SetCursor(c engine.Cursor) { post("cursor", string(c)) }

func (view) ShowPopup(content overlay.PopupContent, at annotation.Coordinate) {
	post("popup.show", map[string]any{"content": content, "at": at})
}

func (view) HidePopup() { post("popup.hide", nil) }

func (view) RenderHint(st overlay.HintState) { post("hint", st) }

type fetchLoader struct{}

// Load fetches ref through the browser's fetch API.
func (fetchLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", ref, resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return img, nil
}

type dragItem struct {
	attrs engine.DragAttributes
	proxy js.Value
}

func (d *dragItem) Attributes() engine.DragAttributes { return d.attrs }

func (d *dragItem) SetProxyVisible(visible bool) {
	if d.proxy.IsUndefined() || d.proxy.IsNull() {
		return
	}
	v := "hidden"
	if visible {
		v = "visible"
	}
	d.proxy.Get("style").Set("visibility", v)
}

// --- Setup handlers ---

// create(optionsJSON, naturalWidth, naturalHeight)
func create(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return js.ValueOf(map[string]interface{}{"error": "usage: create(options, width, height)"})
	}

	opts := engine.DefaultOptions()
	if s := args[0]; s.Type() == js.TypeString && s.String() != "" {
		if err := json.Unmarshal([]byte(s.String()), &opts); err != nil {
			return errorResult(fmt.Errorf("parse options: %w", err))
		}
	}

	canvas = render.NewCommandCanvas()
	eng = engine.New(engine.Config{
		Options:       opts,
		Canvas:        canvas,
		Surface:       view{},
		PopupView:     view{},
		HintView:      view{},
		Loader:        fetchLoader{},
		NaturalWidth:  args[1].Float(),
		NaturalHeight: args[2].Float(),
		Sink:          notify,
		OnRedraw:      func() { post("render", canvas.Frame()) },
	})
	normalizer = &pointer.Normalizer{DragInProgress: eng.DragInProgress}
	return okResult()
}

// on(kind, fn) subscribes fn to a notification kind: an event kind such
// as "annotationCreated", or "render", "cursor", "popup.show",
// "popup.hide" and "hint".
func on(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || args[1].Type() != js.TypeFunction {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	kind := args[0].String()
	listeners[kind] = append(listeners[kind], args[1])
	return nil
}

func resize(this js.Value, args []js.Value) interface{} {
	if ready() != nil || len(args) < 2 {
		return nil
	}
	eng.Resize(args[0].Float(), args[1].Float())
	return nil
}

func setDisplaySize(this js.Value, args []js.Value) interface{} {
	if ready() != nil || len(args) < 2 {
		return nil
	}
	eng.SetDisplaySize(args[0].Float(), args[1].Float())
	return nil
}

// --- Input handlers ---

// pointer(type, x, y, pointerType, id) returns whether the host should
// call preventDefault.
func pointerInput(this js.Value, args []js.Value) interface{} {
	if ready() != nil || len(args) < 3 {
		return js.ValueOf(false)
	}
	raw := pointer.Raw{Type: args[0].String(), X: args[1].Float(), Y: args[2].Float()}
	if len(args) > 3 && args[3].Type() == js.TypeString {
		raw.Kind = pointer.Kind(args[3].String())
	}
	if len(args) > 4 && args[4].Type() == js.TypeNumber {
		raw.ID = args[4].Int()
	}
	return js.ValueOf(normalizer.Feed(eng, raw).PreventDefault)
}

func simple(fn func()) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if ready() != nil {
			return nil
		}
		fn()
		return nil
	}
}

func dragStart(this js.Value, args []js.Value) interface{} {
	if ready() == nil {
		eng.DragStarted()
	}
	return nil
}

// dragStop cancels a drag that ended without a drop on the surface.
func dragStop(this js.Value, args []js.Value) interface{} {
	if ready() != nil {
		return nil
	}
	if d := takeActive(); d != nil {
		eng.DragLeave(d)
	}
	eng.DragStopped()
	return nil
}

// dragEnter(itemJSON, x, y, proxyElement). An item image is fetched first;
// the dragged annotation appears once it has loaded.
func dragEnter(this js.Value, args []js.Value) interface{} {
	if err := ready(); err != nil {
		return errorResult(err)
	}
	if len(args) < 3 {
		return js.ValueOf(map[string]interface{}{"error": "usage: dragEnter(item, x, y, proxy)"})
	}

	var item struct {
		ID       string                 `json:"id"`
		Text     string                 `json:"text"`
		Image    string                 `json:"image"`
		Width    float64                `json:"width"`
		Height   float64                `json:"height"`
		Rotation float64                `json:"rotation"`
		Editable annotation.Editability `json:"editable"`
	}
	if err := json.Unmarshal([]byte(args[0].String()), &item); err != nil {
		return errorResult(fmt.Errorf("parse item: %w", err))
	}

	d := &dragItem{attrs: engine.DragAttributes{
		ID:       item.ID,
		Text:     item.Text,
		Width:    item.Width,
		Height:   item.Height,
		Rotation: item.Rotation,
		Editable: item.Editable,
	}}
	if len(args) > 3 {
		d.proxy = args[3]
	}
	x, y := args[1].Float(), args[2].Float()
	setActive(d)

	if item.Image == "" {
		eng.DragEnter(d, x, y)
		return okResult()
	}

	// js callbacks must not block on network I/O.
	go func() {
		img, err := fetchLoader{}.Load(context.Background(), item.Image)
		if err != nil {
			post("error", err.Error())
			return
		}
		d.attrs.Image = &annotation.Image{Src: item.Image, Data: img}
		// The pointer may have left while the image loaded.
		if isActive(d) {
			eng.DragEnter(d, x, y)
		}
	}()
	return okResult()
}

func dragMove(this js.Value, args []js.Value) interface{} {
	if ready() != nil || len(args) < 2 {
		return nil
	}
	eng.DragMove(args[0].Float(), args[1].Float())
	return nil
}

func dragLeave(this js.Value, args []js.Value) interface{} {
	if ready() != nil {
		return nil
	}
	if d := takeActive(); d != nil {
		eng.DragLeave(d)
	}
	return nil
}

func drop(this js.Value, args []js.Value) interface{} {
	if ready() != nil || len(args) < 2 {
		return nil
	}
	if d := takeActive(); d != nil {
		eng.DropItem(d, args[0].Float(), args[1].Float())
	}
	return nil
}

func setActive(d *dragItem) {
	mu.Lock()
	defer mu.Unlock()
	active = d
}

func isActive(d *dragItem) bool {
	mu.Lock()
	defer mu.Unlock()
	return active == d
}

func takeActive() *dragItem {
	mu.Lock()
	defer mu.Unlock()
	d := active
	active = nil
	return d
}

func dragSourceHover(this js.Value, args []js.Value) interface{} {
	if ready() == nil {
		eng.DragSourceHovered()
	}
	return nil
}

// targetAction wraps an action on the annotation whose created_at is
// args[0].
func targetAction(fn func(*annotation.Annotation)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if err := ready(); err != nil {
			return errorResult(err)
		}
		if len(args) < 1 {
			return js.ValueOf(map[string]interface{}{"error": "missing created_at"})
		}
		a, err := eng.Find(annotation.Record{CreatedAt: int64(args[0].Float())})
		if err != nil {
			return errorResult(err)
		}
		fn(a)
		return okResult()
	}
}

func setText(this js.Value, args []js.Value) interface{} {
	if ready() != nil || len(args) < 1 {
		return nil
	}
	eng.SetText(args[0].String())
	return nil
}

// --- Host API handlers ---

func parseRecord(v js.Value) (*annotation.Record, error) {
	if v.IsUndefined() || v.IsNull() {
		return nil, nil
	}
	var rec annotation.Record
	if err := json.Unmarshal([]byte(v.String()), &rec); err != nil {
		return nil, fmt.Errorf("parse annotation: %w", err)
	}
	return &rec, nil
}

// addAnnotation(annotationJSON, replacedJSON)
func addAnnotation(this js.Value, args []js.Value) interface{} {
	if err := ready(); err != nil {
		return errorResult(err)
	}
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing annotation"})
	}
	rec, err := parseRecord(args[0])
	if err != nil {
		return errorResult(err)
	}
	if rec == nil {
		return js.ValueOf(map[string]interface{}{"error": "missing annotation"})
	}
	var replaced *annotation.Record
	if len(args) > 1 {
		if replaced, err = parseRecord(args[1]); err != nil {
			return errorResult(err)
		}
	}
	if err := eng.AddOrReplace(context.Background(), *rec, replaced); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func getAnnotations(this js.Value, args []js.Value) interface{} {
	if ready() != nil {
		return js.ValueOf("[]")
	}
	data, err := json.Marshal(eng.List())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(string(data))
}

// removeAnnotation(annotationJSON) removes one annotation.
func removeAnnotation(this js.Value, args []js.Value) interface{} {
	if err := ready(); err != nil {
		return errorResult(err)
	}
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing annotation"})
	}
	rec, err := parseRecord(args[0])
	if err != nil || rec == nil {
		return js.ValueOf(map[string]interface{}{"error": "missing annotation"})
	}
	if err := eng.RemoveRecord(*rec); err != nil {
		return errorResult(err)
	}
	return okResult()
}

// removeAnnotations(id) removes every annotation with id, or all of them.
func removeAnnotations(this js.Value, args []js.Value) interface{} {
	if ready() != nil {
		return nil
	}
	id := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		id = args[0].String()
	}
	eng.RemoveAll(id)
	return nil
}

// highlight(annotationJSON | id)
func highlight(this js.Value, args []js.Value) interface{} {
	if err := ready(); err != nil {
		return errorResult(err)
	}
	if len(args) < 1 || args[0].Type() != js.TypeString {
		return js.ValueOf(map[string]interface{}{"error": "missing annotation"})
	}

	var target engine.HighlightTarget
	s := args[0].String()
	if rec, err := parseRecord(args[0]); err == nil && rec != nil {
		target.Record = rec
	} else {
		target.ID = s
	}
	if err := eng.Highlight(target); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func renderFrame(this js.Value, args []js.Value) interface{} {
	if canvas == nil {
		return js.ValueOf(`{"commands":[]}`)
	}
	s, _ := canvas.FrameJSON()
	return js.ValueOf(s)
}

func state(this js.Value, args []js.Value) interface{} {
	if ready() != nil {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.State().String())
}
