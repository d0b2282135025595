package overlay

import (
	"sync"
	"time"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
)

// DefaultPopupHideDelay is how long a non-forced hide waits for the
// pointer to reach the popup.
const DefaultPopupHideDelay = 300 * time.Millisecond

// Popup actions.
const (
	ActionRotate = "rotate"
	ActionRemove = "remove"
	ActionEdit   = "edit"
)

// PopupOptions are the popup labels and tooltips.
type PopupOptions struct {
	ButtonRotate  string `yaml:"buttonRotate" json:"buttonRotate"`
	TooltipRotate string `yaml:"tooltipRotate" json:"tooltipRotate"`
	ButtonRemove  string `yaml:"buttonRemove" json:"buttonRemove"`
	TooltipRemove string `yaml:"tooltipRemove" json:"tooltipRemove"`
	ButtonEdit    string `yaml:"buttonEdit" json:"buttonEdit"`
	TooltipEdit   string `yaml:"tooltipEdit" json:"tooltipEdit"`
	TooltipText   string `yaml:"tooltipText" json:"tooltipText"`
}

func DefaultPopupOptions() PopupOptions {
	return PopupOptions{
		ButtonRotate:  `<i class="fas fa-sync-alt"></i>`,
		TooltipRotate: "Change the rotation of annotation",
		ButtonRemove:  `<i class="fas fa-trash"></i>`,
		TooltipRemove: "Remove the annotation",
		ButtonEdit:    `<i class="fas fa-pen"></i>`,
		TooltipEdit:   "Edit the text of annotation",
		TooltipText:   "Text of annotation",
	}
}

// Button is one action offered by the popup.
type Button struct {
	Action  string `json:"action"`
	Label   string `json:"label"`
	Tooltip string `json:"tooltip"`
}

// PopupContent is what the popup displays for an annotation.
type PopupContent struct {
	Text        string   `json:"text,omitempty"`
	TextTooltip string   `json:"textTooltip,omitempty"`
	Buttons     []Button `json:"buttons,omitempty"`
}

// PopupView displays the popup. Positions are in display coordinates.
// Views are called with the popup locked and must not call back into it.
type PopupView interface {
	ShowPopup(content PopupContent, at annotation.Coordinate)
	HidePopup()
}

// Popup tracks the popup shown next to the hovered annotation.
type Popup struct {
	mu      sync.Mutex
	view    PopupView
	opts    PopupOptions
	delay   time.Duration
	visible bool
	above   bool
	target  *annotation.Annotation
	timer   *time.Timer
	gen     uint64
}

// NewPopup creates a hidden popup. A nil view is allowed.
func NewPopup(view PopupView, opts PopupOptions, delay time.Duration) *Popup {
	if delay <= 0 {
		delay = DefaultPopupHideDelay
	}
	return &Popup{view: view, opts: opts, delay: delay}
}

// ContentFor builds the popup content for a. Buttons only appear when a
// accepts structural edits; the edit button also needs text permission.
func (p *Popup) ContentFor(a *annotation.Annotation) PopupContent {
	c := PopupContent{Text: a.Text}
	if a.Text != "" {
		c.TextTooltip = p.opts.TooltipText
	}
	if a.Editable.CanEditStructure() {
		c.Buttons = append(c.Buttons,
			Button{Action: ActionRotate, Label: p.opts.ButtonRotate, Tooltip: p.opts.TooltipRotate},
			Button{Action: ActionRemove, Label: p.opts.ButtonRemove, Tooltip: p.opts.TooltipRemove},
		)
	}
	if a.Editable.CanEditText() {
		c.Buttons = append(c.Buttons, Button{Action: ActionEdit, Label: p.opts.ButtonEdit, Tooltip: p.opts.TooltipEdit})
	}
	return c
}

// Show displays the popup for a at the given display position and cancels
// any pending hide.
func (p *Popup) Show(a *annotation.Annotation, at annotation.Coordinate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelLocked()
	p.target = a
	p.visible = true
	if p.view != nil {
		p.view.ShowPopup(p.ContentFor(a), at)
	}
}

// Hide hides the popup. A forced hide is immediate. Otherwise nothing
// happens while the pointer is above the popup, and the popup disappears
// after the delay unless the pointer has reached it by then.
func (p *Popup) Hide(force bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.visible || (p.above && !force) {
		return
	}
	if force {
		p.cancelLocked()
		p.hideLocked()
		return
	}
	if p.timer != nil {
		return
	}

	gen := p.gen
	p.timer = time.AfterFunc(p.delay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.gen {
			return
		}
		p.timer = nil
		if !p.above {
			p.hideLocked()
		}
	})
}

// Hidden reports whether the popup is hidden.
func (p *Popup) Hidden() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.visible
}

// Target returns the annotation the popup is showing, or nil.
func (p *Popup) Target() *annotation.Annotation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// PointerEnter records that the pointer is above the popup.
func (p *Popup) PointerEnter() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.above = true
}

// PointerLeave records that the pointer left the popup.
func (p *Popup) PointerLeave() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.above = false
}

// Forget drops a if it is the popup's target, hiding the popup.
func (p *Popup) Forget(a *annotation.Annotation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.target == a {
		p.cancelLocked()
		p.hideLocked()
	}
}

func (p *Popup) cancelLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Popup) hideLocked() {
	p.target = nil
	p.visible = false
	p.above = false
	if p.view != nil {
		p.view.HidePopup()
	}
}
