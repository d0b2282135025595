package overlay

import (
	"sync"
	"time"
)

// DefaultHintHideDelay is how long a hint stays visible.
const DefaultHintHideDelay = 3 * time.Second

// HintOptions configure the hint shown over the surface.
type HintOptions struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Message       string `yaml:"message" json:"message"`
	Icon          string `yaml:"icon" json:"icon"`
	MessageMove   string `yaml:"messageMove" json:"messageMove"`
	IconMove      string `yaml:"iconMove" json:"iconMove"`
	MessageRotate string `yaml:"messageRotate" json:"messageRotate"`
	IconRotate    string `yaml:"iconRotate" json:"iconRotate"`
}

func DefaultHintOptions() HintOptions {
	return HintOptions{
		Enabled:       true,
		Message:       "Drag and Drop to Annotate",
		Icon:          `<i class="far fa-question-circle"></i>`,
		MessageMove:   "Drag to set new annotation position",
		IconMove:      `<i class="fas fa-info"></i>`,
		MessageRotate: "Move to set new annotation rotation",
		IconRotate:    `<i class="fas fa-info"></i>`,
	}
}

// HintState is what the hint currently displays.
type HintState struct {
	Visible bool   `json:"visible"`
	Icon    string `json:"icon"`
	Message string `json:"message"`
}

// HintView displays the hint.
type HintView interface {
	RenderHint(HintState)
}

// Hint is a transient message that hides itself after a delay.
// A disabled hint ignores every call.
type Hint struct {
	mu    sync.Mutex
	view  HintView
	opts  HintOptions
	delay time.Duration
	state HintState
	timer *time.Timer
	gen   uint64
}

func NewHint(view HintView, opts HintOptions, delay time.Duration) *Hint {
	if delay <= 0 {
		delay = DefaultHintHideDelay
	}
	return &Hint{
		view:  view,
		opts:  opts,
		delay: delay,
		state: HintState{Icon: opts.Icon, Message: opts.Message},
	}
}

// Show displays the hint. Empty icon or message keep the current one.
// The auto-hide timer restarts on every call.
func (h *Hint) Show(icon, message string) {
	if !h.opts.Enabled {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopLocked()
	if icon != "" {
		h.state.Icon = icon
	}
	if message != "" {
		h.state.Message = message
	}
	h.state.Visible = true
	h.renderLocked()

	gen := h.gen
	h.timer = time.AfterFunc(h.delay, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if gen == h.gen {
			h.hideLocked()
		}
	})
}

// ShowMove shows the hint for hovering an annotation.
func (h *Hint) ShowMove() { h.Show(h.opts.IconMove, h.opts.MessageMove) }

// ShowRotate shows the hint for rotating an annotation.
func (h *Hint) ShowRotate() { h.Show(h.opts.IconRotate, h.opts.MessageRotate) }

// Hide hides the hint and restores the default icon and message.
func (h *Hint) Hide() {
	if !h.opts.Enabled {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hideLocked()
}

// State returns what the hint displays.
func (h *Hint) State() HintState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Hint) stopLocked() {
	h.gen++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *Hint) hideLocked() {
	h.stopLocked()
	h.state = HintState{Icon: h.opts.Icon, Message: h.opts.Message}
	h.renderLocked()
}

func (h *Hint) renderLocked() {
	if h.view != nil {
		h.view.RenderHint(h.state)
	}
}
