package render

import (
	"encoding/json"
	"sync"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
)

// DrawCommand is one drawing operation for a remote Canvas2D to execute.
// Transforms are already resolved, so the frontend never tracks a stack.
type DrawCommand struct {
	Op          string    `json:"op"`                    // "clear", "image", "strokeRect"
	Transform   []float64 `json:"transform,omitempty"`   // [a, b, c, d, e, f]
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	Stroke      string    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
	LineJoin    LineJoin  `json:"lineJoin,omitempty"`
	ImageSrc    string    `json:"imageSrc,omitempty"`
}

// Frame is a complete command buffer for one redraw.
type Frame struct {
	Generation uint64        `json:"generation"`
	Commands   []DrawCommand `json:"commands"`
}

// CommandCanvas records draw calls as commands. Each Clear starts a new
// frame and bumps the generation. Safe for concurrent readers.
type CommandCanvas struct {
	mu         sync.Mutex
	base       Matrix2D
	current    Matrix2D
	stack      []Matrix2D
	commands   []DrawCommand
	generation uint64
}

func NewCommandCanvas() *CommandCanvas {
	return &CommandCanvas{base: Identity(), current: Identity()}
}

// SetBaseTransform sets the transform applied under every frame, for
// example a scale from native to display pixels.
func (c *CommandCanvas) SetBaseTransform(m Matrix2D) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = m
}

func (c *CommandCanvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.base
	c.stack = c.stack[:0]
	c.commands = []DrawCommand{{Op: "clear"}}
	c.generation++
}

func (c *CommandCanvas) Save() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stack = append(c.stack, c.current)
}

func (c *CommandCanvas) Restore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.stack); n > 0 {
		c.current = c.stack[n-1]
		c.stack = c.stack[:n-1]
	}
}

func (c *CommandCanvas) Translate(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Multiply(Translate(x, y))
}

func (c *CommandCanvas) Rotate(radians float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Multiply(Rotate(radians))
}

func (c *CommandCanvas) DrawImage(img *annotation.Image, x, y, w, h float64) {
	if img == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, DrawCommand{
		Op:        "image",
		Transform: c.current.ToSlice(),
		X:         x,
		Y:         y,
		Width:     w,
		Height:    h,
		ImageSrc:  img.Src,
	})
}

func (c *CommandCanvas) StrokeRect(x, y, w, h float64, s Stroke) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, DrawCommand{
		Op:          "strokeRect",
		Transform:   c.current.ToSlice(),
		X:           x,
		Y:           y,
		Width:       w,
		Height:      h,
		Stroke:      s.Color,
		StrokeWidth: s.Width,
		LineJoin:    s.Join,
	})
}

// Frame returns a copy of the commands drawn since the last Clear.
func (c *CommandCanvas) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmds := make([]DrawCommand, len(c.commands))
	copy(cmds, c.commands)
	return Frame{Generation: c.generation, Commands: cmds}
}

// Generation returns how many frames have been started.
func (c *CommandCanvas) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// FrameJSON serializes the current frame.
func (c *CommandCanvas) FrameJSON() (string, error) {
	data, err := json.Marshal(c.Frame())
	if err != nil {
		return `{"commands":[]}`, err
	}
	return string(data), nil
}
