package render

import (
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
)

// LineJoin is the corner style of a stroked rectangle.
type LineJoin string

const (
	JoinRound LineJoin = "round"
	JoinMiter LineJoin = "miter"
)

// Stroke describes how a rectangle outline is painted.
type Stroke struct {
	Color string   `json:"color"`
	Width float64  `json:"width"`
	Join  LineJoin `json:"join"`
}

// Canvas is the drawing target of the renderer. It follows the Canvas2D
// model: a current transform that Save and Restore push and pop.
type Canvas interface {
	// Clear erases the surface and starts a new frame.
	Clear()
	Save()
	Restore()
	Translate(x, y float64)
	// Rotate rotates the current transform by radians.
	Rotate(radians float64)
	DrawImage(img *annotation.Image, x, y, w, h float64)
	StrokeRect(x, y, w, h float64, s Stroke)
}

// Style holds the annotation border options.
type Style struct {
	BorderColor   string  `yaml:"borderColor" json:"borderColor"`
	BorderSize    float64 `yaml:"borderSize" json:"borderSize"`
	HiBorderColor string  `yaml:"hiBorderColor" json:"hiBorderColor"`
	HiBorderSize  float64 `yaml:"hiBorderSize" json:"hiBorderSize"`
	ImageBorder   bool    `yaml:"imageBorder" json:"imageBorder"`
	Foreground    bool    `yaml:"foreground" json:"foreground"`
}

// DefaultStyle returns the stock border styling.
func DefaultStyle() Style {
	return Style{
		BorderColor:   "#ffffff",
		BorderSize:    2,
		HiBorderColor: "#fff000",
		HiBorderSize:  2.2,
		ImageBorder:   true,
		Foreground:    true,
	}
}
