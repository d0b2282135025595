package engine

import (
	"math"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
)

// Viewport maps between display pixels and the base image's native pixels.
// Results are truncated to whole pixels in both directions. A zero size on
// either side maps one to one.
type Viewport struct {
	NaturalWidth  float64
	NaturalHeight float64
	DisplayWidth  float64
	DisplayHeight float64
}

func (v Viewport) scaled() bool {
	return v.NaturalWidth > 0 && v.NaturalHeight > 0 && v.DisplayWidth > 0 && v.DisplayHeight > 0
}

// ToNative converts a display position to native coordinates.
func (v Viewport) ToNative(x, y float64) annotation.Coordinate {
	if !v.scaled() {
		return annotation.Coordinate{X: math.Trunc(x), Y: math.Trunc(y)}
	}
	return annotation.Coordinate{
		X: math.Trunc(x / v.DisplayWidth * v.NaturalWidth),
		Y: math.Trunc(y / v.DisplayHeight * v.NaturalHeight),
	}
}

// FromNative converts a native position to display coordinates.
func (v Viewport) FromNative(c annotation.Coordinate) annotation.Coordinate {
	if !v.scaled() {
		return annotation.Coordinate{X: math.Trunc(c.X), Y: math.Trunc(c.Y)}
	}
	return annotation.Coordinate{
		X: math.Trunc(c.X * v.DisplayWidth / v.NaturalWidth),
		Y: math.Trunc(c.Y * v.DisplayHeight / v.NaturalHeight),
	}
}
