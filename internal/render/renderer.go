package render

import (
	"math"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
)

const outlineColor = "#000000"

// Highlight selects the annotation drawn with the highlight border, either
// by pointer or by id. The zero value highlights nothing.
type Highlight struct {
	Annotation *annotation.Annotation
	ID         string
}

// Matches reports whether a is the highlighted annotation.
func (h Highlight) Matches(a *annotation.Annotation) bool {
	if h.Annotation != nil {
		return h.Annotation == a
	}
	return h.ID != "" && a.ID == h.ID
}

// IsZero reports whether the highlight targets nothing.
func (h Highlight) IsZero() bool {
	return h.Annotation == nil && h.ID == ""
}

// Renderer paints annotations onto a Canvas.
type Renderer struct {
	style Style
}

func NewRenderer(style Style) *Renderer {
	return &Renderer{style: style}
}

// Style returns the styling in use.
func (r *Renderer) Style() Style { return r.style }

// Redraw clears the canvas and paints the annotations in order. With the
// foreground option the highlighted annotation is painted last; if several
// match, only the last one is deferred and earlier ones are painted when
// the next match is found.
func (r *Renderer) Redraw(c Canvas, list []*annotation.Annotation, hl Highlight) {
	c.Clear()

	var foreground *annotation.Annotation
	for _, a := range list {
		match := !hl.IsZero() && hl.Matches(a)
		if match && r.style.Foreground {
			if foreground != nil {
				r.Draw(c, foreground, true)
			}
			foreground = a
			continue
		}
		r.Draw(c, a, match)
	}
	if foreground != nil {
		r.Draw(c, foreground, true)
	}
}

// Draw paints a single annotation on top of whatever is on the canvas.
func (r *Renderer) Draw(c Canvas, a *annotation.Annotation, highlighted bool) {
	g := a.Geometry
	w, h := g.Width(), g.Height()
	x, y := -w/2, -h/2
	center := g.Center()

	c.Save()
	defer c.Restore()

	c.Translate(center.X, center.Y)
	c.Rotate(-g.Rotation() * math.Pi / 180)

	if a.Image != nil {
		c.DrawImage(a.Image, x, y, w, h)
	}

	if a.Image != nil && !r.style.ImageBorder {
		return
	}

	size, color := r.style.BorderSize, r.style.BorderColor
	if highlighted {
		size, color = r.style.HiBorderSize, r.style.HiBorderColor
	}

	c.StrokeRect(x+0.5, y+0.5, w-1, h-1, Stroke{Color: outlineColor, Width: 1, Join: JoinRound})
	c.StrokeRect(x+1+size/2, y+1+size/2, w-2-size, h-2-size, Stroke{Color: color, Width: size, Join: JoinMiter})
}
