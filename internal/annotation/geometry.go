package annotation

import (
	"math"
)

// DefaultSize is used for a missing width or height when no image supplies one.
const DefaultSize = 50.0

// Coordinate is a point in the base image's native pixel space.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vertices are the four corners of a rotated rectangle.
type Vertices struct {
	TopL Coordinate
	TopR Coordinate
	BotL Coordinate
	BotR Coordinate
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type vertexCache struct {
	vertices Vertices
	lower    Coordinate
}

// Geometry is a rectangle of fixed size rotated around its center.
// Screen convention: y grows downward.
type Geometry struct {
	center   Coordinate
	width    float64
	height   float64
	rotation float64

	// area is captured at construction and never recomputed.
	area float64

	// nil when the vertices are stale
	cache *vertexCache
}

// NewGeometry creates a geometry. Non-positive sizes fall back to DefaultSize.
func NewGeometry(center Coordinate, width, height, rotation float64) *Geometry {
	if width <= 0 {
		width = DefaultSize
	}
	if height <= 0 {
		height = DefaultSize
	}
	return &Geometry{
		center:   center,
		width:    width,
		height:   height,
		rotation: normalizeRotation(rotation),
		area:     width * height,
	}
}

func (g *Geometry) Center() Coordinate { return g.center }
func (g *Geometry) Width() float64     { return g.width }
func (g *Geometry) Height() float64    { return g.height }
func (g *Geometry) Rotation() float64  { return g.rotation }
func (g *Geometry) Area() float64      { return g.area }

// Update changes the center and/or the rotation. A nil argument leaves the
// field as it is. An explicit zero rotation resets it to zero, unlike older
// clients which treated 0 as "keep the current rotation".
func (g *Geometry) Update(center *Coordinate, rotation *float64) {
	if center != nil {
		g.center = *center
	}
	if rotation != nil {
		g.rotation = normalizeRotation(*rotation)
	}
	g.cache = nil
}

// Move is shorthand for Update(&center, nil).
func (g *Geometry) Move(center Coordinate) {
	g.Update(&center, nil)
}

// Rotate is shorthand for Update(nil, &degrees).
func (g *Geometry) Rotate(degrees float64) {
	g.Update(nil, &degrees)
}

// normalizeRotation subtracts full turns while the angle exceeds 360.
// Negative angles are kept as they are.
func normalizeRotation(r float64) float64 {
	for r > 360 {
		r -= 360
	}
	return r
}

// Vertices returns the corners, recomputing them if stale.
func (g *Geometry) Vertices() Vertices {
	return g.ensureCache().vertices
}

// LowerVertex returns the corner with the greatest y, the visually lowest
// point on screen. Ties keep the first candidate found.
func (g *Geometry) LowerVertex() Coordinate {
	return g.ensureCache().lower
}

func (g *Geometry) ensureCache() *vertexCache {
	if g.cache != nil {
		return g.cache
	}

	w := g.width / 2
	h := g.height / 2
	theta := g.rotation * math.Pi / 180
	sin := math.Sin(theta)
	cos := math.Cos(theta)
	cx, cy := g.center.X, g.center.Y

	v := Vertices{
		TopR: Coordinate{X: cx + w*cos - h*sin, Y: cy - w*sin - h*cos},
		TopL: Coordinate{X: cx - w*cos - h*sin, Y: cy + w*sin - h*cos},
		BotL: Coordinate{X: cx - w*cos + h*sin, Y: cy + w*sin + h*cos},
		BotR: Coordinate{X: cx + w*cos + h*sin, Y: cy - w*sin + h*cos},
	}

	lower := v.BotL
	for _, c := range []Coordinate{v.TopR, v.TopL, v.BotL, v.BotR} {
		if c.Y > lower.Y {
			lower = c
		}
	}

	g.cache = &vertexCache{vertices: v, lower: lower}
	return g.cache
}

// Intersect reports whether the point lies inside the rotated rectangle.
// The four triangles spanned by the point and the corner pairs are summed
// and compared against the construction-time area.
func (g *Geometry) Intersect(px, py float64) bool {
	v := g.Vertices()
	p := Coordinate{X: px, Y: py}
	sum := triangleArea(p, v.TopL, v.BotR) +
		triangleArea(p, v.BotR, v.BotL) +
		triangleArea(p, v.BotL, v.TopR) +
		triangleArea(p, v.TopR, v.TopL)
	return sum <= g.area
}

func triangleArea(p, a, b Coordinate) float64 {
	return math.Abs(p.X*a.Y-a.X*p.Y+b.X*p.Y-p.X*b.Y+a.X*b.Y-b.X*a.Y) / 2
}

// Bounds returns the axis-aligned box enclosing the rotated rectangle.
func (g *Geometry) Bounds() Rect {
	v := g.Vertices()
	minX := min(v.TopL.X, v.TopR.X, v.BotL.X, v.BotR.X)
	minY := min(v.TopL.Y, v.TopR.Y, v.BotL.Y, v.BotR.Y)
	maxX := max(v.TopL.X, v.TopR.X, v.BotL.X, v.BotR.X)
	maxY := max(v.TopL.Y, v.TopR.Y, v.BotL.Y, v.BotR.Y)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Position is the serialized placement of a geometry.
type Position struct {
	Center *Coordinate `json:"center"`
	TopL   Coordinate  `json:"topL"`
	TopR   Coordinate  `json:"topR"`
	BotL   Coordinate  `json:"botL"`
	BotR   Coordinate  `json:"botR"`
}

// GeometryRecord is the plain-data form of a geometry.
type GeometryRecord struct {
	Position Position `json:"position"`
	Rotation float64  `json:"rotation"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
}

// Serialize emits the center, the four corners and the size.
func (g *Geometry) Serialize() GeometryRecord {
	v := g.Vertices()
	center := g.center
	return GeometryRecord{
		Position: Position{
			Center: &center,
			TopL:   v.TopL,
			TopR:   v.TopR,
			BotL:   v.BotL,
			BotR:   v.BotR,
		},
		Rotation: g.rotation,
		Width:    g.width,
		Height:   g.height,
	}
}
