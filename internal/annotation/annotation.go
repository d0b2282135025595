package annotation

import (
	"errors"
	"fmt"
	"image"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrInvalidInput marks malformed records and unusable image references.
var ErrInvalidInput = errors.New("invalid input")

// Image is an image bound to an annotation. Src is the reference it was
// loaded from; Data is nil until the image has been fetched.
type Image struct {
	Src  string
	Data image.Image
}

// Size returns the natural pixel size of the loaded image, or zeros.
func (img *Image) Size() (float64, float64) {
	if img == nil || img.Data == nil {
		return 0, 0
	}
	b := img.Data.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

// Annotation is a positioned rectangle carrying an optional image and text.
type Annotation struct {
	ID       string
	Image    *Image
	Text     string
	Geometry *Geometry
	Editable Editability

	createdAt int64
}

// New creates an annotation. createdAt is its identity and never changes.
func New(id string, img *Image, text string, geom *Geometry, editable Editability, createdAt int64) *Annotation {
	return &Annotation{
		ID:        id,
		Image:     img,
		Text:      text,
		Geometry:  geom,
		Editable:  editable.Normalize(),
		createdAt: createdAt,
	}
}

// CreatedAt returns the creation timestamp in milliseconds.
func (a *Annotation) CreatedAt() int64 { return a.createdAt }

// Serialize returns the plain-data record of the annotation.
func (a *Annotation) Serialize() Record {
	g := a.Geometry.Serialize()
	rec := Record{
		ID:        a.ID,
		Text:      a.Text,
		Position:  &g.Position,
		Rotation:  g.Rotation,
		Width:     g.Width,
		Height:    g.Height,
		Editable:  a.Editable.Normalize(),
		CreatedAt: a.createdAt,
	}
	if a.Image != nil {
		rec.Image = a.Image.Src
		rec.Loaded = a.Image
	}
	return rec
}

// EqualsRecord reports whether rec is a snapshot of this annotation.
func (a *Annotation) EqualsRecord(rec Record) bool {
	return rec.CreatedAt == a.createdAt
}

// Record is the serialized form exchanged with hosts.
type Record struct {
	ID        string      `json:"id,omitempty"`
	Image     string      `json:"image,omitempty"`
	Text      string      `json:"text,omitempty"`
	Position  *Position   `json:"position"`
	Rotation  float64     `json:"rotation"`
	Width     float64     `json:"width"`
	Height    float64     `json:"height"`
	Editable  Editability `json:"editable"`
	CreatedAt int64       `json:"created_at"`

	// Loaded is an already decoded image handle. It takes precedence over
	// the Image reference and never travels over the wire.
	Loaded *Image `json:"-"`
}

// Validate checks the fields required to place an annotation.
func (r Record) Validate() error {
	if r.Position == nil {
		return fmt.Errorf("missing position: %w", ErrInvalidInput)
	}
	if r.Position.Center == nil {
		return fmt.Errorf("missing position.center: %w", ErrInvalidInput)
	}
	if !r.Editable.Valid() {
		return fmt.Errorf("editable %q: %w", r.Editable, ErrInvalidInput)
	}
	if r.Loaded == nil && r.Image != "" {
		if err := ValidateImageRef(r.Image); err != nil {
			return err
		}
	}
	return nil
}

// NeedsLoad reports whether the record references an image not yet loaded.
func (r Record) NeedsLoad() bool {
	return r.Loaded == nil && r.Image != ""
}

// ValidateImageRef accepts absolute http(s) URLs and root-relative paths.
func ValidateImageRef(ref string) error {
	if strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//") {
		return nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("image %q: %w", ref, ErrInvalidInput)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("image %q is not an image url: %w", ref, ErrInvalidInput)
	}
	return nil
}

// FromRecord builds an annotation from a validated record. A missing size
// falls back to the natural image size, then to DefaultSize. A non-zero
// created_at is kept; otherwise stamp issues a new one.
func FromRecord(rec Record, img *Image, stamp *Stamper) (*Annotation, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if img == nil {
		img = rec.Loaded
	}
	if img == nil && rec.Image != "" {
		img = &Image{Src: rec.Image}
	}

	width, height := rec.Width, rec.Height
	iw, ih := img.Size()
	if width <= 0 {
		width = iw
	}
	if height <= 0 {
		height = ih
	}

	createdAt := rec.CreatedAt
	if createdAt == 0 {
		createdAt = stamp.Next()
	} else {
		stamp.Observe(createdAt)
	}

	geom := NewGeometry(*rec.Position.Center, width, height, rec.Rotation)
	return New(rec.ID, img, rec.Text, geom, rec.Editable, createdAt), nil
}

// Stamper issues creation timestamps in milliseconds. It never returns the
// same value twice, even within one millisecond.
type Stamper struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewStamper() *Stamper {
	return &Stamper{now: time.Now}
}

// Next returns a fresh timestamp strictly greater than any seen so far.
func (s *Stamper) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixMilli()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

// Observe records a timestamp restored from elsewhere so later stamps
// are issued above it.
func (s *Stamper) Observe(ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts > s.last {
		s.last = ts
	}
}
