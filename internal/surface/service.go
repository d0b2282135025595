package surface

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/engine"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/events"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/metrics"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/overlay"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/render"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/typeid"
)

var ErrNotFound = errors.New("surface not found")

// Broadcaster pushes surface changes to connected clients.
type Broadcaster interface {
	BroadcastEvent(surfaceID string, ev events.Event)
	BroadcastRender(surfaceID string, frame render.Frame)
	BroadcastOverlay(surfaceID, kind string, payload any)
}

// Overlay kinds passed to BroadcastOverlay.
const (
	OverlayPopupShow = "popup.show"
	OverlayPopupHide = "popup.hide"
	OverlayHint      = "hint"
)

// PopupShown is the payload of OverlayPopupShow.
type PopupShown struct {
	Content overlay.PopupContent  `json:"content"`
	At      annotation.Coordinate `json:"at"`
}

// overlayView forwards a surface's popup and hint to the broadcaster.
// It runs with the overlay locked, so it only queues messages.
type overlayView struct {
	s  *Service
	id string
}

func (v overlayView) send(kind string, payload any) {
	if b := v.s.currentBroadcaster(); b != nil {
		b.BroadcastOverlay(v.id, kind, payload)
	}
}

func (v overlayView) ShowPopup(content overlay.PopupContent, at annotation.Coordinate) {
	v.send(OverlayPopupShow, PopupShown{Content: content, At: at})
}

func (v overlayView) HidePopup() { v.send(OverlayPopupHide, nil) }

func (v overlayView) RenderHint(st overlay.HintState) { v.send(OverlayHint, st) }

// Surface is one live annotatable image held by the server.
type Surface struct {
	ID        string
	Engine    *engine.Engine
	Commands  *render.CommandCanvas
	Width     int
	Height    int
	BaseImage string
	CreatedAt time.Time

	base image.Image
}

// Base returns the decoded base image, or nil when the surface has none.
func (s *Surface) Base() image.Image { return s.base }

// Info is the JSON view of a surface.
type Info struct {
	ID          string    `json:"id"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	BaseImage   string    `json:"baseImage,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Annotations int       `json:"annotations"`
	Hidden      bool      `json:"hidden"`
}

func (s *Surface) Info() Info {
	return Info{
		ID:          s.ID,
		Width:       s.Width,
		Height:      s.Height,
		BaseImage:   s.BaseImage,
		CreatedAt:   s.CreatedAt,
		Annotations: s.Engine.Len(),
		Hidden:      s.Engine.Hidden(),
	}
}

// CreateParams describe a new surface. A zero size is taken from the base
// image.
type CreateParams struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	BaseImage string `json:"baseImage,omitempty"`
}

type Service struct {
	mu       sync.RWMutex
	surfaces map[string]*Surface

	opts        engine.Options
	loader      engine.ImageLoader
	metrics     *metrics.Metrics
	broadcaster Broadcaster
}

// NewService creates an empty registry. loader and m may be nil.
func NewService(opts engine.Options, loader engine.ImageLoader, m *metrics.Metrics) *Service {
	return &Service{
		surfaces: make(map[string]*Surface),
		opts:     opts,
		loader:   loader,
		metrics:  m,
	}
}

// SetBroadcaster installs b for all surfaces, existing and future.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

func (s *Service) currentBroadcaster() Broadcaster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.broadcaster
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*Surface, error) {
	if p.Width < 0 || p.Height < 0 {
		return nil, fmt.Errorf("negative size: %w", annotation.ErrInvalidInput)
	}

	var base image.Image
	if p.BaseImage != "" {
		if err := annotation.ValidateImageRef(p.BaseImage); err != nil {
			return nil, err
		}
		if s.loader == nil {
			return nil, fmt.Errorf("base image: %w", engine.ErrNoLoader)
		}
		img, err := s.loader.Load(ctx, p.BaseImage)
		if err != nil {
			return nil, fmt.Errorf("load base image: %w: %w", annotation.ErrInvalidInput, err)
		}
		base = img
		if p.Width == 0 || p.Height == 0 {
			p.Width, p.Height = img.Bounds().Dx(), img.Bounds().Dy()
		}
	}
	if p.Width == 0 || p.Height == 0 {
		return nil, fmt.Errorf("surface needs a size or a base image: %w", annotation.ErrInvalidInput)
	}

	sf := &Surface{
		ID:        typeid.NewSurfaceID(),
		Commands:  render.NewCommandCanvas(),
		Width:     p.Width,
		Height:    p.Height,
		BaseImage: p.BaseImage,
		CreatedAt: time.Now(),
		base:      base,
	}
	sf.Engine = engine.New(s.engineConfig(sf))

	s.mu.Lock()
	s.surfaces[sf.ID] = sf
	n := len(s.surfaces)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetSurfaces(n)
	}
	slog.Info("surface created", "surface", sf.ID, "width", sf.Width, "height", sf.Height)
	return sf, nil
}

func (s *Service) engineConfig(sf *Surface) engine.Config {
	id := sf.ID
	view := overlayView{s: s, id: id}
	sinks := events.Multi{events.SinkFunc(func(ev events.Event) {
		if b := s.currentBroadcaster(); b != nil {
			b.BroadcastEvent(id, ev)
		}
	})}
	cfg := engine.Config{
		Options:       s.opts,
		Canvas:        sf.Commands,
		Loader:        s.loader,
		Logger:        slog.With("surface", id),
		NaturalWidth:  float64(sf.Width),
		NaturalHeight: float64(sf.Height),
		PopupView:     view,
		HintView:      view,
		OnRedraw: func() {
			if b := s.currentBroadcaster(); b != nil {
				b.BroadcastRender(id, sf.Commands.Frame())
			}
		},
	}
	if s.metrics != nil {
		sinks = append(sinks, s.metrics.Sink())
		cfg.OnImageLoad = s.metrics.ObserveImageLoad
	}
	cfg.Sink = sinks
	return cfg
}

func (s *Service) Get(id string) (*Surface, error) {
	if err := typeid.ValidateSurfaceID(id); err != nil {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sf, ok := s.surfaces[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return sf, nil
}

func (s *Service) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.surfaces[id]
	delete(s.surfaces, id)
	n := len(s.surfaces)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if s.metrics != nil {
		s.metrics.SetSurfaces(n)
	}
	slog.Info("surface deleted", "surface", id)
	return nil
}

func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.surfaces)
}
