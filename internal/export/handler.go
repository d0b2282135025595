package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/metrics"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/render"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/surface"
)

// Source is what an export is rendered from.
type Source interface {
	Width() int
	Height() int
	Base() image.Image
	RenderTo(c render.Canvas)
}

// Render draws src onto a fresh raster, over the base image when
// withBase is set, and writes it as PNG.
func Render(w io.Writer, src Source, withBase bool) error {
	c := render.NewRasterCanvas(src.Width(), src.Height())
	if withBase {
		c.SetBackground(src.Base())
	}
	src.RenderTo(c)
	if err := c.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

type surfaceSource struct{ sf *surface.Surface }

func (s surfaceSource) Width() int               { return s.sf.Width }
func (s surfaceSource) Height() int              { return s.sf.Height }
func (s surfaceSource) Base() image.Image        { return s.sf.Base() }
func (s surfaceSource) RenderTo(c render.Canvas) { s.sf.Engine.RenderTo(c) }

type Handler struct {
	surfaces *surface.Service
	metrics  *metrics.Metrics
}

// NewHandler creates an export handler. m may be nil.
func NewHandler(surfaces *surface.Service, m *metrics.Metrics) *Handler {
	return &Handler{surfaces: surfaces, metrics: m}
}

// ExportPNG handles GET /api/surfaces/{id}/export.png. ?base=1 draws the
// annotations over the base image; ?name= sets the download file name.
func (h *Handler) ExportPNG(w http.ResponseWriter, r *http.Request) {
	sf, err := h.surfaces.Get(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, surface.ErrNotFound) {
			http.Error(w, "surface not found", http.StatusNotFound)
			return
		}
		slog.Error("export lookup", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	withBase := q.Get("base") == "1" || q.Get("base") == "true"

	var buf bytes.Buffer
	if err := Render(&buf, surfaceSource{sf}, withBase); err != nil {
		slog.Error("export render", "error", err, "surface", sf.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if h.metrics != nil {
		h.metrics.IncExports()
	}

	w.Header().Set("Content-Type", "image/png")
	if name := q.Get("name"); name != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.png"`, sanitize(name)))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
