package export

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/engine"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/metrics"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/surface"
)

type blueLoader struct{}

func (blueLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{B: 255, A: 255})
		}
	}
	return img, nil
}

func setup(t *testing.T) (*mux.Router, *surface.Surface) {
	t.Helper()
	svc := surface.NewService(engine.DefaultOptions(), blueLoader{}, nil)
	sf, err := svc.Create(context.Background(), surface.CreateParams{BaseImage: "/assets/base.png"})
	require.NoError(t, err)

	rec := annotation.Record{
		ID:       "a",
		Position: &annotation.Position{Center: &annotation.Coordinate{X: 50, Y: 50}},
		Width:    40,
		Height:   40,
	}
	require.NoError(t, sf.Engine.AddOrReplace(context.Background(), rec, nil))

	h := NewHandler(svc, metrics.New(prometheus.NewRegistry()))
	r := mux.NewRouter()
	r.HandleFunc("/api/surfaces/{id}/export.png", h.ExportPNG)
	return r, sf
}

func get(t *testing.T, r *mux.Router, path string) (*httptest.ResponseRecorder, image.Image) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	return rec, img
}

func rgba(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestExportPNG_AnnotationsOnly(t *testing.T) {
	r, sf := setup(t)

	_, img := get(t, r, "/api/surfaces/"+sf.ID+"/export.png")

	assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
	border := rgba(img, 32, 50)
	assert.Greater(t, border.R, uint8(240))
	assert.Greater(t, border.G, uint8(240))
	assert.Equal(t, uint8(0), rgba(img, 5, 5).A)
}

func TestExportPNG_OverBase(t *testing.T) {
	r, sf := setup(t)
	sf.Engine.Hide()

	rec, img := get(t, r, "/api/surfaces/"+sf.ID+"/export.png?base=1&name=my%20shot")

	corner := rgba(img, 5, 5)
	assert.Greater(t, corner.B, uint8(240))
	assert.Equal(t, uint8(255), corner.A)
	border := rgba(img, 32, 50)
	assert.Greater(t, border.R, uint8(240), "hidden surfaces still export")
	assert.Equal(t, `attachment; filename="my-shot.png"`, rec.Header().Get("Content-Disposition"))
}

func TestExportPNG_NotFound(t *testing.T) {
	r, _ := setup(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/surfaces/surf_nope/export.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
