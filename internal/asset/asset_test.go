package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	require.NoError(t, s.Put(ctx, "a.png", strings.NewReader("data"), 4, "image/png"))

	rc, err := s.Open(ctx, "a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	_, err = s.Open(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "a.png"))
	assert.ErrorIs(t, s.Delete(ctx, "a.png"), ErrNotFound)
}

func TestFileStore_RejectsPaths(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	for _, name := range []string{"", "../x.png", "sub/x.png", ".hidden"} {
		_, err := s.Open(ctx, name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
		assert.ErrorIs(t, s.Put(ctx, name, strings.NewReader(""), 0, ""), ErrInvalidName, name)
	}
}

func uploadRequest(t *testing.T, contentType string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="sticker.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandler_UploadAndServe(t *testing.T) {
	store := newFileStore(t)
	h := NewHandler(store)

	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, "image/png", pngBytes(t, 12, 7)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Width)
	assert.Equal(t, 7, resp.Height)
	assert.Equal(t, "png", resp.Type)
	assert.Equal(t, "sticker.png", resp.Name)
	require.True(t, strings.HasPrefix(resp.URL, "/assets/asset_"))

	r := mux.NewRouter()
	r.HandleFunc("/assets/{file}", h.Serve)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, resp.URL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/nope.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_UploadRejects(t *testing.T) {
	h := NewHandler(newFileStore(t))

	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{name: "wrong type", contentType: "text/plain", body: []byte("hello")},
		{name: "not an image", contentType: "image/png", body: []byte("garbage")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Upload(rec, uploadRequest(t, tt.contentType, tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLoader_FetchesOverHTTP(t *testing.T) {
	body := pngBytes(t, 5, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img.png":
			w.Write(body)
		case "/bad.png":
			w.Write([]byte("nope"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l, err := NewLoader(srv.URL, nil)
	require.NoError(t, err)
	ctx := context.Background()

	img, err := l.Load(ctx, "/img.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 3), img.Bounds())

	img, err = l.Load(ctx, srv.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())

	_, err = l.Load(ctx, "/missing.png")
	assert.Error(t, err)

	_, err = l.Load(ctx, "/bad.png")
	assert.Error(t, err)
}

func TestLoader_ReadsStoredAssets(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	body := pngBytes(t, 9, 4)
	require.NoError(t, store.Put(ctx, "asset_x.png", bytes.NewReader(body), int64(len(body)), "image/png"))

	l, err := NewLoader("http://annotate.invalid", store)
	require.NoError(t, err)

	img, err := l.Load(ctx, "/assets/asset_x.png")
	require.NoError(t, err)
	assert.Equal(t, 9, img.Bounds().Dx())

	img, err = l.Load(ctx, "http://annotate.invalid/assets/asset_x.png")
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dy())

	_, err = l.Load(ctx, "/assets/other.png")
	assert.ErrorIs(t, err, ErrNotFound)
}
