package surface

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/auth"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/engine"
)

// TokenIssuer grants access to a newly created surface.
type TokenIssuer interface {
	IssueToken(surfaceID string) (*auth.TokenResult, error)
}

type Handler struct {
	service *Service
	tokens  TokenIssuer
}

func NewHandler(service *Service, tokens TokenIssuer) *Handler {
	return &Handler{service: service, tokens: tokens}
}

type createResponse struct {
	Surface Info   `json:"surface"`
	Token   string `json:"token"`
}

type addRequest struct {
	Annotation annotation.Record  `json:"annotation"`
	Replaced   *annotation.Record `json:"replaced,omitempty"`
}

type removeRequest struct {
	Annotation *annotation.Record `json:"annotation"`
}

type highlightRequest struct {
	Annotation *annotation.Record `json:"annotation,omitempty"`
	ID         string             `json:"id,omitempty"`
}

// Create handles POST /api/surfaces.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sf, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	tok, err := h.tokens.IssueToken(sf.ID)
	if err != nil {
		h.service.Delete(sf.ID)
		slog.Error("issue surface token", "error", err, "surface", sf.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{Surface: sf.Info(), Token: tok.Token})
}

func (h *Handler) surface(w http.ResponseWriter, r *http.Request) (*Surface, bool) {
	sf, err := h.service.Get(mux.Vars(r)[auth.SurfaceVar])
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return sf, true
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sf, ok := h.surface(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sf.Info())
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(mux.Vars(r)[auth.SurfaceVar]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAnnotations handles GET /api/surfaces/{id}/annotations.
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	sf, ok := h.surface(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sf.Engine.List())
}

// AddAnnotation handles POST /api/surfaces/{id}/annotations. Annotations
// with an image are inserted once it loads; the response is 202 unless
// ?wait=1 asks to block until then, in which case a failed load is a 422.
func (h *Handler) AddAnnotation(w http.ResponseWriter, r *http.Request) {
	sf, ok := h.surface(w, r)
	if !ok {
		return
	}

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	if r.URL.Query().Get("wait") != "" {
		if err := sf.Engine.AddOrReplaceWait(r.Context(), req.Annotation, req.Replaced); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sf.Engine.List())
		return
	}

	// Loads must outlive the request.
	ctx := context.WithoutCancel(r.Context())
	if err := sf.Engine.AddOrReplace(ctx, req.Annotation, req.Replaced); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.Annotation.NeedsLoad() {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusCreated, sf.Engine.List())
}

// RemoveAnnotations handles DELETE /api/surfaces/{id}/annotations. A body
// naming one annotation removes it; otherwise ?id= removes every
// annotation with that id, and no filter removes all.
func (h *Handler) RemoveAnnotations(w http.ResponseWriter, r *http.Request) {
	sf, ok := h.surface(w, r)
	if !ok {
		return
	}

	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Annotation != nil {
		if err := sf.Engine.RemoveRecord(*req.Annotation); err != nil {
			handleServiceError(w, err)
			return
		}
	} else {
		sf.Engine.RemoveAll(r.URL.Query().Get("id"))
	}
	writeJSON(w, http.StatusOK, sf.Engine.List())
}

// Highlight handles POST /api/surfaces/{id}/highlight.
func (h *Handler) Highlight(w http.ResponseWriter, r *http.Request) {
	sf, ok := h.surface(w, r)
	if !ok {
		return
	}

	var req highlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Annotation == nil && req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "annotation or id is required"})
		return
	}

	if err := sf.Engine.Highlight(engine.HighlightTarget{Record: req.Annotation, ID: req.ID}); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Hide(w http.ResponseWriter, r *http.Request) {
	sf, ok := h.surface(w, r)
	if !ok {
		return
	}
	sf.Engine.Hide()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	sf, ok := h.surface(w, r)
	if !ok {
		return
	}
	sf.Engine.Show()
	w.WriteHeader(http.StatusNoContent)
}

// Frame handles GET /api/surfaces/{id}/frame: the latest draw commands.
func (h *Handler) Frame(w http.ResponseWriter, r *http.Request) {
	sf, ok := h.surface(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sf.Commands.Frame())
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, annotation.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "surface not found"})
	case errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "annotation not found"})
	case errors.Is(err, engine.ErrImageLoad), errors.Is(err, engine.ErrNoLoader):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
