package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Refresh handles POST /api/surfaces/{id}/token behind AuthMiddleware and
// returns a fresh token for the same surface.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	surfaceID := SurfaceIDFromContext(r.Context())
	if surfaceID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	result, err := h.service.IssueToken(surfaceID)
	if err != nil {
		slog.Error("refresh token failed", "error", err, "surface", surfaceID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
