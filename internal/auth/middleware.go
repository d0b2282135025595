package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type contextKey string

const SurfaceIDKey contextKey = "surfaceID"

// SurfaceVar is the route variable holding the surface id.
const SurfaceVar = "id"

// AuthMiddleware requires a Bearer token for the surface named in the
// route.
func (s *Service) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
			return
		}

		surfaceID := mux.Vars(r)[SurfaceVar]
		if err := s.Authorize(parts[1], surfaceID); err != nil {
			if errors.Is(err, ErrWrongSurface) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "token not valid for this surface"})
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}

		ctx := context.WithValue(r.Context(), SurfaceIDKey, surfaceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SurfaceIDFromContext(ctx context.Context) string {
	surfaceID, _ := ctx.Value(SurfaceIDKey).(string)
	return surfaceID
}
