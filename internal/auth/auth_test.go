package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_IssueAndValidate(t *testing.T) {
	s := NewService("secret", time.Hour)

	res, err := s.IssueToken("surf_1")
	require.NoError(t, err)
	assert.Equal(t, "surf_1", res.SurfaceID)

	sub, err := s.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "surf_1", sub)

	assert.NoError(t, s.Authorize(res.Token, "surf_1"))
	assert.ErrorIs(t, s.Authorize(res.Token, "surf_2"), ErrWrongSurface)
}

func TestService_RejectsBadTokens(t *testing.T) {
	s := NewService("secret", time.Hour)
	other := NewService("other-secret", time.Hour)

	foreign, err := other.IssueToken("surf_1")
	require.NoError(t, err)

	expired := NewService("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.IssueToken("surf_1")
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": foreign.Token,
		"expired":      old.Token,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.ValidateToken(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := NewService("secret", time.Hour)
	tok, err := s.IssueToken("surf_1")
	require.NoError(t, err)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.AuthMiddleware)
	api.HandleFunc("/surfaces/{id}/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(SurfaceIDFromContext(r.Context())))
	})

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{name: "valid", path: "/api/surfaces/surf_1/ping", header: "Bearer " + tok.Token, wantStatus: http.StatusOK},
		{name: "missing header", path: "/api/surfaces/surf_1/ping", wantStatus: http.StatusUnauthorized},
		{name: "bad format", path: "/api/surfaces/surf_1/ping", header: "Token " + tok.Token, wantStatus: http.StatusUnauthorized},
		{name: "bad token", path: "/api/surfaces/surf_1/ping", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "other surface", path: "/api/surfaces/surf_2/ping", header: "Bearer " + tok.Token, wantStatus: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "surf_1", rec.Body.String())
			}
		})
	}
}

func TestHandler_Refresh(t *testing.T) {
	s := NewService("secret", time.Hour)
	tok, err := s.IssueToken("surf_1")
	require.NoError(t, err)

	r := mux.NewRouter()
	r.Handle("/api/surfaces/{id}/token", s.AuthMiddleware(http.HandlerFunc(NewHandler(s).Refresh)))

	req := httptest.NewRequest(http.MethodPost, "/api/surfaces/surf_1/token", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res TokenResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "surf_1", res.SurfaceID)
	assert.NoError(t, s.Authorize(res.Token, "surf_1"))
}
