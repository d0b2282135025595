package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongSurface = errors.New("token not valid for this surface")
)

const DefaultTokenTTL = 24 * time.Hour

// Service issues and checks surface tokens. A token grants full control
// of one surface; its subject is the surface id.
type Service struct {
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewService(jwtSecret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
		now:       time.Now,
	}
}

type TokenResult struct {
	Token     string    `json:"token"`
	SurfaceID string    `json:"surfaceId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Service) IssueToken(surfaceID string) (*TokenResult, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub": surfaceID,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &TokenResult{Token: signed, SurfaceID: surfaceID, ExpiresAt: time.Unix(exp.Unix(), 0)}, nil
}

// ValidateToken returns the surface id the token was issued for.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("parse token: %w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	surfaceID, ok := claims["sub"].(string)
	if !ok || surfaceID == "" {
		return "", fmt.Errorf("missing subject: %w", ErrInvalidToken)
	}

	return surfaceID, nil
}

// Authorize checks that tokenString grants access to surfaceID.
func (s *Service) Authorize(tokenString, surfaceID string) error {
	sub, err := s.ValidateToken(tokenString)
	if err != nil {
		return err
	}
	if sub != surfaceID {
		return ErrWrongSurface
	}
	return nil
}
