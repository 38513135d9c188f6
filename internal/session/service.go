// Package session signs and verifies the bearer tokens handed to clients
// after a successful login.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/entity"
)

// DefaultTTL is the validity of a session token.
const DefaultTTL = 30 * 24 * time.Hour

var (
	// ErrInvalidToken covers bad signatures, malformed tokens and expired claims.
	ErrInvalidToken = errors.New("session: invalid token")
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("session: missing bearer token")
	// ErrStaleToken is returned when the identity's token version moved on.
	ErrStaleToken = errors.New("session: token version mismatch")
	// ErrWrongService is returned when the token was issued for another service.
	ErrWrongService = errors.New("session: issuing service mismatch")
)

// Claims is the signed session payload.
type Claims struct {
	UserID       string         `json:"user_id"`
	TokenVersion int64          `json:"token_version"`
	Service      entity.Service `json:"issuer"`
	jwt.RegisteredClaims
}

// IdentityGetter loads identities for Authenticate.
type IdentityGetter interface {
	Get(ctx context.Context, id string) (*entity.Identity, error)
}

// Service issues HS512 session tokens with a fixed secret.
type Service struct {
	secret     []byte
	ttl        time.Duration
	identities IdentityGetter
	now        func() time.Time
}

// NewService returns a Service. A zero ttl means DefaultTTL.
func NewService(secret string, ttl time.Duration, identities IdentityGetter) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{secret: []byte(secret), ttl: ttl, identities: identities, now: time.Now}
}

// Sign issues a token for the identity at the given version and service.
func (s *Service) Sign(userID string, tokenVersion int64, service entity.Service) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:       userID,
		TokenVersion: tokenVersion,
		Service:      service,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return "", apperr.Internal(err, "failed to sign session token")
	}
	return signed, nil
}

// Verify checks signature and expiry. Every failure is Unauthorized.
func (s *Service) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, apperr.Unauthorized(fmt.Errorf("%w: %v", ErrInvalidToken, err), "invalid session token")
	}
	return claims, nil
}

// Authenticate resolves an Authorization header to the identity it was
// issued for. Stale token versions are Unauthorized; tokens issued for a
// different service than the identity's are Forbidden.
func (s *Service) Authenticate(ctx context.Context, authorization string) (*entity.Identity, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return nil, apperr.Unauthorized(ErrMissingToken, "missing bearer token")
	}
	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	i, err := s.identities.Get(ctx, claims.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized(err, "invalid session token")
		}
		return nil, err
	}
	if claims.TokenVersion != i.TokenVersion {
		return nil, apperr.Unauthorized(ErrStaleToken, "session has been invalidated")
	}
	if claims.Service != i.IssuingService {
		return nil, apperr.Forbidden(ErrWrongService, "session was issued for a different service")
	}
	return i, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authorization string) (string, bool) {
	const prefix = "bearer "
	if len(authorization) < len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(authorization[len(prefix):])
	return token, token != ""
}
