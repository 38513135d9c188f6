package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/entity"
)

const secret = "test-secret"

type identities map[string]*entity.Identity

func (m identities) Get(_ context.Context, id string) (*entity.Identity, error) {
	i, ok := m[id]
	if !ok {
		return nil, apperr.NotFound(nil, "identity not found")
	}
	return i, nil
}

func TestSignVerify(t *testing.T) {
	s := NewService(secret, 0, nil)
	token, err := s.Sign("ABCDEFGHIJKLMNOPQRST", 3, entity.ServiceLocalhost)
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJKLMNOPQRST", claims.UserID)
	assert.Equal(t, int64(3), claims.TokenVersion)
	assert.Equal(t, entity.ServiceLocalhost, claims.Service)
	assert.WithinDuration(t, claims.IssuedAt.Add(DefaultTTL), claims.ExpiresAt.Time, time.Second)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	require.NoError(t, err)
	assert.Equal(t, "HS512", parsed.Method.Alg())
}

func TestVerify_AlteredToken(t *testing.T) {
	s := NewService(secret, 0, nil)
	token, err := s.Sign("ABCDEFGHIJKLMNOPQRST", 0, entity.ServiceLocalhost)
	require.NoError(t, err)

	// The last signature character carries padding bits and is skipped.
	for i := 0; i < len(token)-1; i++ {
		if token[i] == '.' {
			continue
		}
		replacement := byte('A')
		if token[i] == 'A' {
			replacement = 'B'
		}
		altered := token[:i] + string(replacement) + token[i+1:]
		_, err := s.Verify(altered)
		require.Error(t, err, "position %d", i)
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestVerify_Rejects(t *testing.T) {
	s := NewService(secret, 0, nil)
	past := NewService(secret, 0, nil)
	past.now = func() time.Time { return time.Now().Add(-31 * 24 * time.Hour) }
	expired, err := past.Sign("ABCDEFGHIJKLMNOPQRST", 0, entity.ServiceLocalhost)
	require.NoError(t, err)

	otherSecret, err := NewService("other", 0, nil).Sign("ABCDEFGHIJKLMNOPQRST", 0, entity.ServiceLocalhost)
	require.NoError(t, err)

	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "ABCDEFGHIJKLMNOPQRST",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: "ABCDEFGHIJKLMNOPQRST"}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"other secret": otherSecret,
		"wrong alg":    hs256,
		"no expiry":    noExpiry,
		"garbage":      "not.a.token",
		"empty":        "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(token)
			assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "got %v", err)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	ids := identities{
		"ABCDEFGHIJKLMNOPQRST": {ID: "ABCDEFGHIJKLMNOPQRST", TokenVersion: 2, IssuingService: entity.ServiceLocalhost},
	}
	s := NewService(secret, 0, ids)

	valid, err := s.Sign("ABCDEFGHIJKLMNOPQRST", 2, entity.ServiceLocalhost)
	require.NoError(t, err)
	i, err := s.Authenticate(ctx, "Bearer "+valid)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJKLMNOPQRST", i.ID)

	_, err = s.Authenticate(ctx, "bearer "+valid)
	require.NoError(t, err)

	stale, err := s.Sign("ABCDEFGHIJKLMNOPQRST", 1, entity.ServiceLocalhost)
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, "Bearer "+stale)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.ErrorIs(t, err, ErrStaleToken)

	otherService, err := s.Sign("ABCDEFGHIJKLMNOPQRST", 2, entity.Service("BILLING"))
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, "Bearer "+otherService)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.ErrorIs(t, err, ErrWrongService)

	unknown, err := s.Sign("ZZZZZZZZZZZZZZZZZZZZ", 0, entity.ServiceLocalhost)
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, "Bearer "+unknown)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic " + valid, valid} {
		_, err := s.Authenticate(ctx, header)
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "header %q", header)
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("BEARER abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
	_, ok = BearerToken(strings.Repeat(" ", 10))
	assert.False(t, ok)
}
