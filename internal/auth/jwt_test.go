package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKey(t *testing.T) (*ecdsa.PrivateKey, jwk) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	j := jwk{
		Kid: "test-kid",
		Kty: "EC",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(priv.X.Bytes()),
		Y:   base64.RawURLEncoding.EncodeToString(priv.Y.Bytes()),
	}
	return priv, j
}

func signTestToken(t *testing.T, priv *ecdsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(priv)
	require.NoError(t, err)
	return signed
}

func TestJWTVerifier_ValidTokenResolvesSubject(t *testing.T) {
	priv, key := generateTestKey(t)
	fetcher := func() (*jwksDocument, error) { return &jwksDocument{Keys: []jwk{key}}, nil }
	verifier := NewJWTVerifier(NewJWKSCache(fetcher), "authenticated", "https://example.test/auth/v1")

	claims := jwt.MapClaims{
		"sub": "user-123",
		"aud": "authenticated",
		"iss": "https://example.test/auth/v1",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := signTestToken(t, priv, key.Kid, claims)

	sub, err := verifier.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", sub)
}

func TestJWTVerifier_WrongAudienceFails(t *testing.T) {
	priv, key := generateTestKey(t)
	fetcher := func() (*jwksDocument, error) { return &jwksDocument{Keys: []jwk{key}}, nil }
	verifier := NewJWTVerifier(NewJWKSCache(fetcher), "authenticated", "")

	claims := jwt.MapClaims{
		"sub": "user-123",
		"aud": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := signTestToken(t, priv, key.Kid, claims)

	_, err := verifier.Resolve(token)
	assert.Error(t, err)
}

func TestJWTVerifier_ExpiredTokenFails(t *testing.T) {
	priv, key := generateTestKey(t)
	fetcher := func() (*jwksDocument, error) { return &jwksDocument{Keys: []jwk{key}}, nil }
	verifier := NewJWTVerifier(NewJWKSCache(fetcher), "authenticated", "")

	claims := jwt.MapClaims{
		"sub": "user-123",
		"aud": "authenticated",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	token := signTestToken(t, priv, key.Kid, claims)

	_, err := verifier.Resolve(token)
	assert.Error(t, err)
}

func TestJWTVerifier_UnknownKidFailsWithoutRetry(t *testing.T) {
	priv, key := generateTestKey(t)
	calls := 0
	fetcher := func() (*jwksDocument, error) {
		calls++
		return &jwksDocument{Keys: []jwk{key}}, nil
	}
	verifier := NewJWTVerifier(NewJWKSCache(fetcher), "authenticated", "")

	claims := jwt.MapClaims{
		"sub": "user-123",
		"aud": "authenticated",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := signTestToken(t, priv, "other-kid", claims)

	_, err := verifier.Resolve(token)
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "a miss refreshes once, not recursively")
}

func TestJWTVerifier_CachesVerifiedPayload(t *testing.T) {
	priv, key := generateTestKey(t)
	calls := 0
	fetcher := func() (*jwksDocument, error) {
		calls++
		return &jwksDocument{Keys: []jwk{key}}, nil
	}
	verifier := NewJWTVerifier(NewJWKSCache(fetcher), "authenticated", "")

	claims := jwt.MapClaims{
		"sub": "user-123",
		"aud": "authenticated",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := signTestToken(t, priv, key.Kid, claims)

	_, err := verifier.Resolve(token)
	require.NoError(t, err)
	_, err = verifier.Resolve(token)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second Resolve must not refetch jwks")
	sub, cached := verifier.cache.Get(token)
	assert.True(t, cached, "verified payload is cached keyed on the raw token")
	assert.Equal(t, "user-123", sub)
}
