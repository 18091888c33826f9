package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/ltam/pkg/types"
)

func TestResolver_RoutesAPIKeyPrefixToAPIKeyPath(t *testing.T) {
	raw := "sk_live_abcdef1234567890"
	hash, err := HashAPIKey(raw)
	require.NoError(t, err)

	store := newFakeAPIKeyStore()
	store.byPrefix[raw[:12]] = &types.APIKey{ID: "key-1", UserID: "user-1", KeyHash: hash, Active: true}

	r := NewResolver(store, nil)
	userID, err := r.Resolve(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestResolver_RoutesNonPrefixedTokenToJWTPath(t *testing.T) {
	priv, key := generateTestKey(t)
	fetcher := func() (*jwksDocument, error) { return &jwksDocument{Keys: []jwk{key}}, nil }
	jwtVerifier := NewJWTVerifier(NewJWKSCache(fetcher), "authenticated", "")

	claims := jwt.MapClaims{
		"sub": "user-456",
		"aud": "authenticated",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := signTestToken(t, priv, key.Kid, claims)

	r := NewResolver(newFakeAPIKeyStore(), jwtVerifier)
	userID, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-456", userID)
}

func TestResolver_NoJWTVerifierConfiguredFailsGracefully(t *testing.T) {
	r := NewResolver(newFakeAPIKeyStore(), nil)
	_, err := r.Resolve(context.Background(), "not-an-api-key-token")
	assert.Error(t, err)
}
