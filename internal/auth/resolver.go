// Package auth implements the bearer-token authentication contract from §6:
// an "sk_live_"-prefixed token is an API key, bcrypt-verified against its
// 12-character prefix's row; anything else is a JWT, ES256-verified against
// a JWKS cache. Both paths resolve to the same user id shape, which is all
// the tenant session (internal/tenancy) needs to parameterize a scope.
// Deep JWT/JWKS protocol concerns are sketched to contract level only —
// production key rotation policy, revocation lists, and the JWKS endpoint's
// own availability are operational concerns outside this package.
package auth

import (
	"context"
	"fmt"
	"strings"
)

const apiKeyScheme = "sk_live_"

// Resolver authenticates a bearer token to the user id it belongs to.
type Resolver struct {
	apiKeys APIKeyStore
	jwt     *JWTVerifier
}

// NewResolver builds a Resolver. jwt may be nil if only API-key auth is
// configured (e.g. in a development security mode with no JWKS endpoint).
func NewResolver(apiKeys APIKeyStore, jwt *JWTVerifier) *Resolver {
	return &Resolver{apiKeys: apiKeys, jwt: jwt}
}

// Resolve authenticates token (the raw Authorization header value, already
// stripped of the "Bearer " prefix) and returns the owning user id.
func (r *Resolver) Resolve(ctx context.Context, token string) (string, error) {
	if strings.HasPrefix(token, apiKeyScheme) {
		return ResolveAPIKey(ctx, r.apiKeys, token)
	}
	if r.jwt == nil {
		return "", fmt.Errorf("auth: no jwt verifier configured")
	}
	return r.jwt.Resolve(token)
}
