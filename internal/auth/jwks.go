package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// jwksTTL is how long a fetched public key is trusted before a lookup is
// forced to refetch (§6: "the JWKS cache holds keys for 1 hour").
const jwksTTL = time.Hour

// jwk is the subset of RFC 7517 fields ES256 keys carry.
type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// KeyFetcher retrieves the current JWKS document from the identity
// provider. http.Get against SecurityConfig.JWKSURL in production; swapped
// for a fixture in tests.
type KeyFetcher func() (*jwksDocument, error)

// HTTPKeyFetcher builds a KeyFetcher that GETs url and parses the response
// as a standard JWKS document.
func HTTPKeyFetcher(client *http.Client, url string) KeyFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return func() (*jwksDocument, error) {
		resp, err := client.Get(url)
		if err != nil {
			return nil, fmt.Errorf("auth: fetch jwks: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("auth: fetch jwks: status %d", resp.StatusCode)
		}
		var doc jwksDocument
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return nil, fmt.Errorf("auth: decode jwks: %w", err)
		}
		return &doc, nil
	}
}

// JWKSCache resolves a kid to an ECDSA public key, caching each key for
// jwksTTL and refreshing once, non-recursively, on any lookup miss (§6).
type JWKSCache struct {
	fetch KeyFetcher
	cache *lru.LRU[string, *ecdsa.PublicKey]
}

// NewJWKSCache builds a cache backed by fetch, sized for a realistic number
// of concurrently valid signing keys.
func NewJWKSCache(fetch KeyFetcher) *JWKSCache {
	return &JWKSCache{
		fetch: fetch,
		cache: lru.NewLRU[string, *ecdsa.PublicKey](32, nil, jwksTTL),
	}
}

// Key returns the public key for kid, refreshing the whole JWKS document
// once if kid isn't already cached.
func (c *JWKSCache) Key(kid string) (*ecdsa.PublicKey, error) {
	if key, ok := c.cache.Get(kid); ok {
		return key, nil
	}
	if err := c.refresh(); err != nil {
		return nil, err
	}
	key, ok := c.cache.Get(kid)
	if !ok {
		return nil, fmt.Errorf("auth: unknown jwks kid %q", kid)
	}
	return key, nil
}

func (c *JWKSCache) refresh() error {
	doc, err := c.fetch()
	if err != nil {
		return err
	}
	for _, k := range doc.Keys {
		if k.Kty != "EC" || k.Crv != "P-256" {
			continue
		}
		pub, err := parseES256JWK(k)
		if err != nil {
			continue
		}
		c.cache.Add(k.Kid, pub)
	}
	return nil
}

func parseES256JWK(k jwk) (*ecdsa.PublicKey, error) {
	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("auth: decode jwk x: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, fmt.Errorf("auth: decode jwk y: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}, nil
}
