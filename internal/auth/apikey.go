package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/pkg/types"
)

// APIKeyStore is the narrow slice of internal/store.APIKeyStore this package
// needs, declared locally so auth never imports the whole store package.
type APIKeyStore interface {
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*types.APIKey, error)
	TouchAPIKeyUsage(ctx context.Context, id string, usedAt time.Time) error
}

// apiKeyPrefixLen is the length of the public, non-secret prefix (including
// the "sk_live_" scheme tag) used to look up a key's row before the bcrypt
// comparison (§6).
const apiKeyPrefixLen = 12

// ResolveAPIKey verifies raw against the stored bcrypt hash for the row its
// 12-character prefix selects and returns the owning user id. It updates
// last_used_at and request_count on success, matching the bookkeeping §6
// requires of the api-key path.
func ResolveAPIKey(ctx context.Context, store APIKeyStore, raw string) (string, error) {
	if len(raw) < apiKeyPrefixLen {
		return "", apperr.Wrap(apperr.Unauthorized, "api key too short")
	}
	prefix := raw[:apiKeyPrefixLen]

	key, err := store.GetAPIKeyByPrefix(ctx, prefix)
	if errors.Is(err, apperr.NotFound) {
		return "", apperr.Wrap(apperr.Unauthorized, "unknown api key")
	}
	if err != nil {
		return "", fmt.Errorf("auth: lookup api key: %w", apperr.Wrap(apperr.Transient, "api key store unavailable"))
	}

	now := time.Now().UTC()
	if !key.IsUsable(now) {
		return "", apperr.Wrap(apperr.Unauthorized, "api key revoked or expired")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(raw)); err != nil {
		return "", apperr.Wrap(apperr.Unauthorized, "api key mismatch")
	}

	if err := store.TouchAPIKeyUsage(ctx, key.ID, now); err != nil {
		return "", fmt.Errorf("auth: touch api key usage: %w", err)
	}

	return key.UserID, nil
}

// HashAPIKey bcrypt-hashes a freshly generated key at creation time, the
// only moment the plaintext exists (§6).
func HashAPIKey(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash api key: %w", err)
	}
	return string(hash), nil
}
