package types

import "time"

// APIKey is a per-user credential. The full key plaintext is returned only
// at creation time (see internal/auth); every subsequent read only ever
// sees the bcrypt hash and the 12-character public prefix.
type APIKey struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// KeyHash is the bcrypt hash of the full generated key.
	KeyHash string `json:"-"`

	// Prefix is the first 12 characters of the generated key (the
	// "sk_live_" scheme prefix included), used to look up the row before
	// the bcrypt comparison.
	Prefix string `json:"prefix"`

	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	RequestCount int64      `json:"request_count"`

	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool       `json:"is_deleted"`
}

// IsExpired reports whether the key's expiry has passed as of now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// IsUsable reports whether the key can currently authenticate a request:
// active, not soft-deleted, and not expired.
func (k *APIKey) IsUsable(now time.Time) bool {
	return k.Active && !k.IsDeleted && !k.IsExpired(now)
}
