package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/pkg/types"
)

type fakeAPIKeyStore struct {
	byPrefix map[string]*types.APIKey
	touched  map[string]time.Time
	failWith error // when set, GetAPIKeyByPrefix always returns this error
}

func newFakeAPIKeyStore() *fakeAPIKeyStore {
	return &fakeAPIKeyStore{byPrefix: map[string]*types.APIKey{}, touched: map[string]time.Time{}}
}

func (f *fakeAPIKeyStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*types.APIKey, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	k, ok := f.byPrefix[prefix]
	if !ok {
		return nil, apperr.Wrap(apperr.NotFound, "api key not found")
	}
	return k, nil
}

func (f *fakeAPIKeyStore) TouchAPIKeyUsage(ctx context.Context, id string, usedAt time.Time) error {
	f.touched[id] = usedAt
	return nil
}

func TestResolveAPIKey_Success(t *testing.T) {
	raw := "sk_live_abcdef1234567890"
	hash, err := HashAPIKey(raw)
	require.NoError(t, err)

	store := newFakeAPIKeyStore()
	store.byPrefix[raw[:12]] = &types.APIKey{ID: "key-1", UserID: "user-1", KeyHash: hash, Active: true}

	userID, err := ResolveAPIKey(context.Background(), store, raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.NotZero(t, store.touched["key-1"])
}

func TestResolveAPIKey_WrongSecretFails(t *testing.T) {
	raw := "sk_live_abcdef1234567890"
	hash, err := HashAPIKey(raw)
	require.NoError(t, err)

	store := newFakeAPIKeyStore()
	store.byPrefix[raw[:12]] = &types.APIKey{ID: "key-1", UserID: "user-1", KeyHash: hash, Active: true}

	_, err = ResolveAPIKey(context.Background(), store, "sk_live_abcdef0000000000")
	assert.Error(t, err)
}

func TestResolveAPIKey_RevokedFails(t *testing.T) {
	raw := "sk_live_abcdef1234567890"
	hash, err := HashAPIKey(raw)
	require.NoError(t, err)

	store := newFakeAPIKeyStore()
	store.byPrefix[raw[:12]] = &types.APIKey{ID: "key-1", UserID: "user-1", KeyHash: hash, Active: false}

	_, err = ResolveAPIKey(context.Background(), store, raw)
	assert.Error(t, err)
}

func TestResolveAPIKey_ExpiredFails(t *testing.T) {
	raw := "sk_live_abcdef1234567890"
	hash, err := HashAPIKey(raw)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	store := newFakeAPIKeyStore()
	store.byPrefix[raw[:12]] = &types.APIKey{ID: "key-1", UserID: "user-1", KeyHash: hash, Active: true, ExpiresAt: &past}

	_, err = ResolveAPIKey(context.Background(), store, raw)
	assert.Error(t, err)
}

func TestResolveAPIKey_TooShortFails(t *testing.T) {
	_, err := ResolveAPIKey(context.Background(), newFakeAPIKeyStore(), "sk_live_x")
	assert.Error(t, err)
}

func TestResolveAPIKey_UnknownPrefixFails(t *testing.T) {
	_, err := ResolveAPIKey(context.Background(), newFakeAPIKeyStore(), "sk_live_doesnotexist")
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperr.Unauthorized)
}

func TestResolveAPIKey_StoreFailureIsTransientNotUnauthorized(t *testing.T) {
	store := newFakeAPIKeyStore()
	store.failWith = errors.New("connection refused")

	_, err := ResolveAPIKey(context.Background(), store, "sk_live_doesnotexist")
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperr.Transient)
	assert.NotErrorIs(t, err, apperr.Unauthorized)
}
