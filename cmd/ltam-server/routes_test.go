package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/auth"
	"github.com/scrypster/ltam/pkg/types"
)

type fakeAPIKeyStore struct {
	byPrefix map[string]*types.APIKey
}

func (f *fakeAPIKeyStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*types.APIKey, error) {
	if k, ok := f.byPrefix[prefix]; ok {
		return k, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeAPIKeyStore) TouchAPIKeyUsage(ctx context.Context, id string, usedAt time.Time) error {
	return nil
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s := &apiServer{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	s.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAuthenticated_MissingTokenRejected(t *testing.T) {
	s := &apiServer{auth: auth.NewResolver(&fakeAPIKeyStore{byPrefix: map[string]*types.APIKey{}}, nil)}
	called := false
	h := s.authenticated(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/scheduler/status", nil)
	h(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAuthenticated_ValidAPIKeyPassesThroughAndSetsUserID(t *testing.T) {
	raw := "sk_live_abcdef1234567890"
	hash, err := auth.HashAPIKey(raw)
	require.NoError(t, err)

	store := &fakeAPIKeyStore{byPrefix: map[string]*types.APIKey{
		raw[:12]: {ID: "key-1", UserID: "user-42", KeyHash: hash, Active: true},
	}}
	s := &apiServer{auth: auth.NewResolver(store, nil)}

	var gotUserID any
	h := s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = r.Context().Value(ctxUserKey{})
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/scheduler/status", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	h(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", gotUserID)
}

func TestWriteError_MapsApperrKindsToStatusCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.Wrap(apperr.NotFound, "x"), http.StatusNotFound},
		{apperr.Wrap(apperr.Deleted, "x"), http.StatusGone},
		{apperr.Wrap(apperr.Duplicate, "x"), http.StatusConflict},
		{apperr.Wrap(apperr.Validation, "x"), http.StatusUnprocessableEntity},
		{apperr.Wrap(apperr.Unauthorized, "x"), http.StatusUnauthorized},
		{apperr.Wrap(apperr.Transient, "x"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err)
	}
}

func TestHandleCompilePack_MalformedBodyIsValidationError(t *testing.T) {
	s := &apiServer{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/packs/compile", badReader{})

	s.handleCompilePack(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

type badReader struct{}

func (badReader) Read(p []byte) (int, error) { return 0, errors.New("broken body") }
