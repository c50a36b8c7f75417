package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"channeld/pkg/models"
	"channeld/pkg/store"
)

func TestRequireIdentity(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir(), 0))
	t.Cleanup(func() { _ = store.Close() })

	var seen models.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := IdentityFromContext(r.Context())
		require.NoError(t, err)
		seen = ident
		w.WriteHeader(http.StatusOK)
	})
	h := RequireIdentity(next)

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/channels", nil))
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/channels", nil)
		req.Header.Set(UserHeader, "not json")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("zero id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/channels", nil)
		req.Header.Set(UserHeader, `{"userName":"ghost"}`)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid identity reaches handler and registry", func(t *testing.T) {
		u := models.Identity{ID: 42, UserName: "ada", FirstName: "Ada"}
		raw, err := json.Marshal(u)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/channels", nil)
		req.Header.Set(UserHeader, string(raw))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, u, seen)

		stored, err := store.GetIdentity(42)
		require.NoError(t, err)
		require.Equal(t, u, stored)
	})
}

func TestIdentityFromContextWithoutIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := IdentityFromContext(req.Context())
	require.Error(t, err)
}
