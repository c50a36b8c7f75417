// Package auth extracts the upstream-validated identity from each request
// and applies the perimeter middleware (CORS, IP whitelist, rate limiting).
// Identity issuance and verification belong to the gateway; this package
// only trusts the X-User header the gateway attaches after session
// validation.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"channeld/pkg/errs"
	"channeld/pkg/logger"
	"channeld/pkg/models"
	"channeld/pkg/store"
	"channeld/pkg/utils"
)

// UserHeader carries the authenticated identity JSON, set by the gateway.
const UserHeader = "X-User"

type ctxIdentityKey struct{}

// RequireIdentity parses the X-User header, upserts the identity into the
// user registry, and injects it into the request context. Requests without
// a parseable identity are rejected with 401. The identity always travels
// through the context, never shared state, so concurrent requests cannot
// observe each other's caller.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserHeader))
		if raw == "" {
			logger.Warn("missing_identity_header", "path", r.URL.Path, "remote", r.RemoteAddr)
			utils.JSONError(w, http.StatusUnauthorized, "please sign in")
			return
		}
		var ident models.Identity
		if err := json.Unmarshal([]byte(raw), &ident); err != nil || ident.ID == 0 {
			logger.Warn("invalid_identity_header", "path", r.URL.Path, "remote", r.RemoteAddr)
			utils.JSONError(w, http.StatusUnauthorized, "please sign in")
			return
		}
		// keep the registry current so membership inserts can resolve ids
		if err := store.PutIdentity(ident); err != nil {
			logger.Error("identity_upsert_failed", "user", ident.ID, "error", err)
			utils.JSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		ctx := context.WithValue(r.Context(), ctxIdentityKey{}, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext returns the verified identity attached by
// RequireIdentity. The error is errs.ErrUnauthenticated when absent.
func IdentityFromContext(ctx context.Context) (models.Identity, error) {
	if v := ctx.Value(ctxIdentityKey{}); v != nil {
		if ident, ok := v.(models.Identity); ok {
			return ident, nil
		}
	}
	return models.Identity{}, errs.ErrUnauthenticated
}

// WithIdentity returns a context carrying the identity; used by tests and
// internal callers.
func WithIdentity(ctx context.Context, ident models.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey{}, ident)
}
