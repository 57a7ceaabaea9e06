package httpx

import (
	"net/http"
	"slices"
)

// RequireRole enforces that the caller's role is one of allowed. Must run
// inside AuthnMiddleware; an absent identity is treated as forbidden rather
// than panicking on a missing context value.
func RequireRole(allowed ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok || !slices.Contains(allowed, id.Role) {
				WriteError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
