package httpx

import (
	"net/http"
	"strings"

	"github.com/campusware/campus/pkg/jwtx"
	"github.com/campusware/campus/pkg/slogx"
)

// AuthnMiddleware extracts the bearer token from the Authorization header,
// verifies it, and injects the caller's Identity into the request context.
// Requests without a valid token never reach the wrapped handler.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				log.Warn("access token verification failed", "err", err)
				writeBearerError(w, "invalid or expired access token")
				return
			}

			ctx = ContextWithIdentity(ctx, claims.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthn is like AuthnMiddleware but lets unauthenticated requests
// through without an Identity. The CSRF guard uses this so pre-auth flows
// still get a session-keyed token.
func OptionalAuthn(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if strings.HasPrefix(authz, "Bearer ") {
				raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
				if claims, err := v.Verify(raw); err == nil {
					r = r.WithContext(ContextWithIdentity(r.Context(), claims.Identity()))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RFC 6750-style error response for bearer auth, with the service's JSON
// envelope in the body.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, ErrorBody{Error: desc, Code: "INVALID_TOKEN"})
}
