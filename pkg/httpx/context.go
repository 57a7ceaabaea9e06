package httpx

import (
	"context"

	"github.com/campusware/campus/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyIdentity ctxKey = "identity"
)

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (jwtx.Identity, bool) {
	id, ok := ctx.Value(CtxKeyIdentity).(jwtx.Identity)
	return id, ok
}

// ContextWithIdentity attaches the authenticated caller for downstream
// handlers and key extractors.
func ContextWithIdentity(ctx context.Context, id jwtx.Identity) context.Context {
	return context.WithValue(ctx, CtxKeyIdentity, id)
}
