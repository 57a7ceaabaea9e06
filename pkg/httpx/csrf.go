package httpx

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/campusware/campus/pkg/cryptox"
	"github.com/campusware/campus/pkg/slogx"
	"github.com/campusware/campus/pkg/ttlstore"
)

// CSRF protocol constants.
const (
	// CsrfCookieName is readable by client script on purpose: the client
	// echoes the value back in a header, which a cross-site attacker cannot
	// do (the double-submit pattern).
	CsrfCookieName = "XSRF-TOKEN"

	CsrfHeaderName    = "X-CSRF-Token"
	CsrfHeaderNameAlt = "X-XSRF-Token"
	CsrfFormField     = "_csrf"

	// DefaultCsrfTTL bounds how long an issued token stays usable.
	DefaultCsrfTTL = 15 * time.Minute
)

// CsrfRecord is the stored server-side half of a session's token. ExpiresAt
// lives inside the record (not just as store TTL) so an expired-but-unswept
// token is reported as expired, not merely invalid.
type CsrfRecord struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CsrfGuard issues rotating per-session CSRF tokens on safe requests and
// verifies-then-rotates them on unsafe requests. One record per session key;
// a newly issued token silently invalidates the previous one.
type CsrfGuard struct {
	store  ttlstore.Store[CsrfRecord]
	ttl    time.Duration
	secure bool

	// mu makes the read-compare-rotate sequence atomic per guard. Requests
	// racing on the same session key must not both pass with the same token.
	mu sync.Mutex

	now func() time.Time
}

// NewCsrfGuard builds a guard over the given store. secure controls the
// cookie's Secure attribute (true in production).
func NewCsrfGuard(store ttlstore.Store[CsrfRecord], ttl time.Duration, secure bool) *CsrfGuard {
	if ttl <= 0 {
		ttl = DefaultCsrfTTL
	}
	return &CsrfGuard{
		store:  store,
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// SetNow overrides the guard's clock. Test hook.
func (g *CsrfGuard) SetNow(now func() time.Time) { g.now = now }

// Middleware applies CSRF protection: safe methods (GET/HEAD/OPTIONS) get a
// fresh token issued, unsafe methods must present the current one.
func (g *CsrfGuard) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				g.issue(w, r)
				next.ServeHTTP(w, r)
			default:
				if !g.verify(w, r) {
					return
				}
				next.ServeHTTP(w, r)
			}
		})
	}
}

// issue generates and stores a new token for the request's session key and
// exposes it via cookie and response header. Overwrites any prior record.
func (g *CsrfGuard) issue(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("csrf token generation failed", "error", err)
		return
	}

	key := g.sessionKey(r)
	record := CsrfRecord{Token: token, ExpiresAt: g.now().Add(g.ttl)}

	// Store TTL is double the token TTL so the "expired" state survives long
	// enough to be reported as such before the sweeper reclaims it.
	if err := g.store.Set(r.Context(), key, record, 2*g.ttl); err != nil {
		log.Error("csrf token store failed", "error", err)
		return
	}

	g.writeCookie(w, token)
	w.Header().Set(CsrfHeaderName, token)
}

// verify checks the candidate token against the stored record, rejecting
// with the appropriate code on any failure. On success it rotates: the used
// token is replaced and the new one returned to the client, so each token is
// single-use.
func (g *CsrfGuard) verify(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	key := g.sessionKey(r)

	candidate := r.Header.Get(CsrfHeaderName)
	if candidate == "" {
		candidate = r.Header.Get(CsrfHeaderNameAlt)
	}
	if candidate == "" {
		if err := r.ParseForm(); err == nil {
			candidate = r.PostFormValue(CsrfFormField)
		}
	}
	if candidate == "" && strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		candidate = jsonBodyToken(r)
	}
	if candidate == "" {
		log.Warn("csrf token missing", "path", r.URL.Path)
		WriteError(w, http.StatusForbidden, "CSRF_TOKEN_MISSING", "CSRF token missing")
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	stored, err := g.store.Get(ctx, key)
	if err != nil {
		log.Warn("csrf token not found in store", "path", r.URL.Path)
		WriteError(w, http.StatusForbidden, "CSRF_TOKEN_INVALID", "CSRF token invalid or expired")
		return false
	}

	if !stored.ExpiresAt.After(g.now()) {
		_ = g.store.Delete(ctx, key)
		log.Warn("csrf token expired", "path", r.URL.Path)
		WriteError(w, http.StatusForbidden, "CSRF_TOKEN_EXPIRED", "CSRF token expired")
		return false
	}

	// Length mismatch short-circuits; equal lengths get a constant-time
	// compare so response timing leaks nothing about correct prefixes.
	if len(candidate) != len(stored.Token) ||
		subtle.ConstantTimeCompare([]byte(candidate), []byte(stored.Token)) != 1 {
		log.Warn("csrf token mismatch", "path", r.URL.Path)
		WriteError(w, http.StatusForbidden, "CSRF_TOKEN_INVALID", "CSRF token invalid")
		return false
	}

	// Token checks out. Rotate immediately: a replayed token must fail.
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("csrf token rotation failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "", "internal server error")
		return false
	}
	record := CsrfRecord{Token: token, ExpiresAt: g.now().Add(g.ttl)}
	if err := g.store.Set(ctx, key, record, 2*g.ttl); err != nil {
		log.Error("csrf rotated token store failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "", "internal server error")
		return false
	}

	g.writeCookie(w, token)
	w.Header().Set(CsrfHeaderName, token)
	return true
}

// jsonBodyToken pulls the token field out of a JSON request body, restoring
// the body afterwards so the handler can still read it. Non-JSON and
// oversized bodies yield an empty token.
func jsonBodyToken(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if v, ok := body[CsrfFormField].(string); ok {
		return v
	}
	return ""
}

// sessionKey ties tokens to the authenticated subject when there is one, and
// otherwise to a coarse IP + user-agent fingerprint for pre-auth flows.
func (g *CsrfGuard) sessionKey(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return "user:" + id.SubjectID
	}
	return ClientIP(r) + "_" + r.UserAgent()
}

func (g *CsrfGuard) writeCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CsrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(g.ttl.Seconds()),
		Secure:   g.secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}
