package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/internal/platform/store"
	"github.com/campusware/campus/pkg/httpx"
	"github.com/campusware/campus/pkg/jwtx"
	"github.com/campusware/campus/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	csrf         *httpx.CsrfGuard
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store        store.Store
	TokenService *service.TokenService
	UserService  *service.UserService
}

func NewRouter(
	verifier jwtx.Verifier,
	csrf *httpx.CsrfGuard,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		csrf:         csrf,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Global chain, outermost first: request logging, the per-IP backstop
	// limiter, then CSRF. OptionalAuthn runs before the guard so that
	// authenticated requests get their token keyed to the subject id rather
	// than the pre-auth IP+user-agent fingerprint.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.RateLimitByIP(httpx.GlobalLimit),
		httpx.OptionalAuthn(verifier),
		csrf.Middleware(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	registerHandler := &RegisterHandler{UserService: r.UserService, TokenService: r.TokenService}
	loginHandler := &LoginHandler{UserService: r.UserService, TokenService: r.TokenService}
	refreshHandler := &RefreshHandler{TokenService: r.TokenService}
	logoutHandler := &LogoutHandler{TokenService: r.TokenService}
	meHandler := &MeHandler{UserService: r.UserService}
	passwordHandler := &ChangePasswordHandler{UserService: r.UserService, TokenService: r.TokenService}

	// POST /register - failures-only limit per IP (3 per hour)
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(registerHandler,
			httpx.RateLimitByIP(httpx.RegistrationLimit),
		),
	)

	// POST /login - failures-only limit keyed by IP + submitted email so an
	// attack on one account can't lock out a whole NAT
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIPAndJSONField(httpx.AuthLimit, "email"),
		),
	)

	// POST /refresh - standard write limit per IP (the bearer token is
	// usually expired at this point, so no identity to key on)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.StandardLimit),
		),
	)

	// POST /logout - authenticated, per-user limit
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logoutHandler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByIdentity(httpx.UserLimit),
		),
	)

	// GET /me - authenticated read
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(meHandler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByIdentity(httpx.ReadLimit),
		),
	)

	// PUT /password - authenticated write; revokes every refresh token
	r.Mux.Handle("PUT /v1/auth/password",
		httpx.Chain(passwordHandler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByIdentity(httpx.StandardLimit),
		),
	)

	// GET /csrf-token - the global guard has already issued the token by the
	// time the handler runs; the handler just echoes it into the body
	r.Mux.Handle("GET /v1/csrf-token",
		httpx.Chain(CsrfTokenHandler(),
			httpx.RateLimitByIP(httpx.ReadLimit),
		),
	)
}

func (r *Router) registerUsers() {
	profileHandler := &ProfileHandler{UserService: r.UserService}

	r.Mux.Handle("GET /v1/users/me/profile",
		httpx.Chain(http.HandlerFunc(profileHandler.HandleGet),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByIdentity(httpx.ReadLimit),
		),
	)

	r.Mux.Handle("PUT /v1/users/me/profile",
		httpx.Chain(http.HandlerFunc(profileHandler.HandlePut),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByIdentity(httpx.StandardLimit),
		),
	)

	// DELETE /v1/users/{id} - admin only
	deleteHandler := &UserDeleteHandler{UserService: r.UserService, TokenService: r.TokenService}
	r.Mux.Handle("DELETE /v1/users/{id}",
		httpx.Chain(deleteHandler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole("admin"),
			httpx.RateLimitByIdentity(httpx.StandardLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - read limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.ReadLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.ReadLimit),
		),
	)
}
