package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	campushttp "github.com/campusware/campus/internal/platform/http"
	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/internal/platform/store/drivers/sqlite"
	"github.com/campusware/campus/pkg/httpx"
	"github.com/campusware/campus/pkg/jwtx"
	"github.com/campusware/campus/pkg/passwd"
	"github.com/campusware/campus/pkg/ttlstore"
	"github.com/stretchr/testify/require"
)

// testEnv wires a real router over a temp sqlite file and an in-memory CSRF
// store, served over httptest. Requests go through the full middleware chain.
type testEnv struct {
	t      *testing.T
	server *httptest.Server
	store  *sqlite.Store
	tokens *service.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "campus_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	tokens := &service.TokenService{
		Store:      st,
		Access:     jwtx.NewHS256([]byte("test-access-secret")),
		Refresh:    jwtx.NewHS256([]byte("test-refresh-secret")),
		Issuer:     "campus-auth",
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}
	users := &service.UserService{
		Store:  st,
		Hasher: passwd.NewHasher(passwd.DefaultMaxConcurrent),
	}

	guard := httpx.NewCsrfGuard(ttlstore.NewMemory[httpx.CsrfRecord](), 15*time.Minute, false)

	router := campushttp.NewRouter(tokens.Access, guard, "test",
		st, slog.New(slog.DiscardHandler))
	router.TokenService = tokens
	router.UserService = users
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{t: t, server: server, store: st, tokens: tokens}
}

// do sends a request through the test server and decodes the JSON body into a
// generic map. An empty csrf/bearer means the header is omitted.
func (e *testEnv) do(method, path string, payload any, bearer, csrf string) (int, map[string]any) {
	e.t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(e.t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(e.t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if csrf != "" {
		req.Header.Set(httpx.CsrfHeaderName, csrf)
	}

	res, err := e.server.Client().Do(req)
	require.NoError(e.t, err)
	defer res.Body.Close()

	var decoded map[string]any
	require.NoError(e.t, json.NewDecoder(res.Body).Decode(&decoded))
	return res.StatusCode, decoded
}

// csrfToken fetches a fresh token for the session implied by the bearer (or
// the anonymous fingerprint when bearer is empty). Tokens are single-use, so
// callers grab one per unsafe request.
func (e *testEnv) csrfToken(bearer string) string {
	e.t.Helper()

	code, body := e.do(http.MethodGet, "/v1/csrf-token", nil, bearer, "")
	require.Equal(e.t, http.StatusOK, code)

	token := data(e.t, body)["csrfToken"].(string)
	require.NotEmpty(e.t, token)
	return token
}

// post wraps do with a freshly fetched CSRF token for the same session.
func (e *testEnv) post(method, path string, payload any, bearer string) (int, map[string]any) {
	e.t.Helper()
	return e.do(method, path, payload, bearer, e.csrfToken(bearer))
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	require.Equal(t, true, body["success"], "body: %v", body)
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "body: %v", body)
	return d
}

const testPassword = "Xk9$mQ2@LpWz4Tr!"

func (e *testEnv) register(email string) (accessToken, refreshToken, userID string) {
	e.t.Helper()

	code, body := e.post(http.MethodPost, "/v1/auth/register", map[string]string{
		"email":    email,
		"name":     "Test User",
		"password": testPassword,
	}, "")
	require.Equal(e.t, http.StatusCreated, code, "body: %v", body)

	d := data(e.t, body)
	user := d["user"].(map[string]any)
	return d["accessToken"].(string), d["refreshToken"].(string), user["id"].(string)
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("creates an account and returns tokens", func(t *testing.T) {
		code, body := env.post(http.MethodPost, "/v1/auth/register", map[string]string{
			"email":    "alice@example.com",
			"name":     "Alice",
			"password": testPassword,
		}, "")
		require.Equal(t, http.StatusCreated, code, "body: %v", body)

		d := data(t, body)
		user := d["user"].(map[string]any)
		require.Equal(t, "alice@example.com", user["email"])
		require.Equal(t, "student", user["role"])
		require.NotEmpty(t, d["accessToken"])
		require.NotEmpty(t, d["refreshToken"])
	})

	t.Run("duplicate email", func(t *testing.T) {
		code, body := env.post(http.MethodPost, "/v1/auth/register", map[string]string{
			"email":    "alice@example.com",
			"name":     "Alice Again",
			"password": testPassword,
		}, "")
		require.Equal(t, http.StatusConflict, code)
		require.Equal(t, "EMAIL_TAKEN", body["code"])
	})

	t.Run("invalid email", func(t *testing.T) {
		code, body := env.post(http.MethodPost, "/v1/auth/register", map[string]string{
			"email":    "not-an-email",
			"name":     "Nobody",
			"password": testPassword,
		}, "")
		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("weak password gets feedback", func(t *testing.T) {
		code, body := env.post(http.MethodPost, "/v1/auth/register", map[string]string{
			"email":    "weak@example.com",
			"name":     "Weak",
			"password": "password123",
		}, "")
		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, "VALIDATION_ERROR", body["code"])
		require.NotEmpty(t, body["feedback"])
	})
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com")

	t.Run("correct credentials", func(t *testing.T) {
		code, body := env.post(http.MethodPost, "/v1/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": testPassword,
		}, "")
		require.Equal(t, http.StatusOK, code, "body: %v", body)

		d := data(t, body)
		require.NotEmpty(t, d["accessToken"])
		require.NotEmpty(t, d["refreshToken"])
	})

	t.Run("wrong password", func(t *testing.T) {
		code, body := env.post(http.MethodPost, "/v1/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "Wr0ng@Passw0rd!",
		}, "")
		require.Equal(t, http.StatusUnauthorized, code)
		require.Equal(t, "INVALID_CREDENTIALS", body["code"])
		require.Equal(t, "Invalid email or password", body["error"])
	})

	t.Run("unknown email gets the same error", func(t *testing.T) {
		code, body := env.post(http.MethodPost, "/v1/auth/login", map[string]string{
			"email":    "nobody@example.com",
			"password": testPassword,
		}, "")
		require.Equal(t, http.StatusUnauthorized, code)
		require.Equal(t, "INVALID_CREDENTIALS", body["code"])
	})
}

func TestMeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	access, _, userID := env.register("alice@example.com")

	t.Run("with bearer", func(t *testing.T) {
		code, body := env.do(http.MethodGet, "/v1/auth/me", nil, access, "")
		require.Equal(t, http.StatusOK, code)

		d := data(t, body)
		require.Equal(t, userID, d["id"])
		require.Equal(t, "alice@example.com", d["email"])
		require.Equal(t, "Test User", d["name"])
	})

	t.Run("without bearer", func(t *testing.T) {
		code, body := env.do(http.MethodGet, "/v1/auth/me", nil, "", "")
		require.Equal(t, http.StatusUnauthorized, code)
		require.Equal(t, "INVALID_TOKEN", body["code"])
	})

	t.Run("garbage bearer", func(t *testing.T) {
		code, _ := env.do(http.MethodGet, "/v1/auth/me", nil, "garbage", "")
		require.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, refresh, _ := env.register("alice@example.com")

	t.Run("rotation then replay", func(t *testing.T) {
		code, body := env.post(http.MethodPost, "/v1/auth/refresh",
			map[string]string{"refreshToken": refresh}, "")
		require.Equal(t, http.StatusOK, code, "body: %v", body)

		d := data(t, body)
		newAccess := d["accessToken"].(string)
		newRefresh := d["refreshToken"].(string)
		require.NotEqual(t, refresh, newRefresh)

		// The rotated-out token must be dead.
		code, body = env.post(http.MethodPost, "/v1/auth/refresh",
			map[string]string{"refreshToken": refresh}, "")
		require.Equal(t, http.StatusUnauthorized, code)
		require.Equal(t, "INVALID_TOKEN", body["code"])

		// The fresh pair works.
		code, _ = env.do(http.MethodGet, "/v1/auth/me", nil, newAccess, "")
		require.Equal(t, http.StatusOK, code)
		code, _ = env.post(http.MethodPost, "/v1/auth/refresh",
			map[string]string{"refreshToken": newRefresh}, "")
		require.Equal(t, http.StatusOK, code)
	})

	t.Run("missing token", func(t *testing.T) {
		code, body := env.post(http.MethodPost, "/v1/auth/refresh", map[string]string{}, "")
		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("garbage token", func(t *testing.T) {
		code, body := env.post(http.MethodPost, "/v1/auth/refresh",
			map[string]string{"refreshToken": "garbage"}, "")
		require.Equal(t, http.StatusUnauthorized, code)
		require.Equal(t, "INVALID_TOKEN", body["code"])
	})
}

func TestLogoutEndpoint(t *testing.T) {
	env := newTestEnv(t)
	access, refresh, _ := env.register("alice@example.com")

	code, body := env.post(http.MethodPost, "/v1/auth/logout",
		map[string]string{"refreshToken": refresh}, access)
	require.Equal(t, http.StatusOK, code, "body: %v", body)
	require.Equal(t, "Logged out successfully", body["message"])

	// The surrendered refresh token no longer rotates.
	code, _ = env.post(http.MethodPost, "/v1/auth/refresh",
		map[string]string{"refreshToken": refresh}, "")
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestCsrfEnforcement(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{
		"email":    "csrf@example.com",
		"name":     "Csrf",
		"password": testPassword,
	}

	t.Run("unsafe request without token", func(t *testing.T) {
		code, body := env.do(http.MethodPost, "/v1/auth/register", payload, "", "")
		require.Equal(t, http.StatusForbidden, code)
		require.Equal(t, "CSRF_TOKEN_MISSING", body["code"])
	})

	t.Run("unsafe request with a bogus token", func(t *testing.T) {
		env.csrfToken("")
		code, body := env.do(http.MethodPost, "/v1/auth/register", payload, "", "bogus")
		require.Equal(t, http.StatusForbidden, code)
		require.Equal(t, "CSRF_TOKEN_INVALID", body["code"])
	})

	t.Run("token is single use", func(t *testing.T) {
		token := env.csrfToken("")

		code, _ := env.do(http.MethodPost, "/v1/auth/register", payload, "", token)
		require.Equal(t, http.StatusCreated, code)

		code, body := env.do(http.MethodPost, "/v1/auth/login", map[string]string{
			"email":    "csrf@example.com",
			"password": testPassword,
		}, "", token)
		require.Equal(t, http.StatusForbidden, code)
		require.Equal(t, "CSRF_TOKEN_INVALID", body["code"])
	})
}

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t)
	access, _, userID := env.register("alice@example.com")

	t.Run("get", func(t *testing.T) {
		code, body := env.do(http.MethodGet, "/v1/users/me/profile", nil, access, "")
		require.Equal(t, http.StatusOK, code)

		d := data(t, body)
		require.Equal(t, "Test User", d["name"])
		require.Equal(t, userID, d["user"].(map[string]any)["id"])
	})

	t.Run("update name", func(t *testing.T) {
		code, body := env.post(http.MethodPut, "/v1/users/me/profile",
			map[string]string{"name": "Alice Renamed"}, access)
		require.Equal(t, http.StatusOK, code, "body: %v", body)
		require.Equal(t, "Alice Renamed", data(t, body)["name"])

		code, body = env.do(http.MethodGet, "/v1/users/me/profile", nil, access, "")
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "Alice Renamed", data(t, body)["name"])
	})

	t.Run("empty name rejected", func(t *testing.T) {
		code, body := env.post(http.MethodPut, "/v1/users/me/profile",
			map[string]string{"name": "   "}, access)
		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		code, _ := env.do(http.MethodGet, "/v1/users/me/profile", nil, "", "")
		require.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestChangePasswordEndpoint(t *testing.T) {
	env := newTestEnv(t)
	access, refresh, _ := env.register("alice@example.com")

	const newPassword = "N3w$tr0ng@Pass!"

	t.Run("wrong current password", func(t *testing.T) {
		code, body := env.post(http.MethodPut, "/v1/auth/password",
			map[string]string{"currentPassword": "Wr0ng@Passw0rd!", "newPassword": newPassword}, access)
		require.Equal(t, http.StatusUnauthorized, code)
		require.Equal(t, "INVALID_CREDENTIALS", body["code"])
		require.Equal(t, "Current password is incorrect", body["error"])
	})

	t.Run("weak new password rejected", func(t *testing.T) {
		code, body := env.post(http.MethodPut, "/v1/auth/password",
			map[string]string{"currentPassword": testPassword, "newPassword": "password123"}, access)
		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("change revokes every session", func(t *testing.T) {
		code, body := env.post(http.MethodPut, "/v1/auth/password",
			map[string]string{"currentPassword": testPassword, "newPassword": newPassword}, access)
		require.Equal(t, http.StatusOK, code, "body: %v", body)
		require.Equal(t, "Password updated successfully", body["message"])

		// Every standing refresh token is revoked.
		code, _ = env.post(http.MethodPost, "/v1/auth/refresh",
			map[string]string{"refreshToken": refresh}, "")
		require.Equal(t, http.StatusUnauthorized, code)

		// The old password no longer logs in; the new one does.
		code, _ = env.post(http.MethodPost, "/v1/auth/login", map[string]string{
			"email": "alice@example.com", "password": testPassword,
		}, "")
		require.Equal(t, http.StatusUnauthorized, code)
		code, _ = env.post(http.MethodPost, "/v1/auth/login", map[string]string{
			"email": "alice@example.com", "password": newPassword,
		}, "")
		require.Equal(t, http.StatusOK, code)
	})
}

func TestAdminDeleteEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, _, victimID := env.register("victim@example.com")
	studentAccess, _, _ := env.register("student@example.com")

	t.Run("student is forbidden", func(t *testing.T) {
		code, body := env.post(http.MethodDelete, "/v1/users/"+victimID, nil, studentAccess)
		require.Equal(t, http.StatusForbidden, code)
		require.Equal(t, "FORBIDDEN", body["code"])
	})

	t.Run("admin deletes the account", func(t *testing.T) {
		_, _, adminID := env.register("admin@example.com")
		_, err := env.store.DB().ExecContext(t.Context(),
			`UPDATE users SET role = 'admin' WHERE id = ?`, adminID)
		require.NoError(t, err)

		// Fresh login so the bearer carries the promoted role.
		code, body := env.post(http.MethodPost, "/v1/auth/login", map[string]string{
			"email":    "admin@example.com",
			"password": testPassword,
		}, "")
		require.Equal(t, http.StatusOK, code, "body: %v", body)
		adminAccess := data(t, body)["accessToken"].(string)

		code, body = env.post(http.MethodDelete, "/v1/users/"+victimID, nil, adminAccess)
		require.Equal(t, http.StatusOK, code, "body: %v", body)
		require.Equal(t, "User deleted successfully", body["message"])

		// The deleted account cannot log in.
		code, _ = env.post(http.MethodPost, "/v1/auth/login", map[string]string{
			"email":    "victim@example.com",
			"password": testPassword,
		}, "")
		require.Equal(t, http.StatusUnauthorized, code)

		// Deleting again is a 404.
		code, body = env.post(http.MethodDelete, "/v1/users/"+victimID, nil, adminAccess)
		require.Equal(t, http.StatusNotFound, code)
		require.Equal(t, "NOT_FOUND", body["code"])
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(http.MethodGet, "/livez", nil, "", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "test", body["version"])

	code, body = env.do(http.MethodGet, "/readyz", nil, "", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "ok", body["checks"].(map[string]any)["database"])
}
