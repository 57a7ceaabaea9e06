package http

import (
	"errors"
	"net/http"

	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/pkg/httpx"
	"github.com/campusware/campus/pkg/jwtx"
	"github.com/campusware/campus/pkg/slogx"
)

type LoginHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ServeHTTP authenticates an email/password pair and issues a token pair.
// Unknown email and wrong password produce the same 401 body.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.UserService.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		case errors.Is(err, service.ErrAccountDisabled):
			httpx.WriteError(w, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled")
		default:
			log.Error("login failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
		}
		return
	}

	pair, err := h.TokenService.IssuePair(ctx, jwtx.Identity{
		SubjectID: user.ID,
		Email:     user.Email,
		Role:      user.Role,
	})
	if err != nil {
		log.Error("token issuance failed after login", "user_id", user.ID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
		return
	}

	log.Info("user logged in", "user_id", user.ID)

	httpx.WriteData(w, http.StatusOK, authResponse{
		User:         userSummary{ID: user.ID, Email: user.Email, Role: user.Role},
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}
