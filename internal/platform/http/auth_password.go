package http

import (
	"errors"
	"net/http"

	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/pkg/httpx"
	"github.com/campusware/campus/pkg/passwd"
	"github.com/campusware/campus/pkg/slogx"
)

type ChangePasswordHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ServeHTTP changes the caller's password and revokes every refresh token
// they hold. Sessions on other devices die with the old password.
func (h *ChangePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Unauthorized")
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Current and new password are required")
		return
	}

	strength := passwd.ValidateStrength(req.NewPassword)
	if !strength.Valid {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"success":  false,
			"error":    "New password does not meet strength requirements",
			"code":     "VALIDATION_ERROR",
			"feedback": strength.Feedback,
		})
		return
	}

	err := h.UserService.ChangePassword(ctx, id.SubjectID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Current password is incorrect")
		case errors.Is(err, service.ErrUserNotFound):
			httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		default:
			log.Error("password change failed", "user_id", id.SubjectID, "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
		}
		return
	}

	if err := h.TokenService.RevokeAllForSubject(ctx, id.SubjectID); err != nil {
		log.Error("token revocation after password change failed", "user_id", id.SubjectID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
		return
	}

	log.Info("password changed", "user_id", id.SubjectID)

	httpx.WriteMessage(w, http.StatusOK, "Password updated successfully")
}
