package http

import (
	"errors"
	"net/http"

	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/pkg/httpx"
	"github.com/campusware/campus/pkg/slogx"
)

type UserDeleteHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

// ServeHTTP deletes an account and all its refresh tokens. Admin only; the
// role gate runs in middleware before this handler is reached.
func (h *UserDeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := r.PathValue("id")
	if userID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "User id is required")
		return
	}

	if err := h.UserService.Delete(ctx, userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
			return
		}
		log.Error("user deletion failed", "user_id", userID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
		return
	}

	if admin, ok := httpx.IdentityFromContext(ctx); ok {
		log.Info("user deleted", "user_id", userID, "deleted_by", admin.SubjectID)
	}

	httpx.WriteMessage(w, http.StatusOK, "User deleted successfully")
}
