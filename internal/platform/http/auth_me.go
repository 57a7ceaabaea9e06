package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/pkg/httpx"
	"github.com/campusware/campus/pkg/slogx"
)

type MeHandler struct {
	UserService *service.UserService
}

type meResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// ServeHTTP returns the authenticated caller's account row. The identity in
// the token may be stale (role changes, renames), so the store is the source
// of truth here.
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Unauthorized")
		return
	}

	user, err := h.UserService.GetByID(ctx, id.SubjectID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
			return
		}
		log.Error("failed to load user", "user_id", id.SubjectID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
		return
	}

	httpx.WriteData(w, http.StatusOK, meResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})
}
