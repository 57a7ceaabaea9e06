package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/pkg/httpx"
	"github.com/campusware/campus/pkg/slogx"
)

type ProfileHandler struct {
	UserService *service.UserService
}

type profileResponse struct {
	User userSummary `json:"user"`
	Name string      `json:"name"`
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

// HandleGet returns the caller's profile.
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
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
		log.Error("failed to load profile", "user_id", id.SubjectID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
		return
	}

	httpx.WriteData(w, http.StatusOK, profileResponse{
		User: userSummary{ID: user.ID, Email: user.Email, Role: user.Role},
		Name: user.Name,
	})
}

// HandlePut updates the caller's display name.
func (h *ProfileHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Unauthorized")
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name is required")
		return
	}

	user, err := h.UserService.UpdateName(ctx, id.SubjectID, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
			return
		}
		log.Error("profile update failed", "user_id", id.SubjectID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
		return
	}

	log.Info("profile updated", "user_id", user.ID)

	httpx.WriteData(w, http.StatusOK, profileResponse{
		User: userSummary{ID: user.ID, Email: user.Email, Role: user.Role},
		Name: user.Name,
	})
}
