package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/pkg/httpx"
	"github.com/campusware/campus/pkg/slogx"
)

type RefreshHandler struct {
	TokenService *service.TokenService
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ServeHTTP rotates a refresh token. Every failure mode after basic input
// validation collapses to the same 401; a replayed token learns nothing about
// why it was refused.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Refresh token is required")
		return
	}

	pair, id, err := h.TokenService.RotateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenRevoked) {
			httpx.WriteError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired refresh token")
			return
		}
		log.Error("token rotation failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
		return
	}

	log.Info("token refreshed", "user_id", id.SubjectID)

	httpx.WriteData(w, http.StatusOK, map[string]string{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}
