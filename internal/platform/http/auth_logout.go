package http

import (
	"net/http"

	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/pkg/httpx"
	"github.com/campusware/campus/pkg/slogx"
)

type LogoutHandler struct {
	TokenService *service.TokenService
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ServeHTTP revokes the supplied refresh token. Logout is best-effort: an
// absent or already-revoked token still reports success, since the end state
// the client asked for holds either way.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req logoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.RefreshToken != "" {
		if err := h.TokenService.RevokeToken(ctx, req.RefreshToken); err != nil {
			log.Error("refresh token revocation failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
			return
		}
	}

	if id, ok := httpx.IdentityFromContext(ctx); ok {
		log.Info("user logged out", "user_id", id.SubjectID)
	}

	httpx.WriteMessage(w, http.StatusOK, "Logged out successfully")
}
