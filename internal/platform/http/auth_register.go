package http

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/campusware/campus/internal/platform/domain"
	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/pkg/httpx"
	"github.com/campusware/campus/pkg/jwtx"
	"github.com/campusware/campus/pkg/passwd"
	"github.com/campusware/campus/pkg/slogx"
)

type RegisterHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// authResponse is the body shape shared by register and login.
type authResponse struct {
	User         userSummary `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type userSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ServeHTTP creates a new student account and issues an initial token pair.
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "A valid email address is required")
		return
	}

	strength := passwd.ValidateStrength(req.Password)
	if !strength.Valid {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"success":  false,
			"error":    "Password does not meet strength requirements",
			"code":     "VALIDATION_ERROR",
			"feedback": strength.Feedback,
		})
		return
	}

	user, err := h.UserService.Register(ctx, req.Email, req.Name, req.Password, domain.RoleStudent)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			httpx.WriteError(w, http.StatusConflict, "EMAIL_TAKEN", "User with this email already exists")
			return
		}
		log.Error("registration failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
		return
	}

	pair, err := h.TokenService.IssuePair(ctx, jwtx.Identity{
		SubjectID: user.ID,
		Email:     user.Email,
		Role:      user.Role,
	})
	if err != nil {
		log.Error("token issuance failed after registration", "user_id", user.ID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
		return
	}

	log.Info("user registered", "user_id", user.ID)

	httpx.WriteData(w, http.StatusCreated, authResponse{
		User:         userSummary{ID: user.ID, Email: user.Email, Role: user.Role},
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}
