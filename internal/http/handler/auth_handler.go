package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/makersmarket/session-auth-service/internal/http/middleware"
	"github.com/makersmarket/session-auth-service/internal/http/response"
	"github.com/makersmarket/session-auth-service/internal/observability"
	"github.com/makersmarket/session-auth-service/internal/repository"
	"github.com/makersmarket/session-auth-service/internal/service"
)

type AuthHandler struct {
	auth         service.AuthServiceInterface
	cookieSecure bool
}

func NewAuthHandler(auth service.AuthServiceInterface, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, cookieSecure: cookieSecure}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid_body", "malformed request body", nil)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		response.Error(w, r, http.StatusBadRequest, "missing_fields", "email and password are required", nil)
		return
	}
	user, err := h.auth.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword):
			response.Error(w, r, http.StatusBadRequest, "weak_password", err.Error(), nil)
		case errors.Is(err, repository.ErrEmailTaken):
			response.Error(w, r, http.StatusConflict, "email_taken", "email already registered", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "internal_error", "registration failed", nil)
		}
		return
	}
	observability.Audit(r, "auth.register", "user_id", user.ID)
	response.JSON(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid_body", "malformed request body", nil)
		return
	}
	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Error(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
			return
		}
		// covers store failures and ErrInternalCrypto alike; no detail
		// leaves the boundary
		response.Error(w, r, http.StatusInternalServerError, "internal_error", "login failed", nil)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	observability.Audit(r, "auth.login", "user_id", result.UserID)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "token_missing", "authentication token required", nil)
		return
	}
	if _, err := h.auth.Logout(r.Context(), id.Token); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "internal_error", "logout failed", nil)
		return
	}
	h.clearSessionCookie(w)
	observability.Audit(r, "auth.logout", "user_id", id.UserID)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "token_missing", "authentication token required", nil)
		return
	}
	removed, err := h.auth.LogoutAll(r.Context(), id.UserID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "internal_error", "logout failed", nil)
		return
	}
	h.clearSessionCookie(w)
	observability.Audit(r, "auth.logout_all", "user_id", id.UserID, "revoked", removed)
	response.JSON(w, r, http.StatusOK, map[string]int{"revoked": removed})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
