package handler

import (
	"net/http"

	"github.com/makersmarket/session-auth-service/internal/http/middleware"
	"github.com/makersmarket/session-auth-service/internal/http/response"
	"github.com/makersmarket/session-auth-service/internal/service"
)

type UserHandler struct {
	auth service.AuthServiceInterface
}

func NewUserHandler(auth service.AuthServiceInterface) *UserHandler {
	return &UserHandler{auth: auth}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "token_missing", "authentication token required", nil)
		return
	}
	user, err := h.auth.Profile(r.Context(), id.UserID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "internal_error", "profile lookup failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

func (h *UserHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "token_missing", "authentication token required", nil)
		return
	}
	views, err := h.auth.Sessions(r.Context(), id.UserID, id.SessionID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "internal_error", "session listing failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, views)
}

// Whoami serves endpoints whose behavior varies by identity but does
// not require it.
func (h *UserHandler) Whoami(w http.ResponseWriter, r *http.Request) {
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		response.JSON(w, r, http.StatusOK, map[string]any{"authenticated": true, "user_id": id.UserID})
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"authenticated": false})
}
