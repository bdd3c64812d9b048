package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"family_tree/internal/api/session"
	"family_tree/internal/app/service"
	"family_tree/internal/common"
	"family_tree/internal/common/security"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	authService *service.AuthService
	transport   *session.Transport
	log         *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, transport *session.Transport, log *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, transport: transport, log: log}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.login)   // POST /api/auth/login
	r.Post("/logout", h.logout) // POST /api/auth/logout
	r.Get("/verify", h.verify)  // GET /api/auth/verify
}

type verifyResponse struct {
	User security.Identity `json:"user"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	// An empty body is an empty request; the service reports the missing fields.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}

	h.transport.Attach(w, resp.Token)
	h.log.InfoContext(r.Context(), "user logged in", "user_id", resp.User.ID)
	common.RespondWithMessage(w, http.StatusOK, "Login successful")
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	token := h.transport.ExtractToken(r)
	h.transport.Clear(w)

	if err := h.authService.Logout(r.Context(), token); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Logged out successfully")
}

// verify reports who the session belongs to, from the token alone.
func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request) {
	token := h.transport.ExtractToken(r)
	if token == "" {
		common.RespondWithError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	claims, err := h.authService.Authenticate(r.Context(), token)
	if err != nil {
		if common.HTTPStatusFromError(err) == http.StatusUnauthorized {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, verifyResponse{User: claims.Identity()})
}
