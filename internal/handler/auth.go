package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/auth"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthHandler struct {
	auth     *auth.Authenticator
	validate *validator.Validate
}

func NewAuthHandler(a *auth.Authenticator) *AuthHandler {
	return &AuthHandler{auth: a, validate: NewValidator()}
}

func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.HandleFunc("/*", notImplemented)
	})
}

func (h *AuthHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.auth.Status(r))
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) || !validate(w, h.validate, req) {
		return
	}

	id, err := h.auth.Login(w, r, req.Email, req.Password)
	if err != nil {
		status := mapErrorToStatusCode(err)
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondWithError(w, status, "Invalid email or password")
		case errors.Is(err, auth.ErrLoginDisabled):
			respondWithError(w, status, "Admin login is not configured")
		default:
			log.Error().Err(err).Msg("Failed to start admin session")
			respondWithError(w, status, "Failed to log in")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, auth.Status{
		Service:       "auth",
		Status:        "online",
		Authenticated: true,
		Identity:      id,
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(w, r); err != nil {
		log.Error().Err(err).Msg("Failed to clear admin session")
		respondWithError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}
