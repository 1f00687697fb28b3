package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/auth"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/site"
)

type SiteHandler struct {
	service  site.Service
	validate *validator.Validate
}

func NewSiteHandler(service site.Service) *SiteHandler {
	return &SiteHandler{service: service, validate: NewValidator()}
}

func (h *SiteHandler) RegisterRoutes(router chi.Router, admin func(http.Handler) http.Handler) {
	router.Get("/site/hero", h.handleGetHero)
	router.With(admin).Put("/site/hero", h.handleUpdateHero)
}

func (h *SiteHandler) handleGetHero(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetHero(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get hero settings via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch hero settings")
		return
	}
	respondWithJSON(w, http.StatusOK, settings.Hero)
}

func (h *SiteHandler) handleUpdateHero(w http.ResponseWriter, r *http.Request) {
	var patch site.HeroPatch
	if !decodeJSON(w, r, &patch) || !validate(w, h.validate, patch) {
		return
	}

	updatedBy := ""
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		updatedBy = id.Email
	}

	settings, err := h.service.UpdateHero(r.Context(), patch, updatedBy)
	if err != nil {
		log.Error().Err(err).Msg("Failed to update hero settings via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to update hero settings")
		return
	}
	respondWithJSON(w, http.StatusOK, settings.Hero)
}
