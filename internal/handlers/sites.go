package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"racksum/internal/db"
	"racksum/internal/logger"
	"racksum/internal/models"
)

type siteRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListSitesHandler lists all sites
func (h *Handler) ListSitesHandler(w http.ResponseWriter, r *http.Request) {
	sites, err := h.db.ListSites(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to fetch sites", err)
		return
	}
	respondJSON(w, http.StatusOK, sites)
}

// GetSiteHandler returns one site
func (h *Handler) GetSiteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	site, err := h.db.GetSite(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "Site not found", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to fetch site", err)
		return
	}
	respondJSON(w, http.StatusOK, site)
}

// CreateSiteHandler creates a site
func (h *Handler) CreateSiteHandler(w http.ResponseWriter, r *http.Request) {
	var req siteRequest
	if !decode(w, r, &req) {
		return
	}

	site, err := h.db.CreateSite(r.Context(), req.Name, req.Description)
	switch {
	case errors.Is(err, db.ErrNameRequired):
		respondError(w, r, http.StatusBadRequest, "Site name is required", nil)
	case errors.Is(err, db.ErrSiteExists):
		respondError(w, r, http.StatusConflict, "A site with this name already exists", nil)
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, "Failed to create site", err)
	default:
		logger.Ctx(r.Context()).Info().Int64("site_id", site.ID).Str("name", site.Name).Msg("site created")
		respondJSON(w, http.StatusCreated, site)
	}
}

// UpdateSiteHandler renames a site
func (h *Handler) UpdateSiteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req siteRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.db.UpdateSite(r.Context(), id, req.Name, req.Description)
	switch {
	case errors.Is(err, db.ErrNameRequired):
		respondError(w, r, http.StatusBadRequest, "Site name is required", nil)
	case errors.Is(err, db.ErrSiteExists):
		respondError(w, r, http.StatusConflict, "A site with this name already exists", nil)
	case errors.Is(err, db.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "Site not found", nil)
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, "Failed to update site", err)
	default:
		respondJSON(w, http.StatusOK, successResponse{Success: true, Message: "Site updated successfully"})
	}
}

// DeleteSiteHandler deletes a site with its configurations
func (h *Handler) DeleteSiteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.db.DeleteSite(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "Site not found", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to delete site", err)
		return
	}
	logger.Ctx(r.Context()).Info().Int64("site_id", id).Msg("site deleted")
	respondJSON(w, http.StatusOK, successResponse{Success: true, Message: "Site deleted successfully"})
}

// ListConfigurationsHandler lists the configurations saved for a site
func (h *Handler) ListConfigurationsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	configs, err := h.db.ListConfigurations(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "Site not found", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to fetch rack configurations", err)
		return
	}
	respondJSON(w, http.StatusOK, configs)
}

// SaveConfigurationHandler creates or replaces the configuration named in the body
func (h *Handler) SaveConfigurationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.SaveConfigurationRequest
	if !decode(w, r, &req) {
		return
	}

	saved, created, err := h.db.UpsertConfiguration(r.Context(), id, req.Name, req.ConfigData, req.Description)
	switch {
	case errors.Is(err, db.ErrNameRequired):
		respondError(w, r, http.StatusBadRequest, "Rack name is required", nil)
		return
	case errors.Is(err, db.ErrInvalidConfigData):
		respondError(w, r, http.StatusBadRequest, "Configuration data is required", nil)
		return
	case errors.Is(err, db.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "Site not found", nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, "Failed to save rack configuration", err)
		return
	}

	logger.Ctx(r.Context()).Info().
		Int64("site_id", id).
		Str("name", saved.Name).
		Bool("created", created).
		Msg("rack configuration saved")
	respondJSON(w, http.StatusCreated, models.SaveConfigurationResponse{
		ID:          saved.ID,
		SiteID:      saved.SiteID,
		Name:        saved.Name,
		Description: saved.Description,
	})
}

// GetConfigurationHandler returns one configuration by site and name
func (h *Handler) GetConfigurationHandler(w http.ResponseWriter, r *http.Request) {
	saved, ok := h.configuration(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (h *Handler) configuration(w http.ResponseWriter, r *http.Request) (models.SavedConfiguration, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return models.SavedConfiguration{}, false
	}
	saved, err := h.db.GetConfiguration(r.Context(), id, mux.Vars(r)["name"])
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "Rack configuration not found", nil)
		return saved, false
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to fetch rack configuration", err)
		return saved, false
	}
	return saved, true
}

// DeleteConfigurationHandler deletes a configuration by ID
func (h *Handler) DeleteConfigurationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.db.DeleteConfiguration(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "Rack configuration not found", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to delete rack configuration", err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true, Message: "Rack configuration deleted successfully"})
}

// ListAllConfigurationsHandler lists configurations across all sites
func (h *Handler) ListAllConfigurationsHandler(w http.ResponseWriter, r *http.Request) {
	configs, err := h.db.ListAllConfigurations(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to fetch rack configurations", err)
		return
	}
	respondJSON(w, http.StatusOK, configs)
}
