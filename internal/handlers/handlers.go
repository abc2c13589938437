package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"racksum/internal/catalog"
	"racksum/internal/db"
	"racksum/internal/logger"
	"racksum/internal/rack"
)

// Handler serves the remote store API backed by a SQLite repository
type Handler struct {
	db      *db.DB
	catalog *catalog.Catalog
}

// New creates the API handlers. A nil catalog serves an empty one.
func New(database *db.DB, cat *catalog.Catalog) *Handler {
	if cat == nil {
		cat = &catalog.Catalog{Categories: []catalog.Category{}}
	}
	return &Handler{db: database, catalog: cat}
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
		ev := logger.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			ev = logger.Ctx(r.Context()).Error()
		}
		ev.Err(err).Int("status", status).Msg(msg)
	}
	respondJSON(w, status, resp)
}

// decode reads a JSON body, answering 413 or 400 itself on failure
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err)
		return false
	}
	respondError(w, r, http.StatusBadRequest, "Invalid request body", err)
	return false
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

// HealthHandler reports whether the database answers
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

// DevicesHandler serves the device catalog
func (h *Handler) DevicesHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog)
}

type loadResponse struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Config      json.RawMessage `json:"config"`
	RedirectURL string          `json:"redirectUrl"`
}

// LoadHandler normalizes a posted configuration and echoes it back
func (h *Handler) LoadHandler(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decode(w, r, &raw) {
		return
	}

	cfg, err := rack.ParseConfiguration(raw)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid rack configuration data", err)
		return
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to process rack configuration", err)
		return
	}

	logger.Ctx(r.Context()).Info().
		Str("config_id", cfg.ConfigID).
		Int("racks", len(cfg.Racks)).
		Msg("configuration received")
	respondJSON(w, http.StatusOK, loadResponse{
		Success:     true,
		Message:     "Configuration received successfully",
		Config:      data,
		RedirectURL: "/?loadConfig=true",
	})
}
