package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"racksum/internal/metrics"
)

// RouterOptions tunes the middleware chain
type RouterOptions struct {
	RateLimit    float64 // requests per second, 0 disables
	RateBurst    int
	MaxBodyBytes int64
}

// NewRouter wires every route of the API
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestLogger, Instrument, RateLimit(opts.RateLimit, opts.RateBurst))

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "Not found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Admin: uploads carry their own size limit
	admin := router.PathPrefix("/api/admin").Subrouter()
	admin.HandleFunc("/backup", h.BackupDBHandler).Methods(http.MethodGet)
	admin.HandleFunc("/restore", h.RestoreDBHandler).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(LimitBody(opts.MaxBodyBytes))

	api.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	api.HandleFunc("/devices", h.DevicesHandler).Methods(http.MethodGet)
	api.HandleFunc("/load", h.LoadHandler).Methods(http.MethodPost)

	// Sites
	api.HandleFunc("/sites", h.ListSitesHandler).Methods(http.MethodGet)
	api.HandleFunc("/sites", h.CreateSiteHandler).Methods(http.MethodPost)
	api.HandleFunc("/sites/{id:[0-9]+}", h.GetSiteHandler).Methods(http.MethodGet)
	api.HandleFunc("/sites/{id:[0-9]+}", h.UpdateSiteHandler).Methods(http.MethodPut)
	api.HandleFunc("/sites/{id:[0-9]+}", h.DeleteSiteHandler).Methods(http.MethodDelete)

	// Rack configurations
	api.HandleFunc("/sites/{id:[0-9]+}/racks", h.ListConfigurationsHandler).Methods(http.MethodGet)
	api.HandleFunc("/sites/{id:[0-9]+}/racks", h.SaveConfigurationHandler).Methods(http.MethodPost)
	api.HandleFunc("/sites/{id:[0-9]+}/racks/{name}/export.csv", h.ExportCSVHandler).Methods(http.MethodGet)
	api.HandleFunc("/sites/{id:[0-9]+}/racks/{name}/export.xlsx", h.ExportXLSXHandler).Methods(http.MethodGet)
	api.HandleFunc("/sites/{id:[0-9]+}/racks/{name}", h.GetConfigurationHandler).Methods(http.MethodGet)
	api.HandleFunc("/racks", h.ListAllConfigurationsHandler).Methods(http.MethodGet)
	api.HandleFunc("/racks/{id:[0-9]+}", h.DeleteConfigurationHandler).Methods(http.MethodDelete)

	return router
}
