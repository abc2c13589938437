package models

import (
	"encoding/json"
	"time"
)

// Site represents a physical location or datacenter
type Site struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SavedConfiguration is a named rack configuration stored for a site.
// (SiteID, Name) is the natural key.
type SavedConfiguration struct {
	ID          int64           `json:"id"`
	SiteID      int64           `json:"site_id"`
	SiteName    string          `json:"site_name"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	ConfigData  json.RawMessage `json:"config_data"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SaveConfigurationRequest is the body of an upsert
type SaveConfigurationRequest struct {
	Name        string          `json:"name"`
	ConfigData  json.RawMessage `json:"configData"`
	Description string          `json:"description,omitempty"`
}

// SaveConfigurationResponse is returned by an upsert
type SaveConfigurationResponse struct {
	ID          int64  `json:"id"`
	SiteID      int64  `json:"siteId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
