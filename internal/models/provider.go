package models

import "time"

// ProviderType is the resource a provider supplies
type ProviderType string

const (
	ProviderPower   ProviderType = "power"
	ProviderCooling ProviderType = "cooling"
	ProviderNetwork ProviderType = "network"
)

// Valid reports whether t is a known provider type
func (t ProviderType) Valid() bool {
	switch t {
	case ProviderPower, ProviderCooling, ProviderNetwork:
		return true
	}
	return false
}

// ResourceProvider is either a template held in the library (IsPlaced=false) or a
// placed instance that counts toward capacity. RackID/Position are empty/zero when
// the provider does not occupy rack space.
type ResourceProvider struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name" validate:"required"`
	Type               ProviderType `json:"type" validate:"required,oneof=power cooling network"`
	PowerCapacity      float64      `json:"powerCapacity" validate:"gte=0"`      // watts
	PowerPortsCapacity int          `json:"powerPortsCapacity" validate:"gte=0"` // PDU outlets
	CoolingCapacity    float64      `json:"coolingCapacity" validate:"gte=0"`    // BTU/hr
	NetworkCapacity    float64      `json:"networkCapacity" validate:"gte=0"`    // Gbps
	Description        string       `json:"description,omitempty"`
	Location           string       `json:"location,omitempty"`
	RUSize             int          `json:"ruSize" validate:"gte=0"`
	RackID             string       `json:"rackId,omitempty"`
	Position           int          `json:"position,omitempty"`
	IsPlaced           bool         `json:"isPlaced"`
	Custom             bool         `json:"custom,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          *time.Time   `json:"updatedAt,omitempty"`
}

// Racked reports whether the provider is a placed instance occupying rack space
func (p ResourceProvider) Racked() bool {
	return p.IsPlaced && p.RackID != "" && p.Position > 0 && p.RUSize > 0
}

// ProviderExport is the document produced by a provider export
type ProviderExport struct {
	Providers  []ResourceProvider `json:"providers"`
	ExportDate time.Time          `json:"exportDate"`
	Version    string             `json:"version"`
}
