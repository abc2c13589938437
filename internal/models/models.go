package models

import "time"

// DefaultRUPerRack is the rack height used when neither the rack nor the settings carry one.
const DefaultRUPerRack = 42

// Settings holds the fallback capacities used when no resource provider supplies them
type Settings struct {
	TotalPowerCapacity float64 `json:"totalPowerCapacity" validate:"gte=0"` // watts
	HVACCapacity       float64 `json:"hvacCapacity" validate:"gte=0"`       // BTU/hr
	RUPerRack          int     `json:"ruPerRack" validate:"min=1,max=52"`
}

// DefaultSettings returns the settings of a fresh configuration (~10kW, 42U racks)
func DefaultSettings() Settings {
	return Settings{
		TotalPowerCapacity: 10000,
		HVACCapacity:       34100,
		RUPerRack:          DefaultRUPerRack,
	}
}

// Metadata describes a configuration
type Metadata struct {
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	Description  string    `json:"description"`
}

// DeviceTemplate is a catalog entry a device instance is created from
type DeviceTemplate struct {
	ID             string  `json:"id" yaml:"id" validate:"required"`
	Name           string  `json:"name" yaml:"name" validate:"required"`
	Category       string  `json:"category" yaml:"category"`
	RUSize         int     `json:"ruSize" yaml:"ruSize" validate:"gte=0"`
	PowerDraw      float64 `json:"powerDraw" yaml:"powerDraw" validate:"gte=0"` // watts
	PowerPortsUsed int     `json:"powerPortsUsed,omitempty" yaml:"powerPortsUsed" validate:"gte=0"`
	Color          string  `json:"color,omitempty" yaml:"color"`
	Description    string  `json:"description,omitempty" yaml:"description"`
}

// DeviceInstance is a placed copy of a template. Position is the 1-based starting
// rack unit and is zero while the device is unracked.
type DeviceInstance struct {
	DeviceTemplate
	InstanceID string `json:"instanceId"`
	Position   int    `json:"position,omitempty"`
	CustomName string `json:"customName"`
}

// Ports returns the number of power ports the device draws from (at least one)
func (d DeviceInstance) Ports() int {
	if d.PowerPortsUsed < 1 {
		return 1
	}
	return d.PowerPortsUsed
}

// DisplayName returns the custom name, falling back to the template name
func (d DeviceInstance) DisplayName() string {
	if d.CustomName != "" {
		return d.CustomName
	}
	return d.Name
}

// Rack represents a physical equipment rack
type Rack struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	RUSize  int              `json:"ruSize"` // height in U, overrides Settings.RUPerRack
	Devices []DeviceInstance `json:"devices"`
}

// RackConfiguration is the root aggregate of a layout
type RackConfiguration struct {
	ConfigID        string           `json:"configId"`
	Metadata        Metadata         `json:"metadata"`
	Settings        Settings         `json:"settings"`
	Racks           []Rack           `json:"racks"`
	UnrackedDevices []DeviceInstance `json:"unrackedDevices"`
}

// Clone returns a deep copy of the configuration
func (c RackConfiguration) Clone() RackConfiguration {
	out := c
	out.Racks = make([]Rack, len(c.Racks))
	for i, r := range c.Racks {
		out.Racks[i] = r
		out.Racks[i].Devices = append([]DeviceInstance{}, r.Devices...)
	}
	out.UnrackedDevices = append([]DeviceInstance{}, c.UnrackedDevices...)
	return out
}
