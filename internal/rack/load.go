package rack

import (
	"encoding/json"
	"fmt"
	"time"

	"racksum/internal/models"
	"racksum/internal/placement"
)

// rawConfiguration is the persisted shape as it may appear in older saves:
// optional settings fields, racks without ruSize, and a flat device list.
type rawConfiguration struct {
	ConfigID        string                  `json:"configId"`
	Metadata        *rawMetadata            `json:"metadata"`
	Settings        *rawSettings            `json:"settings"`
	Racks           *[]rawRack              `json:"racks"`
	UnrackedDevices []models.DeviceInstance `json:"unrackedDevices"`
	Devices         []legacyDevice          `json:"devices"`
}

type rawMetadata struct {
	CreatedAt   *time.Time `json:"createdAt"`
	Description string     `json:"description"`
}

type rawSettings struct {
	TotalPowerCapacity *float64 `json:"totalPowerCapacity"`
	HVACCapacity       *float64 `json:"hvacCapacity"`
	RUPerRack          *int     `json:"ruPerRack"`
}

type rawRack struct {
	ID      string                  `json:"id"`
	Name    string                  `json:"name"`
	RUSize  int                     `json:"ruSize"`
	Devices []models.DeviceInstance `json:"devices"`
}

// legacyDevice is an entry of the flat device list used before devices were
// nested under racks
type legacyDevice struct {
	models.DeviceInstance
	RackID string `json:"rackId"`
}

// normalizer turns a raw configuration into a canonical one
type normalizer struct {
	now       time.Time
	seen      map[string]bool
	occupants func(rackID string) []placement.Occupant
	seq       int
}

func (n *normalizer) instanceID(d models.DeviceInstance) string {
	if d.InstanceID != "" && !n.seen[d.InstanceID] {
		return d.InstanceID
	}
	for {
		n.seq++
		id := fmt.Sprintf("%s-%d-%d", d.ID, n.now.UnixMilli(), n.seq)
		if !n.seen[id] {
			return id
		}
	}
}

// device fills instance fields and keeps instance ids unique across owners
func (n *normalizer) device(d models.DeviceInstance) models.DeviceInstance {
	d.InstanceID = n.instanceID(d)
	n.seen[d.InstanceID] = true
	if d.CustomName == "" {
		d.CustomName = d.Name
	}
	return d
}

func (n *normalizer) normalize(raw rawConfiguration) (models.RackConfiguration, error) {
	if raw.Settings == nil || raw.Racks == nil {
		return models.RackConfiguration{}, fmt.Errorf("%w: settings and racks are required", ErrInvalidConfiguration)
	}

	settings := models.Settings{RUPerRack: models.DefaultRUPerRack}
	if v := raw.Settings.TotalPowerCapacity; v != nil {
		settings.TotalPowerCapacity = *v
	}
	if v := raw.Settings.HVACCapacity; v != nil {
		settings.HVACCapacity = *v
	}
	if v := raw.Settings.RUPerRack; v != nil && *v != 0 {
		settings.RUPerRack = *v
	}
	if err := validate.Struct(settings); err != nil {
		return models.RackConfiguration{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	cfg := models.RackConfiguration{
		ConfigID: raw.ConfigID,
		Metadata: models.Metadata{
			CreatedAt:    n.now,
			LastModified: n.now,
			Description:  "Rack configuration",
		},
		Settings:        settings,
		Racks:           make([]models.Rack, 0, len(*raw.Racks)),
		UnrackedDevices: []models.DeviceInstance{},
	}
	if cfg.ConfigID == "" {
		cfg.ConfigID = fmt.Sprintf("config-%d", n.now.UnixMilli())
	}
	if raw.Metadata != nil {
		if raw.Metadata.CreatedAt != nil {
			cfg.Metadata.CreatedAt = *raw.Metadata.CreatedAt
		}
		if raw.Metadata.Description != "" {
			cfg.Metadata.Description = raw.Metadata.Description
		}
	}

	rackIDs := make(map[string]bool, len(*raw.Racks))
	for i, rr := range *raw.Racks {
		if rr.ID == "" {
			return models.RackConfiguration{}, fmt.Errorf("%w: rack %d has no id", ErrInvalidConfiguration, i)
		}
		if rackIDs[rr.ID] {
			return models.RackConfiguration{}, fmt.Errorf("%w: duplicate rack id %s", ErrInvalidConfiguration, rr.ID)
		}
		if rr.RUSize < 0 || rr.RUSize > 52 {
			return models.RackConfiguration{}, fmt.Errorf("%w: rack %s ruSize %d outside 1..52", ErrInvalidConfiguration, rr.ID, rr.RUSize)
		}
		rackIDs[rr.ID] = true

		r := models.Rack{ID: rr.ID, Name: rr.Name, RUSize: rr.RUSize, Devices: []models.DeviceInstance{}}
		if r.RUSize == 0 {
			r.RUSize = settings.RUPerRack
		}
		for _, d := range rr.Devices {
			n.place(&cfg, &r, n.device(d))
		}
		cfg.Racks = append(cfg.Racks, r)
	}

	for _, d := range raw.UnrackedDevices {
		d = n.device(d)
		d.Position = 0
		cfg.UnrackedDevices = append(cfg.UnrackedDevices, d)
	}

	for _, ld := range raw.Devices {
		d := n.device(ld.DeviceInstance)
		if ld.RackID == "" || d.Position == 0 {
			d.Position = 0
			cfg.UnrackedDevices = append(cfg.UnrackedDevices, d)
			continue
		}
		idx := -1
		for i := range cfg.Racks {
			if cfg.Racks[i].ID == ld.RackID {
				idx = i
				break
			}
		}
		if idx < 0 {
			d.Position = 0
			cfg.UnrackedDevices = append(cfg.UnrackedDevices, d)
			continue
		}
		n.place(&cfg, &cfg.Racks[idx], d)
	}

	return cfg, nil
}

// place keeps a loaded device in its rack when its slot is legal; a device that is
// unpositioned, out of bounds or overlapping an earlier occupant becomes unracked.
func (n *normalizer) place(cfg *models.RackConfiguration, r *models.Rack, d models.DeviceInstance) {
	occupants := make([]placement.Occupant, 0, len(r.Devices))
	for _, o := range r.Devices {
		occupants = append(occupants, placement.Occupant{ID: o.InstanceID, Position: o.Position, Size: o.RUSize})
	}
	if n.occupants != nil {
		occupants = append(occupants, n.occupants(r.ID)...)
	}
	if d.Position > 0 && placement.Fits(r.RUSize, occupants, d.Position, d.RUSize, d.InstanceID) {
		r.Devices = append(r.Devices, d)
		return
	}
	d.Position = 0
	cfg.UnrackedDevices = append(cfg.UnrackedDevices, d)
}

// ParseConfiguration decodes and normalizes a configuration without touching any store
func ParseConfiguration(data []byte) (models.RackConfiguration, error) {
	return parseConfiguration(data, time.Now().UTC(), nil)
}

func parseConfiguration(data []byte, now time.Time, occupants func(string) []placement.Occupant) (models.RackConfiguration, error) {
	var raw rawConfiguration
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.RackConfiguration{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	n := &normalizer{now: now, seen: make(map[string]bool), occupants: occupants}
	return n.normalize(raw)
}

// LoadConfiguration replaces the whole configuration with the normalized contents
// of data. On error the current configuration is untouched.
func (s *Store) LoadConfiguration(data []byte) error {
	return s.mutate(ChangeConfig, func() (bool, error) {
		cfg, err := parseConfiguration(data, s.now().UTC(), s.providerOccupants)
		if err != nil {
			return false, err
		}
		last := s.cfg.Metadata.LastModified
		s.cfg = cfg
		s.cfg.Metadata.LastModified = last
		return true, nil
	})
}

// providerOccupants lists the racked providers claiming space in a rack
func (s *Store) providerOccupants(rackID string) []placement.Occupant {
	var out []placement.Occupant
	for _, p := range s.providers {
		if p.Racked() && p.RackID == rackID {
			out = append(out, placement.Occupant{ID: p.ID, Position: p.Position, Size: p.RUSize})
		}
	}
	return out
}

// ExportConfiguration serializes the configuration in its persisted shape
func (s *Store) ExportConfiguration() ([]byte, error) {
	return json.MarshalIndent(s.Configuration(), "", "  ")
}
