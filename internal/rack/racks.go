package rack

import (
	"fmt"

	"racksum/internal/models"
	"racksum/internal/placement"
)

// SettingsPatch holds the settings fields to change; nil fields are kept
type SettingsPatch struct {
	TotalPowerCapacity *float64 `json:"totalPowerCapacity,omitempty"`
	HVACCapacity       *float64 `json:"hvacCapacity,omitempty"`
	RUPerRack          *int     `json:"ruPerRack,omitempty"`
}

// RackPatch holds the rack fields to change; nil fields are kept
type RackPatch struct {
	Name   *string `json:"name,omitempty"`
	RUSize *int    `json:"ruSize,omitempty"`
}

// Settings returns the current settings
func (s *Store) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Settings
}

// UpdateSettings shallow-merges p into the settings. The merged result must be
// valid or nothing changes.
func (s *Store) UpdateSettings(p SettingsPatch) error {
	return s.mutate(ChangeConfig, func() (bool, error) {
		merged := s.cfg.Settings
		if p.TotalPowerCapacity != nil {
			merged.TotalPowerCapacity = *p.TotalPowerCapacity
		}
		if p.HVACCapacity != nil {
			merged.HVACCapacity = *p.HVACCapacity
		}
		if p.RUPerRack != nil {
			merged.RUPerRack = *p.RUPerRack
		}
		if err := validate.Struct(merged); err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		if merged == s.cfg.Settings {
			return false, nil
		}
		s.cfg.Settings = merged
		return true, nil
	})
}

// Racks returns a copy of the racks in display order
func (s *Store) Racks() []models.Rack {
	return s.Configuration().Racks
}

// Rack returns a copy of the rack with the given id
func (s *Store) Rack(id string) (models.Rack, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.rackIndex(id)
	if i < 0 {
		return models.Rack{}, false
	}
	r := s.cfg.Racks[i]
	r.Devices = append([]models.DeviceInstance{}, r.Devices...)
	return r, true
}

// newRack builds the next sequential rack, skipping ids already in use
func (s *Store) newRack() models.Rack {
	for n := len(s.cfg.Racks) + 1; ; n++ {
		id := fmt.Sprintf("rack-%d", n)
		if s.rackIndex(id) >= 0 {
			continue
		}
		return models.Rack{
			ID:      id,
			Name:    fmt.Sprintf("Rack %d", n),
			RUSize:  s.cfg.Settings.RUPerRack,
			Devices: []models.DeviceInstance{},
		}
	}
}

// InitializeRacks grows the rack list to n by appending racks, or truncates it.
// Truncation discards the devices of the dropped racks and clears the slot of
// any provider placed in them.
func (s *Store) InitializeRacks(n int) {
	if n < 0 {
		n = 0
	}
	var unracked bool
	_ = s.mutate(ChangeConfig, func() (bool, error) {
		switch {
		case n == len(s.cfg.Racks):
			return false, nil
		case n < len(s.cfg.Racks):
			unracked = s.unrackProviders(s.cfg.Racks[n:])
			s.cfg.Racks = s.cfg.Racks[:n:n]
		default:
			for len(s.cfg.Racks) < n {
				s.cfg.Racks = append(s.cfg.Racks, s.newRack())
			}
		}
		return true, nil
	})
	if unracked {
		s.emit(Change{Kind: ChangeProviders, At: s.now().UTC()})
	}
}

// unrackProviders clears the rack slot of every provider placed in one of racks.
// Callers hold the write lock.
func (s *Store) unrackProviders(racks []models.Rack) bool {
	dropped := make(map[string]bool, len(racks))
	for _, r := range racks {
		dropped[r.ID] = true
	}
	var cleared bool
	for i := range s.providers {
		p := &s.providers[i]
		if p.RackID != "" && dropped[p.RackID] {
			p.RackID = ""
			p.Position = 0
			cleared = true
		}
	}
	return cleared
}

// AddRack appends a new empty rack and returns it
func (s *Store) AddRack() models.Rack {
	var added models.Rack
	_ = s.mutate(ChangeConfig, func() (bool, error) {
		added = s.newRack()
		s.cfg.Racks = append(s.cfg.Racks, added)
		return true, nil
	})
	return added
}

// UpdateRack renames or resizes a rack. Shrinking below an occupant's top unit
// is a placement conflict.
func (s *Store) UpdateRack(id string, p RackPatch) error {
	return s.mutate(ChangeConfig, func() (bool, error) {
		i := s.rackIndex(id)
		if i < 0 {
			return false, fmt.Errorf("%w: %s", ErrRackNotFound, id)
		}
		r := &s.cfg.Racks[i]
		changed := false

		if p.RUSize != nil && *p.RUSize != r.RUSize {
			size := *p.RUSize
			if size < 1 || size > 52 {
				return false, fmt.Errorf("%w: rack size %d outside 1..52", ErrInvalidSettings, size)
			}
			for _, o := range s.occupants(*r) {
				if o.Size > 0 && o.End() > size {
					return false, &placement.ConflictError{
						Reason:   placement.ReasonOutOfBounds,
						Position: o.Position,
						Size:     o.Size,
						Limit:    size,
						Occupant: o.ID,
					}
				}
			}
			r.RUSize = size
			changed = true
		}
		if p.Name != nil && *p.Name != r.Name {
			r.Name = *p.Name
			changed = true
		}
		return changed, nil
	})
}

// DeleteRack removes a rack. When moveToUnracked is set its devices are appended
// to the unracked set with positions cleared. Providers placed in the rack are
// left for the caller to relocate. Unknown ids are a no-op.
func (s *Store) DeleteRack(id string, moveToUnracked bool) bool {
	var deleted bool
	_ = s.mutate(ChangeConfig, func() (bool, error) {
		i := s.rackIndex(id)
		if i < 0 {
			return false, nil
		}
		if moveToUnracked {
			for _, d := range s.cfg.Racks[i].Devices {
				d.Position = 0
				s.cfg.UnrackedDevices = append(s.cfg.UnrackedDevices, d)
			}
		}
		s.cfg.Racks = append(s.cfg.Racks[:i:i], s.cfg.Racks[i+1:]...)
		deleted = true
		return true, nil
	})
	return deleted
}

// ReorderRacks moves the rack at index from to index to. Out-of-range indices are a no-op.
func (s *Store) ReorderRacks(from, to int) bool {
	var moved bool
	_ = s.mutate(ChangeConfig, func() (bool, error) {
		n := len(s.cfg.Racks)
		if from < 0 || from >= n || to < 0 || to >= n || from == to {
			return false, nil
		}
		r := s.cfg.Racks[from]
		racks := append(s.cfg.Racks[:from:from], s.cfg.Racks[from+1:]...)
		racks = append(racks[:to], append([]models.Rack{r}, racks[to:]...)...)
		s.cfg.Racks = racks
		moved = true
		return true, nil
	})
	return moved
}
