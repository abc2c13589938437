package rack

import (
	"fmt"

	"racksum/internal/models"
)

// DeviceLocation identifies the owner of a device instance. RackID is empty for
// unracked devices.
type DeviceLocation struct {
	RackID string
	Index  int
}

// Unracked reports whether the location is the unracked set
func (l DeviceLocation) Unracked() bool {
	return l.RackID == ""
}

func (s *Store) instanceExists(id string) bool {
	_, ok := s.locate(id)
	return ok
}

// newInstanceID derives an instance id from the template id and the current time,
// suffixing a counter when two instances are created within the same millisecond.
func (s *Store) newInstanceID(templateID string) string {
	base := fmt.Sprintf("%s-%d", templateID, s.now().UnixMilli())
	if !s.instanceExists(base) {
		return base
	}
	for n := 2; ; n++ {
		id := fmt.Sprintf("%s-%d", base, n)
		if !s.instanceExists(id) {
			return id
		}
	}
}

// instantiate fills the instance fields of a device arriving from a catalog
func (s *Store) instantiate(d models.DeviceInstance) models.DeviceInstance {
	if d.InstanceID == "" {
		d.InstanceID = s.newInstanceID(d.ID)
	}
	if d.CustomName == "" {
		d.CustomName = d.Name
	}
	return d
}

func (s *Store) locate(instanceID string) (DeviceLocation, bool) {
	if instanceID == "" {
		return DeviceLocation{}, false
	}
	for _, r := range s.cfg.Racks {
		for j, d := range r.Devices {
			if d.InstanceID == instanceID {
				return DeviceLocation{RackID: r.ID, Index: j}, true
			}
		}
	}
	for j, d := range s.cfg.UnrackedDevices {
		if d.InstanceID == instanceID {
			return DeviceLocation{Index: j}, true
		}
	}
	return DeviceLocation{}, false
}

func (s *Store) deviceAt(loc DeviceLocation) models.DeviceInstance {
	if loc.Unracked() {
		return s.cfg.UnrackedDevices[loc.Index]
	}
	return s.cfg.Racks[s.rackIndex(loc.RackID)].Devices[loc.Index]
}

func (s *Store) deviceRef(loc DeviceLocation) *models.DeviceInstance {
	if loc.Unracked() {
		return &s.cfg.UnrackedDevices[loc.Index]
	}
	return &s.cfg.Racks[s.rackIndex(loc.RackID)].Devices[loc.Index]
}

// detach removes an instance from whichever owner holds it
func (s *Store) detach(instanceID string) (models.DeviceInstance, bool) {
	loc, ok := s.locate(instanceID)
	if !ok {
		return models.DeviceInstance{}, false
	}
	d := s.deviceAt(loc)
	if loc.Unracked() {
		s.cfg.UnrackedDevices = removeAt(s.cfg.UnrackedDevices, loc.Index)
	} else {
		r := &s.cfg.Racks[s.rackIndex(loc.RackID)]
		r.Devices = removeAt(r.Devices, loc.Index)
	}
	return d, true
}

func removeAt(devices []models.DeviceInstance, i int) []models.DeviceInstance {
	return append(devices[:i:i], devices[i+1:]...)
}

// attach validates and places d in a rack, detaching it from its previous owner
// in the same critical section.
func (s *Store) attach(rackID string, d models.DeviceInstance, position int) (models.DeviceInstance, error) {
	if err := s.checkPlacement(rackID, position, d.RUSize, d.InstanceID); err != nil {
		return models.DeviceInstance{}, err
	}
	d = s.instantiate(d)
	s.detach(d.InstanceID)
	d.Position = position

	r := &s.cfg.Racks[s.rackIndex(rackID)]
	r.Devices = append(r.Devices, d)
	return d, nil
}

// AddDeviceToRack places a device at position. A device that already has an
// instance id is moved from its current owner; otherwise a new instance is created.
func (s *Store) AddDeviceToRack(rackID string, d models.DeviceInstance, position int) (models.DeviceInstance, error) {
	var placed models.DeviceInstance
	err := s.mutate(ChangeConfig, func() (bool, error) {
		var err error
		placed, err = s.attach(rackID, d, position)
		return err == nil, err
	})
	return placed, err
}

// MoveDevice relocates an existing instance to a rack position, keeping its id
func (s *Store) MoveDevice(instanceID, rackID string, position int) (models.DeviceInstance, error) {
	var placed models.DeviceInstance
	err := s.mutate(ChangeConfig, func() (bool, error) {
		loc, ok := s.locate(instanceID)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrDeviceNotFound, instanceID)
		}
		current := s.deviceAt(loc)
		if loc.RackID == rackID && current.Position == position {
			placed = current
			return false, nil
		}
		var err error
		placed, err = s.attach(rackID, current, position)
		return err == nil, err
	})
	return placed, err
}

// RemoveDeviceFromRack deletes an instance from a rack. Unknown ids are a no-op.
func (s *Store) RemoveDeviceFromRack(rackID, instanceID string) bool {
	var removed bool
	_ = s.mutate(ChangeConfig, func() (bool, error) {
		loc, ok := s.locate(instanceID)
		if !ok || loc.RackID != rackID || loc.Unracked() {
			return false, nil
		}
		s.detach(instanceID)
		removed = true
		return true, nil
	})
	return removed
}

// AddUnrackedDevice adds a device to the unracked set, moving it out of a rack if
// it is already placed there.
func (s *Store) AddUnrackedDevice(d models.DeviceInstance) models.DeviceInstance {
	var added models.DeviceInstance
	_ = s.mutate(ChangeConfig, func() (bool, error) {
		added = s.instantiate(d)
		s.detach(added.InstanceID)
		added.Position = 0
		s.cfg.UnrackedDevices = append(s.cfg.UnrackedDevices, added)
		return true, nil
	})
	return added
}

// RemoveUnrackedDevice deletes an instance from the unracked set. Unknown ids are a no-op.
func (s *Store) RemoveUnrackedDevice(instanceID string) bool {
	var removed bool
	_ = s.mutate(ChangeConfig, func() (bool, error) {
		loc, ok := s.locate(instanceID)
		if !ok || !loc.Unracked() {
			return false, nil
		}
		s.detach(instanceID)
		removed = true
		return true, nil
	})
	return removed
}

// UnrackDevice moves a racked device into the unracked set, keeping its instance id
func (s *Store) UnrackDevice(rackID, instanceID string) bool {
	var moved bool
	_ = s.mutate(ChangeConfig, func() (bool, error) {
		loc, ok := s.locate(instanceID)
		if !ok || loc.Unracked() || loc.RackID != rackID {
			return false, nil
		}
		d, _ := s.detach(instanceID)
		d.Position = 0
		s.cfg.UnrackedDevices = append(s.cfg.UnrackedDevices, d)
		moved = true
		return true, nil
	})
	return moved
}

// RemoveDevice deletes an instance from wherever it lives
func (s *Store) RemoveDevice(instanceID string) bool {
	var removed bool
	_ = s.mutate(ChangeConfig, func() (bool, error) {
		_, removed = s.detach(instanceID)
		return removed, nil
	})
	return removed
}

// RenameDevice sets the custom name of an instance. An empty name falls back to the template name.
func (s *Store) RenameDevice(instanceID, name string) bool {
	var found bool
	_ = s.mutate(ChangeConfig, func() (bool, error) {
		loc, ok := s.locate(instanceID)
		if !ok {
			return false, nil
		}
		found = true
		d := s.deviceRef(loc)
		if name == "" {
			name = d.Name
		}
		if d.CustomName == name {
			return false, nil
		}
		d.CustomName = name
		return true, nil
	})
	return found
}

// FindDevice returns a copy of an instance and its location
func (s *Store) FindDevice(instanceID string) (models.DeviceInstance, DeviceLocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locate(instanceID)
	if !ok {
		return models.DeviceInstance{}, DeviceLocation{}, false
	}
	return s.deviceAt(loc), loc, true
}
