package rack

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"racksum/internal/models"
)

// ExportVersion is written into provider export documents
const ExportVersion = "1.0"

// ImportMode selects how imported providers combine with the current collection
type ImportMode string

const (
	ImportReplace ImportMode = "replace"
	ImportMerge   ImportMode = "merge"
)

// Registry manages resource providers. It shares the store's lock so provider
// placement and device placement see one occupancy space per rack.
type Registry struct {
	s *Store
}

// ProviderSpec describes a new provider template; zero numeric fields mean "none"
type ProviderSpec struct {
	Name               string              `json:"name"`
	Type               models.ProviderType `json:"type"`
	PowerCapacity      float64             `json:"powerCapacity"`
	PowerPortsCapacity int                 `json:"powerPortsCapacity"`
	CoolingCapacity    float64             `json:"coolingCapacity"`
	NetworkCapacity    float64             `json:"networkCapacity"`
	Description        string              `json:"description"`
	Location           string              `json:"location"`
	RUSize             int                 `json:"ruSize"`
	Custom             bool                `json:"custom"`
}

// ProviderPatch holds the provider fields to change; nil fields are kept
type ProviderPatch struct {
	Name               *string              `json:"name,omitempty"`
	Type               *models.ProviderType `json:"type,omitempty"`
	PowerCapacity      *float64             `json:"powerCapacity,omitempty"`
	PowerPortsCapacity *int                 `json:"powerPortsCapacity,omitempty"`
	CoolingCapacity    *float64             `json:"coolingCapacity,omitempty"`
	NetworkCapacity    *float64             `json:"networkCapacity,omitempty"`
	Description        *string              `json:"description,omitempty"`
	Location           *string              `json:"location,omitempty"`
	RUSize             *int                 `json:"ruSize,omitempty"`
}

// Placement is an optional rack slot for a new instance. The zero value is unracked.
type Placement struct {
	RackID   string
	Position int
}

// Totals aggregates placed instances; templates never contribute
type Totals struct {
	PowerCapacity      float64 `json:"powerCapacity"`
	PowerPortsCapacity int     `json:"powerPortsCapacity"`
	CoolingCapacity    float64 `json:"coolingCapacity"`
	NetworkCapacity    float64 `json:"networkCapacity"`
	ProviderRU         int     `json:"providerRU"`
	RackedProviderRU   int     `json:"rackedProviderRU"`
}

// ComputeTotals sums capacities over the placed instances in providers
func ComputeTotals(providers []models.ResourceProvider) Totals {
	var t Totals
	for _, p := range providers {
		if !p.IsPlaced {
			continue
		}
		t.PowerCapacity += p.PowerCapacity
		t.PowerPortsCapacity += p.PowerPortsCapacity
		t.CoolingCapacity += p.CoolingCapacity
		t.NetworkCapacity += p.NetworkCapacity
		t.ProviderRU += p.RUSize
		if p.Racked() {
			t.RackedProviderRU += p.RUSize
		}
	}
	return t
}

func (r *Registry) index(id string) int {
	for i := range r.s.providers {
		if r.s.providers[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) validate(p models.ResourceProvider) error {
	return validate.Struct(p)
}

// AddProvider creates a provider template
func (r *Registry) AddProvider(spec ProviderSpec) (models.ResourceProvider, error) {
	p := models.ResourceProvider{
		ID:                 "provider-" + uuid.NewString(),
		Name:               spec.Name,
		Type:               spec.Type,
		PowerCapacity:      spec.PowerCapacity,
		PowerPortsCapacity: spec.PowerPortsCapacity,
		CoolingCapacity:    spec.CoolingCapacity,
		NetworkCapacity:    spec.NetworkCapacity,
		Description:        spec.Description,
		Location:           spec.Location,
		RUSize:             spec.RUSize,
		Custom:             spec.Custom,
	}
	if err := r.validate(p); err != nil {
		return models.ResourceProvider{}, fmt.Errorf("invalid provider: %w", err)
	}

	err := r.s.mutate(ChangeProviders, func() (bool, error) {
		p.CreatedAt = r.s.now().UTC()
		r.s.providers = append(r.s.providers, p)
		return true, nil
	})
	return p, err
}

// CreateInstanceFromTemplate clones template into a placed instance with a fresh id.
// A rack placement, when given, must be legal.
func (r *Registry) CreateInstanceFromTemplate(template models.ResourceProvider, at Placement) (models.ResourceProvider, error) {
	p := template
	p.ID = "provider-instance-" + uuid.NewString()
	p.IsPlaced = true
	p.RackID = at.RackID
	p.Position = at.Position
	p.UpdatedAt = nil

	if (at.RackID == "") != (at.Position == 0) {
		return models.ResourceProvider{}, fmt.Errorf("%w: rack and position must be given together", ErrPlacementConflict)
	}

	err := r.s.mutate(ChangeProviders, func() (bool, error) {
		if at.RackID != "" {
			if p.RUSize <= 0 {
				return false, ErrNotRackable
			}
			if err := r.s.checkPlacement(at.RackID, at.Position, p.RUSize, ""); err != nil {
				return false, err
			}
		}
		p.CreatedAt = r.s.now().UTC()
		r.s.providers = append(r.s.providers, p)
		return true, nil
	})
	if err != nil {
		return models.ResourceProvider{}, err
	}
	return p, nil
}

// CreateInstance is CreateInstanceFromTemplate looking the template up by id
func (r *Registry) CreateInstance(templateID string, at Placement) (models.ResourceProvider, error) {
	template, ok := r.Get(templateID)
	if !ok {
		return models.ResourceProvider{}, fmt.Errorf("%w: %s", ErrProviderNotFound, templateID)
	}
	return r.CreateInstanceFromTemplate(template, at)
}

// UpdateProvider merges patch into the provider and stamps updatedAt. It reports
// whether the id existed. Setting ruSize to 0 clears any rack placement.
func (r *Registry) UpdateProvider(id string, patch ProviderPatch) (bool, error) {
	var found bool
	err := r.s.mutate(ChangeProviders, func() (bool, error) {
		i := r.index(id)
		if i < 0 {
			return false, nil
		}
		found = true

		p := r.s.providers[i]
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Type != nil {
			p.Type = *patch.Type
		}
		if patch.PowerCapacity != nil {
			p.PowerCapacity = *patch.PowerCapacity
		}
		if patch.PowerPortsCapacity != nil {
			p.PowerPortsCapacity = *patch.PowerPortsCapacity
		}
		if patch.CoolingCapacity != nil {
			p.CoolingCapacity = *patch.CoolingCapacity
		}
		if patch.NetworkCapacity != nil {
			p.NetworkCapacity = *patch.NetworkCapacity
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Location != nil {
			p.Location = *patch.Location
		}
		if patch.RUSize != nil {
			p.RUSize = *patch.RUSize
		}
		if err := r.validate(p); err != nil {
			return false, fmt.Errorf("invalid provider: %w", err)
		}

		if p.RUSize == 0 {
			p.RackID, p.Position = "", 0
		} else if p.Racked() {
			if err := r.s.checkPlacement(p.RackID, p.Position, p.RUSize, p.ID); err != nil {
				return false, err
			}
		}

		now := r.s.now().UTC()
		p.UpdatedAt = &now
		r.s.providers[i] = p
		return true, nil
	})
	return found, err
}

// DeleteProvider removes a provider. Unknown ids are a no-op.
func (r *Registry) DeleteProvider(id string) bool {
	var deleted bool
	_ = r.s.mutate(ChangeProviders, func() (bool, error) {
		i := r.index(id)
		if i < 0 {
			return false, nil
		}
		r.s.providers = append(r.s.providers[:i:i], r.s.providers[i+1:]...)
		deleted = true
		return true, nil
	})
	return deleted
}

// PlaceProvider puts a provider into a rack slot, validated against devices and
// other providers in that rack. Placing a template turns it into an instance.
func (r *Registry) PlaceProvider(id, rackID string, position int) error {
	return r.s.mutate(ChangeProviders, func() (bool, error) {
		i := r.index(id)
		if i < 0 {
			return false, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
		}
		p := &r.s.providers[i]
		if p.RUSize <= 0 {
			return false, ErrNotRackable
		}
		if err := r.s.checkPlacement(rackID, position, p.RUSize, p.ID); err != nil {
			return false, err
		}
		if p.IsPlaced && p.RackID == rackID && p.Position == position {
			return false, nil
		}
		p.IsPlaced = true
		p.RackID = rackID
		p.Position = position
		return true, nil
	})
}

// PlaceProviderInRack is PlaceProvider reduced to a boolean. A provider with no
// RU size is always refused.
func (r *Registry) PlaceProviderInRack(id, rackID string, position int) bool {
	return r.PlaceProvider(id, rackID, position) == nil
}

// RemoveProviderFromRack clears a provider's rack slot. The instance stays and
// keeps counting toward capacity.
func (r *Registry) RemoveProviderFromRack(id string) bool {
	var found bool
	_ = r.s.mutate(ChangeProviders, func() (bool, error) {
		i := r.index(id)
		if i < 0 {
			return false, nil
		}
		found = true
		p := &r.s.providers[i]
		if p.RackID == "" && p.Position == 0 {
			return false, nil
		}
		p.RackID, p.Position = "", 0
		return true, nil
	})
	return found
}

// Get returns the provider with the given id
func (r *Registry) Get(id string) (models.ResourceProvider, bool) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	i := r.index(id)
	if i < 0 {
		return models.ResourceProvider{}, false
	}
	return r.s.providers[i], true
}

func (r *Registry) filter(keep func(models.ResourceProvider) bool) []models.ResourceProvider {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.ResourceProvider{}
	for _, p := range r.s.providers {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// List returns every provider, templates and instances
func (r *Registry) List() []models.ResourceProvider {
	return r.filter(func(models.ResourceProvider) bool { return true })
}

// Templates returns the library templates
func (r *Registry) Templates() []models.ResourceProvider {
	return r.filter(func(p models.ResourceProvider) bool { return !p.IsPlaced })
}

// Placed returns every instance
func (r *Registry) Placed() []models.ResourceProvider {
	return r.filter(func(p models.ResourceProvider) bool { return p.IsPlaced })
}

// Racked returns the instances occupying rack space
func (r *Registry) Racked() []models.ResourceProvider {
	return r.filter(models.ResourceProvider.Racked)
}

// Unracked returns the instances that count toward capacity without occupying space
func (r *Registry) Unracked() []models.ResourceProvider {
	return r.filter(func(p models.ResourceProvider) bool { return p.IsPlaced && !p.Racked() })
}

// ForRack returns the instances placed in a rack
func (r *Registry) ForRack(rackID string) []models.ResourceProvider {
	return r.filter(func(p models.ResourceProvider) bool { return p.Racked() && p.RackID == rackID })
}

// ByType returns providers of one type
func (r *Registry) ByType(t models.ProviderType) []models.ResourceProvider {
	return r.filter(func(p models.ResourceProvider) bool { return p.Type == t })
}

// Totals aggregates the placed instances
func (r *Registry) Totals() Totals {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return ComputeTotals(r.s.providers)
}

func (r *Registry) TotalPowerCapacity() float64   { return r.Totals().PowerCapacity }
func (r *Registry) TotalPowerPortsCapacity() int  { return r.Totals().PowerPortsCapacity }
func (r *Registry) TotalCoolingCapacity() float64 { return r.Totals().CoolingCapacity }
func (r *Registry) TotalNetworkCapacity() float64 { return r.Totals().NetworkCapacity }
func (r *Registry) TotalProviderRU() int          { return r.Totals().ProviderRU }
func (r *Registry) RackedProviderRU() int         { return r.Totals().RackedProviderRU }

// Export returns the provider collection as an export document
func (r *Registry) Export() models.ProviderExport {
	return models.ProviderExport{
		Providers:  r.List(),
		ExportDate: r.s.now().UTC(),
		Version:    ExportVersion,
	}
}

// Import reads an export document. Replace overwrites the collection; merge adds
// providers whose id is not yet present and returns how many were added. Every
// record is validated before anything changes.
func (r *Registry) Import(data []byte, mode ImportMode) (int, error) {
	var doc struct {
		Providers *[]models.ResourceProvider `json:"providers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if doc.Providers == nil {
		return 0, fmt.Errorf("%w: missing providers array", ErrInvalidImport)
	}
	return r.importProviders(*doc.Providers, mode)
}

// ReplaceAll overwrites the collection with providers, validating each record
func (r *Registry) ReplaceAll(providers []models.ResourceProvider) error {
	_, err := r.importProviders(providers, ImportReplace)
	return err
}

func (r *Registry) importProviders(incoming []models.ResourceProvider, mode ImportMode) (int, error) {
	if mode != ImportReplace && mode != ImportMerge {
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidImport, mode)
	}
	for i, p := range incoming {
		if err := r.validate(p); err != nil {
			return 0, fmt.Errorf("%w: provider %d: %v", ErrInvalidImport, i, err)
		}
	}

	var added int
	err := r.s.mutate(ChangeProviders, func() (bool, error) {
		now := r.s.now().UTC()
		ids := make(map[string]bool, len(r.s.providers)+len(incoming))
		if mode == ImportReplace {
			r.s.providers = make([]models.ResourceProvider, 0, len(incoming))
		} else {
			for _, p := range r.s.providers {
				ids[p.ID] = true
			}
		}

		for _, p := range incoming {
			switch {
			case p.ID == "":
				p.ID = "provider-" + uuid.NewString()
			case ids[p.ID] && mode == ImportMerge:
				continue
			case ids[p.ID]:
				p.ID = "provider-" + uuid.NewString()
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			r.s.providers = append(r.s.providers, r.settle(p))
			ids[p.ID] = true
			added++
		}
		return mode == ImportReplace || added > 0, nil
	})
	return added, err
}

// settle clears the rack slot of an imported provider that cannot hold it: a
// template, a provider without RU size, or a slot that is missing or taken.
func (r *Registry) settle(p models.ResourceProvider) models.ResourceProvider {
	if !p.Racked() {
		p.RackID, p.Position = "", 0
		return p
	}
	if err := r.s.checkPlacement(p.RackID, p.Position, p.RUSize, p.ID); err != nil {
		p.RackID, p.Position = "", 0
	}
	return p
}
