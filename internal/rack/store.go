// Package rack owns the canonical rack configuration and the resource provider
// collection. Both live behind one lock so that every mutation, whether it touches
// devices or providers, is validated against a consistent view of rack occupancy.
package rack

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"racksum/internal/models"
	"racksum/internal/placement"
)

var validate = validator.New()

// ChangeKind identifies which aggregate a mutation touched
type ChangeKind int

const (
	ChangeConfig ChangeKind = iota + 1
	ChangeProviders
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeConfig:
		return "config"
	case ChangeProviders:
		return "providers"
	}
	return "unknown"
}

// Change is delivered to subscribers after a committed mutation
type Change struct {
	Kind ChangeKind
	At   time.Time
}

// Listener receives change notifications. It runs on the mutating goroutine after
// the store lock has been released, so it may read the store.
type Listener func(Change)

// Snapshot is a deep copy of both aggregates taken under one lock
type Snapshot struct {
	Configuration models.RackConfiguration
	Providers     []models.ResourceProvider
}

// Store is the sole mutator of a RackConfiguration and its providers
type Store struct {
	mu        sync.RWMutex
	cfg       models.RackConfiguration
	providers []models.ResourceProvider
	now       func() time.Time

	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int

	registry *Registry
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the wall clock used for ids and timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store holding a default configuration with one rack and no providers
func New(opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		listeners: make(map[int]Listener),
		providers: []models.ResourceProvider{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.defaultConfig()
	s.registry = &Registry{s: s}
	return s
}

func (s *Store) defaultConfig() models.RackConfiguration {
	now := s.now().UTC()
	settings := models.DefaultSettings()
	return models.RackConfiguration{
		ConfigID: fmt.Sprintf("config-%d", now.UnixMilli()),
		Metadata: models.Metadata{
			CreatedAt:    now,
			LastModified: now,
			Description:  "Rack configuration",
		},
		Settings: settings,
		Racks: []models.Rack{
			{ID: "rack-1", Name: "Rack 1", RUSize: settings.RUPerRack, Devices: []models.DeviceInstance{}},
		},
		UnrackedDevices: []models.DeviceInstance{},
	}
}

// Registry returns the resource provider registry backed by this store
func (s *Store) Registry() *Registry {
	return s.registry
}

// Subscribe registers fn for change notifications and returns a function that removes it
func (s *Store) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) emit(c Change) {
	s.listenersMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// mutate runs fn under the write lock. fn reports whether it changed anything;
// no-op mutations neither bump lastModified nor notify subscribers.
func (s *Store) mutate(kind ChangeKind, fn func() (bool, error)) error {
	s.mu.Lock()
	changed, err := fn()
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	at := s.now().UTC()
	if kind == ChangeConfig {
		at = s.touch(at)
	}
	s.mu.Unlock()

	s.emit(Change{Kind: kind, At: at})
	return nil
}

// touch stamps lastModified, keeping it strictly increasing even if the clock stalls
func (s *Store) touch(now time.Time) time.Time {
	last := s.cfg.Metadata.LastModified
	if !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	s.cfg.Metadata.LastModified = now
	return now
}

// Configuration returns a deep copy of the current configuration
func (s *Store) Configuration() models.RackConfiguration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Snapshot returns a consistent copy of configuration and providers
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Configuration: s.cfg.Clone(),
		Providers:     append([]models.ResourceProvider{}, s.providers...),
	}
}

// ResetConfiguration replaces the configuration with a fresh default one
func (s *Store) ResetConfiguration() {
	_ = s.mutate(ChangeConfig, func() (bool, error) {
		last := s.cfg.Metadata.LastModified
		s.cfg = s.defaultConfig()
		s.cfg.Metadata.LastModified = last
		return true, nil
	})
}

func (s *Store) rackIndex(id string) int {
	for i := range s.cfg.Racks {
		if s.cfg.Racks[i].ID == id {
			return i
		}
	}
	return -1
}

// rackSize returns the effective height of a rack: its own override, then the
// global setting, then the 42U default.
func (s *Store) rackSize(r models.Rack) int {
	if r.RUSize > 0 {
		return r.RUSize
	}
	if s.cfg.Settings.RUPerRack > 0 {
		return s.cfg.Settings.RUPerRack
	}
	return models.DefaultRUPerRack
}

// occupants returns every device and racked provider claiming units in r
func (s *Store) occupants(r models.Rack) []placement.Occupant {
	out := make([]placement.Occupant, 0, len(r.Devices))
	for _, d := range r.Devices {
		if d.Position > 0 {
			out = append(out, placement.Occupant{ID: d.InstanceID, Position: d.Position, Size: d.RUSize})
		}
	}
	return append(out, s.providerOccupants(r.ID)...)
}

// checkPlacement validates an occupant against a rack, failing closed on unknown racks
func (s *Store) checkPlacement(rackID string, position, size int, excludeID string) error {
	i := s.rackIndex(rackID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRackNotFound, rackID)
	}
	r := s.cfg.Racks[i]
	return placement.Check(s.rackSize(r), s.occupants(r), position, size, excludeID)
}

// CanPlace reports whether size units fit at position in the rack, ignoring excludeID
func (s *Store) CanPlace(rackID string, position, size int, excludeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkPlacement(rackID, position, size, excludeID) == nil
}

// CheckPlacement is CanPlace with the rejection reason
func (s *Store) CheckPlacement(rackID string, position, size int, excludeID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkPlacement(rackID, position, size, excludeID)
}

// RackLayout returns a position-ordered index of a rack's occupants
func (s *Store) RackLayout(rackID string) (*placement.Layout, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.rackIndex(rackID)
	if i < 0 {
		return nil, false
	}
	r := s.cfg.Racks[i]
	return placement.NewLayout(s.rackSize(r), s.occupants(r)), true
}

// FindSlot returns the lowest position in the rack with room for size units
func (s *Store) FindSlot(rackID string, size int) (int, bool) {
	layout, ok := s.RackLayout(rackID)
	if !ok {
		return 0, false
	}
	return layout.FirstFit(size)
}
