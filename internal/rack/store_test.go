package rack

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racksum/internal/models"
)

// frozenClock returns the same instant on every call
func frozenClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(WithClock(frozenClock()))
}

func device(id string, ru int, power float64) models.DeviceInstance {
	return models.DeviceInstance{DeviceTemplate: models.DeviceTemplate{
		ID:        id,
		Name:      id + " name",
		Category:  "servers",
		RUSize:    ru,
		PowerDraw: power,
	}}
}

// assertInvariants checks overlap exclusion, bounds and ownership exclusivity
func assertInvariants(t *testing.T, s *Store) {
	t.Helper()
	snap := s.Snapshot()
	owners := map[string]int{}

	for _, r := range snap.Configuration.Racks {
		type span struct {
			id         string
			start, end int
		}
		var spans []span
		for _, d := range r.Devices {
			owners[d.InstanceID]++
			if d.RUSize > 0 {
				spans = append(spans, span{d.InstanceID, d.Position, d.Position + d.RUSize - 1})
			}
		}
		for _, p := range snap.Providers {
			if p.Racked() && p.RackID == r.ID {
				spans = append(spans, span{p.ID, p.Position, p.Position + p.RUSize - 1})
			}
		}
		for i, a := range spans {
			assert.GreaterOrEqual(t, a.start, 1, "%s below rack bottom", a.id)
			assert.LessOrEqual(t, a.end, r.RUSize, "%s above rack top", a.id)
			for _, b := range spans[i+1:] {
				assert.True(t, a.end < b.start || a.start > b.end, "%s overlaps %s in %s", a.id, b.id, r.ID)
			}
		}
	}
	for _, d := range snap.Configuration.UnrackedDevices {
		owners[d.InstanceID]++
		assert.Zero(t, d.Position)
	}
	for id, n := range owners {
		assert.Equal(t, 1, n, "instance %s has %d owners", id, n)
	}
}

func TestNew_DefaultConfiguration(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	cfg := s.Configuration()

	assert.Equal(t, "config-1709294400000", cfg.ConfigID)
	assert.Equal(t, models.DefaultSettings(), cfg.Settings)
	require.Len(t, cfg.Racks, 1)
	assert.Equal(t, "rack-1", cfg.Racks[0].ID)
	assert.Equal(t, 42, cfg.Racks[0].RUSize)
	assert.Empty(t, cfg.UnrackedDevices)
}

func TestStore_LastModifiedStrictlyIncreases(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	prev := s.Configuration().Metadata.LastModified

	s.AddRack()
	s.InitializeRacks(4)
	_, err := s.AddDeviceToRack("rack-1", device("srv", 1, 100), 1)
	require.NoError(t, err)
	s.ReorderRacks(0, 2)

	for i := 0; i < 3; i++ {
		s.AddUnrackedDevice(device("pdu", 0, 0))
		got := s.Configuration().Metadata.LastModified
		assert.True(t, got.After(prev), "lastModified did not advance")
		prev = got
	}
}

func TestStore_NoopMutationsAreSilent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	var events int
	unsubscribe := s.Subscribe(func(Change) { events++ })
	defer unsubscribe()

	before, err := s.ExportConfiguration()
	require.NoError(t, err)

	assert.False(t, s.RemoveDeviceFromRack("rack-1", "missing"))
	assert.False(t, s.RemoveUnrackedDevice("missing"))
	assert.False(t, s.DeleteRack("rack-9", true))
	assert.False(t, s.ReorderRacks(0, 5))
	assert.False(t, s.ReorderRacks(0, 0))
	s.InitializeRacks(1)
	require.NoError(t, s.UpdateSettings(SettingsPatch{}))

	after, err := s.ExportConfiguration()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.Zero(t, events)
}

func TestStore_SubscribeAndUnsubscribe(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	var mu sync.Mutex
	var kinds []ChangeKind
	unsubscribe := s.Subscribe(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, c.Kind)
	})

	s.AddRack()
	_, err := s.Registry().AddProvider(ProviderSpec{Name: "Feed A", Type: models.ProviderPower, PowerCapacity: 5000})
	require.NoError(t, err)

	unsubscribe()
	s.AddRack()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ChangeKind{ChangeConfig, ChangeProviders}, kinds)
}

func TestStore_ListenerMayReadStore(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	var racks int
	s.Subscribe(func(Change) { racks = len(s.Racks()) })

	s.AddRack()
	assert.Equal(t, 2, racks)
}

func TestStore_SnapshotIsDeepCopy(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.AddDeviceToRack("rack-1", device("srv", 2, 300), 1)
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Configuration.Racks[0].Devices[0].CustomName = "mutated"
	snap.Configuration.Racks[0].Name = "mutated"

	r, ok := s.Rack("rack-1")
	require.True(t, ok)
	assert.Equal(t, "Rack 1", r.Name)
	assert.Equal(t, "srv name", r.Devices[0].CustomName)
}

func TestUpdateSettings(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	power := 2500.0
	require.NoError(t, s.UpdateSettings(SettingsPatch{TotalPowerCapacity: &power}))

	got := s.Settings()
	assert.Equal(t, 2500.0, got.TotalPowerCapacity)
	assert.Equal(t, 34100.0, got.HVACCapacity)
	assert.Equal(t, 42, got.RUPerRack)

	tooTall := 60
	err := s.UpdateSettings(SettingsPatch{TotalPowerCapacity: &power, RUPerRack: &tooTall})
	assert.True(t, errors.Is(err, ErrInvalidSettings))
	assert.Equal(t, 42, s.Settings().RUPerRack)
}

func TestInitializeRacks(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.InitializeRacks(3)

	racks := s.Racks()
	require.Len(t, racks, 3)
	assert.Equal(t, []string{"rack-1", "rack-2", "rack-3"}, []string{racks[0].ID, racks[1].ID, racks[2].ID})
	assert.Equal(t, "Rack 3", racks[2].Name)

	_, err := s.AddDeviceToRack("rack-3", device("srv", 1, 100), 1)
	require.NoError(t, err)

	s.InitializeRacks(2)
	assert.Len(t, s.Racks(), 2)
	_, _, found := s.FindDevice("srv-1709294400000")
	assert.False(t, found, "truncation discards occupants")

	s.InitializeRacks(3)
	assert.Equal(t, "rack-3", s.Racks()[2].ID)
}

func TestInitializeRacks_TruncationUnracksProviders(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	reg := s.Registry()
	s.InitializeRacks(2)

	tmpl, err := reg.AddProvider(ProviderSpec{Name: "CRAC", Type: models.ProviderCooling, CoolingCapacity: 60000, RUSize: 4})
	require.NoError(t, err)
	inst, err := reg.CreateInstanceFromTemplate(tmpl, Placement{RackID: "rack-2", Position: 1})
	require.NoError(t, err)
	kept, err := reg.CreateInstanceFromTemplate(tmpl, Placement{RackID: "rack-1", Position: 1})
	require.NoError(t, err)
	require.Equal(t, 8, reg.RackedProviderRU())

	var mu sync.Mutex
	var kinds []ChangeKind
	unsubscribe := s.Subscribe(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, c.Kind)
	})
	defer unsubscribe()

	s.InitializeRacks(1)

	got, ok := reg.Get(inst.ID)
	require.True(t, ok, "the instance outlives its rack")
	assert.True(t, got.IsPlaced)
	assert.False(t, got.Racked())
	assert.Empty(t, got.RackID)
	assert.Zero(t, got.Position)
	assert.Empty(t, reg.ForRack("rack-2"))
	assert.Equal(t, 120000.0, reg.TotalCoolingCapacity(), "unracked instances still count")
	assert.Equal(t, 4, reg.RackedProviderRU())

	got, _ = reg.Get(kept.ID)
	assert.True(t, got.Racked(), "providers of surviving racks stay put")

	mu.Lock()
	assert.Equal(t, []ChangeKind{ChangeConfig, ChangeProviders}, kinds)
	mu.Unlock()

	s.InitializeRacks(2)
	_, err = s.AddDeviceToRack("rack-2", device("srv", 4, 100), 1)
	require.NoError(t, err, "a recreated rack starts empty")
	assertInvariants(t, s)
}

func TestAddRack_SkipsUsedIDs(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.AddRack()
	s.AddRack()
	require.True(t, s.DeleteRack("rack-2", true))

	added := s.AddRack()
	assert.Equal(t, "rack-4", added.ID)
	assert.Equal(t, 42, added.RUSize)
}

func TestUpdateRack(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.AddDeviceToRack("rack-1", device("srv", 2, 100), 20)
	require.NoError(t, err)

	name := "Core"
	require.NoError(t, s.UpdateRack("rack-1", RackPatch{Name: &name}))
	r, _ := s.Rack("rack-1")
	assert.Equal(t, "Core", r.Name)

	short := 20
	err = s.UpdateRack("rack-1", RackPatch{RUSize: &short})
	assert.True(t, errors.Is(err, ErrPlacementConflict))

	fits := 21
	require.NoError(t, s.UpdateRack("rack-1", RackPatch{RUSize: &fits}))
	r, _ = s.Rack("rack-1")
	assert.Equal(t, 21, r.RUSize)

	err = s.UpdateRack("rack-7", RackPatch{Name: &name})
	assert.True(t, errors.Is(err, ErrRackNotFound))
}

func TestDeleteRack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		move         bool
		wantUnracked int
	}{
		{name: "moves devices to unracked", move: true, wantUnracked: 2},
		{name: "discards devices", move: false, wantUnracked: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			s.AddRack()
			_, err := s.AddDeviceToRack("rack-2", device("a", 1, 100), 1)
			require.NoError(t, err)
			_, err = s.AddDeviceToRack("rack-2", device("b", 2, 100), 5)
			require.NoError(t, err)

			require.True(t, s.DeleteRack("rack-2", tt.move))

			cfg := s.Configuration()
			assert.Len(t, cfg.Racks, 1)
			assert.Len(t, cfg.UnrackedDevices, tt.wantUnracked)
			for _, d := range cfg.UnrackedDevices {
				assert.Zero(t, d.Position)
			}
			assertInvariants(t, s)
		})
	}
}

func TestReorderRacks(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.InitializeRacks(4)

	require.True(t, s.ReorderRacks(0, 2))
	ids := []string{}
	for _, r := range s.Racks() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"rack-2", "rack-3", "rack-1", "rack-4"}, ids)

	require.True(t, s.ReorderRacks(3, 0))
	assert.Equal(t, "rack-4", s.Racks()[0].ID)

	assert.False(t, s.ReorderRacks(-1, 0))
	assert.False(t, s.ReorderRacks(1, 4))
}

func TestResetConfiguration(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.InitializeRacks(5)
	s.AddUnrackedDevice(device("srv", 1, 100))
	before := s.Configuration().Metadata.LastModified

	s.ResetConfiguration()

	cfg := s.Configuration()
	assert.Len(t, cfg.Racks, 1)
	assert.Empty(t, cfg.UnrackedDevices)
	assert.True(t, cfg.Metadata.LastModified.After(before))
}
