package rack

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfiguration_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.InitializeRacks(3)
	power := 7500.0
	require.NoError(t, s.UpdateSettings(SettingsPatch{TotalPowerCapacity: &power}))
	short := 24
	require.NoError(t, s.UpdateRack("rack-2", RackPatch{RUSize: &short}))

	d := device("srv", 2, 450)
	d.PowerPortsUsed = 2
	d.Color = "#3366ff"
	_, err := s.AddDeviceToRack("rack-1", d, 1)
	require.NoError(t, err)
	_, err = s.AddDeviceToRack("rack-2", device("sw", 1, 80), 24)
	require.NoError(t, err)
	s.AddUnrackedDevice(device("spare", 1, 200))

	original := s.Configuration()
	exported, err := s.ExportConfiguration()
	require.NoError(t, err)

	other := New()
	require.NoError(t, other.LoadConfiguration(exported))
	loaded := other.Configuration()

	opts := []cmp.Option{cmpopts.EquateEmpty()}
	assert.Empty(t, cmp.Diff(original.Racks, loaded.Racks, opts...))
	assert.Empty(t, cmp.Diff(original.UnrackedDevices, loaded.UnrackedDevices, opts...))
	assert.Equal(t, original.Settings, loaded.Settings)
	assert.Equal(t, original.ConfigID, loaded.ConfigID)
}

func TestLoadConfiguration_RequiresSettingsAndRacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "missing racks", data: `{"settings":{"ruPerRack":42}}`},
		{name: "missing settings", data: `{"racks":[]}`},
		{name: "null racks", data: `{"settings":{},"racks":null}`},
		{name: "not an object", data: `[1,2,3]`},
		{name: "malformed", data: `{"settings":`},
		{name: "rack without id", data: `{"settings":{},"racks":[{"name":"x"}]}`},
		{name: "duplicate rack id", data: `{"settings":{},"racks":[{"id":"r"},{"id":"r"}]}`},
		{name: "rack height out of range", data: `{"settings":{"ruPerRack":99},"racks":[]}`},
		{name: "rack taller than 52U", data: `{"settings":{},"racks":[{"id":"r","ruSize":53}]}`},
		{name: "negative rack size", data: `{"settings":{},"racks":[{"id":"r","ruSize":-1}]}`},
		{name: "negative power", data: `{"settings":{"totalPowerCapacity":-1},"racks":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			s.InitializeRacks(2)
			before := s.Configuration()

			err := s.LoadConfiguration([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))
			assert.Equal(t, before, s.Configuration(), "failed load must leave the configuration untouched")
		})
	}
}

func TestLoadConfiguration_Backfill(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	data := `{
		"settings": {"totalPowerCapacity": 5000, "ruPerRack": 0},
		"racks": [
			{"id": "rack-a", "name": "A", "devices": [
				{"id": "srv", "name": "Server", "ruSize": 2, "powerDraw": 400, "position": 41, "instanceId": "srv-1"}
			]},
			{"id": "rack-b", "name": "B", "ruSize": 24, "devices": []}
		]
	}`
	require.NoError(t, s.LoadConfiguration([]byte(data)))

	cfg := s.Configuration()
	assert.Equal(t, 42, cfg.Settings.RUPerRack)
	assert.Equal(t, 42, cfg.Racks[0].RUSize)
	assert.Equal(t, 24, cfg.Racks[1].RUSize)
	require.Len(t, cfg.Racks[0].Devices, 1)
	assert.Equal(t, "Server", cfg.Racks[0].Devices[0].CustomName)
	assert.NotEmpty(t, cfg.ConfigID)
	assert.Equal(t, "Rack configuration", cfg.Metadata.Description)
}

func TestLoadConfiguration_MigratesFlatDevices(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	data := `{
		"settings": {"ruPerRack": 42},
		"racks": [{"id": "rack-1", "name": "Rack 1", "ruSize": 42, "devices": []}],
		"unrackedDevices": [{"id": "kvm", "name": "KVM", "ruSize": 1, "instanceId": "kvm-1"}],
		"devices": [
			{"id": "srv", "name": "Server", "ruSize": 1},
			{"id": "sw", "name": "Switch", "ruSize": 1, "position": 5, "rackId": "rack-1", "instanceId": "sw-1"},
			{"id": "fw", "name": "Firewall", "ruSize": 1, "position": 3, "rackId": "rack-gone"}
		]
	}`
	require.NoError(t, s.LoadConfiguration([]byte(data)))

	cfg := s.Configuration()
	require.Len(t, cfg.UnrackedDevices, 3)
	assert.Equal(t, "kvm-1", cfg.UnrackedDevices[0].InstanceID)
	assert.Equal(t, "srv", cfg.UnrackedDevices[1].ID)
	assert.NotEmpty(t, cfg.UnrackedDevices[1].InstanceID, "migrated devices get an instance id")
	assert.Equal(t, "fw", cfg.UnrackedDevices[2].ID)
	assert.Zero(t, cfg.UnrackedDevices[2].Position)

	require.Len(t, cfg.Racks[0].Devices, 1)
	assert.Equal(t, "sw-1", cfg.Racks[0].Devices[0].InstanceID)
	assert.Equal(t, 5, cfg.Racks[0].Devices[0].Position)
	assertInvariants(t, s)
}

func TestLoadConfiguration_RepairsIllegalPlacements(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	data := `{
		"settings": {"ruPerRack": 42},
		"racks": [{"id": "rack-1", "ruSize": 10, "devices": [
			{"id": "a", "name": "A", "ruSize": 2, "position": 1, "instanceId": "dup"},
			{"id": "b", "name": "B", "ruSize": 1, "position": 2, "instanceId": "b-1"},
			{"id": "c", "name": "C", "ruSize": 2, "position": 10, "instanceId": "c-1"},
			{"id": "d", "name": "D", "ruSize": 1, "instanceId": "d-1"}
		]}],
		"unrackedDevices": [{"id": "e", "name": "E", "ruSize": 1, "instanceId": "dup"}]
	}`
	require.NoError(t, s.LoadConfiguration([]byte(data)))

	cfg := s.Configuration()
	require.Len(t, cfg.Racks[0].Devices, 1)
	assert.Equal(t, "dup", cfg.Racks[0].Devices[0].InstanceID)
	assert.Len(t, cfg.UnrackedDevices, 4)
	assertInvariants(t, s)
}

func TestLoadConfiguration_StampsLastModified(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	before := s.Configuration().Metadata.LastModified

	data := `{"metadata":{"createdAt":"2020-01-01T00:00:00Z","lastModified":"2030-01-01T00:00:00Z","description":"lab"},
		"settings":{"ruPerRack":42},"racks":[]}`
	require.NoError(t, s.LoadConfiguration([]byte(data)))

	meta := s.Configuration().Metadata
	assert.True(t, meta.LastModified.After(before))
	assert.True(t, meta.LastModified.Before(meta.CreatedAt.AddDate(20, 0, 0)))
	assert.Equal(t, 2020, meta.CreatedAt.Year())
	assert.Equal(t, "lab", meta.Description)
}

func TestParseConfiguration(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfiguration([]byte(`{"settings":{"hvacCapacity":12000},"racks":[{"id":"r1","name":"R1"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 12000.0, cfg.Settings.HVACCapacity)
	assert.Equal(t, 42, cfg.Racks[0].RUSize)

	_, err = ParseConfiguration([]byte(`{}`))
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}
