package utilization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racksum/internal/capacity"
	"racksum/internal/models"
	"racksum/internal/rack"
)

func dev(id string, ru int, watts float64, ports int) models.DeviceInstance {
	return models.DeviceInstance{DeviceTemplate: models.DeviceTemplate{
		ID: id, Name: id, RUSize: ru, PowerDraw: watts, PowerPortsUsed: ports,
	}}
}

func TestReport_OverCapacityUsesUnclampedRatio(t *testing.T) {
	t.Parallel()

	s := rack.New()
	power := 1000.0
	require.NoError(t, s.UpdateSettings(rack.SettingsPatch{TotalPowerCapacity: &power}))
	_, err := s.AddDeviceToRack("rack-1", dev("srv", 1, 400, 0), 1)
	require.NoError(t, err)
	s.AddUnrackedDevice(dev("spare", 1, 700, 0))

	r := NewCalculator(s).Report()

	assert.Equal(t, 1100.0, r.PowerUsed)
	assert.Equal(t, 1000.0, r.PowerCapacity)
	assert.Equal(t, 100, r.PowerPercentage)
	assert.True(t, r.IsOverCapacity)
	assert.Equal(t, capacity.StatusRed, r.PowerStatus)
}

func TestReport_ExactlyAtCapacityIsNotOver(t *testing.T) {
	t.Parallel()

	s := rack.New()
	power := 1000.0
	hvac := 10000.0
	require.NoError(t, s.UpdateSettings(rack.SettingsPatch{TotalPowerCapacity: &power, HVACCapacity: &hvac}))
	s.AddUnrackedDevice(dev("srv", 1, 1000, 0))

	r := NewCalculator(s).Report()
	assert.Equal(t, 100, r.PowerPercentage)
	assert.False(t, r.IsOverCapacity)
}

func TestReport_ProvidersOverrideSettings(t *testing.T) {
	t.Parallel()

	s := rack.New()
	reg := s.Registry()

	pdu, err := reg.AddProvider(rack.ProviderSpec{Name: "PDU", Type: models.ProviderPower, PowerCapacity: 2000, PowerPortsCapacity: 2, RUSize: 1})
	require.NoError(t, err)
	crac, err := reg.AddProvider(rack.ProviderSpec{Name: "CRAC", Type: models.ProviderCooling, CoolingCapacity: 6820})
	require.NoError(t, err)

	_, err = s.AddDeviceToRack("rack-1", dev("srv", 2, 1000, 2), 1)
	require.NoError(t, err)
	s.AddUnrackedDevice(dev("kvm", 1, 0, 0))

	r := Compute(s.Snapshot())
	assert.Equal(t, 10000.0, r.PowerCapacity, "templates do not count")
	assert.Equal(t, 0, r.PowerPortsCapacity)
	assert.Equal(t, 0, r.PowerPortsPercentage)

	_, err = reg.CreateInstanceFromTemplate(pdu, rack.Placement{RackID: "rack-1", Position: 42})
	require.NoError(t, err)
	_, err = reg.CreateInstanceFromTemplate(crac, rack.Placement{})
	require.NoError(t, err)

	r = Compute(s.Snapshot())
	assert.Equal(t, 2000.0, r.PowerCapacity)
	assert.Equal(t, 50, r.PowerPercentage)
	assert.Equal(t, capacity.StatusGreen, r.PowerStatus)

	assert.Equal(t, 3, r.PowerPortsUsed)
	assert.Equal(t, 2, r.PowerPortsCapacity)
	assert.Equal(t, 100, r.PowerPortsPercentage)
	assert.True(t, r.IsOverCapacity, "three ports drawn from two outlets")

	assert.InDelta(t, 3410.0, r.HVACLoad, 1e-9)
	assert.Equal(t, 6820.0, r.HVACCapacity)
	assert.Equal(t, 50, r.CoolingPercentage)

	assert.Equal(t, 4, r.RUUsed, "2U server + 1U unracked kvm + 1U racked pdu")
	assert.Equal(t, 42, r.RUCapacity)
	assert.Equal(t, 10, r.RUPercentage)
	assert.Equal(t, 2, r.DeviceCount)
}

func TestReport_RUCapacityIgnoresRackOverrides(t *testing.T) {
	t.Parallel()

	s := rack.New()
	s.AddRack()
	short := 12
	require.NoError(t, s.UpdateRack("rack-2", rack.RackPatch{RUSize: &short}))
	_, err := s.AddDeviceToRack("rack-2", dev("srv", 6, 0, 0), 1)
	require.NoError(t, err)

	r := Compute(s.Snapshot())
	assert.Equal(t, 84, r.RUCapacity)

	require.Len(t, r.Racks, 2)
	assert.Equal(t, RackUsage{RackID: "rack-2", Name: "Rack 2", RUSize: 12, RUUsed: 6, RUPercentage: 50, DeviceCount: 1}, r.Racks[1])
}

func TestReport_ZeroCapacity(t *testing.T) {
	t.Parallel()

	s := rack.New()
	zero := 0.0
	require.NoError(t, s.UpdateSettings(rack.SettingsPatch{TotalPowerCapacity: &zero, HVACCapacity: &zero}))
	s.AddUnrackedDevice(dev("srv", 1, 500, 0))

	r := Compute(s.Snapshot())
	assert.Zero(t, r.PowerPercentage)
	assert.Zero(t, r.CoolingPercentage)
	assert.False(t, r.IsOverCapacity)
}
