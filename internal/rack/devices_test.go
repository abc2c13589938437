package rack

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racksum/internal/placement"
)

func TestAddDeviceToRack_Scenario(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	first, err := s.AddDeviceToRack("rack-1", device("srv", 2, 300), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, "srv name", first.CustomName)

	before, err := s.ExportConfiguration()
	require.NoError(t, err)

	_, err = s.AddDeviceToRack("rack-1", device("sw", 1, 50), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlacementConflict))
	var conflict *placement.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, placement.ReasonOverlap, conflict.Reason)

	after, err := s.ExportConfiguration()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "rejected placement must not change the configuration")

	_, err = s.AddDeviceToRack("rack-1", device("sw", 1, 50), 3)
	require.NoError(t, err)
	assertInvariants(t, s)
}

func TestAddDeviceToRack_Adjacency(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.AddDeviceToRack("rack-1", device("a", 1, 0), 7)
	require.NoError(t, err)

	_, err = s.AddDeviceToRack("rack-1", device("b", 2, 0), 5)
	require.NoError(t, err)
	assertInvariants(t, s)
}

func TestAddDeviceToRack_Bounds(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	_, err := s.AddDeviceToRack("rack-1", device("big", 4, 0), 40)
	var conflict *placement.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, placement.ReasonOutOfBounds, conflict.Reason)

	_, err = s.AddDeviceToRack("rack-1", device("big", 4, 0), 39)
	require.NoError(t, err)

	_, err = s.AddDeviceToRack("rack-404", device("x", 1, 0), 1)
	assert.True(t, errors.Is(err, ErrRackNotFound))
	assert.False(t, s.CanPlace("rack-404", 1, 1, ""))
}

func TestAddDeviceToRack_MovesExistingInstance(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.AddRack()

	unracked := s.AddUnrackedDevice(device("srv", 2, 300))
	require.NotEmpty(t, unracked.InstanceID)
	unracked.CustomName = "db-01"

	placed, err := s.AddDeviceToRack("rack-2", unracked, 10)
	require.NoError(t, err)
	assert.Equal(t, unracked.InstanceID, placed.InstanceID)
	assert.Equal(t, "db-01", placed.CustomName)

	cfg := s.Configuration()
	assert.Empty(t, cfg.UnrackedDevices)
	require.Len(t, cfg.Racks[1].Devices, 1)
	assertInvariants(t, s)
}

func TestMoveDevice(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.AddRack()
	d, err := s.AddDeviceToRack("rack-1", device("srv", 2, 300), 1)
	require.NoError(t, err)
	_, err = s.AddDeviceToRack("rack-1", device("sw", 1, 50), 3)
	require.NoError(t, err)

	moved, err := s.MoveDevice(d.InstanceID, "rack-1", 2)
	require.Error(t, err, "overlaps the switch at 3")
	assert.True(t, errors.Is(err, ErrPlacementConflict))

	_, err = s.MoveDevice(d.InstanceID, "rack-1", 4)
	require.NoError(t, err)

	moved, err = s.MoveDevice(d.InstanceID, "rack-2", 1)
	require.NoError(t, err)
	assert.Equal(t, d.InstanceID, moved.InstanceID)

	_, loc, ok := s.FindDevice(d.InstanceID)
	require.True(t, ok)
	assert.Equal(t, "rack-2", loc.RackID)

	_, err = s.MoveDevice("ghost", "rack-1", 1)
	assert.True(t, errors.Is(err, ErrDeviceNotFound))
	assertInvariants(t, s)
}

func TestMoveDevice_WithinRackOverlappingItself(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	d, err := s.AddDeviceToRack("rack-1", device("srv", 4, 0), 10)
	require.NoError(t, err)

	_, err = s.MoveDevice(d.InstanceID, "rack-1", 12)
	require.NoError(t, err)

	got, _, ok := s.FindDevice(d.InstanceID)
	require.True(t, ok)
	assert.Equal(t, 12, got.Position)
	assertInvariants(t, s)
}

func TestRemoveDeviceFromRack(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	d, err := s.AddDeviceToRack("rack-1", device("srv", 1, 0), 1)
	require.NoError(t, err)

	assert.False(t, s.RemoveDeviceFromRack("rack-2", d.InstanceID), "wrong rack")
	assert.True(t, s.RemoveDeviceFromRack("rack-1", d.InstanceID))
	assert.False(t, s.RemoveDeviceFromRack("rack-1", d.InstanceID), "second removal is a no-op")

	_, _, ok := s.FindDevice(d.InstanceID)
	assert.False(t, ok)
}

func TestUnrackDevice_KeepsIdentity(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	d, err := s.AddDeviceToRack("rack-1", device("srv", 2, 0), 5)
	require.NoError(t, err)
	require.True(t, s.RenameDevice(d.InstanceID, "web-01"))

	require.True(t, s.UnrackDevice("rack-1", d.InstanceID))

	got, loc, ok := s.FindDevice(d.InstanceID)
	require.True(t, ok)
	assert.True(t, loc.Unracked())
	assert.Zero(t, got.Position)
	assert.Equal(t, "web-01", got.CustomName)

	_, err = s.AddDeviceToRack("rack-1", got, 20)
	require.NoError(t, err)
	got, loc, _ = s.FindDevice(d.InstanceID)
	assert.Equal(t, "rack-1", loc.RackID)
	assert.Equal(t, "web-01", got.CustomName)
	assertInvariants(t, s)
}

func TestRemoveUnrackedDevice(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	racked, err := s.AddDeviceToRack("rack-1", device("srv", 1, 0), 1)
	require.NoError(t, err)
	loose := s.AddUnrackedDevice(device("kvm", 1, 0))

	assert.False(t, s.RemoveUnrackedDevice(racked.InstanceID), "racked devices are not in the unracked set")
	assert.True(t, s.RemoveUnrackedDevice(loose.InstanceID))
	assert.Empty(t, s.Configuration().UnrackedDevices)
}

func TestInstanceIDsAreUniqueWithinOneMillisecond(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	a := s.AddUnrackedDevice(device("srv", 1, 0))
	b := s.AddUnrackedDevice(device("srv", 1, 0))
	c := s.AddUnrackedDevice(device("srv", 1, 0))

	assert.Equal(t, "srv-1709294400000", a.InstanceID)
	assert.Equal(t, "srv-1709294400000-2", b.InstanceID)
	assert.Equal(t, "srv-1709294400000-3", c.InstanceID)
}

func TestRenameDevice(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	d := s.AddUnrackedDevice(device("srv", 1, 0))

	assert.True(t, s.RenameDevice(d.InstanceID, "edge"))
	got, _, _ := s.FindDevice(d.InstanceID)
	assert.Equal(t, "edge", got.CustomName)

	assert.True(t, s.RenameDevice(d.InstanceID, ""))
	got, _, _ = s.FindDevice(d.InstanceID)
	assert.Equal(t, "srv name", got.CustomName)

	assert.False(t, s.RenameDevice("ghost", "x"))
}

func TestDevicesAndProvidersShareOccupancy(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	reg := s.Registry()
	tmpl, err := reg.AddProvider(ProviderSpec{Name: "PDU", Type: "power", PowerCapacity: 3000, RUSize: 2})
	require.NoError(t, err)
	_, err = reg.CreateInstanceFromTemplate(tmpl, Placement{RackID: "rack-1", Position: 10})
	require.NoError(t, err)

	_, err = s.AddDeviceToRack("rack-1", device("srv", 1, 0), 11)
	assert.True(t, errors.Is(err, ErrPlacementConflict))
	_, err = s.AddDeviceToRack("rack-1", device("srv", 1, 0), 12)
	assert.NoError(t, err)

	pos, ok := s.FindSlot("rack-1", 10)
	require.True(t, ok)
	assert.Equal(t, 13, pos)

	layout, ok := s.RackLayout("rack-1")
	require.True(t, ok)
	assert.Equal(t, 2, layout.Len())
	assertInvariants(t, s)
}

func TestRemoveDevice(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	d, err := s.AddDeviceToRack("rack-1", device("srv", 1, 0), 1)
	require.NoError(t, err)

	assert.True(t, s.RemoveDevice(d.InstanceID))
	assert.False(t, s.RemoveDevice(d.InstanceID))
}
