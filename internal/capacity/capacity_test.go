package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversions(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 3410.0, WattsToBTU(1000), 1e-9)
	assert.InDelta(t, 1000.0, BTUToWatts(3410), 1e-9)
	assert.InDelta(t, 24000.0, TonsToBTU(2), 1e-9)
	assert.InDelta(t, 0.5, BTUToTons(6000), 1e-9)
	assert.InDelta(t, 2.5, WattsToKilowatts(2500), 1e-9)
}

func TestPercentage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		used     float64
		capacity float64
		want     int
	}{
		{"zero capacity", 500, 0, 0},
		{"zero capacity no load", 0, 0, 0},
		{"half", 500, 1000, 50},
		{"rounds half up", 1, 8, 13},
		{"exactly full", 1000, 1000, 100},
		{"clamped", 1100, 1000, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.used, tt.capacity))
		})
	}
}

func TestOver(t *testing.T) {
	t.Parallel()

	assert.False(t, Over(1000, 1000), "at capacity is not over")
	assert.True(t, Over(1001, 1000))
	assert.False(t, Over(5000, 0), "no capacity configured is never over")
	assert.InDelta(t, 110.0, Ratio(1100, 1000), 1e-9)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusGreen, StatusFor(0))
	assert.Equal(t, StatusGreen, StatusFor(69))
	assert.Equal(t, StatusYellow, StatusFor(70))
	assert.Equal(t, StatusYellow, StatusFor(89))
	assert.Equal(t, StatusRed, StatusFor(90))
	assert.Equal(t, StatusRed, StatusFor(100))
}
