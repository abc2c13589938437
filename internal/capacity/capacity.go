// Package capacity holds the unit conversions and percentage math used for
// power and cooling accounting.
package capacity

import "math"

const (
	// BTUPerWatt converts electrical load to heat load (1 W = 3.41 BTU/hr)
	BTUPerWatt = 3.41
	// BTUPerTon is one refrigeration ton in BTU/hr
	BTUPerTon = 12000
)

// Status is a traffic-light rating of a utilization percentage
type Status string

const (
	StatusGreen  Status = "green"
	StatusYellow Status = "yellow"
	StatusRed    Status = "red"
)

// WattsToBTU converts watts to BTU/hr
func WattsToBTU(watts float64) float64 {
	return watts * BTUPerWatt
}

// BTUToWatts converts BTU/hr to watts
func BTUToWatts(btu float64) float64 {
	return btu / BTUPerWatt
}

// TonsToBTU converts refrigeration tons to BTU/hr
func TonsToBTU(tons float64) float64 {
	return tons * BTUPerTon
}

// BTUToTons converts BTU/hr to refrigeration tons
func BTUToTons(btu float64) float64 {
	return btu / BTUPerTon
}

// WattsToKilowatts converts watts to kilowatts
func WattsToKilowatts(watts float64) float64 {
	return watts / 1000
}

// Ratio returns used as an unclamped percentage of capacity, or 0 when there is no capacity.
func Ratio(used, capacity float64) float64 {
	if capacity <= 0 {
		return 0
	}
	return used / capacity * 100
}

// Percentage returns the rounded share of capacity in use, clamped to 100.
// A zero capacity yields 0, which callers cannot tell apart from no load.
func Percentage(used, capacity float64) int {
	if capacity <= 0 {
		return 0
	}
	return int(math.Min(100, math.Round(Ratio(used, capacity))))
}

// Over reports whether used strictly exceeds a non-zero capacity
func Over(used, capacity float64) bool {
	return Ratio(used, capacity) > 100
}

// StatusFor rates a percentage: under 70 green, under 90 yellow, red otherwise.
func StatusFor(percentage int) Status {
	switch {
	case percentage < 70:
		return StatusGreen
	case percentage < 90:
		return StatusYellow
	default:
		return StatusRed
	}
}
