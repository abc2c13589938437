// Package utilization derives usage figures from a configuration and its providers.
// Nothing is cached: every report is computed from a fresh snapshot.
package utilization

import (
	"racksum/internal/capacity"
	"racksum/internal/models"
	"racksum/internal/rack"
)

// Source supplies consistent snapshots; *rack.Store satisfies it
type Source interface {
	Snapshot() rack.Snapshot
}

// RackUsage is the per-rack breakdown of a report
type RackUsage struct {
	RackID        string  `json:"rackId"`
	Name          string  `json:"name"`
	RUSize        int     `json:"ruSize"`
	RUUsed        int     `json:"ruUsed"`
	RUPercentage  int     `json:"ruPercentage"`
	PowerUsed     float64 `json:"powerUsed"`
	DeviceCount   int     `json:"deviceCount"`
	ProviderCount int     `json:"providerCount"`
}

// Report holds every utilization signal of one snapshot
type Report struct {
	PowerUsed       float64         `json:"powerUsed"`
	PowerCapacity   float64         `json:"powerCapacity"`
	PowerPercentage int             `json:"powerPercentage"`
	PowerStatus     capacity.Status `json:"powerStatus"`

	PowerPortsUsed       int             `json:"powerPortsUsed"`
	PowerPortsCapacity   int             `json:"powerPortsCapacity"`
	PowerPortsPercentage int             `json:"powerPortsPercentage"`
	PowerPortsStatus     capacity.Status `json:"powerPortsStatus"`

	HVACLoad          float64         `json:"hvacLoad"`
	HVACCapacity      float64         `json:"hvacCapacity"`
	CoolingPercentage int             `json:"coolingPercentage"`
	CoolingStatus     capacity.Status `json:"coolingStatus"`

	// RUCapacity multiplies the global ruPerRack by the rack count and ignores
	// per-rack overrides; see RackUsage for the enforced heights.
	RUUsed       int             `json:"ruUsed"`
	RUCapacity   int             `json:"ruCapacity"`
	RUPercentage int             `json:"ruPercentage"`
	RUStatus     capacity.Status `json:"ruStatus"`

	NetworkCapacity float64 `json:"networkCapacity"`
	DeviceCount     int     `json:"deviceCount"`
	IsOverCapacity  bool    `json:"isOverCapacity"`

	Racks []RackUsage `json:"racks"`
}

// Calculator computes reports on demand from a source
type Calculator struct {
	src Source
}

// NewCalculator creates a calculator reading from src
func NewCalculator(src Source) *Calculator {
	return &Calculator{src: src}
}

// Report computes the current utilization
func (c *Calculator) Report() Report {
	return Compute(c.src.Snapshot())
}

// Compute derives a report from a snapshot
func Compute(snap rack.Snapshot) Report {
	cfg := snap.Configuration
	totals := rack.ComputeTotals(snap.Providers)

	var r Report
	r.Racks = make([]RackUsage, 0, len(cfg.Racks))

	for _, rk := range cfg.Racks {
		ru := RackUsage{RackID: rk.ID, Name: rk.Name, RUSize: rk.RUSize}
		for _, d := range rk.Devices {
			addDevice(&r, d)
			ru.RUUsed += d.RUSize
			ru.PowerUsed += d.PowerDraw
			ru.DeviceCount++
		}
		for _, p := range snap.Providers {
			if p.Racked() && p.RackID == rk.ID {
				ru.RUUsed += p.RUSize
				ru.ProviderCount++
			}
		}
		ru.RUPercentage = capacity.Percentage(float64(ru.RUUsed), float64(rk.RUSize))
		r.Racks = append(r.Racks, ru)
	}
	for _, d := range cfg.UnrackedDevices {
		addDevice(&r, d)
	}
	r.RUUsed += totals.RackedProviderRU

	r.PowerCapacity = cfg.Settings.TotalPowerCapacity
	if totals.PowerCapacity > 0 {
		r.PowerCapacity = totals.PowerCapacity
	}
	r.HVACCapacity = cfg.Settings.HVACCapacity
	if totals.CoolingCapacity > 0 {
		r.HVACCapacity = totals.CoolingCapacity
	}
	r.PowerPortsCapacity = totals.PowerPortsCapacity
	r.NetworkCapacity = totals.NetworkCapacity
	r.RUCapacity = cfg.Settings.RUPerRack * len(cfg.Racks)
	r.HVACLoad = capacity.WattsToBTU(r.PowerUsed)

	r.PowerPercentage = capacity.Percentage(r.PowerUsed, r.PowerCapacity)
	r.PowerPortsPercentage = capacity.Percentage(float64(r.PowerPortsUsed), float64(r.PowerPortsCapacity))
	r.CoolingPercentage = capacity.Percentage(r.HVACLoad, r.HVACCapacity)
	r.RUPercentage = capacity.Percentage(float64(r.RUUsed), float64(r.RUCapacity))

	r.PowerStatus = capacity.StatusFor(r.PowerPercentage)
	r.PowerPortsStatus = capacity.StatusFor(r.PowerPortsPercentage)
	r.CoolingStatus = capacity.StatusFor(r.CoolingPercentage)
	r.RUStatus = capacity.StatusFor(r.RUPercentage)

	r.IsOverCapacity = capacity.Over(r.PowerUsed, r.PowerCapacity) ||
		capacity.Over(r.HVACLoad, r.HVACCapacity) ||
		capacity.Over(float64(r.PowerPortsUsed), float64(r.PowerPortsCapacity))

	return r
}

func addDevice(r *Report, d models.DeviceInstance) {
	r.PowerUsed += d.PowerDraw
	r.PowerPortsUsed += d.Ports()
	r.RUUsed += d.RUSize
	r.DeviceCount++
}
