package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"racksum/internal/logger"
	"racksum/internal/models"
	"racksum/internal/rack"
	"racksum/internal/utilization"
)

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func attachmentName(name, ext string) string {
	base := strings.Trim(unsafeFilename.ReplaceAllString(name, "-"), "-")
	if base == "" {
		base = "rack-configuration"
	}
	return base + ext
}

// savedLayout loads a saved configuration and normalizes it the way a store load would
func (h *Handler) savedLayout(w http.ResponseWriter, r *http.Request) (models.SavedConfiguration, models.RackConfiguration, bool) {
	saved, ok := h.configuration(w, r)
	if !ok {
		return saved, models.RackConfiguration{}, false
	}
	cfg, err := rack.ParseConfiguration(saved.ConfigData)
	if err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, "Stored configuration is invalid", err)
		return saved, cfg, false
	}
	return saved, cfg, true
}

// ExportCSVHandler exports the devices of a saved configuration to CSV
func (h *Handler) ExportCSVHandler(w http.ResponseWriter, r *http.Request) {
	saved, cfg, ok := h.savedLayout(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+attachmentName(saved.Name, ".csv"))

	if err := writeCSV(w, cfg); err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("write csv export")
	}
}

func writeCSV(w io.Writer, cfg models.RackConfiguration) error {
	writer := csv.NewWriter(w)

	// Header
	writer.Write([]string{"Rack", "Start U", "End U", "Instance ID", "Name", "Template", "Category", "RU", "Power (W)", "Power Ports"})

	row := func(rackName string, d models.DeviceInstance) []string {
		start, end := "", ""
		if d.Position > 0 {
			start = strconv.Itoa(d.Position)
			end = strconv.Itoa(d.Position + d.RUSize - 1)
		}
		return []string{
			rackName,
			start,
			end,
			d.InstanceID,
			d.DisplayName(),
			d.Name,
			d.Category,
			strconv.Itoa(d.RUSize),
			strconv.FormatFloat(d.PowerDraw, 'f', -1, 64),
			strconv.Itoa(d.Ports()),
		}
	}

	for _, rk := range cfg.Racks {
		devices := append([]models.DeviceInstance{}, rk.Devices...)
		sort.Slice(devices, func(i, j int) bool { return devices[i].Position > devices[j].Position })
		for _, d := range devices {
			writer.Write(row(rk.Name, d))
		}
	}
	for _, d := range cfg.UnrackedDevices {
		writer.Write(row("Unracked", d))
	}

	writer.Flush()
	return writer.Error()
}

// ExportXLSXHandler exports a saved configuration as a workbook: a summary sheet
// followed by one elevation sheet per rack.
func (h *Handler) ExportXLSXHandler(w http.ResponseWriter, r *http.Request) {
	saved, cfg, ok := h.savedLayout(w, r)
	if !ok {
		return
	}

	f, err := buildWorkbook(saved.Name, cfg)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to build workbook", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+attachmentName(saved.Name, ".xlsx"))
	if err := f.Write(w); err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("write xlsx export")
	}
}

func buildWorkbook(title string, cfg models.RackConfiguration) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := writeSummary(f, title, cfg); err != nil {
		f.Close()
		return nil, err
	}

	used := map[string]bool{"summary": true}
	for _, rk := range cfg.Racks {
		name := sheetName(rk, used)
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeElevation(f, name, rk, cfg.Settings.RUPerRack); err != nil {
			f.Close()
			return nil, fmt.Errorf("rack %s: %w", rk.ID, err)
		}
	}
	return f, nil
}

var sheetUnsafe = strings.NewReplacer("[", "", "]", "", ":", "", "*", "", "?", "", "/", "-", "\\", "-")

// sheetName derives a unique worksheet name (at most 31 characters) for a rack
func sheetName(rk models.Rack, used map[string]bool) string {
	base := strings.TrimSpace(sheetUnsafe.Replace(rk.Name))
	if base == "" {
		base = rk.ID
	}
	if runes := []rune(base); len(runes) > 28 {
		base = string(runes[:28])
	}
	name := base
	for i := 2; used[strings.ToLower(name)]; i++ {
		name = base + " " + strconv.Itoa(i)
	}
	used[strings.ToLower(name)] = true
	return name
}

func writeSummary(f *excelize.File, title string, cfg models.RackConfiguration) error {
	const sheet = "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	report := utilization.Compute(rack.Snapshot{Configuration: cfg})
	rows := [][]any{
		{"Configuration", title},
		{"Last modified", cfg.Metadata.LastModified},
		{},
		{"Metric", "Used", "Capacity", "Percent", "Status"},
		{"Power (W)", report.PowerUsed, report.PowerCapacity, report.PowerPercentage, string(report.PowerStatus)},
		{"Cooling (BTU/hr)", report.HVACLoad, report.HVACCapacity, report.CoolingPercentage, string(report.CoolingStatus)},
		{"Rack units", report.RUUsed, report.RUCapacity, report.RUPercentage, string(report.RUStatus)},
		{"Devices", report.DeviceCount},
		{},
		{"Rack", "Height (U)", "Used (U)", "Percent", "Power (W)", "Devices"},
	}
	for _, u := range report.Racks {
		rows = append(rows, []any{u.Name, u.RUSize, u.RUUsed, u.RUPercentage, u.PowerUsed, u.DeviceCount})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for _, row := range []int{1, 4, 10} {
		if err := f.SetRowStyle(sheet, row, row, bold); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "A", 22)
}

// writeElevation draws a rack top-down, one row per unit, merging the rows a
// multi-unit device covers.
func writeElevation(f *excelize.File, sheet string, rk models.Rack, ruPerRack int) error {
	size := rk.RUSize
	if size <= 0 {
		size = ruPerRack
	}

	header := []any{"U", "Device", "Category", "Power (W)"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	// unit u sits on row size-u+2, so the top of the rack is row 2
	for u := size; u >= 1; u-- {
		if err := f.SetCellValue(sheet, "A"+strconv.Itoa(size-u+2), u); err != nil {
			return err
		}
	}

	fill, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center"},
		Border: []excelize.Border{
			{Type: "top", Color: "#808080", Style: 1},
			{Type: "bottom", Color: "#808080", Style: 1},
		},
	})
	if err != nil {
		return err
	}

	for _, d := range rk.Devices {
		if d.Position < 1 || d.RUSize < 1 {
			continue
		}
		top := strconv.Itoa(size - (d.Position + d.RUSize - 1) + 2)
		bottom := strconv.Itoa(size - d.Position + 2)

		if err := f.SetCellValue(sheet, "B"+top, d.DisplayName()); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, "C"+top, d.Category); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, "D"+top, d.PowerDraw); err != nil {
			return err
		}
		if d.RUSize > 1 {
			for _, col := range []string{"B", "C", "D"} {
				if err := f.MergeCell(sheet, col+top, col+bottom); err != nil {
					return err
				}
			}
		}
		if err := f.SetCellStyle(sheet, "B"+top, "D"+bottom, fill); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 5); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "B", 32)
}
