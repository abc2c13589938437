package commands

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"racksum/internal/capacity"
	"racksum/internal/rack"
	"racksum/internal/utilization"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the fallback capacities",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				s := ws.store.Settings()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total power capacity: %s (%.1f kW)\n", watts(s.TotalPowerCapacity), capacity.WattsToKilowatts(s.TotalPowerCapacity))
				fmt.Fprintf(out, "HVAC capacity:        %s (%.1f tons)\n", btu(s.HVACCapacity), capacity.BTUToTons(s.HVACCapacity))
				fmt.Fprintf(out, "Default rack height:  %dU\n", s.RUPerRack)
				return nil
			})
		},
	}

	var power, hvac, tons float64
	var ruPerRack int
	set := &cobra.Command{
		Use:   "set",
		Short: "Change settings; unset flags keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p rack.SettingsPatch
			changed := cmd.Flags().Changed
			if changed("power") {
				p.TotalPowerCapacity = &power
			}
			switch {
			case changed("hvac") && changed("hvac-tons"):
				return fmt.Errorf("--hvac and --hvac-tons are mutually exclusive")
			case changed("hvac"):
				p.HVACCapacity = &hvac
			case changed("hvac-tons"):
				b := capacity.TonsToBTU(tons)
				p.HVACCapacity = &b
			}
			if changed("ru-per-rack") {
				p.RUPerRack = &ruPerRack
			}
			return a.withWorkspace(cmd, func(ws *workspace) error {
				return ws.store.UpdateSettings(p)
			})
		},
	}
	set.Flags().Float64Var(&power, "power", 0, "total power capacity in watts")
	set.Flags().Float64Var(&hvac, "hvac", 0, "HVAC capacity in BTU/hr")
	set.Flags().Float64Var(&tons, "hvac-tons", 0, "HVAC capacity in tons of refrigeration")
	set.Flags().IntVar(&ruPerRack, "ru-per-rack", 0, "default rack height (1-52)")

	cmd.AddCommand(show, set)
	return cmd
}

func newUsageCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Report power, cooling, outlet and space utilization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				report := utilization.NewCalculator(ws.store).Report()
				if asJSON {
					return printJSON(cmd.OutOrStdout(), report)
				}
				return printReport(cmd, report)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(cmd *cobra.Command, r utilization.Report) error {
	out := cmd.OutOrStdout()
	tw := newTable(out)
	fmt.Fprintln(tw, "RESOURCE\tUSED\tCAPACITY\tUSE\tSTATUS")
	fmt.Fprintf(tw, "Power\t%s\t%s\t%d%%\t%s\n", watts(r.PowerUsed), watts(r.PowerCapacity), r.PowerPercentage, r.PowerStatus)
	fmt.Fprintf(tw, "Outlets\t%d\t%d\t%d%%\t%s\n", r.PowerPortsUsed, r.PowerPortsCapacity, r.PowerPortsPercentage, r.PowerPortsStatus)
	fmt.Fprintf(tw, "Cooling\t%s\t%s\t%d%%\t%s\n", btu(r.HVACLoad), btu(r.HVACCapacity), r.CoolingPercentage, r.CoolingStatus)
	fmt.Fprintf(tw, "Space\t%dU\t%dU\t%d%%\t%s\n", r.RUUsed, r.RUCapacity, r.RUPercentage, r.RUStatus)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s devices, %g Gbps uplink capacity\n", humanize.Comma(int64(r.DeviceCount)), r.NetworkCapacity)
	if r.IsOverCapacity {
		fmt.Fprintln(out, "WARNING: power or cooling load exceeds capacity")
	}

	if len(r.Racks) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw = newTable(out)
	fmt.Fprintln(tw, "RACK\tSPACE\tUSE\tPOWER\tDEVICES\tPROVIDERS")
	for _, ru := range r.Racks {
		fmt.Fprintf(tw, "%s\t%d/%dU\t%s\t%s\t%d\t%d\n",
			ru.Name, ru.RUUsed, ru.RUSize, bar(ru.RUPercentage), watts(ru.PowerUsed), ru.DeviceCount, ru.ProviderCount)
	}
	return tw.Flush()
}

// bar renders a percentage as a ten-cell gauge
func bar(pct int) string {
	filled := min(max(pct, 0), 100) / 10
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", 10-filled) + "] " + fmt.Sprintf("%3d%%", pct)
}
