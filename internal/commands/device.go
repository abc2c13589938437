package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"racksum/internal/models"
	"racksum/internal/rack"
)

func newDeviceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Place, move and remove devices",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List racked and unracked devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				cfg := ws.store.Configuration()
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "INSTANCE\tNAME\tTEMPLATE\tRU\tPOWER\tLOCATION")
				for _, r := range cfg.Racks {
					for _, d := range r.Devices {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%dU\t%s\t%s\n", d.InstanceID, d.DisplayName(), d.ID, d.RUSize, watts(d.PowerDraw), placed(r.ID, d.Position))
					}
				}
				for _, d := range cfg.UnrackedDevices {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%dU\t%s\tunracked\n", d.InstanceID, d.DisplayName(), d.ID, d.RUSize, watts(d.PowerDraw))
				}
				return tw.Flush()
			})
		},
	}

	var at int
	var name string
	place := &cobra.Command{
		Use:   "place <template> <rack>",
		Short: "Create a device from a catalog template and rack it",
		Long:  "Create a device from a catalog template and rack it at --at, or at the lowest free slot.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				d, err := a.instance(cmd, ws, args[0], name)
				if err != nil {
					return err
				}
				r, err := resolveRack(ws.store, args[1])
				if err != nil {
					return err
				}
				pos := at
				if pos == 0 {
					var ok bool
					if pos, ok = ws.store.FindSlot(r.ID, d.RUSize); !ok {
						return fmt.Errorf("%w: no %dU slot free in %s", rack.ErrPlacementConflict, d.RUSize, r.Name)
					}
				}
				placedDev, err := ws.store.AddDeviceToRack(r.ID, d, pos)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Placed %s in %s at U%d\n", placedDev.InstanceID, r.Name, placedDev.Position)
				return nil
			})
		},
	}
	place.Flags().IntVar(&at, "at", 0, "starting rack unit (default: lowest free slot)")
	place.Flags().StringVar(&name, "name", "", "custom device name")

	addUnracked := &cobra.Command{
		Use:   "add-unracked <template>",
		Short: "Create a device from a catalog template without racking it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				d, err := a.instance(cmd, ws, args[0], name)
				if err != nil {
					return err
				}
				added := ws.store.AddUnrackedDevice(d)
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s to unracked devices\n", added.InstanceID)
				return nil
			})
		},
	}
	addUnracked.Flags().StringVar(&name, "name", "", "custom device name")

	var moveAt int
	move := &cobra.Command{
		Use:   "move <instance> <rack>",
		Short: "Move a device to a rack position, keeping its instance id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				d, _, ok := ws.store.FindDevice(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", rack.ErrDeviceNotFound, args[0])
				}
				r, err := resolveRack(ws.store, args[1])
				if err != nil {
					return err
				}
				pos := moveAt
				if pos == 0 {
					var ok bool
					if pos, ok = ws.store.FindSlot(r.ID, d.RUSize); !ok {
						return fmt.Errorf("%w: no %dU slot free in %s", rack.ErrPlacementConflict, d.RUSize, r.Name)
					}
				}
				moved, err := ws.store.MoveDevice(d.InstanceID, r.ID, pos)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s at U%d\n", moved.InstanceID, r.Name, moved.Position)
				return nil
			})
		},
	}
	move.Flags().IntVar(&moveAt, "at", 0, "starting rack unit (default: lowest free slot)")

	unrack := &cobra.Command{
		Use:   "unrack <instance>",
		Short: "Take a device out of its rack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				_, loc, ok := ws.store.FindDevice(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", rack.ErrDeviceNotFound, args[0])
				}
				if loc.Unracked() {
					return fmt.Errorf("%s is not racked", args[0])
				}
				ws.store.UnrackDevice(loc.RackID, args[0])
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <instance>",
		Short: "Delete a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				if !ws.store.RemoveDevice(args[0]) {
					return fmt.Errorf("%w: %s", rack.ErrDeviceNotFound, args[0])
				}
				return nil
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename <instance> [name]",
		Short: "Set a device's custom name; no name restores the template name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			newName := ""
			if len(args) == 2 {
				newName = args[1]
			}
			return a.withWorkspace(cmd, func(ws *workspace) error {
				if !ws.store.RenameDevice(args[0], newName) {
					return fmt.Errorf("%w: %s", rack.ErrDeviceNotFound, args[0])
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, place, addUnracked, move, unrack, remove, rename)
	return cmd
}

// instance builds an unplaced device from a catalog template
func (a *app) instance(cmd *cobra.Command, ws *workspace, templateID, name string) (models.DeviceInstance, error) {
	cat, err := a.catalog(cmd.Context(), ws)
	if err != nil {
		return models.DeviceInstance{}, err
	}
	t, ok := cat.Find(templateID)
	if !ok {
		return models.DeviceInstance{}, fmt.Errorf("unknown device template %q", templateID)
	}
	return models.DeviceInstance{DeviceTemplate: t, CustomName: name}, nil
}
