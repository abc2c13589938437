package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"racksum/internal/models"
	"racksum/internal/rack"
)

func newRackCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rack",
		Short: "Manage racks in the workspace configuration",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List racks in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "#\tID\tNAME\tSIZE\tDEVICES\tFREE")
				for i, r := range ws.store.Racks() {
					size, free := r.RUSize, 0
					if layout, ok := ws.store.RackLayout(r.ID); ok {
						size = layout.Size()
						for _, rg := range layout.Free() {
							free += rg.Size()
						}
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%dU\t%d\t%dU\n", i+1, r.ID, r.Name, size, len(r.Devices), free)
				}
				return tw.Flush()
			})
		},
	}

	add := &cobra.Command{
		Use:   "add [name]",
		Short: "Append an empty rack",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				r := ws.store.AddRack()
				if len(args) == 1 {
					if err := ws.store.UpdateRack(r.ID, rack.RackPatch{Name: &args[0]}); err != nil {
						return err
					}
					r.Name = args[0]
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s, %dU)\n", r.ID, r.Name, r.RUSize)
				return nil
			})
		},
	}

	initCmd := &cobra.Command{
		Use:   "init <count>",
		Short: "Grow or truncate the rack list to count racks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid rack count %q", args[0])
			}
			return a.withWorkspace(cmd, func(ws *workspace) error {
				ws.store.InitializeRacks(n)
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration has %d racks\n", len(ws.store.Racks()))
				return nil
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename <rack> <name>",
		Short: "Rename a rack",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				r, err := resolveRack(ws.store, args[0])
				if err != nil {
					return err
				}
				return ws.store.UpdateRack(r.ID, rack.RackPatch{Name: &args[1]})
			})
		},
	}

	resize := &cobra.Command{
		Use:   "resize <rack> <units>",
		Short: "Change the height of a rack",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid rack size %q", args[1])
			}
			return a.withWorkspace(cmd, func(ws *workspace) error {
				r, err := resolveRack(ws.store, args[0])
				if err != nil {
					return err
				}
				return ws.store.UpdateRack(r.ID, rack.RackPatch{RUSize: &size})
			})
		},
	}

	var discard bool
	del := &cobra.Command{
		Use:   "delete <rack>",
		Short: "Delete a rack, moving its devices to the unracked set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				r, err := resolveRack(ws.store, args[0])
				if err != nil {
					return err
				}
				reg := ws.store.Registry()
				for _, p := range reg.ForRack(r.ID) {
					reg.RemoveProviderFromRack(p.ID)
				}
				ws.store.DeleteRack(r.ID, !discard)
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", r.ID)
				return nil
			})
		},
	}
	del.Flags().BoolVar(&discard, "discard-devices", false, "drop the rack's devices instead of unracking them")

	reorder := &cobra.Command{
		Use:   "reorder <from> <to>",
		Short: "Move the rack at position from to position to (1-based)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err1 := strconv.Atoi(args[0])
			to, err2 := strconv.Atoi(args[1])
			if err1 != nil || err2 != nil {
				return fmt.Errorf("positions must be numbers")
			}
			return a.withWorkspace(cmd, func(ws *workspace) error {
				if !ws.store.ReorderRacks(from-1, to-1) {
					return fmt.Errorf("cannot move rack %d to %d", from, to)
				}
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <rack>",
		Short: "Print a rack elevation, top unit first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				r, err := resolveRack(ws.store, args[0])
				if err != nil {
					return err
				}
				return printElevation(cmd, ws, r)
			})
		},
	}

	cmd.AddCommand(list, add, initCmd, rename, resize, del, reorder, show)
	return cmd
}

func printElevation(cmd *cobra.Command, ws *workspace, r models.Rack) error {
	layout, ok := ws.store.RackLayout(r.ID)
	if !ok {
		return fmt.Errorf("%w: %s", rack.ErrRackNotFound, r.ID)
	}

	names := make(map[string]string, len(r.Devices))
	for _, d := range r.Devices {
		names[d.InstanceID] = d.DisplayName()
	}
	for _, p := range ws.store.Registry().ForRack(r.ID) {
		names[p.ID] = p.Name + " [" + string(p.Type) + "]"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s, %dU)\n", r.Name, r.ID, layout.Size())
	tw := newTable(out)
	for u := layout.Size(); u >= 1; u-- {
		o, taken := layout.At(u)
		switch {
		case !taken:
			fmt.Fprintf(tw, "U%d\t\n", u)
		case u == o.End():
			fmt.Fprintf(tw, "U%d\t%s (%dU)\n", u, names[o.ID], o.Size)
		default:
			fmt.Fprintf(tw, "U%d\t  |\n", u)
		}
	}
	return tw.Flush()
}
