package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"racksum/internal/models"
	"racksum/internal/rack"
)

// providerFlags are the editable fields shared by add and update
type providerFlags struct {
	name        string
	typ         string
	power       float64
	ports       int
	cooling     float64
	network     float64
	description string
	location    string
	ruSize      int
}

func (f *providerFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.name, "name", "", "provider name")
	fs.StringVar(&f.typ, "type", "", "power, cooling or network")
	fs.Float64Var(&f.power, "power", 0, "power capacity in watts")
	fs.IntVar(&f.ports, "ports", 0, "power outlets")
	fs.Float64Var(&f.cooling, "cooling", 0, "cooling capacity in BTU/hr")
	fs.Float64Var(&f.network, "network", 0, "network capacity in Gbps")
	fs.StringVar(&f.description, "description", "", "description")
	fs.StringVar(&f.location, "location", "", "physical location")
	fs.IntVar(&f.ruSize, "ru", 0, "rack units occupied when racked (0 for none)")
}

func (f *providerFlags) patch(cmd *cobra.Command) (rack.ProviderPatch, error) {
	var p rack.ProviderPatch
	changed := cmd.Flags().Changed
	if changed("name") {
		p.Name = &f.name
	}
	if changed("type") {
		t, err := providerType(f.typ)
		if err != nil {
			return p, err
		}
		p.Type = &t
	}
	if changed("power") {
		p.PowerCapacity = &f.power
	}
	if changed("ports") {
		p.PowerPortsCapacity = &f.ports
	}
	if changed("cooling") {
		p.CoolingCapacity = &f.cooling
	}
	if changed("network") {
		p.NetworkCapacity = &f.network
	}
	if changed("description") {
		p.Description = &f.description
	}
	if changed("location") {
		p.Location = &f.location
	}
	if changed("ru") {
		p.RUSize = &f.ruSize
	}
	return p, nil
}

func providerType(s string) (models.ProviderType, error) {
	t := models.ProviderType(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid provider type %q: want power, cooling or network", s)
	}
	return t, nil
}

func newProviderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "provider",
		Aliases: []string{"providers"},
		Short:   "Manage resource providers (PDUs, cooling, uplinks)",
	}

	var typeFilter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List provider templates and placed instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				reg := ws.store.Registry()
				providers := reg.List()
				if typeFilter != "" {
					t, err := providerType(typeFilter)
					if err != nil {
						return err
					}
					providers = reg.ByType(t)
				}

				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tNAME\tTYPE\tKIND\tPOWER\tPORTS\tCOOLING\tNETWORK\tRU\tRACKED")
				for _, p := range providers {
					kind := "template"
					if p.IsPlaced {
						kind = "instance"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%g Gbps\t%dU\t%s\n",
						p.ID, p.Name, p.Type, kind, watts(p.PowerCapacity), p.PowerPortsCapacity,
						btu(p.CoolingCapacity), p.NetworkCapacity, p.RUSize, placed(p.RackID, p.Position))
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				t := reg.Totals()
				fmt.Fprintf(cmd.OutOrStdout(), "\nPlaced capacity: %s, %d ports, %s, %g Gbps\n",
					watts(t.PowerCapacity), t.PowerPortsCapacity, btu(t.CoolingCapacity), t.NetworkCapacity)
				return nil
			})
		},
	}
	list.Flags().StringVar(&typeFilter, "type", "", "only show providers of this type")

	var addFlags providerFlags
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a provider template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := providerType(addFlags.typ)
			if err != nil {
				return err
			}
			return a.withWorkspace(cmd, func(ws *workspace) error {
				p, err := ws.store.Registry().AddProvider(rack.ProviderSpec{
					Name:               addFlags.name,
					Type:               t,
					PowerCapacity:      addFlags.power,
					PowerPortsCapacity: addFlags.ports,
					CoolingCapacity:    addFlags.cooling,
					NetworkCapacity:    addFlags.network,
					Description:        addFlags.description,
					Location:           addFlags.location,
					RUSize:             addFlags.ruSize,
					Custom:             true,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return nil
			})
		},
	}
	addFlags.register(add)
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("type")

	var instRack string
	var instAt int
	instance := &cobra.Command{
		Use:   "instance <template-id>",
		Short: "Place an instance of a provider template, optionally into a rack slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				var at rack.Placement
				if instRack != "" {
					r, err := resolveRack(ws.store, instRack)
					if err != nil {
						return err
					}
					at = rack.Placement{RackID: r.ID, Position: instAt}
				}
				p, err := ws.store.Registry().CreateInstance(args[0], at)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return nil
			})
		},
	}
	instance.Flags().StringVar(&instRack, "rack", "", "rack to place the instance in")
	instance.Flags().IntVar(&instAt, "at", 0, "starting rack unit, required with --rack")

	var placeAt int
	place := &cobra.Command{
		Use:   "place <id> <rack>",
		Short: "Put a provider into a rack slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				r, err := resolveRack(ws.store, args[1])
				if err != nil {
					return err
				}
				return ws.store.Registry().PlaceProvider(args[0], r.ID, placeAt)
			})
		},
	}
	place.Flags().IntVar(&placeAt, "at", 0, "starting rack unit")
	_ = place.MarkFlagRequired("at")

	unplace := &cobra.Command{
		Use:   "unplace <id>",
		Short: "Take a provider out of its rack; it keeps counting toward capacity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				if !ws.store.Registry().RemoveProviderFromRack(args[0]) {
					return fmt.Errorf("%w: %s", rack.ErrProviderNotFound, args[0])
				}
				return nil
			})
		},
	}

	var updateFlags providerFlags
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change provider fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := updateFlags.patch(cmd)
			if err != nil {
				return err
			}
			return a.withWorkspace(cmd, func(ws *workspace) error {
				found, err := ws.store.Registry().UpdateProvider(args[0], patch)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("%w: %s", rack.ErrProviderNotFound, args[0])
				}
				return nil
			})
		},
	}
	updateFlags.register(update)

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				if !ws.store.Registry().DeleteProvider(args[0]) {
					return fmt.Errorf("%w: %s", rack.ErrProviderNotFound, args[0])
				}
				return nil
			})
		},
	}

	var merge bool
	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Import providers from an export document or a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			mode := rack.ImportReplace
			if merge {
				mode = rack.ImportMerge
			}
			return a.withWorkspace(cmd, func(ws *workspace) error {
				n, err := ws.store.Registry().Import(data, mode)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d providers (%s)\n", n, mode)
				return nil
			})
		},
	}
	imp.Flags().BoolVar(&merge, "merge", false, "merge with existing providers instead of replacing them")

	export := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the provider export document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				return writeOutput(cmd, args, ws.store.Registry().Export())
			})
		},
	}

	cmd.AddCommand(list, add, instance, place, unplace, update, del, imp, export)
	return cmd
}

// readInput reads a file argument, "-" meaning stdin
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// writeOutput writes v as indented JSON to the file argument or stdout
func writeOutput(cmd *cobra.Command, args []string, v any) error {
	if len(args) == 0 || args[0] == "-" {
		return printJSON(cmd.OutOrStdout(), v)
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := printJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
