package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"racksum/internal/catalog"
	"racksum/internal/models"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse device templates and author custom ones",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List device templates by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				cat, err := a.catalog(cmd.Context(), ws)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), cat)
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "CATEGORY\tID\tNAME\tRU\tPOWER\tPORTS")
				for _, c := range cat.Categories {
					for _, d := range c.Devices {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%dU\t%s\t%d\n", c.Name, d.ID, d.Name, d.RUSize, watts(d.PowerDraw), d.PowerPortsUsed)
					}
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")

	var t models.DeviceTemplate
	add := &cobra.Command{
		Use:   "add <category>",
		Short: "Add a custom device template to the workspace catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				cat, err := a.catalog(cmd.Context(), ws)
				if err != nil {
					return err
				}
				if _, exists := cat.Find(t.ID); exists {
					return fmt.Errorf("device template %q already exists", t.ID)
				}
				custom, err := catalog.AddCustom(ws.sync.CustomCategories(), args[0], t)
				if err != nil {
					return err
				}
				if err := ws.sync.SetCustomCategories(custom); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", t.ID, args[0])
				return nil
			})
		},
	}
	fs := add.Flags()
	fs.StringVar(&t.ID, "id", "", "template id")
	fs.StringVar(&t.Name, "name", "", "template name")
	fs.IntVar(&t.RUSize, "ru", 1, "rack units")
	fs.Float64Var(&t.PowerDraw, "power", 0, "power draw in watts")
	fs.IntVar(&t.PowerPortsUsed, "ports", 1, "power outlets used")
	fs.StringVar(&t.Color, "color", "", "display color")
	fs.StringVar(&t.Description, "description", "", "description")
	_ = add.MarkFlagRequired("id")
	_ = add.MarkFlagRequired("name")

	cmd.AddCommand(list, add)
	return cmd
}
