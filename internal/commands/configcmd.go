package commands

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"racksum/internal/models"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Export, load and save the workspace configuration",
	}

	export := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the configuration JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				data, err := ws.store.ExportConfiguration()
				if err != nil {
					return err
				}
				return writeOutput(cmd, args, json.RawMessage(data))
			})
		},
	}

	load := &cobra.Command{
		Use:   "load <file>",
		Short: "Replace the configuration with a JSON file (\"-\" for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return a.withWorkspace(cmd, func(ws *workspace) error {
				if err := ws.store.LoadConfiguration(data); err != nil {
					return err
				}
				cfg := ws.store.Configuration()
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d racks, %d unracked devices\n", len(cfg.Racks), len(cfg.UnrackedDevices))
				return nil
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Start over with an empty default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				ws.store.ResetConfiguration()
				return nil
			})
		},
	}

	name := &cobra.Command{
		Use:   "name [name]",
		Short: "Show or set the name remote saves are stored under",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				if len(args) == 1 {
					ws.sync.SetConfigName(args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), orDash(ws.sync.Session().ConfigName))
				return nil
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the workspace, remote session and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				out := cmd.OutOrStdout()
				cfg := ws.store.Configuration()
				session := ws.sync.Session()

				fmt.Fprintf(out, "Workspace:     %s\n", ws.db.Dir())
				fmt.Fprintf(out, "Configuration: %s\n", cfg.ConfigID)
				fmt.Fprintf(out, "Modified:      %s\n", humanize.Time(cfg.Metadata.LastModified))
				fmt.Fprintf(out, "Racks:         %d\n", len(cfg.Racks))
				if ws.remote == nil {
					fmt.Fprintln(out, "Remote:        not configured")
					return nil
				}
				fmt.Fprintf(out, "Remote:        %s\n", ws.remote.BaseURL())
				if !session.Active() {
					fmt.Fprintln(out, "Session:       inactive, select a site and a configuration name")
					return nil
				}
				fmt.Fprintf(out, "Session:       site %d, %q\n", session.SiteID, session.ConfigName)
				return nil
			})
		},
	}

	save := &cobra.Command{
		Use:   "save [name]",
		Short: "Save the configuration to the selected site now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				if len(args) == 1 {
					ws.sync.SetConfigName(args[0])
				}
				if err := ws.sync.Save(cmd.Context()); err != nil {
					return err
				}
				s := ws.sync.Session()
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %q to site %d\n", s.ConfigName, s.SiteID)
				return nil
			})
		},
	}

	pull := &cobra.Command{
		Use:   "pull <name>",
		Short: "Load a saved configuration from the selected site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				client, err := ws.requireRemote()
				if err != nil {
					return err
				}
				siteID := ws.sync.Session().SiteID
				if siteID == 0 {
					return fmt.Errorf("no site selected, run \"racksum site use <id>\"")
				}
				saved, err := client.GetConfiguration(cmd.Context(), siteID, args[0])
				if err != nil {
					return err
				}
				if err := ws.store.LoadConfiguration(saved.ConfigData); err != nil {
					return err
				}
				ws.sync.SetConfigName(saved.Name)
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %q from %s (updated %s)\n", saved.Name, saved.SiteName, humanize.Time(saved.UpdatedAt))
				return nil
			})
		},
	}

	var allSites bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List configurations saved on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				client, err := ws.requireRemote()
				if err != nil {
					return err
				}
				siteID := ws.sync.Session().SiteID
				if !allSites && siteID == 0 {
					return fmt.Errorf("no site selected, run \"racksum site use <id>\" or pass --all")
				}

				var saved []models.SavedConfiguration
				if allSites {
					saved, err = client.ListAllConfigurations(cmd.Context())
				} else {
					saved, err = client.ListConfigurations(cmd.Context(), siteID)
				}
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tSITE\tNAME\tSIZE\tUPDATED")
				for _, c := range saved {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.SiteName, c.Name, humanize.Bytes(uint64(len(c.ConfigData))), humanize.Time(c.UpdatedAt))
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().BoolVar(&allSites, "all", false, "list configurations of every site")

	cmd.AddCommand(export, load, reset, name, status, save, pull, list)
	return cmd
}
