package commands

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSiteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Manage sites on the racksum server",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				client, err := ws.requireRemote()
				if err != nil {
					return err
				}
				sites, err := client.ListSites(cmd.Context())
				if err != nil {
					return err
				}
				current := ws.sync.Session().SiteID

				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "\tID\tNAME\tDESCRIPTION\tUPDATED")
				for _, s := range sites {
					mark := ""
					if s.ID == current {
						mark = "*"
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", mark, s.ID, s.Name, orDash(s.Description), humanize.Time(s.UpdatedAt))
				}
				return tw.Flush()
			})
		},
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				client, err := ws.requireRemote()
				if err != nil {
					return err
				}
				site, err := client.CreateSite(cmd.Context(), args[0], description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created site %q (id %d)\n", site.Name, site.ID)
				return nil
			})
		},
	}
	create.Flags().StringVarP(&description, "description", "d", "", "site description")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a site and all its rack configurations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withWorkspace(cmd, func(ws *workspace) error {
				client, err := ws.requireRemote()
				if err != nil {
					return err
				}
				if err := client.DeleteSite(cmd.Context(), id); err != nil {
					return err
				}
				if ws.sync.Session().SiteID == id {
					ws.sync.ClearSession()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted site %d\n", id)
				return nil
			})
		},
	}

	use := &cobra.Command{
		Use:   "use <id>",
		Short: "Select the site remote saves go to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withWorkspace(cmd, func(ws *workspace) error {
				client, err := ws.requireRemote()
				if err != nil {
					return err
				}
				site, err := client.GetSite(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ws.sync.Session().SiteID != site.ID {
					// a configuration name belongs to the previous site
					ws.sync.SetConfigName("")
				}
				ws.sync.SetSite(site.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Using site %q (id %d)\n", site.Name, site.ID)
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Deselect the site and configuration name, disabling remote saves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWorkspace(cmd, func(ws *workspace) error {
				ws.sync.ClearSession()
				fmt.Fprintln(cmd.OutOrStdout(), "Remote session cleared")
				return nil
			})
		},
	}

	cmd.AddCommand(list, create, del, use, clearCmd)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
