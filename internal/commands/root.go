// Package commands implements the racksum command line: the API server and the
// workspace commands that edit a locally persisted rack configuration.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"racksum/internal/config"
	"racksum/internal/logger"
)

// app carries what every command needs once flags and config are resolved
type app struct {
	cfgFile string
	cfg     *config.Config
}

// flag name -> config key, bound on every command that has the flag
var flagKeys = map[string]string{
	"workspace":  "workspace.path",
	"remote":     "remote.url",
	"catalog":    "catalog.path",
	"log-level":  "log.level",
	"log-format": "log.format",
	"port":       "server.port",
	"db":         "database.path",
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "racksum",
		Short: "Plan rack layouts and track power, cooling and space",
		Long: `racksum models equipment racks: device placement by rack unit, resource
providers (PDUs, cooling units, uplinks) and the utilization they add up to.

Workspace commands edit a configuration persisted under --workspace and, when a
site and configuration name are selected, save it to the racksum server at
--remote. "racksum serve" runs that server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./config.yaml)")
	flags.String("workspace", "", "workspace directory (default: .racksum)")
	flags.String("remote", "", "racksum server URL, enables remote sync")
	flags.String("catalog", "", "device catalog file (JSON or YAML)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, console)")

	root.AddCommand(
		newServeCmd(a),
		newSiteCmd(a),
		newRackCmd(a),
		newDeviceCmd(a),
		newProviderCmd(a),
		newSettingsCmd(a),
		newUsageCmd(a),
		newConfigCmd(a),
		newCatalogCmd(a),
	)
	return root
}

// Execute runs the command line
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) load(cmd *cobra.Command) error {
	bind := func(v *viper.Viper) error {
		for name, key := range flagKeys {
			f := cmd.Flags().Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
		return nil
	}

	cfg, err := config.Load(a.cfgFile, bind)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if os.Getenv("RACKSUM_LOG_FORMAT") == "" && !cmd.Flags().Changed("log-format") && cmd.Name() != "serve" {
		// interactive commands read better with console output
		cfg.Log.Format = "console"
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return nil
}
