package cli

import (
	"fmt"
	"io"

	"github.com/rileyhilliard/proxmon/internal/config"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configInitServer string
	configInitForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the proxmon config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a starter config file with every setting at its default.

The file goes to ~/.config/proxmon/config.yaml (or $PROXMON_CONFIG_DIR),
or to the path given with --config.

Examples:
  proxmon config init --server https://proxmon.lan:8000
  proxmon config init --server https://proxmon.lan:8000 --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server := configInitServer
		if server == "" {
			server = serverFlag
		}
		if server == "" {
			var err error
			if server, err = ui.Input("ProxMon server URL", "https://proxmon.lan:8000"); err != nil {
				return err
			}
		}

		path := cfgFile
		if path == "" {
			var err error
			if path, err = config.DefaultPath(); err != nil {
				return err
			}
		}
		if err := config.WriteStarter(path, server, configInitForce); err != nil {
			return err
		}
		return emit(cmd, map[string]string{"path": path, "server": server}, func(w io.Writer) {
			fmt.Fprintf(w, "%s Wrote %s\n", ui.SuccessStyle.Render(ui.SymbolSuccess), path)
			fmt.Fprintf(w, "  Next: %s\n", ui.BoldStyle.Render("proxmon login"))
		})
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration proxmon would use, after defaults, the config
file, PROXMON_* environment variables and --server are applied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if machineMode {
			return WriteJSONSuccess(cmd.OutOrStdout(), cfg)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Cannot encode config", "")
		}
		w := cmd.OutOrStdout()
		if path == "" {
			fmt.Fprintln(w, ui.MutedStyle.Render("# no config file, defaults and environment only"))
		} else {
			fmt.Fprintln(w, ui.MutedStyle.Render("# "+path))
		}
		_, err = w.Write(data)
		return err
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitServer, "server", "", "ProxMon server URL")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
