package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/mutation"
	"github.com/rileyhilliard/proxmon/internal/ui"
	"github.com/spf13/cobra"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show or change the CPU, RAM and disk alert toggles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return alertsShowCmd.RunE(cmd, args)
	},
}

var alertsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the alert toggles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}
		alerts, err := a.client.Alerts(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, alerts, func(w io.Writer) { printAlerts(w, *alerts) })
	},
}

var alertsSetCmd = &cobra.Command{
	Use:   "set <resource>=<on|off>...",
	Short: "Turn alerts on or off",
	Long: `Turn alerts on or off per resource. Resources are cpu, ram and disk.

Examples:
  proxmon alerts set cpu=on
  proxmon alerts set ram=off disk=on`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		changes, err := parseToggles(args)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}
		alerts, err := setAlerts(cmd.Context(), a.client, changes)
		if err != nil {
			return err
		}
		return emit(cmd, alerts, func(w io.Writer) {
			fmt.Fprintf(w, "%s Alerts saved\n", ui.SuccessStyle.Render(ui.SymbolSuccess))
			printAlerts(w, alerts)
		})
	},
}

func init() {
	alertsCmd.AddCommand(alertsShowCmd)
	alertsCmd.AddCommand(alertsSetCmd)
	rootCmd.AddCommand(alertsCmd)
}

// parseToggles reads "cpu=on ram=off" style arguments.
func parseToggles(args []string) (map[string]bool, error) {
	out := make(map[string]bool, len(args))
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, errors.New(errors.ErrInput,
				fmt.Sprintf("'%s' is not a resource=value pair", arg),
				"Use e.g. cpu=on or disk=off")
		}
		resource, err := alertResource(key)
		if err != nil {
			return nil, err
		}
		on, err := parseOnOff(val)
		if err != nil {
			return nil, err
		}
		out[resource] = on
	}
	return out, nil
}

func alertResource(key string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "cpu":
		return "cpu", nil
	case "ram", "mem", "memory":
		return "ram", nil
	case "disk", "storage":
		return "disk", nil
	}
	return "", errors.New(errors.ErrInput,
		fmt.Sprintf("Unknown alert resource '%s'", key),
		"Use cpu, ram or disk")
}

func parseOnOff(val string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "on", "true", "yes", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "no", "0", "disable", "disabled":
		return false, nil
	}
	return false, errors.New(errors.ErrInput,
		fmt.Sprintf("'%s' is not on or off", val), "")
}

// setAlerts reads the current toggles and writes them back with changes
// applied. The server takes the whole record, so unchanged resources keep
// their current value.
func setAlerts(ctx context.Context, client *api.Client, changes map[string]bool) (api.Alerts, error) {
	current, err := client.Alerts(ctx)
	if err != nil {
		return api.Alerts{}, err
	}

	cell := mutation.NewCell(*current)
	res := mutation.Apply(ctx, mutation.New(), "alerts", cell,
		func(a api.Alerts) api.Alerts {
			for resource, on := range changes {
				switch resource {
				case "cpu":
					a.CPU = on
				case "ram":
					a.RAM = on
				case "disk":
					a.Disk = on
				}
			}
			return a
		},
		func(ctx context.Context, a api.Alerts) (*api.Alerts, error) {
			return nil, client.UpdateAlerts(ctx, a)
		})
	return res.Value, res.Err
}

func printAlerts(w io.Writer, a api.Alerts) {
	fmt.Fprintf(w, "CPU   %s\nRAM   %s\nDisk  %s\n", onOff(a.CPU), onOff(a.RAM), onOff(a.Disk))
}
