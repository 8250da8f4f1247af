package cli

import (
	"fmt"
	"io"

	"github.com/rileyhilliard/proxmon/internal/ui"
	"github.com/spf13/cobra"
)

// emit writes data as a JSON envelope in machine mode, and otherwise
// calls text to print the human form.
func emit(cmd *cobra.Command, data interface{}, text func(w io.Writer)) error {
	if machineMode {
		return WriteJSONSuccess(cmd.OutOrStdout(), data)
	}
	text(cmd.OutOrStdout())
	return nil
}

// success prints a check mark line, or the message in a JSON envelope.
func success(cmd *cobra.Command, message string) error {
	return emit(cmd, map[string]string{"message": message}, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s\n", ui.SuccessStyle.Render(ui.SymbolSuccess), message)
	})
}

// cancelled reports a declined confirmation. It is not an error.
func cancelled(cmd *cobra.Command) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
	return nil
}

// onOff renders a boolean toggle.
func onOff(b bool) string {
	if b {
		return ui.SuccessStyle.Render("on")
	}
	return ui.MutedStyle.Render("off")
}

// yesNo renders a capability flag.
func yesNo(b bool) string {
	if b {
		return ui.SuccessStyle.Render(ui.SymbolSuccess)
	}
	return ui.MutedStyle.Render("-")
}
