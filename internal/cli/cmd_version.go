package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "0.1.0-dev"

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show plannr version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": Version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "plannr version %s\n", Version)
			return err
		},
	}
}
