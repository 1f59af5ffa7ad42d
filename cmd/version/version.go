package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nilomr/majorvocal/internal/conf"
)

// Command creates a new cobra.Command that prints build information.
func Command(ctx *conf.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), ctx.BuildInfo.String())
		},
	}
}
