package initcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nilomr/majorvocal/internal/conf"
)

// DefaultConfigFile is written when no --config path is given.
const DefaultConfigFile = "config.yaml"

// Command creates a new cobra.Command that sets up a project.
func Command(ctx *conf.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the project directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.EnsureLayout(ctx.Settings); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "project ready at %s\n", ctx.Settings.Paths.Project)
			return nil
		},
	}
}

// WriteConfig writes the default configuration unless one exists, and points
// ctx at it so the following load reads it.
func WriteConfig(ctx *conf.Context) error {
	if ctx.ConfigFile == "" {
		ctx.ConfigFile = DefaultConfigFile
	}
	written, err := conf.WriteDefaultConfig(ctx.ConfigFile)
	if err != nil {
		return err
	}
	if written {
		fmt.Printf("wrote default configuration to %s\n", ctx.ConfigFile)
	}
	return nil
}
