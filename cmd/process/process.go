package process

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nilomr/majorvocal/internal/analysis"
	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
)

// Command creates a new cobra.Command for the processing stage.
func Command(ctx *conf.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Build per-nest tables from raw detections",
		Long: "Read the raw detections written by infer, normalize them and write " +
			"daily counts, peak days, sampling and song activity tables.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd, ctx)
		},
	}

	if err := setupFlags(cmd, ctx); err != nil {
		panic(err)
	}

	return cmd
}

// Run executes the processing stage with the outputs enabled in the settings.
func Run(cmd *cobra.Command, ctx *conf.Context) (err error) {
	session, err := analysis.OpenSession(cmd.Context(), ctx.Settings)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, session.Close())
	}()

	summary, err := session.Pipeline(os.Stderr).Process(cmd.Context())
	if err != nil {
		return err
	}
	logger.Global().Module("process").Info("processing finished",
		logger.String("run_id", summary.RunID),
		logger.Int("records", summary.Records),
		logger.Int("positive", summary.Positive),
		logger.Int("days", summary.Days),
		logger.Int("nests", summary.Nests))
	return nil
}

// setupFlags defines flags specific to the process command.
func setupFlags(cmd *cobra.Command, ctx *conf.Context) error {
	v := ctx.Viper
	flags := cmd.Flags()
	flags.Bool("sqlite", v.GetBool("output.sqlite.enabled"), "Also write results to the SQLite database")

	return conf.BindFlags(v, flags, map[string]string{
		"sqlite": "output.sqlite.enabled",
	})
}
