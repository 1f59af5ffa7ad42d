package infer

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nilomr/majorvocal/internal/analysis"
	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
)

// Command creates a new cobra.Command for the inference stage.
func Command(ctx *conf.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Classify dawn recordings of eligible nests",
		Long: "Scan the data directory for recordings of nests with vocalisations, " +
			"run the classifier on those inside the dawn window and write raw detections.",
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

// Run executes the inference stage with the outputs enabled in the settings.
func Run(cmd *cobra.Command, ctx *conf.Context) (err error) {
	session, err := analysis.OpenSession(cmd.Context(), ctx.Settings)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, session.Close())
	}()

	summary, err := session.Pipeline(os.Stderr).Infer(cmd.Context())
	if err != nil {
		return err
	}
	logger.Global().Module("infer").Info("inference finished",
		logger.String("run_id", summary.RunID),
		logger.Int("files", summary.Files),
		logger.Int("classified", summary.Classified),
		logger.Int("cached", summary.Cached),
		logger.Int("failures", summary.Failures))
	return nil
}

// setupFlags defines flags specific to the infer command.
func setupFlags(cmd *cobra.Command, ctx *conf.Context) error {
	v := ctx.Viper
	flags := cmd.Flags()
	flags.Int("limit", v.GetInt("analysis.limit"), "Process at most this many recordings, 0 for all")
	flags.Bool("resume", v.GetBool("analysis.resume"), "Reuse per-file results from earlier runs")
	flags.Float64("ratelimit", v.GetFloat64("analysis.ratelimit"), "Maximum classifier starts per second, 0 for no limit")
	flags.String("window", v.GetString("analysis.window.mode"), "Dawn window mode: fixed or sunrise")

	return conf.BindFlags(v, flags, map[string]string{
		"limit":     "analysis.limit",
		"resume":    "analysis.resume",
		"ratelimit": "analysis.ratelimit",
		"window":    "analysis.window.mode",
	})
}
