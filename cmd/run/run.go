package run

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nilomr/majorvocal/internal/analysis"
	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
)

// Command creates a new cobra.Command that runs both stages.
func Command(ctx *conf.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run inference and processing in one go",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			session, err := analysis.OpenSession(cmd.Context(), ctx.Settings)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, session.Close())
			}()

			p := session.Pipeline(os.Stderr)
			inferred, err := p.Infer(cmd.Context())
			if err != nil {
				return err
			}
			processed, err := p.Process(cmd.Context())
			if err != nil {
				return err
			}
			logger.Global().Module("run").Info("pipeline finished",
				logger.Int("files", inferred.Files),
				logger.Int("failures", inferred.Failures),
				logger.Int("records", processed.Records),
				logger.Int("days", processed.Days),
				logger.Int("nests", processed.Nests))
			return nil
		},
	}
	return cmd
}
