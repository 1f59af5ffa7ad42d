package export

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/datastore"
	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
)

// Command creates a new cobra.Command that copies the SQLite results into
// the configured MySQL database.
func Command(ctx *conf.Context) *cobra.Command {
	var opts datastore.ExportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy results from the SQLite database to MySQL",
		Long: "Copy every run with its detections and daily counts from output.sqlite " +
			"to output.mysql. Rows already present in MySQL are skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd, ctx.Settings, opts)
		},
	}

	cmd.Flags().IntVar(&opts.BatchSize, "batch", 1000, "Rows per insert batch")
	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "Delete all rows in MySQL before copying")
	cmd.Flags().BoolVar(&opts.Verify, "verify", true, "Compare row counts after copying")

	return cmd
}

// Run opens both databases and exports from SQLite to MySQL.
func Run(cmd *cobra.Command, settings *conf.Settings, opts datastore.ExportOptions) (err error) {
	if _, err := os.Stat(settings.Output.SQLite.Path); err != nil {
		return errors.New(fmt.Errorf("no SQLite database to export: %w", err)).
			Component("export").
			Category(errors.CategoryNotFound).
			Context("path", settings.Output.SQLite.Path).
			Build()
	}

	source := datastore.NewSQLiteStore(settings)
	if err := source.Open(); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, source.Close())
	}()

	target := datastore.NewMySQLStore(settings)
	if err := target.Open(); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, target.Close())
	}()

	stats, err := datastore.Export(cmd.Context(), source.DB, target.DB, opts, logger.Global().Module("export"))
	if stats != nil {
		printStats(cmd.OutOrStdout(), stats)
	}
	return err
}

// printStats writes a per-table summary.
func printStats(w io.Writer, stats *datastore.ExportStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "Table\tCopied\tSkipped\tErrors\tDuration\t")
	for _, t := range stats.Tables {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t\n", t.Name, t.Copied, t.Skipped, t.Errors, t.Duration.Round(time.Millisecond))
	}
	copied, skipped, failed := stats.Totals()
	_, _ = fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%d\t\t\n", copied, skipped, failed)
	_ = tw.Flush()
}
