package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nilomr/majorvocal/cmd/export"
	"github.com/nilomr/majorvocal/cmd/infer"
	"github.com/nilomr/majorvocal/cmd/initcmd"
	"github.com/nilomr/majorvocal/cmd/process"
	"github.com/nilomr/majorvocal/cmd/run"
	"github.com/nilomr/majorvocal/cmd/version"
	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
)

// telemetryFlushTimeout bounds the wait for queued Sentry events on exit.
const telemetryFlushTimeout = 2 * time.Second

// centralLogger is the logger installed by initialize, closed by Shutdown.
var centralLogger *logger.CentralLogger

// RootCommand creates and returns the root command
func RootCommand(ctx *conf.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "majorvocal",
		Short:         "Great tit dawn song detection pipeline",
		Long:          "Classify dawn nest box recordings and derive per-nest daily song counts aligned on egg-laying dates.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, ctx); err != nil {
		panic(err)
	}

	// Add sub-commands to the root command.
	inferCmd := infer.Command(ctx)
	processCmd := process.Command(ctx)
	runCmd := run.Command(ctx)
	initCmd := initcmd.Command(ctx)
	exportCmd := export.Command(ctx)
	versionCmd := version.Command(ctx)

	rootCmd.AddCommand(inferCmd, processCmd, runCmd, initCmd, exportCmd, versionCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case versionCmd.Name():
			return nil
		case initCmd.Name():
			// init creates the config file it then loads
			if err := initcmd.WriteConfig(ctx); err != nil {
				return err
			}
		}
		return initialize(ctx)
	}

	return rootCmd
}

// initialize loads the settings and sets up logging and telemetry. It runs
// before every command except version.
func initialize(ctx *conf.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	settings := ctx.Settings

	if settings.Debug && settings.Logging.Console != nil {
		settings.Logging.Console.Level = "debug"
	}
	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logger.SetGlobal(cl)
	centralLogger = cl

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, ctx.BuildInfo.Release()); err != nil {
			return err
		}
	}

	log := cl.Module("main")
	log.Debug("configuration loaded",
		logger.String("version", ctx.BuildInfo.Version()),
		logger.String("config_file", ctx.Viper.ConfigFileUsed()),
		logger.String("project", settings.Paths.Project),
		logger.String("log_file", cl.FilePath()))
	return nil
}

// Shutdown flushes telemetry and closes the log file. It is safe to call
// when initialize never ran.
func Shutdown() {
	errors.FlushTelemetry(telemetryFlushTimeout)
	if centralLogger != nil {
		_ = centralLogger.Close()
		centralLogger = nil
	}
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, ctx *conf.Context) error {
	v := ctx.Viper
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.ConfigFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/majorvocal, /etc/majorvocal)")
	flags.BoolP("debug", "d", v.GetBool("debug"), "Enable debug output")
	flags.String("project", v.GetString("paths.project"), "Project root; relative paths resolve against it")
	flags.String("species", v.GetString("species.target"), "Scientific name of the target species")
	flags.IntP("threads", "t", v.GetInt("analysis.threads"), "Number of classifier workers")

	return conf.BindFlags(v, flags, map[string]string{
		"debug":   "debug",
		"project": "paths.project",
		"species": "species.target",
		"threads": "analysis.threads",
	})
}
