package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nilomr/majorvocal/cmd"
	"github.com/nilomr/majorvocal/internal/buildinfo"
	"github.com/nilomr/majorvocal/internal/conf"
)

// buildDate and version are set at build time with -ldflags "-X main.version=..."
var (
	buildDate string
	version   string
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, err := conf.NewContext(buildinfo.NewContext(version, buildDate))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing configuration: %v\n", err)
		return 1
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer cmd.Shutdown()

	rootCmd := cmd.RootCommand(ctx)
	if err := rootCmd.ExecuteContext(sigCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
