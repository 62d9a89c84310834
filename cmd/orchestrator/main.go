// Package main implements the task orchestrator CLI: compiling openspec
// changes into runnable task configs and driving the round-loop scheduler
// against them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build information (set via ldflags).
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "orchestrator",
		Short:   "Multi-agent task orchestrator",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	rootCmd.AddCommand(newRunCmd(&configPath))
	rootCmd.AddCommand(newCompileCmd(&configPath))
	rootCmd.AddCommand(newTemplateCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}
