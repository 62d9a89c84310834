package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/taskorchestrator/processor/openspeccompiler"
)

func newCompileCmd(configPath *string) *cobra.Command {
	var (
		outputPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "compile-openspec <change-id>",
		Short: "Compile an openspec change's tasks.md into a task config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, *configPath, args[0], outputPath, watch)
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "path to write the compiled config (default: task_configs/<change-id>.json)")
	cmd.Flags().BoolVar(&watch, "watch", false, "recompile whenever the change's tasks.md or override file changes")
	return cmd
}

func runCompile(cmd *cobra.Command, configPath, changeID, outputPath string, watch bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := openspeccompiler.CompileOptions{
		OpenspecRoot:  cfg.Orchestrator.OpenspecRoot,
		OverridesRoot: cfg.Orchestrator.OverridesRoot,
		Teammates:     cfg.Orchestrator.Teammates,
	}
	if outputPath == "" {
		outputPath = openspeccompiler.DefaultCompiledOutputPath(changeID, cfg.Orchestrator.TaskConfigRoot)
	}

	if !watch {
		compiled, err := openspeccompiler.CompileChange(changeID, opts)
		if err != nil {
			return fmt.Errorf("compile change %s: %w", changeID, err)
		}
		path, err := openspeccompiler.WriteCompiledConfig(compiled, outputPath)
		if err != nil {
			return fmt.Errorf("write compiled config: %w", err)
		}
		fmt.Printf("compiled %s -> %s (%d tasks)\n", changeID, path, len(compiled.Tasks))
		return nil
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return openspeccompiler.WatchAndCompile(cmd.Context(), changeID, opts, logger, func(compiled *openspeccompiler.CompiledConfig, err error) {
		if err != nil {
			logger.Error("compile failed", "change_id", changeID, "error", err)
			return
		}
		path, writeErr := openspeccompiler.WriteCompiledConfig(compiled, outputPath)
		if writeErr != nil {
			logger.Error("write compiled config failed", "change_id", changeID, "error", writeErr)
			return
		}
		logger.Info("recompiled", "change_id", changeID, "path", path, "task_count", len(compiled.Tasks))
	})
}
