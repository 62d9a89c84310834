package openspeccompiler

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchAndCompile recompiles changeID's tasks.md every time it (or its
// override file) changes on disk, invoking onCompile with each result until
// ctx is canceled. Debounces bursts of editor save events with a short
// settle window so a single save doesn't trigger repeat compiles.
func WatchAndCompile(ctx context.Context, changeID string, opts CompileOptions, logger *slog.Logger, onCompile func(*CompiledConfig, error)) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	openspecRoot := opts.OpenspecRoot
	if openspecRoot == "" {
		openspecRoot = "openspec"
	}
	overridesRoot := opts.OverridesRoot
	if overridesRoot == "" {
		overridesRoot = filepath.Join("task_configs", "overrides")
	}

	changeDir := filepath.Join(openspecRoot, "changes", changeID)
	if err := watcher.Add(changeDir); err != nil {
		return err
	}
	if err := watcher.Add(overridesRoot); err != nil {
		logger.Warn("openspeccompiler: overrides directory not watched", "path", overridesRoot, "error", err)
	}

	compile := func() {
		cfg, err := CompileChange(changeID, opts)
		onCompile(cfg, err)
	}
	compile()

	const settle = 200 * time.Millisecond
	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(settle, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			compile()
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("openspeccompiler: watch error", "error", watchErr)
		}
	}
}
