package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/taskorchestrator/config"
	"github.com/c360studio/taskorchestrator/llm"
	"github.com/c360studio/taskorchestrator/model"
	"github.com/c360studio/taskorchestrator/processor/decision"
	"github.com/c360studio/taskorchestrator/processor/eventbus"
	"github.com/c360studio/taskorchestrator/processor/openspeccompiler"
	"github.com/c360studio/taskorchestrator/processor/personacatalog"
	"github.com/c360studio/taskorchestrator/processor/personapolicy"
	"github.com/c360studio/taskorchestrator/processor/scheduler"
	"github.com/c360studio/taskorchestrator/processor/statestore"
	"github.com/c360studio/taskorchestrator/processor/teammate"
	"github.com/c360studio/taskorchestrator/task"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		changeID      string
		bootstrap     bool
		humanApproval bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the round-loop scheduler against a compiled change",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(cmd.Context(), *configPath, changeID, bootstrap, humanApproval)
		},
	}
	cmd.Flags().StringVar(&changeID, "change", "", "openspec change id to compile and bootstrap before running")
	cmd.Flags().BoolVar(&bootstrap, "bootstrap", false, "replace the store's tasks with the compiled change before running")
	cmd.Flags().BoolVar(&humanApproval, "human-approval", false, "force human-approval mode regardless of config")
	return cmd
}

func loadConfig(configPath string) (*config.Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	loader := config.NewLoader(logger)
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return loader.Load()
}

func runScheduler(ctx context.Context, configPath, changeID string, bootstrap, forceHumanApproval bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store, err := statestore.New(cfg.Orchestrator.StateDir)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	personas := personacatalog.Default()
	var personaDefaults personapolicy.GlobalConfig

	if changeID != "" {
		compiled, err := openspeccompiler.CompileChange(changeID, openspeccompiler.CompileOptions{
			OpenspecRoot:  cfg.Orchestrator.OpenspecRoot,
			OverridesRoot: cfg.Orchestrator.OverridesRoot,
			Teammates:     cfg.Orchestrator.Teammates,
		})
		if err != nil {
			return fmt.Errorf("compile change %s: %w", changeID, err)
		}
		if len(compiled.Personas) > 0 {
			personas = compiled.Personas
		}
		if compiled.PersonaDefaults != nil {
			personaDefaults = *compiled.PersonaDefaults
		}
		if bootstrap {
			now := task.Now()
			tasks := make([]*task.Task, 0, len(compiled.Tasks))
			for _, ct := range compiled.Tasks {
				tasks = append(tasks, ct.ToTask(now))
			}
			if err := store.BootstrapTasks(tasks, true); err != nil {
				return fmt.Errorf("bootstrap tasks: %w", err)
			}
			logger.Info("bootstrapped tasks from compiled change", "change_id", changeID, "task_count", len(tasks))
		}
		cfg.Orchestrator.Teammates = compiled.Teammates
	}

	schedCfg := scheduler.DefaultConfig()
	schedCfg.TeammateIDs = cfg.Orchestrator.Teammates
	schedCfg.Personas = personas
	schedCfg.PersonaDefaults = personaDefaults
	schedCfg.MaxRounds = cfg.Orchestrator.MaxRounds
	schedCfg.MaxIdleRounds = cfg.Orchestrator.MaxIdleRounds
	schedCfg.MaxIdleSeconds = int(cfg.Orchestrator.MaxIdleSeconds)
	schedCfg.NoProgressEventInterval = cfg.Orchestrator.NoProgressEventInterval
	schedCfg.TaskProgressLogLimit = cfg.Orchestrator.TaskProgressLogLimit
	schedCfg.TickInterval = cfg.Orchestrator.TickInterval
	humanApproval := cfg.Orchestrator.HumanApproval || forceHumanApproval
	schedCfg.HumanApproval = &humanApproval
	autoApprove := cfg.Orchestrator.AutoApproveFallback
	schedCfg.AutoApproveFallback = &autoApprove

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("build decision provider: %w", err)
	}

	adapter, err := buildAdapter(cfg, logger)
	if err != nil {
		return fmt.Errorf("build teammate adapter: %w", err)
	}

	metrics := scheduler.NewMetrics(nil)
	sched := scheduler.New(store, schedCfg, provider, adapter, logger, metrics)

	bus, err := buildEventBus(cfg, logger)
	if err != nil {
		return fmt.Errorf("build event bus: %w", err)
	}
	sched.SetEventBus(bus)
	defer bus.Close()

	result, err := sched.Run(ctx)
	if err != nil {
		return fmt.Errorf("run scheduler: %w", err)
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

func buildProvider(cfg *config.Config) (decision.Provider, error) {
	switch cfg.Orchestrator.Provider {
	case "llm":
		registry := model.Global()
		applyModelConfig(registry, cfg.Model)
		var opts []llm.ClientOption
		if cfg.Model.Timeout > 0 {
			opts = append(opts, llm.WithHTTPClient(&http.Client{Timeout: cfg.Model.Timeout}))
		}
		client := llm.NewClient(registry, opts...)
		return decision.NewLLMProvider(client, "planning", 16000), nil
	case "mock", "":
		return decision.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Orchestrator.Provider)
	}
}

// applyModelConfig overrides the default registry's local-model endpoint
// and default model name with the orchestrator config's `model` block, when
// set — the config-driven escape hatch for pointing at a different Ollama
// host or preferred default without editing the registry's built-ins.
func applyModelConfig(registry *model.Registry, cfg config.ModelConfig) {
	if cfg.Endpoint != "" {
		registry.SetEndpoint("qwen", &model.EndpointConfig{
			Provider: "ollama",
			URL:      cfg.Endpoint,
			Model:    "qwen2.5-coder:14b",
		})
	}
	if cfg.Default != "" {
		registry.SetDefault(cfg.Default)
	}
}

func buildAdapter(cfg *config.Config, logger *slog.Logger) (teammate.Adapter, error) {
	switch cfg.Orchestrator.Adapter {
	case "subprocess":
		if len(cfg.Orchestrator.AdapterCommand) == 0 {
			return nil, fmt.Errorf("orchestrator.adapter_command is required for subprocess adapter")
		}
		adapter := teammate.NewSubprocessAdapter(cfg.Orchestrator.AdapterCommand, cfg.Orchestrator.AdapterCommand, logger)
		if cfg.Orchestrator.AdapterTimeout > 0 {
			adapter.Timeout = cfg.Orchestrator.AdapterTimeout
		}
		return adapter, nil
	case "template", "":
		return teammate.NewTemplateAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q", cfg.Orchestrator.Adapter)
	}
}

func buildEventBus(cfg *config.Config, logger *slog.Logger) (eventbus.Publisher, error) {
	switch cfg.Orchestrator.EventBus.Driver {
	case "nats":
		return eventbus.NewNATSBus(cfg.NATS.URL, cfg.Orchestrator.EventBus.Subject, logger)
	case "noop", "":
		return eventbus.NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown event bus driver %q", cfg.Orchestrator.EventBus.Driver)
	}
}
