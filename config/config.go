// Package config provides configuration loading and management for the
// task orchestrator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete orchestrator configuration.
type Config struct {
	Model        ModelConfig        `yaml:"model"`
	Repo         RepoConfig         `yaml:"repo"`
	NATS         NATSConfig         `yaml:"nats"`
	Tools        ToolsConfig        `yaml:"tools"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

// OrchestratorConfig configures the round-loop scheduler, its providers,
// and the openspec compiler it runs against.
type OrchestratorConfig struct {
	// StateDir is where state.json and its lockfile live.
	StateDir string `yaml:"state_dir"`
	// OpenspecRoot is the root containing changes/<id>/tasks.md documents.
	OpenspecRoot string `yaml:"openspec_root"`
	// OverridesRoot is where per-change YAML overrides are looked up.
	OverridesRoot string `yaml:"overrides_root"`
	// TaskConfigRoot is where compiled configs are written by default.
	TaskConfigRoot string `yaml:"task_config_root"`

	MaxRounds               int           `yaml:"max_rounds"`
	MaxIdleRounds           int           `yaml:"max_idle_rounds"`
	MaxIdleSeconds          float64       `yaml:"max_idle_seconds"`
	NoProgressEventInterval int           `yaml:"no_progress_event_interval"`
	TaskProgressLogLimit    int           `yaml:"task_progress_log_limit"`
	TickInterval            time.Duration `yaml:"tick_interval"`

	// HumanApproval, when true, routes every needs_approval task to a
	// human instead of the decision provider.
	HumanApproval bool `yaml:"human_approval"`
	// AutoApproveFallback approves the oldest submitted plan each round
	// when the provider made no plan decision of its own.
	AutoApproveFallback bool `yaml:"auto_approve_fallback"`

	// Provider selects the decision backend: "mock" or "llm".
	Provider string `yaml:"provider"`

	// Adapter selects the teammate execution backend: "template" or
	// "subprocess".
	Adapter string `yaml:"adapter"`
	// AdapterCommand is the executable (and args) the subprocess adapter
	// invokes per task, when Adapter is "subprocess".
	AdapterCommand []string `yaml:"adapter_command"`
	// AdapterTimeout bounds how long a subprocess adapter call may run.
	AdapterTimeout time.Duration `yaml:"adapter_timeout"`

	// Teammates lists the non-persona execution subjects that claim and
	// run tasks when no persona execution config is enabled.
	Teammates []string `yaml:"teammates"`

	// EventBus selects the event transport: "nats" or "noop".
	EventBus EventBusConfig `yaml:"event_bus"`
}

// EventBusConfig configures where round and task lifecycle events are
// published.
type EventBusConfig struct {
	Driver  string `yaml:"driver"`
	Subject string `yaml:"subject"`
}

// ModelConfig configures the LLM model settings
type ModelConfig struct {
	// Default is the default model to use (e.g., "qwen2.5-coder:32b")
	Default string `yaml:"default"`
	// Endpoint is the Ollama API endpoint (default: http://localhost:11434/v1)
	Endpoint string `yaml:"endpoint"`
	// Temperature controls randomness (0.0-1.0, default: 0.2)
	Temperature float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
}

// RepoConfig configures the repository settings
type RepoConfig struct {
	// Path is the repository root path (auto-detected from git if empty)
	Path string `yaml:"path"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
}

// ToolsConfig configures tool executor settings
type ToolsConfig struct {
	// Allowlist is the list of allowed tool names (empty = allow all)
	Allowlist []string `yaml:"allowlist"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Default:     "qwen2.5-coder:32b",
			Endpoint:    "http://localhost:11434/v1",
			Temperature: 0.2,
			Timeout:     5 * time.Minute,
		},
		Repo: RepoConfig{
			Path: "", // Auto-detect
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		Tools: ToolsConfig{
			Allowlist: nil, // Allow all
		},
		Orchestrator: OrchestratorConfig{
			StateDir:                ".taskorchestrator/state",
			OpenspecRoot:            "openspec",
			OverridesRoot:           filepath.Join("task_configs", "overrides"),
			TaskConfigRoot:          "task_configs",
			MaxRounds:               200,
			MaxIdleRounds:           5,
			MaxIdleSeconds:          0,
			NoProgressEventInterval: 3,
			TaskProgressLogLimit:    500,
			TickInterval:            0,
			HumanApproval:           false,
			AutoApproveFallback:     false,
			Provider:                "mock",
			Adapter:                 "template",
			Teammates:               []string{"teammate-a", "teammate-b"},
			EventBus: EventBusConfig{
				Driver:  "noop",
				Subject: "orchestrator.events",
			},
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Model.Default == "" {
		return fmt.Errorf("model.default is required")
	}
	if c.Model.Endpoint == "" {
		return fmt.Errorf("model.endpoint is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Orchestrator.StateDir == "" {
		return fmt.Errorf("orchestrator.state_dir is required")
	}
	switch c.Orchestrator.Provider {
	case "mock", "llm":
	default:
		return fmt.Errorf("orchestrator.provider must be mock or llm, got %q", c.Orchestrator.Provider)
	}
	switch c.Orchestrator.Adapter {
	case "template", "subprocess":
	default:
		return fmt.Errorf("orchestrator.adapter must be template or subprocess, got %q", c.Orchestrator.Adapter)
	}
	if c.Orchestrator.Adapter == "subprocess" && len(c.Orchestrator.AdapterCommand) == 0 {
		return fmt.Errorf("orchestrator.adapter_command is required when adapter is subprocess")
	}
	switch c.Orchestrator.EventBus.Driver {
	case "nats", "noop":
	default:
		return fmt.Errorf("orchestrator.event_bus.driver must be nats or noop, got %q", c.Orchestrator.EventBus.Driver)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Model
	if other.Model.Default != "" {
		c.Model.Default = other.Model.Default
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	// Repo
	if other.Repo.Path != "" {
		c.Repo.Path = other.Repo.Path
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}

	// Tools
	if len(other.Tools.Allowlist) > 0 {
		c.Tools.Allowlist = other.Tools.Allowlist
	}

	// Orchestrator
	if other.Orchestrator.StateDir != "" {
		c.Orchestrator.StateDir = other.Orchestrator.StateDir
	}
	if other.Orchestrator.OpenspecRoot != "" {
		c.Orchestrator.OpenspecRoot = other.Orchestrator.OpenspecRoot
	}
	if other.Orchestrator.OverridesRoot != "" {
		c.Orchestrator.OverridesRoot = other.Orchestrator.OverridesRoot
	}
	if other.Orchestrator.TaskConfigRoot != "" {
		c.Orchestrator.TaskConfigRoot = other.Orchestrator.TaskConfigRoot
	}
	if other.Orchestrator.MaxRounds != 0 {
		c.Orchestrator.MaxRounds = other.Orchestrator.MaxRounds
	}
	if other.Orchestrator.MaxIdleRounds != 0 {
		c.Orchestrator.MaxIdleRounds = other.Orchestrator.MaxIdleRounds
	}
	if other.Orchestrator.MaxIdleSeconds != 0 {
		c.Orchestrator.MaxIdleSeconds = other.Orchestrator.MaxIdleSeconds
	}
	if other.Orchestrator.NoProgressEventInterval != 0 {
		c.Orchestrator.NoProgressEventInterval = other.Orchestrator.NoProgressEventInterval
	}
	if other.Orchestrator.TaskProgressLogLimit != 0 {
		c.Orchestrator.TaskProgressLogLimit = other.Orchestrator.TaskProgressLogLimit
	}
	if other.Orchestrator.TickInterval != 0 {
		c.Orchestrator.TickInterval = other.Orchestrator.TickInterval
	}
	if other.Orchestrator.HumanApproval {
		c.Orchestrator.HumanApproval = true
	}
	if other.Orchestrator.AutoApproveFallback {
		c.Orchestrator.AutoApproveFallback = true
	}
	if other.Orchestrator.Provider != "" {
		c.Orchestrator.Provider = other.Orchestrator.Provider
	}
	if other.Orchestrator.Adapter != "" {
		c.Orchestrator.Adapter = other.Orchestrator.Adapter
	}
	if len(other.Orchestrator.AdapterCommand) > 0 {
		c.Orchestrator.AdapterCommand = other.Orchestrator.AdapterCommand
	}
	if other.Orchestrator.AdapterTimeout != 0 {
		c.Orchestrator.AdapterTimeout = other.Orchestrator.AdapterTimeout
	}
	if len(other.Orchestrator.Teammates) > 0 {
		c.Orchestrator.Teammates = other.Orchestrator.Teammates
	}
	if other.Orchestrator.EventBus.Driver != "" {
		c.Orchestrator.EventBus.Driver = other.Orchestrator.EventBus.Driver
	}
	if other.Orchestrator.EventBus.Subject != "" {
		c.Orchestrator.EventBus.Subject = other.Orchestrator.EventBus.Subject
	}
}
