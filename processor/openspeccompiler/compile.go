package openspeccompiler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/c360studio/taskorchestrator/processor/personapolicy"
	"github.com/c360studio/taskorchestrator/task"
)

// CompiledTask is one task's normalized, override-applied shape, ready for
// statestore.BootstrapTasks after conversion via ToTask.
type CompiledTask struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	TargetPaths   []string            `json:"target_paths"`
	DependsOn     []string            `json:"depends_on"`
	RequiresPlan  bool                `json:"requires_plan"`
	PersonaPolicy *task.PersonaPolicy `json:"persona_policy,omitempty"`
}

// ToTask converts a CompiledTask into a bootstrap-ready task.Task.
func (c CompiledTask) ToTask(now float64) *task.Task {
	t := task.New(c.ID, c.Title, now)
	t.Description = c.Description
	t.TargetPaths = append([]string(nil), c.TargetPaths...)
	t.DependsOn = append([]string(nil), c.DependsOn...)
	t.ApplyRequiresPlan(c.RequiresPlan)
	t.PersonaPolicy = c.PersonaPolicy
	return t
}

// CompiledConfig is the full compiled output of one openspec change: the
// teammate roster, every parsed task, the resolved persona catalog and
// phase defaults, and compiler provenance metadata.
type CompiledConfig struct {
	Teammates       []string                   `json:"teammates"`
	Tasks           []CompiledTask             `json:"tasks"`
	Personas        []task.PersonaDefinition   `json:"personas,omitempty"`
	PersonaDefaults *personapolicy.GlobalConfig `json:"persona_defaults,omitempty"`
	Meta            map[string]any             `json:"meta,omitempty"`
}

// DefaultCompiledOutputPath mirrors the reference compiler's default
// location for a change's compiled config.
func DefaultCompiledOutputPath(changeID, taskConfigRoot string) string {
	if taskConfigRoot == "" {
		taskConfigRoot = "task_configs"
	}
	return filepath.Join(taskConfigRoot, changeID+".json")
}

// WriteCompiledConfig writes cfg as indented, deterministically key-ordered
// JSON to outputPath, creating parent directories as needed.
func WriteCompiledConfig(cfg *CompiledConfig, outputPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", err
	}
	return outputPath, nil
}

// CompileOptions configures CompileChange.
type CompileOptions struct {
	OpenspecRoot  string
	OverridesRoot string
	Teammates     []string
}

// CompileChange reads openspec/changes/<changeID>/tasks.md, applies any
// matching YAML override file, validates the result, and returns the
// compiled config.
func CompileChange(changeID string, opts CompileOptions) (*CompiledConfig, error) {
	openspecRoot := opts.OpenspecRoot
	if openspecRoot == "" {
		openspecRoot = "openspec"
	}
	overridesRoot := opts.OverridesRoot
	if overridesRoot == "" {
		overridesRoot = filepath.Join("task_configs", "overrides")
	}

	changeDir := filepath.Join(openspecRoot, "changes", changeID)
	info, err := os.Stat(changeDir)
	if err != nil || !info.IsDir() {
		return nil, newCompileError("change not found: %s", changeDir)
	}
	tasksPath := filepath.Join(changeDir, "tasks.md")
	if _, err := os.Stat(tasksPath); err != nil {
		return nil, newCompileError("tasks.md not found: %s", tasksPath)
	}

	parsedTasks, verificationItems, directives, err := ParseTasksMarkdown(tasksPath)
	if err != nil {
		return nil, err
	}

	teammates := opts.Teammates
	if len(teammates) == 0 {
		teammates = []string{"teammate-a", "teammate-b"}
	}

	draft := &draftPayload{
		Teammates:         teammates,
		Tasks:             parsedTasks,
		VerificationItems: verificationItems,
	}
	applyPersonaDirectives(draft, directives)

	overridePath := filepath.Join(overridesRoot, changeID+".yaml")
	if err := applyOverrides(draft, overridePath); err != nil {
		return nil, err
	}

	return validateCompiledPayload(draft, changeID)
}

type draftPayload struct {
	Teammates             []string
	Tasks                 []*ParsedTask
	VerificationItems     []VerificationItem
	Personas              []any
	PersonaDefaults       map[string]any
	GlobalDisablePersonas []string
	AutoTargetPathTasks   []string
}

func applyPersonaDirectives(draft *draftPayload, directives PersonaDirectives) {
	if directives.Personas != nil {
		draft.Personas = directives.Personas
	}
	if directives.PersonaDefaults != nil {
		draft.PersonaDefaults = directives.PersonaDefaults
	}
	if len(directives.GlobalDisablePersonas) == 0 {
		return
	}
	draft.GlobalDisablePersonas = directives.GlobalDisablePersonas
	for _, t := range draft.Tasks {
		existing := t.PersonaPolicy
		if existing == nil {
			existing = map[string]any{}
		}
		t.PersonaPolicy = mergePersonaPolicy(existing, map[string]any{
			"disable_personas": anySlice(directives.GlobalDisablePersonas),
		})
	}
}

func sortedCompiledTasks(tasks []CompiledTask) []CompiledTask {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}
