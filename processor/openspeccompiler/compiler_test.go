package openspeccompiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360studio/taskorchestrator/processor/personacatalog"
)

func writeChange(t *testing.T, root, changeID, tasksMD string) {
	t.Helper()
	dir := filepath.Join(root, "changes", changeID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.md"), []byte(tasksMD), 0o644))
}

const sampleTasksMD = `## 0. Persona Defaults
- persona_defaults: {"phase_order":["implement","review"]}
- personas: [{"id":"implementer","role":"implementer","focus":"build","can_block":false,"enabled":true},{"id":"code-reviewer","role":"reviewer","focus":"review","can_block":true,"enabled":true}]

## 1. Implementation
- [ ] 1.1 Add widget endpoint
  - Depends on: none
  - Target paths: src/widget.go
  - phase assignments: implement=implementer; review=code-reviewer
  - Description: wire up the widget endpoint
- [ ] 1.2 Add widget tests (requires_plan=true)
  - Depends on: 1.1
  - Target paths: src/widget_test.go
  - Description: cover the endpoint with tests

## 2. Verification Checklist
- [ ] go test ./...
`

func TestCompileChangeParsesTasksAndPersonas(t *testing.T) {
	root := t.TempDir()
	openspecRoot := filepath.Join(root, "openspec")
	writeChange(t, openspecRoot, "add-widget", sampleTasksMD)

	cfg, err := CompileChange("add-widget", CompileOptions{
		OpenspecRoot:  openspecRoot,
		OverridesRoot: filepath.Join(root, "overrides"),
		Teammates:     []string{"teammate-a"},
	})
	require.NoError(t, err)
	require.Len(t, cfg.Tasks, 2)
	require.Equal(t, "1.1", cfg.Tasks[0].ID)
	require.Equal(t, "Add widget endpoint", cfg.Tasks[0].Title)
	require.Equal(t, []string{"src/widget.go"}, cfg.Tasks[0].TargetPaths)
	require.False(t, cfg.Tasks[0].RequiresPlan)

	require.Equal(t, "1.2", cfg.Tasks[1].ID)
	require.True(t, cfg.Tasks[1].RequiresPlan)
	require.Equal(t, []string{"1.1"}, cfg.Tasks[1].DependsOn)

	require.Len(t, cfg.Personas, 4)
	byID := personacatalog.ByID(cfg.Personas)
	require.Equal(t, "build", byID["implementer"].Focus)
	require.Equal(t, "review", byID["code-reviewer"].Focus)
	require.NotNil(t, cfg.PersonaDefaults)
	require.Equal(t, []string{"implement", "review"}, cfg.PersonaDefaults.PhaseOrder)
}

func TestCompileChangeDefaultsMissingTargetPaths(t *testing.T) {
	root := t.TempDir()
	openspecRoot := filepath.Join(root, "openspec")
	writeChange(t, openspecRoot, "no-target", `## 1. Implementation
- [ ] 1.1 Do a thing
  - Depends on: none
  - Description: no explicit target paths
`)

	cfg, err := CompileChange("no-target", CompileOptions{OpenspecRoot: openspecRoot})
	require.NoError(t, err)
	require.Equal(t, []string{"*"}, cfg.Tasks[0].TargetPaths)
	require.Equal(t, []string{"1.1"}, cfg.Meta["auto_target_path_tasks"])
}

func TestCompileChangeRejectsDependencyCycle(t *testing.T) {
	root := t.TempDir()
	openspecRoot := filepath.Join(root, "openspec")
	writeChange(t, openspecRoot, "cyclic", `## 1. Implementation
- [ ] 1.1 First
  - Depends on: 1.2
  - Target paths: a
- [ ] 1.2 Second
  - Depends on: 1.1
  - Target paths: b
`)

	_, err := CompileChange("cyclic", CompileOptions{OpenspecRoot: openspecRoot})
	require.Error(t, err)
	require.Contains(t, err.Error(), "dependency cycle")
}

func TestCompileChangeRejectsUnknownDependency(t *testing.T) {
	root := t.TempDir()
	openspecRoot := filepath.Join(root, "openspec")
	writeChange(t, openspecRoot, "missing-dep", `## 1. Implementation
- [ ] 1.1 First
  - Depends on: 9.9
  - Target paths: a
`)

	_, err := CompileChange("missing-dep", CompileOptions{OpenspecRoot: openspecRoot})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown task")
}

func TestCompileChangeAppliesYAMLOverrides(t *testing.T) {
	root := t.TempDir()
	openspecRoot := filepath.Join(root, "openspec")
	overridesRoot := filepath.Join(root, "overrides")
	writeChange(t, openspecRoot, "overridden", `## 1. Implementation
- [ ] 1.1 Original title
  - Depends on: none
  - Target paths: a
`)
	require.NoError(t, os.MkdirAll(overridesRoot, 0o755))
	overrideYAML := `teammates:
  - teammate-x
tasks:
  "1.1":
    title: "Overridden title"
    target_paths:
      - a
      - b
`
	require.NoError(t, os.WriteFile(filepath.Join(overridesRoot, "overridden.yaml"), []byte(overrideYAML), 0o644))

	cfg, err := CompileChange("overridden", CompileOptions{OpenspecRoot: openspecRoot, OverridesRoot: overridesRoot})
	require.NoError(t, err)
	require.Equal(t, []string{"teammate-x"}, cfg.Teammates)
	require.Equal(t, "Overridden title", cfg.Tasks[0].Title)
	require.Equal(t, []string{"a", "b"}, cfg.Tasks[0].TargetPaths)
}

func TestCompileChangeMissingChangeDir(t *testing.T) {
	root := t.TempDir()
	_, err := CompileChange("nope", CompileOptions{OpenspecRoot: filepath.Join(root, "openspec")})
	require.Error(t, err)
}

func TestGetOpenSpecTasksTemplateLanguages(t *testing.T) {
	ja, err := GetOpenSpecTasksTemplate("ja")
	require.NoError(t, err)
	require.Contains(t, ja, "persona_defaults")

	en, err := GetOpenSpecTasksTemplate("en")
	require.NoError(t, err)
	require.Contains(t, en, "phase assignments")

	_, err = GetOpenSpecTasksTemplate("fr")
	require.Error(t, err)
}
