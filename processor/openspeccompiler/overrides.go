package openspeccompiler

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// overrideDocument is the shape of a task_configs/overrides/<change>.yaml
// file: a change-wide teammate roster override plus per-task field patches
// keyed by task id.
type overrideDocument struct {
	Teammates []string                 `yaml:"teammates"`
	Tasks     map[string]map[string]any `yaml:"tasks"`
}

// applyOverrides reads the YAML override file at path, if it exists, and
// patches draft in place. A missing file is not an error; the compiler
// works fine with no overrides.
func applyOverrides(draft *draftPayload, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var doc overrideDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return newCompileError("invalid override yaml at %s: %v", path, err)
	}

	if len(doc.Teammates) > 0 {
		draft.Teammates = doc.Teammates
	}

	for taskID, fields := range doc.Tasks {
		if err := applyTaskOverride(draft, taskID, fields, path); err != nil {
			return err
		}
	}
	return nil
}

func applyTaskOverride(draft *draftPayload, taskID string, fields map[string]any, path string) error {
	t := resolveTaskForOverride(draft, taskID)
	if t == nil {
		return newCompileError("override at %s references unknown task %s", path, taskID)
	}
	for key := range fields {
		if _, ok := allowedTaskOverrideKeys[key]; !ok {
			return newCompileError("override at %s: task %s has unsupported override key %s", path, taskID, key)
		}
	}

	if v, ok := fields["title"]; ok {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return newCompileError("override at %s: task %s title must be a non-empty string", path, taskID)
		}
		t.Title = s
	}
	if v, ok := fields["description"]; ok {
		s, ok := v.(string)
		if !ok {
			return newCompileError("override at %s: task %s description must be a string", path, taskID)
		}
		t.Description = s
	}
	if v, ok := fields["target_paths"]; ok {
		paths, err := normalizeOverrideStringList(v, "target_paths", taskID, path)
		if err != nil {
			return err
		}
		t.TargetPaths = paths
	}
	if v, ok := fields["depends_on"]; ok {
		deps, err := normalizeDependsOverride(v, taskID, path)
		if err != nil {
			return err
		}
		t.DependsOn = deps
	}
	if v, ok := fields["requires_plan"]; ok {
		b, ok := v.(bool)
		if !ok {
			return newCompileError("override at %s: task %s requires_plan must be a boolean", path, taskID)
		}
		t.RequiresPlan = b
	}
	return nil
}

func resolveTaskForOverride(draft *draftPayload, taskID string) *ParsedTask {
	for _, t := range draft.Tasks {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

func normalizeOverrideStringList(v any, field, taskID, path string) ([]string, error) {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, newCompileError("override at %s: task %s %s entries must be strings", path, taskID, field)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return parsePathValue(val), nil
	default:
		return nil, newCompileError("override at %s: task %s %s must be a list or string", path, taskID, field)
	}
}

func normalizeDependsOverride(v any, taskID, path string) ([]string, error) {
	if s, ok := v.(string); ok {
		if isNoneToken(strings.TrimSpace(s)) {
			return nil, nil
		}
	}
	return normalizeOverrideStringList(v, "depends_on", taskID, path)
}
