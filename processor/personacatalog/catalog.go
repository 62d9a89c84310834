// Package personacatalog owns the default persona catalog and the
// validated parsing of persona definitions supplied by a change document or
// override file: closed key sets, role enumeration, and default+project
// merge by id (same id replaces wholesale, new id appends).
package personacatalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/taskorchestrator/task"
)

var requiredKeys = []string{"id", "role", "focus", "can_block", "enabled"}

var allowedKeys = map[string]struct{}{
	"id": {}, "role": {}, "focus": {}, "can_block": {}, "enabled": {}, "execution": {},
}

var allowedRoles = map[task.PersonaRole]struct{}{
	task.PersonaRoleImplementer: {},
	task.PersonaRoleReviewer:    {},
	task.PersonaRoleSpecGuard:   {},
	task.PersonaRoleTestGuard:   {},
	task.PersonaRoleCustom:      {},
}

var allowedExecutionKeys = map[string]struct{}{
	"enabled": {}, "command_ref": {}, "sandbox": {}, "timeout_sec": {},
}

// Default returns the built-in persona set: an implementer, a reviewer, a
// spec guard, and a test guard, none execution-enabled and none able to
// block.
func Default() []task.PersonaDefinition {
	return []task.PersonaDefinition{
		{
			ID:      "implementer",
			Role:    task.PersonaRoleImplementer,
			Focus:   "drive task progress forward and confirm dependency and blast-radius consistency",
			Enabled: true,
		},
		{
			ID:      "code-reviewer",
			Role:    task.PersonaRoleReviewer,
			Focus:   "review diffs for quality, maintainability, and regression risk",
			Enabled: true,
		},
		{
			ID:      "spec-checker",
			Role:    task.PersonaRoleSpecGuard,
			Focus:   "check for spec deviation or dropped requirements",
			Enabled: true,
		},
		{
			ID:      "test-owner",
			Role:    task.PersonaRoleTestGuard,
			Focus:   "confirm necessary verification exists and is reproducible",
			Enabled: true,
		},
	}
}

// Load resolves a raw persona-list value (typically decoded JSON from a
// change document's `personas: <JSON array>` directive) into the effective
// persona set: nil raw means "defaults only"; otherwise the parsed project
// list is merged over Default() by id.
func Load(raw any, sourceLabel string) ([]task.PersonaDefinition, error) {
	if raw == nil {
		return Default(), nil
	}
	project, err := parseList(raw, sourceLabel)
	if err != nil {
		return nil, err
	}
	return merge(Default(), project), nil
}

func merge(defaults, project []task.PersonaDefinition) []task.PersonaDefinition {
	merged := append([]task.PersonaDefinition(nil), defaults...)
	indexByID := make(map[string]int, len(merged))
	for i, p := range merged {
		indexByID[p.ID] = i
	}
	for _, p := range project {
		if idx, ok := indexByID[p.ID]; ok {
			merged[idx] = p
			continue
		}
		indexByID[p.ID] = len(merged)
		merged = append(merged, p)
	}
	return merged
}

func parseList(raw any, sourceLabel string) ([]task.PersonaDefinition, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, task.NewPersonaPolicyError("personas must be a list (%s)", sourceLabel)
	}

	personas := make([]task.PersonaDefinition, 0, len(items))
	seen := make(map[string]bool, len(items))
	duplicates := make(map[string]bool)

	for i, item := range items {
		p, err := parseOne(item, i, sourceLabel)
		if err != nil {
			return nil, err
		}
		if seen[p.ID] {
			duplicates[p.ID] = true
		}
		seen[p.ID] = true
		personas = append(personas, p)
	}

	if len(duplicates) > 0 {
		ids := make([]string, 0, len(duplicates))
		for id := range duplicates {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return nil, task.NewPersonaPolicyError("duplicate persona id(s): %s (%s)", joinStrings(ids), sourceLabel)
	}
	return personas, nil
}

func parseOne(raw any, index int, sourceLabel string) (task.PersonaDefinition, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return task.PersonaDefinition{}, task.NewPersonaPolicyError("personas[%d] must be an object (%s)", index, sourceLabel)
	}

	if unknown := unknownKeys(obj, allowedKeys); len(unknown) > 0 {
		return task.PersonaDefinition{}, task.NewPersonaPolicyError("personas[%d] has unknown keys: %s (%s)", index, joinStrings(unknown), sourceLabel)
	}
	if missing := missingKeys(obj, requiredKeys); len(missing) > 0 {
		return task.PersonaDefinition{}, task.NewPersonaPolicyError("personas[%d] missing required keys: %s (%s)", index, joinStrings(missing), sourceLabel)
	}

	id, ok := obj["id"].(string)
	if !ok || trim(id) == "" {
		return task.PersonaDefinition{}, task.NewPersonaPolicyError("personas[%d].id must be a non-empty string (%s)", index, sourceLabel)
	}
	id = trim(id)

	roleRaw, ok := obj["role"].(string)
	role := task.PersonaRole(roleRaw)
	if !ok {
		return task.PersonaDefinition{}, task.NewPersonaPolicyError("personas[%d].role must be a string (%s)", index, sourceLabel)
	}
	if _, ok := allowedRoles[role]; !ok {
		return task.PersonaDefinition{}, task.NewPersonaPolicyError("personas[%d].role must be one of the known roles (%s)", index, sourceLabel)
	}

	focus, ok := obj["focus"].(string)
	if !ok || trim(focus) == "" {
		return task.PersonaDefinition{}, task.NewPersonaPolicyError("personas[%d].focus must be a non-empty string (%s)", index, sourceLabel)
	}
	focus = trim(focus)

	canBlock, ok := obj["can_block"].(bool)
	if !ok {
		return task.PersonaDefinition{}, task.NewPersonaPolicyError("personas[%d].can_block must be bool (%s)", index, sourceLabel)
	}

	enabled, ok := obj["enabled"].(bool)
	if !ok {
		return task.PersonaDefinition{}, task.NewPersonaPolicyError("personas[%d].enabled must be bool (%s)", index, sourceLabel)
	}

	var execution *task.PersonaExecutionConfig
	if rawExec, present := obj["execution"]; present && rawExec != nil {
		e, err := parseExecution(rawExec, index, sourceLabel)
		if err != nil {
			return task.PersonaDefinition{}, err
		}
		execution = e
	}

	return task.PersonaDefinition{
		ID:        id,
		Role:      role,
		Focus:     focus,
		CanBlock:  canBlock,
		Enabled:   enabled,
		Execution: execution,
	}, nil
}

func parseExecution(raw any, index int, sourceLabel string) (*task.PersonaExecutionConfig, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, task.NewPersonaPolicyError("personas[%d].execution must be an object (%s)", index, sourceLabel)
	}
	if unknown := unknownKeys(obj, allowedExecutionKeys); len(unknown) > 0 {
		return nil, task.NewPersonaPolicyError("personas[%d].execution has unknown keys: %s (%s)", index, joinStrings(unknown), sourceLabel)
	}
	required := []string{"enabled", "command_ref", "sandbox", "timeout_sec"}
	if missing := missingKeys(obj, required); len(missing) > 0 {
		return nil, task.NewPersonaPolicyError("personas[%d].execution missing required keys: %s (%s)", index, joinStrings(missing), sourceLabel)
	}

	enabled, ok := obj["enabled"].(bool)
	if !ok {
		return nil, task.NewPersonaPolicyError("personas[%d].execution.enabled must be bool (%s)", index, sourceLabel)
	}
	commandRef, ok := obj["command_ref"].(string)
	if !ok || trim(commandRef) == "" {
		return nil, task.NewPersonaPolicyError("personas[%d].execution.command_ref must be a non-empty string (%s)", index, sourceLabel)
	}
	sandbox, ok := obj["sandbox"].(string)
	if !ok || trim(sandbox) == "" {
		return nil, task.NewPersonaPolicyError("personas[%d].execution.sandbox must be a non-empty string (%s)", index, sourceLabel)
	}
	timeoutRaw, ok := obj["timeout_sec"].(float64)
	if !ok || timeoutRaw <= 0 {
		return nil, task.NewPersonaPolicyError("personas[%d].execution.timeout_sec must be a positive integer (%s)", index, sourceLabel)
	}

	return &task.PersonaExecutionConfig{
		Enabled:    enabled,
		CommandRef: trim(commandRef),
		Sandbox:    trim(sandbox),
		TimeoutSec: int(timeoutRaw),
	}, nil
}

func unknownKeys(obj map[string]any, allowed map[string]struct{}) []string {
	var unknown []string
	for k := range obj {
		if _, ok := allowed[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func missingKeys(obj map[string]any, required []string) []string {
	var missing []string
	for _, k := range required {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func joinStrings(items []string) string {
	return strings.Join(items, ", ")
}

func trim(s string) string {
	return strings.TrimSpace(s)
}

// ByID indexes a persona slice by id for quick lookup.
func ByID(personas []task.PersonaDefinition) map[string]task.PersonaDefinition {
	out := make(map[string]task.PersonaDefinition, len(personas))
	for _, p := range personas {
		out[p.ID] = p
	}
	return out
}

// Validate returns an error if id does not name a known persona.
func Validate(personas []task.PersonaDefinition, id string) error {
	for _, p := range personas {
		if p.ID == id {
			return nil
		}
	}
	return fmt.Errorf("unknown persona id: %s", id)
}
