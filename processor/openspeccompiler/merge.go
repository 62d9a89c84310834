package openspeccompiler

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CompileError reports a structural or semantic problem with an openspec
// change document or its overrides.
type CompileError struct {
	Reason string
}

func (e *CompileError) Error() string { return e.Reason }

func newCompileError(format string, args ...any) error {
	return &CompileError{Reason: fmt.Sprintf(format, args...)}
}

func mergeUnique(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, raw := range append(append([]string{}, existing...), incoming...) {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
	}
	return merged
}

// mergeDictValues deep-merges incoming over existing: nested objects merge
// recursively, string-list-valued keys merge by mergeUnique, everything
// else is replaced wholesale by the incoming value.
func mergeDictValues(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing))
	for k, v := range existing {
		merged[k] = v
	}
	for k, incomingVal := range incoming {
		existingVal, hasExisting := merged[k]
		if incomingMap, ok := incomingVal.(map[string]any); ok {
			if existingMap, ok := existingVal.(map[string]any); ok && hasExisting {
				merged[k] = mergeDictValues(existingMap, incomingMap)
				continue
			}
		}
		if incomingList, ok := toStringList(incomingVal); ok {
			if existingList, ok := toStringList(existingVal); ok && hasExisting {
				merged[k] = anySlice(mergeUnique(existingList, incomingList))
				continue
			}
		}
		merged[k] = incomingVal
	}
	return merged
}

func toStringList(v any) ([]string, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out, true
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// mergePersonaPolicy merges an incoming persona-policy directive fragment
// over an existing one, with disable_personas and phase_overrides merged
// field-aware rather than replaced wholesale.
func mergePersonaPolicy(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing))
	for k, v := range existing {
		merged[k] = v
	}
	for key, value := range incoming {
		switch key {
		case "disable_personas":
			var incomingValues []string
			if list, ok := toStringList(value); ok {
				incomingValues = mergeUnique(nil, list)
			} else if s, ok := value.(string); ok {
				incomingValues = parsePersonaIDList(s)
			}
			var existingValues []string
			if list, ok := toStringList(merged["disable_personas"]); ok {
				existingValues = list
			}
			merged["disable_personas"] = anySlice(mergeUnique(existingValues, incomingValues))
		case "phase_overrides":
			incomingOverrides, _ := value.(map[string]any)
			existingOverrides, _ := merged["phase_overrides"].(map[string]any)
			merged["phase_overrides"] = mergeDictValues(existingOverrides, incomingOverrides)
		default:
			merged[key] = value
		}
	}
	return merged
}

func parseInlineJSON(raw, label, path string, lineNo int) (any, error) {
	value := strings.TrimSpace(raw)
	if strings.HasPrefix(value, "`") && strings.HasSuffix(value, "`") && len(value) >= 2 {
		value = strings.TrimSpace(value[1 : len(value)-1])
	}
	var decoded any
	if err := json.Unmarshal([]byte(value), &decoded); err != nil {
		return nil, newCompileError("%s must be JSON at %s:%d", label, path, lineNo)
	}
	return decoded, nil
}

func parseInlineJSONObject(raw, label, path string, lineNo int) (map[string]any, error) {
	decoded, err := parseInlineJSON(raw, label, path, lineNo)
	if err != nil {
		return nil, err
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, newCompileError("%s must be JSON object at %s:%d", label, path, lineNo)
	}
	return obj, nil
}

func parseInlineJSONArray(raw, label, path string, lineNo int) ([]any, error) {
	decoded, err := parseInlineJSON(raw, label, path, lineNo)
	if err != nil {
		return nil, err
	}
	arr, ok := decoded.([]any)
	if !ok {
		return nil, newCompileError("%s must be JSON array at %s:%d", label, path, lineNo)
	}
	return arr, nil
}

func parsePersonaIDList(raw string) []string {
	candidates := parsePathValue(raw)
	seen := make(map[string]struct{})
	var out []string
	for _, item := range candidates {
		parts := strings.Split(item, "/")
		if len(parts) == 0 {
			parts = []string{item}
		}
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

func isNoneToken(v string) bool {
	switch v {
	case "なし", "none", "None", "-":
		return true
	}
	return false
}

func parsePathValue(raw string) []string {
	value := strings.TrimSpace(raw)
	if value == "" || isNoneToken(value) {
		return nil
	}
	if matches := backtickPattern.FindAllStringSubmatch(value, -1); len(matches) > 0 {
		var out []string
		for _, m := range matches {
			if v := strings.TrimSpace(m[1]); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		inner := strings.TrimSpace(value[1 : len(value)-1])
		if inner == "" {
			return nil
		}
		var out []string
		for _, part := range strings.Split(inner, ",") {
			p := strings.Trim(strings.TrimSpace(part), `"'`)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	if strings.Contains(value, ",") || strings.Contains(value, "、") {
		parts := commaSplitPattern.Split(value, -1)
		var out []string
		for _, part := range parts {
			p := strings.Trim(strings.TrimSpace(part), `"'`)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return []string{strings.Trim(value, `"'`)}
}

func parseDependencyValue(raw, path string, lineNo int) ([]string, error) {
	cleaned := strings.TrimSpace(raw)
	if isNoneToken(cleaned) {
		return nil, nil
	}
	deps := taskIDPattern.FindAllString(cleaned, -1)
	if len(deps) == 0 {
		return nil, newCompileError("dependency parse failed at %s:%d. use task ids like T-001/TASK-1/1.1 or 'none'.", path, lineNo)
	}
	return deps, nil
}

func extractRequiresPlan(text string) bool {
	m := requiresPlanPattern.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	return strings.EqualFold(m[1], "true")
}

func extractTaskIDAndTitle(rawHeader string, autoIDCounter int) (string, string) {
	stripped := strings.TrimSpace(rawHeader)
	if m := taskIDAndTitlePattern.FindStringSubmatch(stripped); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return fmt.Sprintf("AUTO-%03d", autoIDCounter), stripped
}

func parsePhaseAssignments(raw, path string, lineNo int) (map[string]any, error) {
	chunks := splitNonEmpty(phaseChunkPattern.Split(raw, -1))
	if len(chunks) == 0 {
		return nil, newCompileError("phase assignments must not be empty at %s:%d", path, lineNo)
	}
	parsed := make(map[string]any, len(chunks))
	for _, chunk := range chunks {
		m := phaseAssignPattern.FindStringSubmatch(chunk)
		if m == nil {
			return nil, newCompileError("invalid phase assignment '%s' at %s:%d", chunk, path, lineNo)
		}
		phase := normalizePhaseID(m[1])
		personaIDs := parsePersonaIDList(m[2])
		if len(personaIDs) == 0 {
			return nil, newCompileError("phase assignment has no personas for phase '%s' at %s:%d", phase, path, lineNo)
		}
		parsed[phase] = map[string]any{
			"active_personas":           anySlice(personaIDs),
			"executor_personas":         anySlice(personaIDs),
			"state_transition_personas": anySlice(personaIDs),
		}
	}
	return parsed, nil
}

func splitNonEmpty(parts []string) []string {
	var out []string
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
