package personapolicy

import (
	"sort"
	"strings"

	"github.com/c360studio/taskorchestrator/task"
)

var phasePolicyKeys = map[string]struct{}{
	"active_personas": {}, "executor_personas": {}, "state_transition_personas": {},
}

var globalConfigKeys = map[string]struct{}{
	"phase_order": {}, "phase_policies": {},
}

var taskPolicyKeys = map[string]struct{}{
	"disable_personas": {}, "phase_order": {}, "phase_overrides": {},
}

// NormalizeGlobalConfig validates and converts a change document's
// `persona_defaults` block (decoded JSON/YAML: map[string]any) into a
// GlobalConfig. raw == nil returns the zero GlobalConfig (non-phased mode).
func NormalizeGlobalConfig(raw any, sourceLabel string, knownPersonaIDs map[string]struct{}) (GlobalConfig, error) {
	if raw == nil {
		return GlobalConfig{}, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return GlobalConfig{}, task.NewPersonaPolicyError("persona_defaults must be an object (%s)", sourceLabel)
	}
	if unknown := unknownOf(obj, globalConfigKeys); len(unknown) > 0 {
		return GlobalConfig{}, task.NewPersonaPolicyError("persona_defaults has unknown keys: %s (%s)", strings.Join(unknown, ", "), sourceLabel)
	}

	var out GlobalConfig
	if v, present := obj["phase_order"]; present {
		order, err := normalizePhaseOrder(v, "persona_defaults.phase_order", sourceLabel)
		if err != nil {
			return GlobalConfig{}, err
		}
		out.PhaseOrder = order
	}
	if v, present := obj["phase_policies"]; present {
		policies, err := normalizePhasePolicyMap(v, "persona_defaults.phase_policies", sourceLabel, knownPersonaIDs)
		if err != nil {
			return GlobalConfig{}, err
		}
		out.PhasePolicies = policies
	}
	return out, nil
}

// NormalizeTaskPolicy validates and converts a task's `persona_policy` block
// into a *task.PersonaPolicy. raw == nil returns (nil, nil) — the task
// carries no local override.
func NormalizeTaskPolicy(raw any, sourceLabel, taskID string, knownPersonaIDs map[string]struct{}) (*task.PersonaPolicy, error) {
	if raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, task.NewPersonaPolicyError("task %s persona_policy must be an object (%s)", taskID, sourceLabel)
	}
	if unknown := unknownOf(obj, taskPolicyKeys); len(unknown) > 0 {
		return nil, task.NewPersonaPolicyError("task %s persona_policy has unknown keys: %s (%s)", taskID, strings.Join(unknown, ", "), sourceLabel)
	}

	policy := &task.PersonaPolicy{}
	if v, present := obj["disable_personas"]; present {
		ids, err := normalizePersonaIDList(v, "task "+taskID+" persona_policy.disable_personas", sourceLabel, knownPersonaIDs)
		if err != nil {
			return nil, err
		}
		policy.DisablePersonas = ids
	}
	if v, present := obj["phase_order"]; present {
		order, err := normalizePhaseOrder(v, "task "+taskID+" persona_policy.phase_order", sourceLabel)
		if err != nil {
			return nil, err
		}
		policy.PhaseOrder = order
	}
	if v, present := obj["phase_overrides"]; present {
		overrides, err := normalizePhasePolicyMap(v, "task "+taskID+" persona_policy.phase_overrides", sourceLabel, knownPersonaIDs)
		if err != nil {
			return nil, err
		}
		policy.PhaseOverrides = overrides
	}
	return policy, nil
}

func normalizePhaseOrder(raw any, fieldName, sourceLabel string) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, task.NewPersonaPolicyError("%s must be a list (%s)", fieldName, sourceLabel)
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		s = strings.TrimSpace(s)
		if !ok || s == "" {
			return nil, task.NewPersonaPolicyError("%s[%d] must be a non-empty string (%s)", fieldName, i, sourceLabel)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func normalizePersonaIDList(raw any, fieldName, sourceLabel string, known map[string]struct{}) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, task.NewPersonaPolicyError("%s must be a list (%s)", fieldName, sourceLabel)
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		s = strings.TrimSpace(s)
		if !ok || s == "" {
			return nil, task.NewPersonaPolicyError("%s[%d] must be a non-empty string (%s)", fieldName, i, sourceLabel)
		}
		if _, ok := known[s]; !ok {
			return nil, task.NewPersonaPolicyError("%s[%d] references unknown persona: %s (%s)", fieldName, i, s, sourceLabel)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func normalizePhasePolicyMap(raw any, fieldName, sourceLabel string, known map[string]struct{}) (map[string]task.PhasePolicy, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, task.NewPersonaPolicyError("%s must be an object (%s)", fieldName, sourceLabel)
	}
	out := make(map[string]task.PhasePolicy, len(obj))
	for phaseRaw, policyRaw := range obj {
		phase := strings.TrimSpace(phaseRaw)
		if phase == "" {
			return nil, task.NewPersonaPolicyError("%s contains an empty phase key (%s)", fieldName, sourceLabel)
		}
		policy, err := normalizePhasePolicy(policyRaw, fieldName+"."+phase, sourceLabel, known)
		if err != nil {
			return nil, err
		}
		out[phase] = policy
	}
	return out, nil
}

func normalizePhasePolicy(raw any, fieldName, sourceLabel string, known map[string]struct{}) (task.PhasePolicy, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return task.PhasePolicy{}, task.NewPersonaPolicyError("%s must be an object (%s)", fieldName, sourceLabel)
	}
	if unknown := unknownOf(obj, phasePolicyKeys); len(unknown) > 0 {
		return task.PhasePolicy{}, task.NewPersonaPolicyError("%s has unknown keys: %s (%s)", fieldName, strings.Join(unknown, ", "), sourceLabel)
	}

	var policy task.PhasePolicy
	if v, present := obj["active_personas"]; present {
		ids, err := normalizePersonaIDList(v, fieldName+".active_personas", sourceLabel, known)
		if err != nil {
			return task.PhasePolicy{}, err
		}
		policy.ActivePersonas = ids
	}
	if v, present := obj["executor_personas"]; present {
		ids, err := normalizePersonaIDList(v, fieldName+".executor_personas", sourceLabel, known)
		if err != nil {
			return task.PhasePolicy{}, err
		}
		policy.ExecutorPersonas = ids
	}
	if v, present := obj["state_transition_personas"]; present {
		ids, err := normalizePersonaIDList(v, fieldName+".state_transition_personas", sourceLabel, known)
		if err != nil {
			return task.PhasePolicy{}, err
		}
		policy.StateTransitionPersonas = ids
	}
	return policy, nil
}

func unknownOf(obj map[string]any, allowed map[string]struct{}) []string {
	var unknown []string
	for k := range obj {
		if _, ok := allowed[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}
