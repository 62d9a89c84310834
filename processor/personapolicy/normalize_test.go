package personapolicy

import "testing"

func knownIDs(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestNormalizeGlobalConfigNilReturnsZeroValue(t *testing.T) {
	got, err := NormalizeGlobalConfig(nil, "test", knownIDs("a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PhaseOrder != nil || got.PhasePolicies != nil {
		t.Fatalf("expected zero value, got %+v", got)
	}
}

func TestNormalizeGlobalConfigRejectsUnknownKey(t *testing.T) {
	raw := map[string]any{"phase_orde": []any{"implement"}}
	_, err := NormalizeGlobalConfig(raw, "test", knownIDs("a"))
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestNormalizeGlobalConfigDedupsPhaseOrder(t *testing.T) {
	raw := map[string]any{"phase_order": []any{"implement", "review", "implement"}}
	got, err := NormalizeGlobalConfig(raw, "test", knownIDs("a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.PhaseOrder) != 2 {
		t.Fatalf("expected deduped phase order, got %v", got.PhaseOrder)
	}
}

func TestNormalizeGlobalConfigPhasePoliciesRejectUnknownPersona(t *testing.T) {
	raw := map[string]any{
		"phase_policies": map[string]any{
			"implement": map[string]any{"executor_personas": []any{"ghost"}},
		},
	}
	_, err := NormalizeGlobalConfig(raw, "test", knownIDs("implementer"))
	if err == nil {
		t.Fatalf("expected error for unknown persona reference")
	}
}

func TestNormalizeTaskPolicyNilReturnsNil(t *testing.T) {
	got, err := NormalizeTaskPolicy(nil, "test", "T-1", knownIDs("a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestNormalizeTaskPolicyParsesDisableAndOverrides(t *testing.T) {
	raw := map[string]any{
		"disable_personas": []any{"implementer"},
		"phase_overrides": map[string]any{
			"review": map[string]any{"active_personas": []any{"code-reviewer"}},
		},
	}
	known := knownIDs("implementer", "code-reviewer")
	got, err := NormalizeTaskPolicy(raw, "test", "T-1", known)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.DisablePersonas) != 1 || got.DisablePersonas[0] != "implementer" {
		t.Fatalf("unexpected disable_personas: %v", got.DisablePersonas)
	}
	override, ok := got.PhaseOverrides["review"]
	if !ok {
		t.Fatalf("expected review override present")
	}
	if len(override.ActivePersonas) != 1 || override.ActivePersonas[0] != "code-reviewer" {
		t.Fatalf("unexpected active_personas: %v", override.ActivePersonas)
	}
}

func TestNormalizeTaskPolicyRejectsUnknownKey(t *testing.T) {
	raw := map[string]any{"disable_persona": []any{}}
	_, err := NormalizeTaskPolicy(raw, "test", "T-1", knownIDs("a"))
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
}
