package personacatalog

import (
	"testing"

	"github.com/c360studio/taskorchestrator/task"
)

func TestDefaultCatalogHasFourPersonas(t *testing.T) {
	defaults := Default()
	if len(defaults) != 4 {
		t.Fatalf("expected 4 default personas, got %d", len(defaults))
	}
	ids := ByID(defaults)
	for _, id := range []string{"implementer", "code-reviewer", "spec-checker", "test-owner"} {
		if _, ok := ids[id]; !ok {
			t.Errorf("missing default persona %s", id)
		}
	}
}

func TestLoadNilReturnsDefaults(t *testing.T) {
	personas, err := Load(nil, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(personas) != 4 {
		t.Fatalf("expected 4 personas, got %d", len(personas))
	}
}

func TestLoadMergesProjectOverDefaultsByID(t *testing.T) {
	raw := []any{
		map[string]any{
			"id":        "implementer",
			"role":      "implementer",
			"focus":     "custom focus",
			"can_block": true,
			"enabled":   true,
		},
		map[string]any{
			"id":        "custom-blocker",
			"role":      "custom",
			"focus":     "blocks on correctness violations",
			"can_block": true,
			"enabled":   true,
		},
	}
	personas, err := Load(raw, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(personas) != 5 {
		t.Fatalf("expected 5 personas (4 defaults with 1 replaced + 1 new), got %d", len(personas))
	}
	byID := ByID(personas)
	if !byID["implementer"].CanBlock {
		t.Errorf("expected implementer override to replace can_block")
	}
	if _, ok := byID["custom-blocker"]; !ok {
		t.Errorf("expected custom-blocker to be appended")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	raw := []any{
		map[string]any{
			"id": "x", "role": "custom", "focus": "f", "can_block": false, "enabled": true,
			"unexpected": "field",
		},
	}
	_, err := Load(raw, "test")
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	var ppe *task.PersonaPolicyError
	if _, ok := any(err).(*task.PersonaPolicyError); !ok {
		t.Fatalf("expected *task.PersonaPolicyError, got %T", err)
	}
	_ = ppe
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	raw := []any{
		map[string]any{"id": "dup", "role": "custom", "focus": "f1", "can_block": false, "enabled": true},
		map[string]any{"id": "dup", "role": "custom", "focus": "f2", "can_block": false, "enabled": true},
	}
	_, err := Load(raw, "test")
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestParseExecutionConfig(t *testing.T) {
	raw := []any{
		map[string]any{
			"id": "executor", "role": "implementer", "focus": "f", "can_block": false, "enabled": true,
			"execution": map[string]any{
				"enabled": true, "command_ref": "default", "sandbox": "workspace-write", "timeout_sec": 900.0,
			},
		},
	}
	personas, err := Load(raw, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := ByID(personas)["executor"]
	if !p.ExecutionEnabled() {
		t.Fatalf("expected execution enabled")
	}
	if p.Execution.TimeoutSec != 900 {
		t.Errorf("expected timeout_sec 900, got %d", p.Execution.TimeoutSec)
	}
}
