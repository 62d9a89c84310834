package task

import "testing"

func TestNewDerivesPlanStatus(t *testing.T) {
	tk := New("T-001", "implement widget", 100.0)
	tk.ApplyRequiresPlan(false)
	if tk.PlanStatus != PlanStatusNotRequired {
		t.Fatalf("expected not_required, got %s", tk.PlanStatus)
	}

	tk2 := New("T-002", "implement gadget", 100.0)
	tk2.ApplyRequiresPlan(true)
	if tk2.PlanStatus != PlanStatusPending {
		t.Fatalf("expected pending, got %s", tk2.PlanStatus)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	owner := "tm-1"
	original := New("T-001", "widget", 1.0)
	original.Owner = &owner
	original.TargetPaths = []string{"src/a"}
	original.PersonaPolicy = &PersonaPolicy{
		DisablePersonas: []string{"reviewer"},
		PhaseOverrides: map[string]PhasePolicy{
			"implement": {ExecutorPersonas: []string{"implementer"}},
		},
	}

	clone := original.Clone()
	clone.TargetPaths[0] = "src/b"
	*clone.Owner = "tm-2"
	clone.PersonaPolicy.DisablePersonas[0] = "tester"

	if original.TargetPaths[0] != "src/a" {
		t.Fatalf("clone mutation leaked into original target_paths: %v", original.TargetPaths)
	}
	if *original.Owner != "tm-1" {
		t.Fatalf("clone mutation leaked into original owner: %v", *original.Owner)
	}
	if original.PersonaPolicy.DisablePersonas[0] != "reviewer" {
		t.Fatalf("clone mutation leaked into original persona policy: %v", original.PersonaPolicy.DisablePersonas)
	}
}

func TestStatusIsValid(t *testing.T) {
	valid := []Status{StatusPending, StatusInProgress, StatusBlocked, StatusNeedsApproval, StatusCompleted}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Status("unknown").IsValid() {
		t.Errorf("expected unknown status to be invalid")
	}
}

func TestDisabledPersonasEmptyWithoutPolicy(t *testing.T) {
	tk := New("T-001", "widget", 1.0)
	if len(tk.DisabledPersonas()) != 0 {
		t.Fatalf("expected no disabled personas, got %v", tk.DisabledPersonas())
	}
}
