package decision

import (
	"context"
	"testing"

	"github.com/c360studio/taskorchestrator/task"
)

func TestValidateRejectsInvalidStatus(t *testing.T) {
	_, err := Validate(Decision{
		TaskUpdates: []TaskUpdate{{TaskID: "A", NewStatus: "bogus"}},
	})
	if err == nil {
		t.Fatalf("expected error for invalid new_status")
	}
}

func TestValidateRejectsMissingTaskID(t *testing.T) {
	_, err := Validate(Decision{
		TaskUpdates: []TaskUpdate{{NewStatus: task.StatusPending}},
	})
	if err == nil {
		t.Fatalf("expected error for missing task_id")
	}
}

func TestValidateTruncatesFeedback(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	d, err := Validate(Decision{
		TaskUpdates: []TaskUpdate{{TaskID: "A", NewStatus: task.StatusPending, Feedback: string(long)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.TaskUpdates[0].Feedback) != maxFeedbackLen {
		t.Fatalf("expected feedback truncated to %d, got %d", maxFeedbackLen, len(d.TaskUpdates[0].Feedback))
	}
}

func TestValidateDefaultsMetaProviderAndModel(t *testing.T) {
	d, err := Validate(Decision{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Meta.Provider != "unknown" || d.Meta.Model != "unknown" {
		t.Fatalf("expected defaulted meta, got %+v", d.Meta)
	}
	if d.Meta.TokenBudget.Input != defaultInputTok || d.Meta.TokenBudget.Output != defaultOutputTok {
		t.Fatalf("expected default token budgets, got %+v", d.Meta.TokenBudget)
	}
}

func TestValidateRejectsMessageMissingText(t *testing.T) {
	_, err := Validate(Decision{Messages: []Message{{To: "tm-1"}}})
	if err == nil {
		t.Fatalf("expected error for missing text_short")
	}
}

func TestMockProviderApprovesSubmittedPlans(t *testing.T) {
	p := NewMockProvider()
	planner := "tm-1"
	snapshot := Snapshot{
		Tasks: []TaskSnapshot{
			{ID: "A", Status: "needs_approval", PlanStatus: "submitted", Planner: &planner},
			{ID: "B", Status: "pending", PlanStatus: "not_required"},
		},
	}
	d, err := p.Run(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.TaskUpdates) != 1 || d.TaskUpdates[0].TaskID != "A" {
		t.Fatalf("expected one approval update for A, got %+v", d.TaskUpdates)
	}
	if d.TaskUpdates[0].PlanAction == nil || *d.TaskUpdates[0].PlanAction != task.PlanActionApprove {
		t.Fatalf("expected approve plan action")
	}
	if len(d.Messages) != 1 || d.Messages[0].To != "tm-1" {
		t.Fatalf("expected message to planner, got %+v", d.Messages)
	}
}

func TestMockProviderNoOpWithoutSubmittedPlans(t *testing.T) {
	p := NewMockProvider()
	d, err := p.Run(context.Background(), Snapshot{Tasks: []TaskSnapshot{{ID: "A", Status: "pending"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.TaskUpdates) != 0 {
		t.Fatalf("expected no updates, got %+v", d.TaskUpdates)
	}
	if d.Stop.ShouldStop {
		t.Fatalf("expected should_stop false")
	}
}
