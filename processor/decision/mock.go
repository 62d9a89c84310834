package decision

import (
	"context"

	"github.com/c360studio/taskorchestrator/task"
)

// MockProvider auto-approves any submitted plan it sees in the snapshot and
// otherwise requests no changes — a deterministic stand-in for exercising
// the scheduler without a live LLM endpoint.
type MockProvider struct {
	InputTokenBudget  int
	OutputTokenBudget int
}

// NewMockProvider builds a MockProvider with the default token budgets.
func NewMockProvider() *MockProvider {
	return &MockProvider{InputTokenBudget: defaultInputTok, OutputTokenBudget: defaultOutputTok}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Run(_ context.Context, snapshot Snapshot) (Decision, error) {
	out := Decision{
		Stop: Stop{ShouldStop: false},
		Meta: Meta{
			Provider:    p.Name(),
			Model:       "mock-v1",
			TokenBudget: TokenBudget{Input: p.InputTokenBudget, Output: p.OutputTokenBudget},
		},
	}
	approve := task.PlanActionApprove
	for _, t := range snapshot.Tasks {
		if t.Status != "needs_approval" || t.PlanStatus != "submitted" {
			continue
		}
		taskID := t.ID
		out.Decisions = append(out.Decisions, DecisionEntry{
			Type:        "approve_plan",
			TaskID:      &taskID,
			ReasonShort: "auto approved",
		})
		out.TaskUpdates = append(out.TaskUpdates, TaskUpdate{
			TaskID:     t.ID,
			NewStatus:  "pending",
			PlanAction: &approve,
			Feedback:   "approved by mock provider",
		})
		if t.Planner != nil && *t.Planner != "" {
			out.Messages = append(out.Messages, Message{
				To:        *t.Planner,
				TextShort: "Plan approved for " + t.ID,
			})
		}
	}
	return Validate(out)
}
