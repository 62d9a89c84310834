package scheduler

import (
	"github.com/c360studio/taskorchestrator/processor/decision"
	"github.com/c360studio/taskorchestrator/processor/statestore"
	"github.com/c360studio/taskorchestrator/task"
)

// skipUpdate reports whether update should be dropped before reaching the
// store, per spec §4.2's decision application policy: a provider may not
// move a task into in_progress or completed, may not change a task that is
// in_progress (execution-state is owned by teammates/personas claiming
// work, not the lead), may not move a task into blocked unless it is
// already blocked, and may not apply a plan_action to a task that isn't
// currently awaiting plan review.
func skipUpdate(t *task.Task, update decision.TaskUpdate) bool {
	if update.NewStatus == task.StatusInProgress || update.NewStatus == task.StatusCompleted {
		return true
	}
	if t.Status == task.StatusInProgress && update.PlanAction == nil {
		return true
	}
	if update.NewStatus == task.StatusBlocked && t.Status != task.StatusBlocked {
		return true
	}
	if update.PlanAction != nil {
		if t.Status != task.StatusNeedsApproval || t.PlanStatus != task.PlanStatusSubmitted {
			return true
		}
	}
	return false
}

// applyDecision applies a validated Decision's task updates and messages.
// It returns whether at least one plan_action update was actually applied
// to the store — the round loop uses this to decide whether the
// auto-approve fallback should fire.
func (s *Scheduler) applyDecision(dec decision.Decision) (appliedPlanAction bool, err error) {
	for _, update := range dec.TaskUpdates {
		t, ok, err := s.store.GetTask(update.TaskID)
		if err != nil {
			return appliedPlanAction, err
		}
		if !ok {
			s.logger.Warn("decision references unknown task", "task_id", update.TaskID)
			continue
		}
		if skipUpdate(t, update) {
			s.logger.Debug("skipped decision update", "task_id", update.TaskID, "new_status", update.NewStatus)
			continue
		}
		storeUpdate := statestore.TaskUpdate{
			NewStatus:  update.NewStatus,
			Owner:      update.Owner,
			PlanAction: update.PlanAction,
			Feedback:   update.Feedback,
		}
		if _, err := s.store.ApplyTaskUpdate(update.TaskID, storeUpdate); err != nil {
			s.logger.Error("apply task update failed", "task_id", update.TaskID, "error", err)
			continue
		}
		if update.PlanAction != nil {
			appliedPlanAction = true
		}
	}

	for _, m := range dec.Messages {
		if _, err := s.store.SendMessage(s.config.LeadID, m.To, m.TextShort, nil); err != nil {
			s.logger.Error("send message failed", "to", m.To, "error", err)
		}
	}

	return appliedPlanAction, nil
}

// autoReleaseNonplanApprovals approves the oldest submitted plan when the
// round's decision applied no plan action of its own — spec §4.2's
// fallback that keeps a MockProvider-less or conservative LLM decision
// from stalling the loop forever on a pending review, gated on
// AutoApproveFallback and never firing while human approval is required.
func (s *Scheduler) autoReleaseNonplanApprovals() error {
	if !s.config.ResolvedAutoApproveFallback() {
		return nil
	}
	if s.config.ResolvedHumanApproval() {
		return nil
	}
	submitted, err := s.store.ListSubmittedPlans()
	if err != nil {
		return err
	}
	if len(submitted) == 0 {
		return nil
	}
	oldest := submitted[0]
	if _, err := s.store.ReviewPlan(oldest.ID, task.PlanActionApprove, "auto approved: no plan action this round"); err != nil {
		return err
	}
	s.appendTaskProgressLog(oldest.ID, task.ProgressSourceSystem, "plan auto-approved (fallback)")
	return nil
}
