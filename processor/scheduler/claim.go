package scheduler

import (
	"context"
	"fmt"

	"github.com/c360studio/taskorchestrator/processor/personapipeline"
	"github.com/c360studio/taskorchestrator/task"
)

// teammateProcessPlan claims and drives one plan-drafting task for subject,
// if one is claimable. subject is a teammate id in teammate-execution mode
// or a persona id in persona-execution mode — both identify a mailbox/owner
// name the store accepts interchangeably.
func (s *Scheduler) teammateProcessPlan(ctx context.Context, subject string) []personapipeline.Event {
	claimed, err := s.store.ClaimPlanTask(subject)
	if err != nil {
		s.logger.Error("claim plan task failed", "subject", subject, "error", err)
		return nil
	}
	if claimed == nil {
		return nil
	}

	planText, err := s.adapter.BuildPlan(ctx, subject, claimed)
	if err != nil {
		s.logger.Error("build plan failed", "subject", subject, "task_id", claimed.ID, "error", err)
		s.appendTaskProgressLog(claimed.ID, task.ProgressSourceSystem, "plan drafting failed: "+shortText(err.Error(), 200))
		return nil
	}

	if _, err := s.store.SubmitPlan(claimed.ID, subject, planText); err != nil {
		s.logger.Error("submit plan failed", "subject", subject, "task_id", claimed.ID, "error", err)
		return nil
	}
	s.appendTaskProgressLog(claimed.ID, task.ProgressSourceSystem, "plan submitted by "+subject)
	return []personapipeline.Event{needsApprovalEvent(claimed.ID, subject)}
}

// allowedExecutionTaskIDs returns the execution-claim restriction for
// subject in persona mode, or nil (no restriction) in teammate mode.
func (s *Scheduler) allowedExecutionTaskIDs(subject string) map[string]struct{} {
	if s.subjectMode != subjectPersona {
		return nil
	}
	tasks, err := s.store.ListTasks()
	if err != nil {
		s.logger.Error("list tasks for execution restriction failed", "error", err)
		return map[string]struct{}{}
	}
	return s.policy.AllowedExecutionTaskIDs(tasks, subject)
}

// teammateProcessExecution claims and drives one execution-ready task for
// subject, if one is claimable. In persona-execution mode a completed phase
// that isn't the task's last phase hands the task off to the next phase
// instead of completing it outright (spec §4.2).
func (s *Scheduler) teammateProcessExecution(ctx context.Context, subject string) []personapipeline.Event {
	allowed := s.allowedExecutionTaskIDs(subject)
	claimed, err := s.store.ClaimExecutionTask(subject, allowed)
	if err != nil {
		s.logger.Error("claim execution task failed", "subject", subject, "error", err)
		return nil
	}
	if claimed == nil {
		return nil
	}

	onProgress := func(source task.ProgressSource, text string) {
		s.appendTaskProgressLog(claimed.ID, source, text)
	}

	result, err := s.adapter.ExecuteTask(ctx, subject, claimed, onProgress)
	if err != nil {
		reason := shortText(err.Error(), 200)
		if _, blockErr := s.store.MarkTaskBlocked(claimed.ID, subject, reason); blockErr != nil {
			s.logger.Error("mark task blocked failed", "subject", subject, "task_id", claimed.ID, "error", blockErr)
			return nil
		}
		return []personapipeline.Event{blockedEvent(claimed.ID, subject, reason)}
	}

	if s.subjectMode == subjectPersona {
		if nextIndex, nextPhase, ok := s.policy.NextPhase(claimed); ok {
			if _, err := s.store.HandoffTaskPhase(claimed.ID, subject, nextIndex); err != nil {
				s.logger.Error("handoff task phase failed", "subject", subject, "task_id", claimed.ID, "error", err)
				return nil
			}
			s.appendTaskProgressLog(claimed.ID, task.ProgressSourceSystem, fmt.Sprintf("handed off to phase %s: %s", nextPhase, shortText(result, 200)))
			return []personapipeline.Event{taskHandoffEvent(claimed.ID, subject, nextPhase)}
		}
	}

	if _, err := s.store.CompleteTask(claimed.ID, subject, result); err != nil {
		s.logger.Error("complete task failed", "subject", subject, "task_id", claimed.ID, "error", err)
		return nil
	}
	if s.metrics != nil {
		s.metrics.observeTaskCompleted()
	}
	s.publish(ctx, "task_completed", map[string]any{"task_id": claimed.ID, "subject": subject})
	s.appendTaskProgressLog(claimed.ID, task.ProgressSourceSystem, "completed: "+shortText(result, 200))
	return []personapipeline.Event{taskCompletedEvent(claimed.ID, subject, shortText(result, 200))}
}

// collectCollisionEvents returns a Collision event for every collision not
// already emitted this run — the cache prevents the same waiting/running
// pair from generating a fresh comment every round it remains blocked.
func (s *Scheduler) collectCollisionEvents() []personapipeline.Event {
	collisions, err := s.store.DetectCollisions()
	if err != nil {
		s.logger.Error("detect collisions failed", "error", err)
		return nil
	}
	var events []personapipeline.Event
	for _, c := range collisions {
		key := c.WaitingTaskID + ":" + c.RunningTaskID
		if _, seen := s.collisionSeen[key]; seen {
			continue
		}
		s.collisionSeen[key] = struct{}{}
		events = append(events, collisionEvent(c.WaitingTaskID, c.RunningTaskID))
	}
	return events
}
