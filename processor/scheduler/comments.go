package scheduler

import (
	"fmt"

	"github.com/c360studio/taskorchestrator/processor/personapipeline"
	"github.com/c360studio/taskorchestrator/processor/statestore"
	"github.com/c360studio/taskorchestrator/task"
)

func (s *Scheduler) personaByID(id string) (task.PersonaDefinition, bool) {
	for _, p := range s.config.Personas {
		if p.ID == id {
			return p, true
		}
	}
	return task.PersonaDefinition{}, false
}

// activePersonasForEvent resolves the active-persona restriction for ev: nil
// (no restriction) when ev carries no task id or the task can't be found,
// otherwise the policy's per-phase active_personas set for that task.
func (s *Scheduler) activePersonasForEvent(ev personapipeline.Event) map[string]struct{} {
	if ev.TaskID == "" {
		return nil
	}
	t, ok, err := s.store.GetTask(ev.TaskID)
	if err != nil || !ok {
		return nil
	}
	return s.policy.ActivePersonaIDs(t)
}

// evaluatePersonaComments scores events through the persona pipeline, one
// event at a time so each can be restricted to its own task's active
// personas, then applies each resulting comment's severity action. It
// returns every comment produced and a non-empty stop reason if a persona
// blocker comment should end the round loop.
func (s *Scheduler) evaluatePersonaComments(events []personapipeline.Event) ([]personapipeline.Comment, string) {
	var all []personapipeline.Comment
	for _, ev := range events {
		active := s.activePersonasForEvent(ev)
		comments := s.pipeline.EvaluateEvents([]personapipeline.Event{ev}, active)
		all = append(all, comments...)
		for _, c := range comments {
			if stop := s.applyPersonaAction(c); stop != "" {
				return all, stop
			}
		}
	}
	return all, ""
}

// applyPersonaAction applies the severity-specific consequence of one
// comment (spec §4.4): info is recorded only, warn defers a WarnRecheck
// event into the next round, critical escalates the task to needs_approval
// when the commenting persona may transition it (deduped per task), and
// blocker stops the loop when the persona can both block and transition —
// otherwise it downgrades to a critical escalation. Returns a non-empty
// stop reason only for an undowngraded blocker.
func (s *Scheduler) applyPersonaAction(c personapipeline.Comment) string {
	switch c.Severity {
	case personapipeline.SeverityInfo:
		return ""
	case personapipeline.SeverityWarn:
		s.warnQueue = append(s.warnQueue, personapipeline.WarnRecheckEvent(c.PersonaID, c.EventType))
		return ""
	case personapipeline.SeverityCritical:
		s.escalateTask(c)
		return ""
	case personapipeline.SeverityBlocker:
		persona, ok := s.personaByID(c.PersonaID)
		if ok && persona.CanBlock && s.canPersonaTransition(c.TaskID, c.PersonaID) {
			key := c.TaskID + ":" + c.PersonaID
			if _, already := s.blockerTriggered[key]; already {
				return ""
			}
			s.blockerTriggered[key] = struct{}{}
			return fmt.Sprintf("persona_blocker:%s", c.PersonaID)
		}
		s.escalateTask(c)
		return ""
	}
	return ""
}

// canPersonaTransition reports whether personaID may drive a status
// transition for taskID. A blank taskID (a process-wide event such as
// Kickoff or NoProgress carries no task) is permitted when personaID can
// transition at least one task currently in the store — the loop-stopping
// consequence of a process-wide blocker comment isn't tied to a single task.
func (s *Scheduler) canPersonaTransition(taskID, personaID string) bool {
	if taskID == "" {
		tasks, err := s.store.ListTasks()
		if err != nil {
			return false
		}
		for _, t := range tasks {
			if s.policy.CanTransition(t, personaID) {
				return true
			}
		}
		return false
	}
	t, ok, err := s.store.GetTask(taskID)
	if err != nil || !ok {
		return false
	}
	return s.policy.CanTransition(t, personaID)
}

// escalateTask moves c's task to needs_approval at most once per task,
// provided the commenting persona is transition-permitted for it.
func (s *Scheduler) escalateTask(c personapipeline.Comment) {
	if c.TaskID == "" {
		return
	}
	key := c.TaskID
	if _, already := s.escalatedTasks[key]; already {
		return
	}
	t, ok, err := s.store.GetTask(c.TaskID)
	if err != nil || !ok {
		return
	}
	if !s.policy.CanTransition(t, c.PersonaID) {
		return
	}
	if t.Status == task.StatusNeedsApproval || t.Status == task.StatusCompleted {
		return
	}
	s.escalatedTasks[key] = struct{}{}
	reason := shortText(c.Detail, 200)
	update := statestore.TaskUpdate{NewStatus: task.StatusNeedsApproval, Feedback: reason}
	if _, err := s.store.ApplyTaskUpdate(c.TaskID, update); err != nil {
		s.logger.Error("escalate task failed", "task_id", c.TaskID, "persona_id", c.PersonaID, "error", err)
		return
	}
	s.appendTaskProgressLog(c.TaskID, task.ProgressSourceSystem, fmt.Sprintf("escalated by %s: %s", c.PersonaID, reason))
}
