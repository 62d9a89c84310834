package scheduler

import (
	"context"

	"github.com/c360studio/taskorchestrator/processor/decision"
	"github.com/c360studio/taskorchestrator/processor/personapipeline"
	"github.com/c360studio/taskorchestrator/task"
)

const recentMessageLimit = 20

func (s *Scheduler) taskSnapshot(t *task.Task) decision.TaskSnapshot {
	return decision.TaskSnapshot{
		ID:                t.ID,
		Title:             t.Title,
		Status:            string(t.Status),
		Owner:             t.Owner,
		Planner:           t.Planner,
		DependsOn:         t.DependsOn,
		TargetPaths:       t.TargetPaths,
		RequiresPlan:      t.RequiresPlan,
		PlanStatus:        string(t.PlanStatus),
		CurrentPhaseIndex: t.CurrentPhaseIndex,
		CurrentPhase:      s.policy.CurrentPhase(t),
		PlanExcerpt:       shortText(derefString(t.PlanText), 200),
		BlockReason:       derefString(t.BlockReason),
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// buildSnapshot assembles the read-only Snapshot handed to the decision
// provider for this round.
func (s *Scheduler) buildSnapshot(round, idleRounds int, comments []personapipeline.Comment) (decision.Snapshot, error) {
	tasks, err := s.store.ListTasks()
	if err != nil {
		return decision.Snapshot{}, err
	}
	statusSummary, err := s.store.StatusSummary()
	if err != nil {
		return decision.Snapshot{}, err
	}
	messages, err := s.store.ListRecentMessages(recentMessageLimit)
	if err != nil {
		return decision.Snapshot{}, err
	}

	taskSnapshots := make([]decision.TaskSnapshot, 0, len(tasks))
	for _, t := range tasks {
		taskSnapshots = append(taskSnapshots, s.taskSnapshot(t))
	}

	msgSnapshots := make([]decision.MessageSnapshot, 0, len(messages))
	for _, m := range messages {
		msgSnapshots = append(msgSnapshots, decision.MessageSnapshot{
			Seq:          m.Seq,
			Sender:       m.Sender,
			Receiver:     m.Receiver,
			TaskID:       m.TaskID,
			ContentShort: shortText(m.Content, 200),
		})
	}

	statusSummaryOut := make(map[string]int, len(statusSummary))
	for status, n := range statusSummary {
		statusSummaryOut[string(status)] = n
	}

	eventMaps := make([]map[string]string, 0, len(comments))
	commentMaps := make([]map[string]any, 0, len(comments))
	for _, c := range comments {
		eventMaps = append(eventMaps, map[string]string{
			"type":    string(c.EventType),
			"task_id": c.TaskID,
		})
		commentMaps = append(commentMaps, map[string]any{
			"persona_id": c.PersonaID,
			"severity":   string(c.Severity),
			"task_id":    c.TaskID,
			"event_type": string(c.EventType),
			"detail":     c.Detail,
		})
	}

	lastDecisions := make([]map[string]any, 0, len(s.decisionHistory))
	for _, d := range s.decisionHistory {
		lastDecisions = append(lastDecisions, map[string]any{
			"provider":   d.Meta.Provider,
			"stop":       d.Stop.ShouldStop,
			"n_updates":  len(d.TaskUpdates),
			"n_messages": len(d.Messages),
		})
	}

	return decision.Snapshot{
		LeadID:          s.config.LeadID,
		Teammates:       s.config.ResolvedTeammates(),
		Personas:        s.config.Personas,
		RoundIndex:      round,
		IdleRounds:      idleRounds,
		StatusSummary:   statusSummaryOut,
		Events:          eventMaps,
		PersonaComments: commentMaps,
		Tasks:           taskSnapshots,
		RecentMessages:  msgSnapshots,
		LastDecisions:   lastDecisions,
	}, nil
}

// invokeProvider calls the configured decision provider and validates its
// response against the strict decision contract.
func (s *Scheduler) invokeProvider(ctx context.Context, snapshot decision.Snapshot) (decision.Decision, error) {
	dec, err := s.provider.Run(ctx, snapshot)
	if err != nil {
		return decision.Decision{}, err
	}
	return decision.Validate(dec)
}
