// Package personapipeline turns a round's raw events into deterministically
// ordered, severity-scored persona comments — the advisory layer the
// scheduler consults after every round to decide whether to escalate a task
// or stop the loop entirely.
package personapipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/taskorchestrator/task"
)

// Severity is a persona comment's urgency tier.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
	SeverityBlocker  Severity = "blocker"
)

var severityPriority = map[Severity]int{
	SeverityBlocker:  0,
	SeverityCritical: 1,
	SeverityWarn:     2,
	SeverityInfo:     3,
}

// EventType names one of the round event kinds the scheduler emits.
type EventType string

const (
	EventKickoff       EventType = "Kickoff"
	EventTaskCompleted EventType = "TaskCompleted"
	EventNeedsApproval EventType = "NeedsApproval"
	EventNoProgress    EventType = "NoProgress"
	EventCollision     EventType = "Collision"
	EventBlocked       EventType = "Blocked"
	EventTaskHandoff   EventType = "TaskHandoff"
	EventWarnRecheck   EventType = "WarnRecheck"
)

// severityByEvent is the deterministic event-type to default-severity
// mapping. Event types absent from this table are ignored entirely.
var severityByEvent = map[EventType]Severity{
	EventKickoff:       SeverityInfo,
	EventTaskCompleted: SeverityInfo,
	EventNeedsApproval: SeverityWarn,
	EventNoProgress:    SeverityWarn,
	EventCollision:     SeverityWarn,
	EventBlocked:       SeverityCritical,
	EventTaskHandoff:   SeverityInfo,
	EventWarnRecheck:   SeverityWarn,
}

// Event is one round occurrence fed into the pipeline.
type Event struct {
	Type     EventType
	TaskID   string
	Teammate string
	Detail   string
}

// Comment is one persona's scored observation of an event.
type Comment struct {
	PersonaID string
	Severity  Severity
	TaskID    string
	EventType EventType
	Detail    string
}

const maxDetailLen = 200

// Pipeline scores round events against the enabled persona catalog and
// produces a capped, deterministically ordered comment list.
type Pipeline struct {
	personas           []task.PersonaDefinition
	maxCommentsPerEvent int
}

// New builds a Pipeline. maxCommentsPerEvent is clamped to at least 1; 0 or
// negative falls back to the default of 2.
func New(personas []task.PersonaDefinition, maxCommentsPerEvent int) *Pipeline {
	if maxCommentsPerEvent <= 0 {
		maxCommentsPerEvent = 2
	}
	return &Pipeline{personas: personas, maxCommentsPerEvent: maxCommentsPerEvent}
}

// EvaluateEvents scores events against enabled personas, restricting
// candidates to activePersonaIDs when non-nil (nil means "all enabled").
// Each event's candidates are capped to maxCommentsPerEvent after sorting by
// (severity_priority asc, persona_id asc, task_id asc).
func (p *Pipeline) EvaluateEvents(events []Event, activePersonaIDs map[string]struct{}) []Comment {
	enabled := make([]task.PersonaDefinition, 0, len(p.personas))
	for _, persona := range p.personas {
		if !persona.Enabled {
			continue
		}
		if activePersonaIDs != nil {
			if _, ok := activePersonaIDs[persona.ID]; !ok {
				continue
			}
		}
		enabled = append(enabled, persona)
	}

	var comments []Comment
	for _, event := range events {
		eventType := EventType(strings.TrimSpace(string(event.Type)))
		if eventType == "" {
			continue
		}
		severity, ok := severityByEvent[eventType]
		if !ok {
			continue
		}

		candidates := make([]Comment, 0, len(enabled))
		for _, persona := range enabled {
			candidates = append(candidates, buildComment(persona, event, eventType, severity))
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if severityPriority[a.Severity] != severityPriority[b.Severity] {
				return severityPriority[a.Severity] < severityPriority[b.Severity]
			}
			if a.PersonaID != b.PersonaID {
				return a.PersonaID < b.PersonaID
			}
			return a.TaskID < b.TaskID
		})
		if len(candidates) > p.maxCommentsPerEvent {
			candidates = candidates[:p.maxCommentsPerEvent]
		}
		comments = append(comments, candidates...)
	}
	return comments
}

// buildComment scores one persona's comment on event. A persona entitled to
// can_block always comments at blocker severity, regardless of the event's
// default severity — the scheduler's severity action still requires
// transition permission before a blocker comment can actually stop the loop.
func buildComment(persona task.PersonaDefinition, event Event, eventType EventType, severity Severity) Comment {
	if persona.CanBlock {
		severity = SeverityBlocker
	}
	detail := strings.TrimSpace(event.Detail)
	message := fmt.Sprintf("%s observed %s", persona.ID, eventType)
	if event.TaskID != "" {
		message = fmt.Sprintf("%s task=%s", message, event.TaskID)
	}
	if detail != "" {
		message = fmt.Sprintf("%s detail=%s", message, detail)
	}
	if len(message) > maxDetailLen {
		message = message[:maxDetailLen]
	}
	return Comment{
		PersonaID: persona.ID,
		Severity:  severity,
		TaskID:    event.TaskID,
		EventType: eventType,
		Detail:    message,
	}
}

// WarnRecheckEvent builds the synthetic event a warn-severity comment
// defers into next round's event list.
func WarnRecheckEvent(personaID string, fromEventType EventType) Event {
	return Event{
		Type:   EventWarnRecheck,
		Detail: fmt.Sprintf("persona=%s from=%s", personaID, fromEventType),
	}
}
