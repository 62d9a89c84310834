// Package decision defines the read-only snapshot the scheduler hands to a
// decision provider each round, the strict decision object it gets back,
// and the validation that rejects anything outside the enum/shape contract.
package decision

import (
	"fmt"

	"github.com/c360studio/taskorchestrator/task"
)

const (
	maxFeedbackLen   = 200
	maxMessageLen    = 300
	maxReasonLen     = 200
	maxDecisionType  = 80
	maxProviderLen   = 40
	maxModelLen      = 80
	defaultInputTok  = 4000
	defaultOutputTok = 800
)

// TaskSnapshot is one task's read-only projection exposed to a provider.
type TaskSnapshot struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Status            string  `json:"status"`
	Owner             *string `json:"owner"`
	Planner           *string `json:"planner"`
	DependsOn         []string `json:"depends_on"`
	TargetPaths       []string `json:"target_paths"`
	RequiresPlan      bool    `json:"requires_plan"`
	PlanStatus        string  `json:"plan_status"`
	CurrentPhaseIndex int     `json:"current_phase_index"`
	CurrentPhase      string  `json:"current_phase,omitempty"`
	PlanExcerpt       string  `json:"plan_excerpt"`
	BlockReason       string  `json:"block_reason"`
}

// MessageSnapshot is one recent mailbox message's read-only projection.
type MessageSnapshot struct {
	Seq          int     `json:"seq"`
	Sender       string  `json:"sender"`
	Receiver     string  `json:"receiver"`
	TaskID       *string `json:"task_id"`
	ContentShort string  `json:"content_short"`
}

// Snapshot is the full read-only state handed to a provider for one round.
type Snapshot struct {
	LeadID          string            `json:"lead_id"`
	Teammates       []string          `json:"teammates"`
	Personas        []task.PersonaDefinition `json:"personas"`
	RoundIndex      int               `json:"round_index"`
	IdleRounds      int               `json:"idle_rounds"`
	StatusSummary   map[string]int    `json:"status_summary"`
	Events          []map[string]string `json:"events"`
	PersonaComments []map[string]any `json:"persona_comments"`
	Tasks           []TaskSnapshot    `json:"tasks"`
	RecentMessages  []MessageSnapshot `json:"recent_messages"`
	LastDecisions   []map[string]any `json:"last_decisions"`
}

// DecisionEntry is one routing/state-update rationale in a Decision's
// `decisions` list — advisory only, never applied by the scheduler.
type DecisionEntry struct {
	Type        string  `json:"type"`
	TaskID      *string `json:"task_id"`
	Teammate    *string `json:"teammate"`
	ReasonShort string  `json:"reason_short"`
}

// TaskUpdate is one requested task mutation in a Decision's `task_updates`
// list. The scheduler applies this only after its own policy checks.
type TaskUpdate struct {
	TaskID     string          `json:"task_id"`
	NewStatus  task.Status     `json:"new_status"`
	Owner      *string         `json:"owner"`
	PlanAction *task.PlanAction `json:"plan_action"`
	Feedback   string          `json:"feedback"`
}

// Message is one lead-authored mailbox message to send.
type Message struct {
	To       string `json:"to"`
	TextShort string `json:"text_short"`
}

// Stop carries the provider's request (if any) to end the round loop.
type Stop struct {
	ShouldStop  bool   `json:"should_stop"`
	ReasonShort string `json:"reason_short"`
}

// TokenBudget records the input/output token ceilings the provider used.
type TokenBudget struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Meta carries provenance about how a Decision was produced.
type Meta struct {
	Provider    string      `json:"provider"`
	Model       string      `json:"model"`
	TokenBudget TokenBudget `json:"token_budget"`
	ElapsedMs   int         `json:"elapsed_ms"`
}

// Decision is a provider's strict-JSON response for one round.
type Decision struct {
	Decisions   []DecisionEntry `json:"decisions"`
	TaskUpdates []TaskUpdate    `json:"task_updates"`
	Messages    []Message       `json:"messages"`
	Stop        Stop            `json:"stop"`
	Meta        Meta            `json:"meta"`
}

// ValidationError reports a Decision's violation of the provider contract.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("decision validation: %s", e.Reason)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// Validate checks d's enum fields and truncates its free-text fields to the
// provider contract's limits, returning the normalized Decision. It never
// mutates d in place.
func Validate(d Decision) (Decision, error) {
	out := d

	out.TaskUpdates = make([]TaskUpdate, 0, len(d.TaskUpdates))
	for _, u := range d.TaskUpdates {
		if u.TaskID == "" {
			return Decision{}, &ValidationError{Reason: "task_updates[].task_id is required"}
		}
		if !u.NewStatus.IsValid() {
			return Decision{}, &ValidationError{Reason: fmt.Sprintf("invalid new_status: %s", u.NewStatus)}
		}
		if u.PlanAction != nil && !u.PlanAction.IsValid() {
			return Decision{}, &ValidationError{Reason: fmt.Sprintf("invalid plan_action: %s", *u.PlanAction)}
		}
		u.Feedback = truncate(u.Feedback, maxFeedbackLen)
		out.TaskUpdates = append(out.TaskUpdates, u)
	}

	out.Messages = make([]Message, 0, len(d.Messages))
	for _, m := range d.Messages {
		if m.To == "" {
			return Decision{}, &ValidationError{Reason: "messages[].to is required"}
		}
		if m.TextShort == "" {
			return Decision{}, &ValidationError{Reason: "messages[].text_short is required"}
		}
		m.TextShort = truncate(m.TextShort, maxMessageLen)
		out.Messages = append(out.Messages, m)
	}

	out.Stop.ReasonShort = truncate(d.Stop.ReasonShort, maxReasonLen)

	out.Decisions = make([]DecisionEntry, 0, len(d.Decisions))
	for _, entry := range d.Decisions {
		entry.Type = truncate(entry.Type, maxDecisionType)
		entry.ReasonShort = truncate(entry.ReasonShort, maxReasonLen)
		out.Decisions = append(out.Decisions, entry)
	}

	out.Meta.Provider = truncate(orDefault(d.Meta.Provider, "unknown"), maxProviderLen)
	out.Meta.Model = truncate(orDefault(d.Meta.Model, "unknown"), maxModelLen)
	if out.Meta.TokenBudget.Input == 0 {
		out.Meta.TokenBudget.Input = defaultInputTok
	}
	if out.Meta.TokenBudget.Output == 0 {
		out.Meta.TokenBudget.Output = defaultOutputTok
	}

	return out, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
