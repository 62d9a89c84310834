// Package task defines the orchestrator's core data model: the task record
// and its lifecycle fields, mailbox messages, and persona/phase policy
// structures attached to a task. It has no dependency on the scheduler,
// state store, or persona pipeline — those packages import task, never the
// reverse.
package task

import "time"

// Status is the task's primary lifecycle state.
type Status string

const (
	StatusPending       Status = "pending"
	StatusInProgress    Status = "in_progress"
	StatusBlocked       Status = "blocked"
	StatusNeedsApproval Status = "needs_approval"
	StatusCompleted     Status = "completed"
)

// IsValid reports whether s is one of the five known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusBlocked, StatusNeedsApproval, StatusCompleted:
		return true
	}
	return false
}

// PlanStatus tracks a task through its optional planning sub-state machine.
type PlanStatus string

const (
	PlanStatusNotRequired      PlanStatus = "not_required"
	PlanStatusPending          PlanStatus = "pending"
	PlanStatusDrafting         PlanStatus = "drafting"
	PlanStatusSubmitted        PlanStatus = "submitted"
	PlanStatusApproved         PlanStatus = "approved"
	PlanStatusRejected         PlanStatus = "rejected"
	PlanStatusRevisionRequested PlanStatus = "revision_requested"
)

// PlanAction is a lead/provider decision applied to a submitted plan.
type PlanAction string

const (
	PlanActionApprove PlanAction = "approve"
	PlanActionReject  PlanAction = "reject"
	PlanActionRevise  PlanAction = "revise"
)

// IsValid reports whether a is one of the three known plan actions.
func (a PlanAction) IsValid() bool {
	switch a {
	case PlanActionApprove, PlanActionReject, PlanActionRevise:
		return true
	}
	return false
}

// ProgressSource labels the origin of a progress log line.
type ProgressSource string

const (
	ProgressSourceStdout ProgressSource = "stdout"
	ProgressSourceStderr ProgressSource = "stderr"
	ProgressSourceSystem ProgressSource = "system"
)

// DefaultTaskProgressLogLimit is the default ring-buffer capacity for a
// task's progress log.
const DefaultTaskProgressLogLimit = 500

// ProgressEntry is one line of a task's bounded progress log.
type ProgressEntry struct {
	Timestamp float64        `json:"timestamp"`
	Source    ProgressSource `json:"source"`
	Text      string         `json:"text"`
}

// PersonaPolicy is the task-local persona policy override block attached to
// a Task: disabled persona ids, an optional phase ordering, and per-phase
// policy overrides merged over the global defaults by PolicyEngine.
type PersonaPolicy struct {
	DisablePersonas []string               `json:"disable_personas,omitempty"`
	PhaseOrder      []string               `json:"phase_order,omitempty"`
	PhaseOverrides  map[string]PhasePolicy `json:"phase_overrides,omitempty"`
}

// PhasePolicy names, for one phase, which personas watch it, which may own
// execution of a task while it's in that phase, and which may escalate a
// task's status via a persona comment.
type PhasePolicy struct {
	ActivePersonas           []string `json:"active_personas,omitempty"`
	ExecutorPersonas         []string `json:"executor_personas,omitempty"`
	StateTransitionPersonas []string `json:"state_transition_personas,omitempty"`
}

// Task is a unit of work with declared file targets, dependencies, and a
// mutable lifecycle. Fields mirror the on-disk state.json layout field for
// field; see processor/statestore for the persistence contract.
type Task struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	TargetPaths  []string `json:"target_paths"`
	DependsOn    []string `json:"depends_on"`
	Owner        *string  `json:"owner"`
	Planner      *string  `json:"planner"`
	Status       Status   `json:"status"`
	RequiresPlan bool     `json:"requires_plan"`
	PlanStatus   PlanStatus `json:"plan_status"`
	PlanText     *string    `json:"plan_text"`
	PlanFeedback *string    `json:"plan_feedback"`
	ResultSummary *string   `json:"result_summary"`
	BlockReason  *string    `json:"block_reason"`
	CreatedAt    float64  `json:"created_at"`
	UpdatedAt    float64  `json:"updated_at"`
	CompletedAt  *float64 `json:"completed_at"`

	CurrentPhaseIndex int             `json:"current_phase_index"`
	ProgressLog       []ProgressEntry `json:"progress_log"`
	PersonaPolicy     *PersonaPolicy  `json:"persona_policy,omitempty"`
}

// New builds a Task with lifecycle defaults applied: requires_plan is false
// and plan_status is not_required (ApplyRequiresPlan derives both for a
// task that needs a plan), status starts pending, and timestamps are
// stamped with now.
func New(id, title string, now float64) *Task {
	t := &Task{
		ID:           id,
		Title:        title,
		TargetPaths:  []string{},
		DependsOn:    []string{},
		Status:       StatusPending,
		PlanStatus:   PlanStatusNotRequired,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return t
}

// ApplyRequiresPlan sets RequiresPlan and derives the initial PlanStatus the
// way the compiler does at bootstrap — only meaningful before the task has
// entered the store; it does not re-derive PlanStatus once a task is live.
func (t *Task) ApplyRequiresPlan(requiresPlan bool) {
	t.RequiresPlan = requiresPlan
	if requiresPlan {
		t.PlanStatus = PlanStatusPending
	} else {
		t.PlanStatus = PlanStatusNotRequired
	}
}

// Clone returns a deep copy safe to mutate independently of t.
func (t *Task) Clone() *Task {
	clone := *t
	clone.TargetPaths = append([]string(nil), t.TargetPaths...)
	clone.DependsOn = append([]string(nil), t.DependsOn...)
	clone.ProgressLog = append([]ProgressEntry(nil), t.ProgressLog...)
	if t.Owner != nil {
		owner := *t.Owner
		clone.Owner = &owner
	}
	if t.Planner != nil {
		planner := *t.Planner
		clone.Planner = &planner
	}
	if t.PlanText != nil {
		v := *t.PlanText
		clone.PlanText = &v
	}
	if t.PlanFeedback != nil {
		v := *t.PlanFeedback
		clone.PlanFeedback = &v
	}
	if t.ResultSummary != nil {
		v := *t.ResultSummary
		clone.ResultSummary = &v
	}
	if t.BlockReason != nil {
		v := *t.BlockReason
		clone.BlockReason = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		clone.CompletedAt = &v
	}
	if t.PersonaPolicy != nil {
		pp := *t.PersonaPolicy
		pp.DisablePersonas = append([]string(nil), t.PersonaPolicy.DisablePersonas...)
		pp.PhaseOrder = append([]string(nil), t.PersonaPolicy.PhaseOrder...)
		if t.PersonaPolicy.PhaseOverrides != nil {
			pp.PhaseOverrides = make(map[string]PhasePolicy, len(t.PersonaPolicy.PhaseOverrides))
			for k, v := range t.PersonaPolicy.PhaseOverrides {
				pp.PhaseOverrides[k] = v
			}
		}
		clone.PersonaPolicy = &pp
	}
	return &clone
}

// DisabledPersonas returns the task-local disabled persona id set, empty
// when the task carries no persona policy.
func (t *Task) DisabledPersonas() map[string]struct{} {
	disabled := make(map[string]struct{})
	if t.PersonaPolicy == nil {
		return disabled
	}
	for _, id := range t.PersonaPolicy.DisablePersonas {
		disabled[id] = struct{}{}
	}
	return disabled
}

// MailMessage is an append-only, totally ordered mailbox entry.
type MailMessage struct {
	Seq       int     `json:"seq"`
	Sender    string  `json:"sender"`
	Receiver  string  `json:"receiver"`
	Content   string  `json:"content"`
	TaskID    *string `json:"task_id"`
	CreatedAt float64 `json:"created_at"`
}

// Now returns the current wall-clock time in the floating-point seconds
// format used throughout the store (mirrors Python's time.time()).
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
