// Package personapolicy resolves, per task and phase, which personas are
// active (receive events), executors (may own task execution), or permitted
// to transition a task's status via a persona comment. It is consulted by
// both the scheduler (claim restriction, transition permission) and the
// persona pipeline (active-persona filtering).
package personapolicy

import "github.com/c360studio/taskorchestrator/task"

// DefaultPhaseOrder is the canonical phase sequence. The Engine does not
// fall back to it: a task with no phase_order from either the global config
// or its own policy is resolved in non-phased mode.
var DefaultPhaseOrder = []string{"implement", "review", "spec_check", "test"}

// Key names one of the three persona-id lists a PhasePolicy carries.
type Key int

const (
	ActivePersonas Key = iota
	ExecutorPersonas
	StateTransitionPersonas
)

// GlobalConfig is the process-wide phase configuration: the canonical phase
// ordering and the per-phase policy defaults, both normally sourced from a
// change document's `persona_defaults` block.
type GlobalConfig struct {
	PhaseOrder    []string                   `json:"phase_order,omitempty"`
	PhasePolicies map[string]task.PhasePolicy `json:"phase_policies,omitempty"`
}

// Engine resolves per-task, per-phase persona lists.
type Engine struct {
	global   GlobalConfig
	personas []task.PersonaDefinition
}

// New builds a policy Engine over the given global phase configuration and
// persona catalog.
func New(global GlobalConfig, personas []task.PersonaDefinition) *Engine {
	if global.PhasePolicies == nil {
		global.PhasePolicies = map[string]task.PhasePolicy{}
	}
	return &Engine{global: global, personas: personas}
}

func fieldFor(p task.PhasePolicy, key Key) []string {
	switch key {
	case ActivePersonas:
		return p.ActivePersonas
	case ExecutorPersonas:
		return p.ExecutorPersonas
	case StateTransitionPersonas:
		return p.StateTransitionPersonas
	}
	return nil
}

func (e *Engine) effectivePhaseOrder(t *task.Task) []string {
	if t.PersonaPolicy != nil && len(t.PersonaPolicy.PhaseOrder) > 0 {
		return t.PersonaPolicy.PhaseOrder
	}
	return e.global.PhaseOrder
}

// mergedPhasePolicy merges the global phase policy for phase with the
// task's override for the same phase, per field — the task override wins
// per key, not as a whole-object replacement. ok is false if neither the
// global config nor the task defines anything for this phase.
func (e *Engine) mergedPhasePolicy(t *task.Task, phase string) (task.PhasePolicy, bool) {
	global, hasGlobal := e.global.PhasePolicies[phase]
	var override task.PhasePolicy
	hasOverride := false
	if t.PersonaPolicy != nil {
		if o, ok := t.PersonaPolicy.PhaseOverrides[phase]; ok {
			override = o
			hasOverride = true
		}
	}
	if !hasGlobal && !hasOverride {
		return task.PhasePolicy{}, false
	}
	merged := task.PhasePolicy{
		ActivePersonas:          firstNonEmpty(override.ActivePersonas, global.ActivePersonas),
		ExecutorPersonas:        firstNonEmpty(override.ExecutorPersonas, global.ExecutorPersonas),
		StateTransitionPersonas: firstNonEmpty(override.StateTransitionPersonas, global.StateTransitionPersonas),
	}
	return merged, true
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}

func excludeDisabled(ids []string, disabled map[string]struct{}) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := disabled[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (e *Engine) allEnabledExcluding(disabled map[string]struct{}) []string {
	var out []string
	for _, p := range e.personas {
		if !p.Enabled {
			continue
		}
		if _, ok := disabled[p.ID]; ok {
			continue
		}
		out = append(out, p.ID)
	}
	return out
}

// Resolve returns the persona id list for key at task t's current phase:
//   - if no phase ordering applies to t, every enabled, non-disabled persona;
//   - else the per-field merge of the global and task-override phase policy,
//     with state_transition_personas falling back to executor_personas when
//     the merge leaves it empty. A phase with no policy, or a phase index
//     past the end, resolves to nil so the caller schedules nothing for
//     this task.
func (e *Engine) Resolve(t *task.Task, key Key) []string {
	disabled := t.DisabledPersonas()
	phaseOrder := e.effectivePhaseOrder(t)
	if len(phaseOrder) == 0 {
		return e.allEnabledExcluding(disabled)
	}
	idx := t.CurrentPhaseIndex
	if idx < 0 || idx >= len(phaseOrder) {
		return nil
	}
	phase := phaseOrder[idx]
	policy, ok := e.mergedPhasePolicy(t, phase)
	if !ok {
		return nil
	}
	list := fieldFor(policy, key)
	if key == StateTransitionPersonas && len(list) == 0 {
		list = fieldFor(policy, ExecutorPersonas)
	}
	return excludeDisabled(list, disabled)
}

// CurrentPhase returns the name of t's current phase under phaseOrder, or
// "" if no phase ordering applies or the index has run past the end.
func (e *Engine) CurrentPhase(t *task.Task) string {
	phaseOrder := e.effectivePhaseOrder(t)
	if len(phaseOrder) == 0 || t.CurrentPhaseIndex >= len(phaseOrder) {
		return ""
	}
	return phaseOrder[t.CurrentPhaseIndex]
}

// NextPhase returns the next phase index and name after t's current phase,
// or ok=false if t has no further phase to advance into.
func (e *Engine) NextPhase(t *task.Task) (index int, name string, ok bool) {
	phaseOrder := e.effectivePhaseOrder(t)
	next := t.CurrentPhaseIndex + 1
	if next >= len(phaseOrder) {
		return 0, "", false
	}
	return next, phaseOrder[next], true
}

// CanTransition reports whether personaID may escalate task t's status —
// true unconditionally when t has no phase ordering (non-phased mode always
// permits transitions), otherwise true iff personaID resolves into t's
// state_transition_personas (with its executor_personas fallback) and isn't
// task-disabled.
func (e *Engine) CanTransition(t *task.Task, personaID string) bool {
	if _, disabled := t.DisabledPersonas()[personaID]; disabled {
		return false
	}
	phaseOrder := e.effectivePhaseOrder(t)
	if len(phaseOrder) == 0 {
		return true
	}
	allowed := e.Resolve(t, StateTransitionPersonas)
	for _, id := range allowed {
		if id == personaID {
			return true
		}
	}
	return false
}

// AllowedExecutionTaskIDs returns the set of task ids whose executor_personas
// for their current phase include personaID — used to restrict a
// persona-execution-subject's claim to tasks it's actually scheduled to own.
func (e *Engine) AllowedExecutionTaskIDs(tasks []*task.Task, personaID string) map[string]struct{} {
	allowed := make(map[string]struct{})
	for _, t := range tasks {
		for _, id := range e.Resolve(t, ExecutorPersonas) {
			if id == personaID {
				allowed[t.ID] = struct{}{}
				break
			}
		}
	}
	return allowed
}

// ActivePersonaIDs returns the set of persona ids permitted to comment on
// events concerning task t. The set is never nil; it is empty when no
// persona is active for t's current phase.
func (e *Engine) ActivePersonaIDs(t *task.Task) map[string]struct{} {
	ids := e.Resolve(t, ActivePersonas)
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
