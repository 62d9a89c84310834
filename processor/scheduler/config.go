// Package scheduler drives the orchestrator's cooperative round loop: one
// pass per tick over every execution subject, collision detection, persona
// evaluation, and a decision-provider call, until a stop condition fires.
package scheduler

import (
	"os"
	"strings"
	"time"

	"github.com/c360studio/taskorchestrator/processor/personapolicy"
	"github.com/c360studio/taskorchestrator/task"
)

// Config is the round loop's tunable behavior, normally sourced from a
// change document's run-level settings or process environment.
type Config struct {
	LeadID                 string
	TeammateIDs            []string
	Personas               []task.PersonaDefinition
	MaxRounds              int
	MaxIdleRounds          int
	MaxIdleSeconds         int
	NoProgressEventInterval int
	TaskProgressLogLimit   int
	TickInterval           time.Duration
	HumanApproval          *bool
	AutoApproveFallback    *bool
	PersonaDefaults        personapolicy.GlobalConfig
}

// DefaultConfig returns the round loop's built-in defaults, before
// environment/document overrides are applied.
func DefaultConfig() Config {
	return Config{
		LeadID:                 "lead",
		MaxRounds:              200,
		MaxIdleRounds:          20,
		MaxIdleSeconds:         120,
		NoProgressEventInterval: 3,
		TaskProgressLogLimit:   task.DefaultTaskProgressLogLimit,
	}
}

// ResolvedTeammates returns the configured teammate ids, defaulting to two
// placeholder ids when none are configured.
func (c Config) ResolvedTeammates() []string {
	if len(c.TeammateIDs) > 0 {
		return c.TeammateIDs
	}
	return []string{"teammate-1", "teammate-2"}
}

// ResolvedExecutionPersonas returns the ids of personas whose execution
// config is present and enabled — the set that, when non-empty, switches
// the scheduler into persona-execution-subject mode.
func (c Config) ResolvedExecutionPersonas() []string {
	var ids []string
	for _, p := range c.Personas {
		if !p.Enabled {
			continue
		}
		if !p.ExecutionEnabled() {
			continue
		}
		ids = append(ids, p.ID)
	}
	return ids
}

// ResolvedHumanApproval resolves the human-approval gate: explicit config
// wins, otherwise the HUMAN_APPROVAL=1 environment variable.
func (c Config) ResolvedHumanApproval() bool {
	if c.HumanApproval != nil {
		return *c.HumanApproval
	}
	return strings.TrimSpace(os.Getenv("HUMAN_APPROVAL")) == "1"
}

// ResolvedAutoApproveFallback resolves the auto-approve-fallback behavior:
// explicit config wins, otherwise the ORCHESTRATOR_AUTO_APPROVE_FALLBACK
// environment variable, defaulting to enabled.
func (c Config) ResolvedAutoApproveFallback() bool {
	if c.AutoApproveFallback != nil {
		return *c.AutoApproveFallback
	}
	raw := strings.TrimSpace(os.Getenv("ORCHESTRATOR_AUTO_APPROVE_FALLBACK"))
	if raw == "" {
		return true
	}
	return raw == "1"
}
