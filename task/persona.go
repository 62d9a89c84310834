package task

// PersonaRole classifies a persona's primary concern. Unlike Status and
// PlanStatus this is an open-ish enumeration in spirit (the compiler
// rejects unknown roles) but is still closed here to the five values the
// catalog and compiler both recognize.
type PersonaRole string

const (
	PersonaRoleImplementer PersonaRole = "implementer"
	PersonaRoleReviewer    PersonaRole = "reviewer"
	PersonaRoleSpecGuard   PersonaRole = "spec_guard"
	PersonaRoleTestGuard   PersonaRole = "test_guard"
	PersonaRoleCustom      PersonaRole = "custom"
)

// IsValid reports whether r is one of the five known roles.
func (r PersonaRole) IsValid() bool {
	switch r {
	case PersonaRoleImplementer, PersonaRoleReviewer, PersonaRoleSpecGuard, PersonaRoleTestGuard, PersonaRoleCustom:
		return true
	}
	return false
}

// PersonaExecutionConfig, when present and Enabled, lets a persona act as an
// execution subject (own tasks) in addition to its advisory role.
// CommandRef, Sandbox and TimeoutSec are informational metadata passed
// through to a future command-ref-routing adapter; the scheduler itself
// never reads them (see spec Design Notes).
type PersonaExecutionConfig struct {
	Enabled    bool   `json:"enabled"`
	CommandRef string `json:"command_ref"`
	Sandbox    string `json:"sandbox"`
	TimeoutSec int    `json:"timeout_sec"`
}

// PersonaDefinition describes one advisory/executing subject.
type PersonaDefinition struct {
	ID        string                  `json:"id"`
	Role      PersonaRole             `json:"role"`
	Focus     string                  `json:"focus"`
	CanBlock  bool                    `json:"can_block"`
	Enabled   bool                    `json:"enabled"`
	Execution *PersonaExecutionConfig `json:"execution,omitempty"`
}

// ExecutionEnabled reports whether this persona is configured to own task
// execution, not merely comment on it.
func (p PersonaDefinition) ExecutionEnabled() bool {
	return p.Execution != nil && p.Execution.Enabled
}
