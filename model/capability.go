// Package model provides capability-based model selection for the
// orchestrator's decision provider. Instead of hardcoding model names, a
// caller asks for a capability (planning, reviewing, fast, ...) and the
// registry resolves it to an available endpoint with a fallback chain.
package model

// Capability represents a semantic capability for model selection.
// Instead of specifying "claude-sonnet", callers specify "planning" or
// "fast".
type Capability string

const (
	// CapabilityPlanning backs plan-review reasoning (approve/reject/revise).
	CapabilityPlanning Capability = "planning"

	// CapabilityWriting backs mailbox message drafting for the lead.
	CapabilityWriting Capability = "writing"

	// CapabilityCoding backs persona-executor guidance when a persona owns
	// a task's execution phase.
	CapabilityCoding Capability = "coding"

	// CapabilityReviewing backs persona critical/blocker escalation
	// explanations.
	CapabilityReviewing Capability = "reviewing"

	// CapabilityFast backs the lightweight per-round scheduling decision.
	CapabilityFast Capability = "fast"
)

// RoleCapabilities maps decision-provider callers to their default
// capability. Used when no explicit capability or model is specified.
var RoleCapabilities = map[string]Capability{
	"lead":            CapabilityFast,
	"plan-reviewer":   CapabilityPlanning,
	"persona-executor": CapabilityCoding,
	"persona-critical": CapabilityReviewing,
	"mailbox-writer":  CapabilityWriting,
}

// CapabilityForRole returns the default capability for a given role.
// Returns CapabilityWriting as fallback for unknown roles.
func CapabilityForRole(role string) Capability {
	if capVal, ok := RoleCapabilities[role]; ok {
		return capVal
	}
	return CapabilityWriting
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityPlanning, CapabilityWriting, CapabilityCoding, CapabilityReviewing, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	capVal := Capability(s)
	if capVal.IsValid() {
		return capVal
	}
	return ""
}
