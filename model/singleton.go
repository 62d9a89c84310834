package model

import "sync"

// Process-wide registry instance and its initialization guard. Kept as a
// singleton so every decision-provider call site (scheduler, CLI, tests)
// resolves capabilities against the same endpoint/health state.
var (
	globalRegistry *Registry
	globalOnce     sync.Once
)

// Global returns the process-wide registry, building NewDefaultRegistry on
// first call if InitGlobal hasn't already set one.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewDefaultRegistry()
	})
	return globalRegistry
}

// InitGlobal initializes the global registry with a custom instance.
// Must be called before any call to Global() to take effect.
// Safe for concurrent use but only the first call has any effect.
func InitGlobal(r *Registry) {
	globalOnce.Do(func() {
		globalRegistry = r
	})
}

// ResetGlobal resets the global registry for testing purposes.
// This is NOT thread-safe and should only be used in tests.
func ResetGlobal() {
	globalOnce = sync.Once{}
	globalRegistry = nil
}
