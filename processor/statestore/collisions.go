package statestore

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Collision pairs a ready-but-waiting task with the in-progress task whose
// target paths it overlaps.
type Collision struct {
	WaitingTaskID string `json:"waiting_task_id"`
	RunningTaskID string `json:"running_task_id"`
}

const wildcardTarget = "*"

// globChars are the doublestar metacharacters; a target path containing any
// of them is treated as a pattern rather than a literal path.
const globChars = "*?[{"

func isGlobPattern(p string) bool {
	return strings.ContainsAny(p, globChars)
}

// targetsOverlap reports whether any path in a collides with any path in b.
// The wildcard "*" is a permissive placeholder and never collides with
// anything (spec §3: "no two in_progress tasks share a non-wildcard target
// path"). Beyond plain string equality, a path containing glob
// metacharacters is matched against the other side's literal paths with
// doublestar — this is additive: it only turns a would-be non-collision
// into a collision when one side is a pattern whose expansion covers a
// concrete path the other side owns; it never suppresses an equality match.
func targetsOverlap(a, b []string) bool {
	for _, pa := range a {
		if pa == wildcardTarget {
			continue
		}
		for _, pb := range b {
			if pb == wildcardTarget {
				continue
			}
			if pa == pb {
				return true
			}
			if isGlobPattern(pa) {
				if ok, _ := doublestar.Match(pa, pb); ok {
					return true
				}
			}
			if isGlobPattern(pb) {
				if ok, _ := doublestar.Match(pb, pa); ok {
					return true
				}
			}
		}
	}
	return false
}
