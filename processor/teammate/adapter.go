// Package teammate defines the narrow boundary between the scheduler and
// whatever actually does task work — a template stand-in for tests, or a
// subprocess that drives an external agent.
package teammate

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/taskorchestrator/task"
)

// ProgressFunc receives one line of execution output as it streams in.
type ProgressFunc func(source task.ProgressSource, text string)

// Adapter builds a plan for a task and executes a task, returning a short
// free-text result summary. Execute may stream progress via onProgress,
// which is nil when the caller doesn't want streaming.
type Adapter interface {
	BuildPlan(ctx context.Context, teammateID string, t *task.Task) (string, error)
	ExecuteTask(ctx context.Context, teammateID string, t *task.Task, onProgress ProgressFunc) (string, error)
}

// TemplateAdapter is a deterministic, dependency-free Adapter used for
// local runs and tests: it never shells out, producing canned plan and
// result text from the task's own fields.
type TemplateAdapter struct {
	PlanTemplate   string
	ResultTemplate string
}

// NewTemplateAdapter builds a TemplateAdapter with the default templates.
func NewTemplateAdapter() *TemplateAdapter {
	return &TemplateAdapter{
		PlanTemplate: "1) Clarify acceptance criteria\n" +
			"2) Edit owned files only\n" +
			"3) Run local checks and report",
		ResultTemplate: "Implemented task %s on %s",
	}
}

func formatPaths(paths []string) string {
	if len(paths) == 0 {
		return "(no paths)"
	}
	return strings.Join(paths, ", ")
}

func (a *TemplateAdapter) BuildPlan(_ context.Context, teammateID string, t *task.Task) (string, error) {
	return "teammate=" + teammateID + "\n" +
		"task=" + t.ID + "\n" +
		"target_paths=" + formatPaths(t.TargetPaths) + "\n" +
		a.PlanTemplate, nil
}

func (a *TemplateAdapter) ExecuteTask(_ context.Context, _ string, t *task.Task, _ ProgressFunc) (string, error) {
	return fmt.Sprintf(a.ResultTemplate, t.ID, formatPaths(t.TargetPaths)), nil
}
