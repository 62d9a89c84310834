package teammate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/taskorchestrator/task"
)

func TestTemplateAdapterBuildPlanIncludesTargetPaths(t *testing.T) {
	a := NewTemplateAdapter()
	tk := task.New("T-1", "widget", 1)
	tk.TargetPaths = []string{"src/a", "src/b"}

	plan, err := a.BuildPlan(context.Background(), "tm-1", tk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(plan, "src/a, src/b") {
		t.Fatalf("expected target paths in plan, got %q", plan)
	}
	if !strings.Contains(plan, "teammate=tm-1") {
		t.Fatalf("expected teammate id in plan, got %q", plan)
	}
}

func TestTemplateAdapterBuildPlanNoPaths(t *testing.T) {
	a := NewTemplateAdapter()
	tk := task.New("T-1", "widget", 1)

	plan, err := a.BuildPlan(context.Background(), "tm-1", tk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(plan, "(no paths)") {
		t.Fatalf("expected no-paths placeholder, got %q", plan)
	}
}

func TestTemplateAdapterExecuteTask(t *testing.T) {
	a := NewTemplateAdapter()
	tk := task.New("T-1", "widget", 1)
	tk.TargetPaths = []string{"src/a"}

	result, err := a.ExecuteTask(context.Background(), "tm-1", tk, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Implemented task T-1 on src/a" {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestSubprocessAdapterRunsEchoCommand(t *testing.T) {
	a := NewSubprocessAdapter([]string{"cat"}, []string{"cat"}, nil)
	a.Timeout = 5 * time.Second
	a.StreamLogs = false
	tk := task.New("T-1", "widget", 1)

	result, err := a.BuildPlan(context.Background(), "tm-1", tk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, `"mode":"plan"`) {
		t.Fatalf("expected echoed request payload, got %q", result)
	}
}

func TestSubprocessAdapterFailsOnNonzeroExit(t *testing.T) {
	a := NewSubprocessAdapter([]string{"false"}, []string{"false"}, nil)
	a.Timeout = 5 * time.Second
	tk := task.New("T-1", "widget", 1)

	_, err := a.BuildPlan(context.Background(), "tm-1", tk)
	if err == nil {
		t.Fatalf("expected error for nonzero exit")
	}
}

func TestSubprocessAdapterEmptyCommand(t *testing.T) {
	a := NewSubprocessAdapter(nil, nil, nil)
	tk := task.New("T-1", "widget", 1)

	_, err := a.BuildPlan(context.Background(), "tm-1", tk)
	if err == nil {
		t.Fatalf("expected error for empty command")
	}
}
