package personapipeline

import (
	"testing"

	"github.com/c360studio/taskorchestrator/task"
)

func testPersonas() []task.PersonaDefinition {
	return []task.PersonaDefinition{
		{ID: "implementer", Enabled: true},
		{ID: "code-reviewer", Enabled: true},
		{ID: "spec-checker", Enabled: true, CanBlock: true},
		{ID: "disabled-one", Enabled: false},
	}
}

func TestEvaluateEventsIgnoresUnknownType(t *testing.T) {
	p := New(testPersonas(), 2)
	comments := p.EvaluateEvents([]Event{{Type: "Unknown"}}, nil)
	if len(comments) != 0 {
		t.Fatalf("expected no comments for unknown event type, got %d", len(comments))
	}
}

func TestEvaluateEventsCapsPerEvent(t *testing.T) {
	p := New(testPersonas(), 2)
	comments := p.EvaluateEvents([]Event{{Type: EventKickoff, TaskID: "A"}}, nil)
	if len(comments) != 2 {
		t.Fatalf("expected comments capped to 2, got %d", len(comments))
	}
}

func TestEvaluateEventsExcludesDisabledPersonas(t *testing.T) {
	p := New(testPersonas(), 10)
	comments := p.EvaluateEvents([]Event{{Type: EventKickoff, TaskID: "A"}}, nil)
	for _, c := range comments {
		if c.PersonaID == "disabled-one" {
			t.Fatalf("expected disabled-one excluded")
		}
	}
	if len(comments) != 3 {
		t.Fatalf("expected 3 comments (one per enabled persona), got %d", len(comments))
	}
}

func TestEvaluateEventsRestrictsToActivePersonaIDs(t *testing.T) {
	p := New(testPersonas(), 10)
	active := map[string]struct{}{"implementer": {}}
	comments := p.EvaluateEvents([]Event{{Type: EventKickoff, TaskID: "A"}}, active)
	if len(comments) != 1 || comments[0].PersonaID != "implementer" {
		t.Fatalf("expected only implementer, got %+v", comments)
	}
}

func TestEvaluateEventsSeverityMapping(t *testing.T) {
	p := New(testPersonas(), 10)
	cases := map[EventType]Severity{
		EventKickoff:       SeverityInfo,
		EventTaskCompleted: SeverityInfo,
		EventNeedsApproval: SeverityWarn,
		EventNoProgress:    SeverityWarn,
		EventCollision:     SeverityWarn,
		EventBlocked:       SeverityCritical,
		EventTaskHandoff:   SeverityInfo,
		EventWarnRecheck:   SeverityWarn,
	}
	for eventType, want := range cases {
		comments := p.EvaluateEvents([]Event{{Type: eventType, TaskID: "A"}}, map[string]struct{}{"implementer": {}})
		if len(comments) != 1 {
			t.Fatalf("expected 1 comment for %s, got %d", eventType, len(comments))
		}
		if comments[0].Severity != want {
			t.Errorf("%s: expected severity %s, got %s", eventType, want, comments[0].Severity)
		}
	}
}

func TestEvaluateEventsDeterministicOrdering(t *testing.T) {
	p := New(testPersonas(), 10)
	comments := p.EvaluateEvents([]Event{{Type: EventBlocked, TaskID: "A"}}, nil)
	if len(comments) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(comments))
	}
	ids := []string{comments[0].PersonaID, comments[1].PersonaID, comments[2].PersonaID}
	// spec-checker can block, so it comments at blocker severity and sorts
	// ahead of the two critical comments, which then sort by persona id.
	want := []string{"spec-checker", "code-reviewer", "implementer"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected severity-then-id persona order %v, got %v", want, ids)
		}
	}
}

func TestBuildCommentTruncatesDetail(t *testing.T) {
	longDetail := ""
	for i := 0; i < 50; i++ {
		longDetail += "0123456789"
	}
	p := New(testPersonas(), 10)
	comments := p.EvaluateEvents([]Event{{Type: EventKickoff, TaskID: "A", Detail: longDetail}}, map[string]struct{}{"implementer": {}})
	if len(comments[0].Detail) != maxDetailLen {
		t.Fatalf("expected detail truncated to %d chars, got %d", maxDetailLen, len(comments[0].Detail))
	}
}

func TestWarnRecheckEventDetail(t *testing.T) {
	event := WarnRecheckEvent("implementer", EventCollision)
	if event.Type != EventWarnRecheck {
		t.Fatalf("expected WarnRecheck type, got %s", event.Type)
	}
	if event.Detail != "persona=implementer from=Collision" {
		t.Fatalf("unexpected detail: %s", event.Detail)
	}
}
