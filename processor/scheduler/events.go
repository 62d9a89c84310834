package scheduler

import (
	"fmt"

	"github.com/c360studio/taskorchestrator/processor/personapipeline"
)

func kickoffEvent(teamSize int) personapipeline.Event {
	return personapipeline.Event{
		Type:   personapipeline.EventKickoff,
		Detail: fmt.Sprintf("round loop starting with %d teammate(s)", teamSize),
	}
}

func taskCompletedEvent(taskID, teammate, summary string) personapipeline.Event {
	return personapipeline.Event{
		Type:     personapipeline.EventTaskCompleted,
		TaskID:   taskID,
		Teammate: teammate,
		Detail:   summary,
	}
}

func needsApprovalEvent(taskID, teammate string) personapipeline.Event {
	return personapipeline.Event{
		Type:     personapipeline.EventNeedsApproval,
		TaskID:   taskID,
		Teammate: teammate,
		Detail:   "plan submitted for review",
	}
}

func noProgressEvent(idleRounds int) personapipeline.Event {
	return personapipeline.Event{
		Type:   personapipeline.EventNoProgress,
		Detail: fmt.Sprintf("no state change across %d round(s)", idleRounds),
	}
}

func collisionEvent(waitingTaskID, runningTaskID string) personapipeline.Event {
	return personapipeline.Event{
		Type:   personapipeline.EventCollision,
		TaskID: waitingTaskID,
		Detail: fmt.Sprintf("target paths overlap running task %s", runningTaskID),
	}
}

func blockedEvent(taskID, teammate, reason string) personapipeline.Event {
	return personapipeline.Event{
		Type:     personapipeline.EventBlocked,
		TaskID:   taskID,
		Teammate: teammate,
		Detail:   reason,
	}
}

func taskHandoffEvent(taskID, teammate, nextPhase string) personapipeline.Event {
	return personapipeline.Event{
		Type:     personapipeline.EventTaskHandoff,
		TaskID:   taskID,
		Teammate: teammate,
		Detail:   fmt.Sprintf("handed off to phase %s", nextPhase),
	}
}
