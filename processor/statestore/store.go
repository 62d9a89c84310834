package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/c360studio/taskorchestrator/task"
)

// StateStore is the sole owner of on-disk orchestrator state: a directory
// containing state.json (the document) and state.lock (the advisory file
// lock sentinel). Every mutating method acquires the lock, reads the
// document, mutates in memory, writes tmp+rename, then releases.
type StateStore struct {
	stateDir  string
	stateFile string
	lockFile  string
}

// New opens (creating if necessary) a state store rooted at stateDir,
// initializing state.json with an empty document if it doesn't exist yet.
func New(stateDir string) (*StateStore, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("statestore: create state dir: %w", err)
	}
	s := &StateStore{
		stateDir:  stateDir,
		stateFile: filepath.Join(stateDir, "state.json"),
		lockFile:  filepath.Join(stateDir, "state.lock"),
	}
	if _, err := os.Stat(s.stateFile); os.IsNotExist(err) {
		if err := s.atomicWrite(newDocument(task.Now())); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("statestore: stat state.json: %w", err)
	}
	return s, nil
}

func (s *StateStore) readDocument() (*document, error) {
	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		return nil, fmt.Errorf("statestore: read state.json: %w", err)
	}
	return decodeDocument(data)
}

func (s *StateStore) atomicWrite(doc *document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	tmp := s.stateFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("statestore: write tmp state file: %w", err)
	}
	if err := os.Rename(tmp, s.stateFile); err != nil {
		return fmt.Errorf("statestore: rename tmp state file: %w", err)
	}
	return nil
}

// mutate acquires the exclusive lock, reads the document, runs fn against
// it, and — unless fn returns an error — atomically persists the result.
func (s *StateStore) mutate(fn func(doc *document) error) error {
	lockHandle, err := acquireExclusiveLock(s.lockFile)
	if err != nil {
		return err
	}
	defer releaseLock(lockHandle)

	doc, err := s.readDocument()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.atomicWrite(doc)
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BootstrapTasks inserts or replaces the full task set. When replace is
// false (resume mode), a task id already present in the store is left
// untouched but validated: its target_paths must match the incoming
// definition exactly, or a ValidationError naming "<id>:target_paths" is
// returned (spec scenario S9). Duplicate ids within the incoming slice
// itself are always rejected.
func (s *StateStore) BootstrapTasks(tasks []*task.Task, replace bool) error {
	now := task.Now()
	return s.mutate(func(doc *document) error {
		if replace {
			doc.Tasks = make(map[string]*task.Task)
		}
		seen := make(map[string]bool, len(tasks))
		for _, t := range tasks {
			if seen[t.ID] {
				return task.NewValidationError("duplicate task id in bootstrap set: %s", t.ID)
			}
			seen[t.ID] = true
			if !replace {
				if existing, ok := doc.Tasks[t.ID]; ok {
					if !equalStringSlices(existing.TargetPaths, t.TargetPaths) {
						return task.NewValidationError("%s:target_paths mismatch between resumed state and bootstrap input", t.ID)
					}
					continue
				}
			}
			doc.Tasks[t.ID] = t.Clone()
		}
		doc.touchProgress(now)
		return nil
	})
}

// AddTask inserts a single task, overwriting any existing task with the
// same id.
func (s *StateStore) AddTask(t *task.Task) error {
	now := task.Now()
	return s.mutate(func(doc *document) error {
		doc.Tasks[t.ID] = t.Clone()
		doc.touchProgress(now)
		return nil
	})
}

// GetTask returns a copy of the task with the given id, or ok=false if
// absent.
func (s *StateStore) GetTask(id string) (*task.Task, bool, error) {
	doc, err := s.readDocument()
	if err != nil {
		return nil, false, err
	}
	t, ok := doc.Tasks[id]
	if !ok {
		return nil, false, nil
	}
	return t.Clone(), true, nil
}

// ListTasks returns every task, in stable ascending id order.
func (s *StateStore) ListTasks() ([]*task.Task, error) {
	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	return sortedTasks(doc.Tasks), nil
}

func sortedTasks(tasks map[string]*task.Task) []*task.Task {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*task.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, tasks[id].Clone())
	}
	return out
}

func sortedTaskIDs(tasks map[string]*task.Task) []string {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func areDependenciesCompleted(t *task.Task, tasks map[string]*task.Task) bool {
	for _, depID := range t.DependsOn {
		dep, ok := tasks[depID]
		if !ok {
			return false
		}
		if dep.Status != task.StatusCompleted {
			return false
		}
	}
	return true
}

func hasTargetCollision(t *task.Task, tasks map[string]*task.Task) bool {
	if len(t.TargetPaths) == 0 {
		return false
	}
	for _, other := range tasks {
		if other.ID == t.ID {
			continue
		}
		if other.Status != task.StatusInProgress {
			continue
		}
		if len(other.TargetPaths) == 0 {
			continue
		}
		if targetsOverlap(t.TargetPaths, other.TargetPaths) {
			return true
		}
	}
	return false
}

func isExecutionReady(t *task.Task, tasks map[string]*task.Task) bool {
	if t.Status != task.StatusPending {
		return false
	}
	if t.Owner != nil {
		return false
	}
	if !areDependenciesCompleted(t, tasks) {
		return false
	}
	if t.RequiresPlan && t.PlanStatus != task.PlanStatusApproved {
		return false
	}
	return true
}

// ClaimPlanTask assigns the oldest-id pending task requiring a plan, not yet
// claimed by any planner, with completed dependencies, to teammateID. Sets
// planner and advances plan_status to drafting. Returns nil, nil when
// nothing is claimable.
func (s *StateStore) ClaimPlanTask(teammateID string) (*task.Task, error) {
	now := task.Now()
	var claimed *task.Task
	err := s.mutate(func(doc *document) error {
		for _, id := range sortedTaskIDs(doc.Tasks) {
			candidate := doc.Tasks[id]
			if candidate.Status != task.StatusPending {
				continue
			}
			if !candidate.RequiresPlan {
				continue
			}
			switch candidate.PlanStatus {
			case task.PlanStatusPending, task.PlanStatusRejected, task.PlanStatusRevisionRequested:
			default:
				continue
			}
			if candidate.Planner != nil {
				continue
			}
			if !areDependenciesCompleted(candidate, doc.Tasks) {
				continue
			}
			planner := teammateID
			candidate.Planner = &planner
			candidate.PlanStatus = task.PlanStatusDrafting
			candidate.UpdatedAt = now
			doc.touchProgress(now)
			claimed = candidate.Clone()
			return nil
		}
		return nil
	})
	return claimed, err
}

// SubmitPlan records teammateID's drafted plan text and moves the task to
// needs_approval/submitted.
func (s *StateStore) SubmitPlan(taskID, teammateID, planText string) (*task.Task, error) {
	now := task.Now()
	var result *task.Task
	err := s.mutate(func(doc *document) error {
		t, ok := doc.Tasks[taskID]
		if !ok {
			return task.NewStateConflictError("SubmitPlan", taskID, "task not found")
		}
		if t.Planner == nil || *t.Planner != teammateID {
			return task.NewStateConflictError("SubmitPlan", taskID, "planner mismatch")
		}
		if t.PlanStatus != task.PlanStatusDrafting {
			return task.NewStateConflictError("SubmitPlan", taskID, "plan is not drafting")
		}
		t.PlanText = &planText
		t.Status = task.StatusNeedsApproval
		t.PlanStatus = task.PlanStatusSubmitted
		t.UpdatedAt = now
		doc.touchProgress(now)
		result = t.Clone()
		return nil
	})
	return result, err
}

// ListSubmittedPlans returns tasks awaiting plan review, ordered by id.
func (s *StateStore) ListSubmittedPlans() ([]*task.Task, error) {
	tasks, err := s.ListTasks()
	if err != nil {
		return nil, err
	}
	var out []*task.Task
	for _, t := range tasks {
		if t.RequiresPlan && t.Status == task.StatusNeedsApproval && t.PlanStatus == task.PlanStatusSubmitted {
			out = append(out, t)
		}
	}
	return out, nil
}

// HasPendingApprovals reports whether any plan awaits review.
func (s *StateStore) HasPendingApprovals() (bool, error) {
	submitted, err := s.ListSubmittedPlans()
	if err != nil {
		return false, err
	}
	return len(submitted) > 0, nil
}

// ReviewPlan applies a lead/provider decision to a submitted plan.
func (s *StateStore) ReviewPlan(taskID string, action task.PlanAction, feedback string) (*task.Task, error) {
	if !action.IsValid() {
		return nil, task.NewValidationError("unknown plan action: %s", action)
	}
	now := task.Now()
	var result *task.Task
	err := s.mutate(func(doc *document) error {
		t, ok := doc.Tasks[taskID]
		if !ok {
			return task.NewStateConflictError("ReviewPlan", taskID, "task not found")
		}
		if t.Status != task.StatusNeedsApproval || t.PlanStatus != task.PlanStatusSubmitted {
			return task.NewStateConflictError("ReviewPlan", taskID, "task is not waiting approval")
		}
		t.PlanFeedback = &feedback
		t.UpdatedAt = now
		t.Status = task.StatusPending
		t.Owner = nil
		switch action {
		case task.PlanActionApprove:
			t.PlanStatus = task.PlanStatusApproved
		case task.PlanActionReject:
			t.PlanStatus = task.PlanStatusRejected
			t.Planner = nil
		case task.PlanActionRevise:
			t.PlanStatus = task.PlanStatusRevisionRequested
			t.Planner = nil
		}
		doc.touchProgress(now)
		result = t.Clone()
		return nil
	})
	return result, err
}

// ClaimExecutionTask assigns the oldest-id ready, collision-free task to
// teammateID. When allowed is non-nil, only ids present in it are
// considered (used for persona-phase executor restriction). Returns nil,
// nil when nothing is claimable.
func (s *StateStore) ClaimExecutionTask(teammateID string, allowed map[string]struct{}) (*task.Task, error) {
	now := task.Now()
	var claimed *task.Task
	err := s.mutate(func(doc *document) error {
		for _, id := range sortedTaskIDs(doc.Tasks) {
			if allowed != nil {
				if _, ok := allowed[id]; !ok {
					continue
				}
			}
			candidate := doc.Tasks[id]
			if !isExecutionReady(candidate, doc.Tasks) {
				continue
			}
			if hasTargetCollision(candidate, doc.Tasks) {
				continue
			}
			owner := teammateID
			candidate.Owner = &owner
			candidate.Status = task.StatusInProgress
			candidate.BlockReason = nil
			candidate.UpdatedAt = now
			doc.touchProgress(now)
			claimed = candidate.Clone()
			return nil
		}
		return nil
	})
	return claimed, err
}

// DetectCollisions reports, for every ready-but-blocked task, the
// in-progress task(s) whose target paths it overlaps.
func (s *StateStore) DetectCollisions() ([]Collision, error) {
	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	var active []*task.Task
	for _, t := range doc.Tasks {
		if t.Status == task.StatusInProgress {
			active = append(active, t)
		}
	}
	var collisions []Collision
	for _, id := range sortedTaskIDs(doc.Tasks) {
		candidate := doc.Tasks[id]
		if !isExecutionReady(candidate, doc.Tasks) {
			continue
		}
		if len(candidate.TargetPaths) == 0 {
			continue
		}
		for _, running := range active {
			if len(running.TargetPaths) == 0 {
				continue
			}
			if targetsOverlap(candidate.TargetPaths, running.TargetPaths) {
				collisions = append(collisions, Collision{
					WaitingTaskID: candidate.ID,
					RunningTaskID: running.ID,
				})
			}
		}
	}
	return collisions, nil
}

// MarkTaskBlocked transitions an in_progress task owned by teammateID to
// blocked, recording reason.
func (s *StateStore) MarkTaskBlocked(taskID, teammateID, reason string) (*task.Task, error) {
	now := task.Now()
	var result *task.Task
	err := s.mutate(func(doc *document) error {
		t, ok := doc.Tasks[taskID]
		if !ok {
			return task.NewStateConflictError("MarkTaskBlocked", taskID, "task not found")
		}
		if t.Owner == nil || *t.Owner != teammateID {
			return task.NewStateConflictError("MarkTaskBlocked", taskID, "owner mismatch")
		}
		if t.Status != task.StatusInProgress {
			return task.NewStateConflictError("MarkTaskBlocked", taskID, "task not in progress")
		}
		t.Status = task.StatusBlocked
		t.BlockReason = &reason
		t.UpdatedAt = now
		doc.touchProgress(now)
		result = t.Clone()
		return nil
	})
	return result, err
}

// CompleteTask transitions an in_progress task owned by teammateID to
// completed, recording resultSummary and completed_at.
func (s *StateStore) CompleteTask(taskID, teammateID, resultSummary string) (*task.Task, error) {
	now := task.Now()
	var result *task.Task
	err := s.mutate(func(doc *document) error {
		t, ok := doc.Tasks[taskID]
		if !ok {
			return task.NewStateConflictError("CompleteTask", taskID, "task not found")
		}
		if t.Owner == nil || *t.Owner != teammateID {
			return task.NewStateConflictError("CompleteTask", taskID, "owner mismatch")
		}
		if t.Status != task.StatusInProgress {
			return task.NewStateConflictError("CompleteTask", taskID, "task not in progress")
		}
		t.Status = task.StatusCompleted
		t.ResultSummary = &resultSummary
		t.BlockReason = nil
		t.UpdatedAt = now
		t.CompletedAt = &now
		doc.touchProgress(now)
		result = t.Clone()
		return nil
	})
	return result, err
}

// HandoffTaskPhase advances an in_progress task owned by teammateID to
// nextPhaseIndex and returns it to pending with owner cleared, so the next
// phase's executor may claim it (spec §4.2 persona-phase handoff rule).
func (s *StateStore) HandoffTaskPhase(taskID, teammateID string, nextPhaseIndex int) (*task.Task, error) {
	now := task.Now()
	var result *task.Task
	err := s.mutate(func(doc *document) error {
		t, ok := doc.Tasks[taskID]
		if !ok {
			return task.NewStateConflictError("HandoffTaskPhase", taskID, "task not found")
		}
		if t.Owner == nil || *t.Owner != teammateID {
			return task.NewStateConflictError("HandoffTaskPhase", taskID, "owner mismatch")
		}
		if t.Status != task.StatusInProgress {
			return task.NewStateConflictError("HandoffTaskPhase", taskID, "task not in progress")
		}
		t.CurrentPhaseIndex = nextPhaseIndex
		t.Status = task.StatusPending
		t.Owner = nil
		t.UpdatedAt = now
		doc.touchProgress(now)
		result = t.Clone()
		return nil
	})
	return result, err
}

// TaskUpdate is the normalized shape of a decision provider's requested
// mutation, applied via ApplyTaskUpdate.
type TaskUpdate struct {
	NewStatus  task.Status
	Owner      *string
	PlanAction *task.PlanAction
	Feedback   string
}

// ApplyTaskUpdate applies a lead-driven status transition. If PlanAction is
// set it is forwarded to ReviewPlan; otherwise NewStatus is applied with the
// guards described in spec §4.2's decision application policy (the
// scheduler is responsible for skip-worthy updates before calling this —
// ApplyTaskUpdate itself only rejects structurally invalid status values).
func (s *StateStore) ApplyTaskUpdate(taskID string, update TaskUpdate) (*task.Task, error) {
	if update.PlanAction != nil {
		return s.ReviewPlan(taskID, *update.PlanAction, update.Feedback)
	}
	if !update.NewStatus.IsValid() {
		return nil, task.NewValidationError("invalid status: %s", update.NewStatus)
	}
	now := task.Now()
	var result *task.Task
	err := s.mutate(func(doc *document) error {
		t, ok := doc.Tasks[taskID]
		if !ok {
			return task.NewStateConflictError("ApplyTaskUpdate", taskID, "task not found")
		}
		t.Status = update.NewStatus
		if update.Owner != nil {
			t.Owner = update.Owner
		}
		if update.NewStatus == task.StatusPending {
			t.BlockReason = nil
			t.Owner = nil
		}
		if update.NewStatus == task.StatusCompleted {
			t.CompletedAt = &now
		}
		t.UpdatedAt = now
		doc.touchProgress(now)
		result = t.Clone()
		return nil
	})
	return result, err
}

// AppendTaskProgressLog appends one line to a task's bounded progress log,
// dropping the oldest entries once cap is exceeded.
func (s *StateStore) AppendTaskProgressLog(taskID string, source task.ProgressSource, text string, cap int) error {
	now := task.Now()
	return s.mutate(func(doc *document) error {
		t, ok := doc.Tasks[taskID]
		if !ok {
			return task.NewStateConflictError("AppendTaskProgressLog", taskID, "task not found")
		}
		t.ProgressLog = append(t.ProgressLog, task.ProgressEntry{
			Timestamp: now,
			Source:    source,
			Text:      text,
		})
		if cap > 0 && len(t.ProgressLog) > cap {
			t.ProgressLog = append([]task.ProgressEntry(nil), t.ProgressLog[len(t.ProgressLog)-cap:]...)
		}
		doc.touchProgress(now)
		return nil
	})
}

// RequeueInProgressTasks returns every in_progress task to pending with its
// owner cleared and a "resume recovery" system progress-log line appended
// — used at startup when resuming a state directory that may have been
// abandoned mid-execution. Returns the affected tasks.
func (s *StateStore) RequeueInProgressTasks() ([]*task.Task, error) {
	now := task.Now()
	var affected []*task.Task
	err := s.mutate(func(doc *document) error {
		for _, id := range sortedTaskIDs(doc.Tasks) {
			t := doc.Tasks[id]
			if t.Status != task.StatusInProgress {
				continue
			}
			t.Status = task.StatusPending
			t.Owner = nil
			t.UpdatedAt = now
			t.ProgressLog = append(t.ProgressLog, task.ProgressEntry{
				Timestamp: now,
				Source:    task.ProgressSourceSystem,
				Text:      "resume recovery: requeued from in_progress",
			})
			doc.touchProgress(now)
			affected = append(affected, t.Clone())
		}
		return nil
	})
	return affected, err
}

// SendMessage appends a totally-ordered mailbox message.
func (s *StateStore) SendMessage(sender, receiver, content string, taskID *string) (task.MailMessage, error) {
	now := task.Now()
	var msg task.MailMessage
	err := s.mutate(func(doc *document) error {
		doc.Meta.Sequence++
		msg = task.MailMessage{
			Seq:       doc.Meta.Sequence,
			Sender:    sender,
			Receiver:  receiver,
			Content:   content,
			TaskID:    taskID,
			CreatedAt: now,
		}
		doc.Messages = append(doc.Messages, msg)
		doc.touchProgress(now)
		return nil
	})
	return msg, err
}

// GetInbox returns messages addressed to receiver with seq > afterSeq, in
// seq order.
func (s *StateStore) GetInbox(receiver string, afterSeq int) ([]task.MailMessage, error) {
	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	var inbox []task.MailMessage
	for _, m := range doc.Messages {
		if m.Receiver != receiver || m.Seq <= afterSeq {
			continue
		}
		inbox = append(inbox, m)
	}
	sort.Slice(inbox, func(i, j int) bool { return inbox[i].Seq < inbox[j].Seq })
	return inbox, nil
}

// ListRecentMessages returns the last limit messages in the mailbox, or all
// of them when limit is at least the mailbox length. A non-positive limit
// returns none, matching the Python reference's empty result.
func (s *StateStore) ListRecentMessages(limit int) ([]task.MailMessage, error) {
	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	if limit >= len(doc.Messages) {
		return append([]task.MailMessage(nil), doc.Messages...), nil
	}
	return append([]task.MailMessage(nil), doc.Messages[len(doc.Messages)-limit:]...), nil
}

// ProgressMarker returns the current (progress_counter, last_progress_at)
// pair used by the scheduler to detect idle rounds.
func (s *StateStore) ProgressMarker() (int, float64, error) {
	doc, err := s.readDocument()
	if err != nil {
		return 0, 0, err
	}
	return doc.Meta.ProgressCounter, doc.Meta.LastProgressAt, nil
}

// StatusSummary returns a count of tasks per status.
func (s *StateStore) StatusSummary() (map[task.Status]int, error) {
	tasks, err := s.ListTasks()
	if err != nil {
		return nil, err
	}
	summary := map[task.Status]int{
		task.StatusPending:       0,
		task.StatusInProgress:    0,
		task.StatusBlocked:       0,
		task.StatusNeedsApproval: 0,
		task.StatusCompleted:     0,
	}
	for _, t := range tasks {
		summary[t.Status]++
	}
	return summary, nil
}

// AllTasksCompleted reports whether the store holds at least one task and
// every task is completed.
func (s *StateStore) AllTasksCompleted() (bool, error) {
	tasks, err := s.ListTasks()
	if err != nil {
		return false, err
	}
	if len(tasks) == 0 {
		return false, nil
	}
	for _, t := range tasks {
		if t.Status != task.StatusCompleted {
			return false, nil
		}
	}
	return true, nil
}
