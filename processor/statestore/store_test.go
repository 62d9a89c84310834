package statestore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360studio/taskorchestrator/task"
)

func newTestStore(t *testing.T) *StateStore {
	t.Helper()
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)
	return store
}

func TestBootstrapAndListTasks(t *testing.T) {
	store := newTestStore(t)
	a := task.New("B-task", "second", 1)
	b := task.New("A-task", "first", 1)
	require.NoError(t, store.BootstrapTasks([]*task.Task{a, b}, true))

	tasks, err := store.ListTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "A-task", tasks[0].ID)
	require.Equal(t, "B-task", tasks[1].ID)
}

func TestBootstrapResumeMismatchRaisesValidationError(t *testing.T) {
	store := newTestStore(t)
	original := task.New("A", "widget", 1)
	original.TargetPaths = []string{"src/A"}
	require.NoError(t, store.BootstrapTasks([]*task.Task{original}, true))

	resumed := task.New("A", "widget", 2)
	resumed.TargetPaths = []string{"src/other"}
	err := store.BootstrapTasks([]*task.Task{resumed}, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "A:target_paths")
}

func TestClaimPlanTaskThenSubmitAndReview(t *testing.T) {
	store := newTestStore(t)
	tk := task.New("T-001", "implement widget", 1)
	tk.ApplyRequiresPlan(true)
	tk.TargetPaths = []string{"src/a"}
	require.NoError(t, store.BootstrapTasks([]*task.Task{tk}, true))

	claimed, err := store.ClaimPlanTask("tm-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, task.PlanStatusDrafting, claimed.PlanStatus)

	submitted, err := store.SubmitPlan("T-001", "tm-1", "plan text")
	require.NoError(t, err)
	require.Equal(t, task.StatusNeedsApproval, submitted.Status)
	require.Equal(t, task.PlanStatusSubmitted, submitted.PlanStatus)

	hasPending, err := store.HasPendingApprovals()
	require.NoError(t, err)
	require.True(t, hasPending)

	reviewed, err := store.ReviewPlan("T-001", task.PlanActionApprove, "looks good")
	require.NoError(t, err)
	require.Equal(t, task.StatusPending, reviewed.Status)
	require.Equal(t, task.PlanStatusApproved, reviewed.PlanStatus)
}

func TestClaimExecutionTaskCollisionFreedom(t *testing.T) {
	store := newTestStore(t)
	a := task.New("A", "first", 1)
	a.TargetPaths = []string{"src/shared"}
	b := task.New("B", "second", 1)
	b.TargetPaths = []string{"src/shared"}
	require.NoError(t, store.BootstrapTasks([]*task.Task{a, b}, true))

	claimedA, err := store.ClaimExecutionTask("tm-1", nil)
	require.NoError(t, err)
	require.Equal(t, "A", claimedA.ID)

	claimedB, err := store.ClaimExecutionTask("tm-2", nil)
	require.NoError(t, err)
	require.Nil(t, claimedB)

	collisions, err := store.DetectCollisions()
	require.NoError(t, err)
	require.Equal(t, []Collision{{WaitingTaskID: "B", RunningTaskID: "A"}}, collisions)
}

func TestCompleteTaskRequiresOwnerMatch(t *testing.T) {
	store := newTestStore(t)
	tk := task.New("A", "widget", 1)
	tk.TargetPaths = []string{"src/a"}
	require.NoError(t, store.BootstrapTasks([]*task.Task{tk}, true))

	_, err := store.ClaimExecutionTask("tm-1", nil)
	require.NoError(t, err)

	_, err = store.CompleteTask("A", "tm-2", "done")
	require.Error(t, err)

	completed, err := store.CompleteTask("A", "tm-1", "done")
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
}

func TestAppendTaskProgressLogTruncatesToCap(t *testing.T) {
	store := newTestStore(t)
	tk := task.New("A", "widget", 1)
	require.NoError(t, store.BootstrapTasks([]*task.Task{tk}, true))

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendTaskProgressLog("A", task.ProgressSourceStdout, "line", 3))
	}

	got, ok, err := store.GetTask("A")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.ProgressLog, 3)
}

func TestRequeueInProgressTasks(t *testing.T) {
	store := newTestStore(t)
	tk := task.New("A", "widget", 1)
	tk.TargetPaths = []string{"src/a"}
	require.NoError(t, store.BootstrapTasks([]*task.Task{tk}, true))
	_, err := store.ClaimExecutionTask("tm-1", nil)
	require.NoError(t, err)

	requeued, err := store.RequeueInProgressTasks()
	require.NoError(t, err)
	require.Len(t, requeued, 1)
	require.Equal(t, task.StatusPending, requeued[0].Status)
	require.Nil(t, requeued[0].Owner)
	last := requeued[0].ProgressLog[len(requeued[0].ProgressLog)-1]
	require.Contains(t, last.Text, "resume recovery")
}

func TestSendMessageSeqMonotonic(t *testing.T) {
	store := newTestStore(t)
	first, err := store.SendMessage("lead", "tm-1", "hello", nil)
	require.NoError(t, err)
	second, err := store.SendMessage("lead", "tm-2", "world", nil)
	require.NoError(t, err)
	require.Equal(t, 1, first.Seq)
	require.Equal(t, 2, second.Seq)
}

func TestAllTasksCompleted(t *testing.T) {
	store := newTestStore(t)
	tk := task.New("A", "widget", 1)
	tk.TargetPaths = []string{"src/a"}
	require.NoError(t, store.BootstrapTasks([]*task.Task{tk}, true))

	done, err := store.AllTasksCompleted()
	require.NoError(t, err)
	require.False(t, done)

	_, err = store.ClaimExecutionTask("tm-1", nil)
	require.NoError(t, err)
	_, err = store.CompleteTask("A", "tm-1", "done")
	require.NoError(t, err)

	done, err = store.AllTasksCompleted()
	require.NoError(t, err)
	require.True(t, done)
}
