package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eisenplan/internal/ai"
	"eisenplan/internal/clock"
	"eisenplan/internal/model"
)

func TestAddTaskExtractsHints(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	task, err := f.taskSvc.AddTask(ctx, testUser, "fix PLAN-42 by tomorrow 1h30m")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, task.Status)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, clock.DayKey(clock.Tomorrow(f.now)), clock.DayKey(*task.DueDate))
	assert.Contains(t, string(task.Hints), `"issueKey":"PLAN-42"`)
	assert.Contains(t, string(task.Hints), `"durationMinutes":90`)
}

func TestAddTaskRejectsEmptyText(t *testing.T) {
	f := newSvcFixture(t)
	_, err := f.taskSvc.AddTask(context.Background(), testUser, "   ")
	assert.ErrorIs(t, err, ErrEmptyTaskText)
}

func TestClassifyDraftsStampsResults(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	task, err := f.taskSvc.AddTask(ctx, testUser, "finish the quarterly report")
	require.NoError(t, err)
	f.classifier.results[task.ID] = ai.ClassifyResult{
		ID:         task.ID,
		Importance: 0.9,
		Urgency:    0.8,
		Quadrant:   model.QuadrantQ1,
		Confidence: 0.8,
		Reason:     "deadline-bound deliverable",
	}

	require.NoError(t, f.taskSvc.ClassifyDrafts(ctx, testUser))

	got := f.reload(t, task.ID)
	assert.Equal(t, model.StatusClassified, got.Status)
	require.NotNil(t, got.AIQuadrant)
	assert.Equal(t, model.QuadrantQ1, *got.AIQuadrant)
	require.NotNil(t, got.AIImportance)
	assert.InDelta(t, 0.9, *got.AIImportance, 1e-9)
	assert.Equal(t, "deadline-bound deliverable", got.AIReason)
	require.NotNil(t, got.AIConfidence)
	// Wide margins from 0.5 keep most of the raw confidence.
	assert.InDelta(t, 0.68, *got.AIConfidence, 1e-3)
}

func TestClassifyDraftsUsesCustomPrompt(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	require.NoError(t, f.users.SavePreference(ctx, &model.UserPreference{
		UserID:       testUser,
		CustomPrompt: "treat code review as urgent",
	}))
	task, err := f.taskSvc.AddTask(ctx, testUser, "review the open pull request")
	require.NoError(t, err)
	f.classifier.results[task.ID] = ai.ClassifyResult{ID: task.ID, Quadrant: model.QuadrantQ1}

	require.NoError(t, f.taskSvc.ClassifyDrafts(ctx, testUser))
	assert.Equal(t, "treat code review as urgent", f.classifier.prompt)
}

func TestClassifyDraftsFailureLeavesDraftsUntouched(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	task, err := f.taskSvc.AddTask(ctx, testUser, "finish the quarterly report")
	require.NoError(t, err)
	f.classifier.err = assert.AnError

	require.Error(t, f.taskSvc.ClassifyDrafts(ctx, testUser))

	got := f.reload(t, task.ID)
	assert.Equal(t, model.StatusDraft, got.Status)
	assert.Nil(t, got.AIQuadrant)
}

func TestClassifyDraftsWithoutDrafts(t *testing.T) {
	f := newSvcFixture(t)
	assert.ErrorIs(t, f.taskSvc.ClassifyDrafts(context.Background(), testUser), ErrNoDraftTasks)
}

func TestCompleteClearsPendingMarkers(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	task := f.seedYesterdayActive(t, "prepare the demo", model.QuadrantQ1)
	yesterday := clock.Yesterday(f.now)
	require.NoError(t, f.tasks.Update(ctx, task.ID, map[string]any{
		"backlog_at":      yesterday,
		"alert_at":        yesterday,
		"needs_review_at": yesterday,
	}))

	require.NoError(t, f.taskSvc.Complete(ctx, testUser, task.ID))

	got := f.reload(t, task.ID)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.BacklogAt)
	assert.Nil(t, got.AlertAt)
	assert.Nil(t, got.NeedsReviewAt)
}

func TestUncompleteRequiresCompletedTask(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	task := f.seedYesterdayActive(t, "prepare the demo", model.QuadrantQ1)
	assert.ErrorIs(t, f.taskSvc.Uncomplete(ctx, testUser, task.ID), ErrTaskNotFound)

	require.NoError(t, f.taskSvc.Complete(ctx, testUser, task.ID))
	require.NoError(t, f.taskSvc.Uncomplete(ctx, testUser, task.ID))

	got := f.reload(t, task.ID)
	assert.Equal(t, model.StatusActive, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestRestoreReturnsTaskToToday(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	task := f.seedYesterdayActive(t, "reply to the thread", model.QuadrantQ3)
	require.NoError(t, f.taskSvc.Discard(ctx, testUser, task.ID))
	require.NoError(t, f.taskSvc.Restore(ctx, testUser, task.ID))

	got := f.reload(t, task.ID)
	assert.Equal(t, model.StatusActive, got.Status)
	assert.Nil(t, got.ArchivedAt)
	assert.Nil(t, got.BacklogAt)

	plan, err := f.plans.FindByDate(ctx, testUser, clock.Today(f.now))
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, task.ID, plan.Tasks[0].TaskID)
	assert.Equal(t, model.OriginBacklog, plan.Tasks[0].Origin)
}

func TestRestoreRequiresDiscardedTask(t *testing.T) {
	f := newSvcFixture(t)
	task := f.seedYesterdayActive(t, "prepare the demo", model.QuadrantQ1)
	assert.ErrorIs(t, f.taskSvc.Restore(context.Background(), testUser, task.ID), ErrTaskNotFound)
}

func TestAlertResponses(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	q1 := f.seedYesterdayActive(t, "prepare the demo", model.QuadrantQ1)
	require.NoError(t, f.tasks.Update(ctx, q1.ID, map[string]any{"alert_at": f.now}))

	// Keeping the task in Q1 just clears the alert.
	require.NoError(t, f.taskSvc.AcknowledgeAlert(ctx, testUser, q1.ID))
	got := f.reload(t, q1.ID)
	assert.Nil(t, got.AlertAt)
	assert.Equal(t, model.QuadrantQ1, got.ResolvedQuadrant())

	// "Not actually urgent" re-files to Q2.
	require.NoError(t, f.taskSvc.MoveQ1ToQ2(ctx, testUser, q1.ID))
	got = f.reload(t, q1.ID)
	assert.Equal(t, model.QuadrantQ2, got.ResolvedQuadrant())

	// Both operations refuse non-Q1 tasks.
	assert.ErrorIs(t, f.taskSvc.AcknowledgeAlert(ctx, testUser, q1.ID), ErrWrongQuadrant)
	assert.ErrorIs(t, f.taskSvc.MoveQ1ToQ2(ctx, testUser, q1.ID), ErrWrongQuadrant)
}

func TestReviewResponses(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	promote := f.seedYesterdayActive(t, "reply to the thread", model.QuadrantQ3)
	archive := f.seedYesterdayActive(t, "update the wiki page", model.QuadrantQ3)
	for _, task := range []*model.Task{promote, archive} {
		require.NoError(t, f.tasks.Update(ctx, task.ID, map[string]any{"needs_review_at": f.now}))
	}

	require.NoError(t, f.taskSvc.MoveQ3ToQ2(ctx, testUser, promote.ID))
	got := f.reload(t, promote.ID)
	assert.Equal(t, model.QuadrantQ2, got.ResolvedQuadrant())
	assert.Nil(t, got.NeedsReviewAt)

	require.NoError(t, f.taskSvc.ArchiveQ3(ctx, testUser, archive.ID))
	got = f.reload(t, archive.ID)
	assert.Equal(t, model.StatusDiscarded, got.Status)
	assert.NotNil(t, got.ArchivedAt)

	assert.ErrorIs(t, f.taskSvc.MoveQ3ToQ2(ctx, testUser, promote.ID), ErrWrongQuadrant)
}

func TestMoveToQuadrant(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	task := f.seedYesterdayActive(t, "write the design doc", model.QuadrantQ2)

	require.NoError(t, f.taskSvc.MoveToQuadrant(ctx, testUser, task.ID, model.QuadrantQ1))
	got := f.reload(t, task.ID)
	assert.Equal(t, model.QuadrantQ1, got.ResolvedQuadrant())
	require.NotNil(t, got.FinalUrgent)
	assert.True(t, *got.FinalUrgent)

	assert.ErrorIs(t, f.taskSvc.MoveToQuadrant(ctx, testUser, task.ID, model.Quadrant("Q9")), ErrWrongQuadrant)
}

func TestAddToTodayBackfillsFinalFields(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	yesterday := clock.Yesterday(f.now)
	q := model.QuadrantQ2
	task := model.Task{
		UserID:     testUser,
		RawText:    "write the design doc",
		AIQuadrant: &q,
		Status:     model.StatusActive,
		BacklogAt:  &yesterday,
	}
	require.NoError(t, f.tasks.Create(ctx, &task))

	require.NoError(t, f.taskSvc.AddToToday(ctx, testUser, task.ID))

	got := f.reload(t, task.ID)
	assert.Nil(t, got.BacklogAt)
	require.NotNil(t, got.FinalQuadrant)
	assert.Equal(t, model.QuadrantQ2, *got.FinalQuadrant)

	plan, err := f.plans.FindByDate(ctx, testUser, clock.Today(f.now))
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, model.OriginBacklog, plan.Tasks[0].Origin)
}

func TestOperationsOnForeignTask(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	task := f.seedYesterdayActive(t, "prepare the demo", model.QuadrantQ1)

	assert.ErrorIs(t, f.taskSvc.Complete(ctx, "someone-else", task.ID), ErrTaskNotFound)
	assert.ErrorIs(t, f.taskSvc.Discard(ctx, "someone-else", task.ID), ErrTaskNotFound)
}

func TestDefaultViewPreference(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	view, err := f.taskSvc.DefaultView(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, "list", view)

	require.NoError(t, f.taskSvc.SetDefaultView(ctx, testUser, "matrix"))
	view, err = f.taskSvc.DefaultView(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, "matrix", view)
}
