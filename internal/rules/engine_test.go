package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eisenplan/internal/clock"
	"eisenplan/internal/model"
	"eisenplan/internal/repository"
	"eisenplan/internal/testutil"
)

const testUser = "user-1"

type engineFixture struct {
	tasks    *repository.TaskRepository
	plans    *repository.PlanRepository
	feedback *repository.FeedbackRepository
	engine   *Engine
	today    time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	db := testutil.NewDB(t)
	tasks := repository.NewTaskRepository(db)
	return &engineFixture{
		tasks:    tasks,
		plans:    repository.NewPlanRepository(db),
		feedback: repository.NewFeedbackRepository(db),
		engine:   NewEngine(tasks, DefaultConfig()),
		today:    time.Date(2026, 3, 10, 0, 0, 0, 0, clock.Zone),
	}
}

func (f *engineFixture) createTask(t *testing.T, quadrant model.Quadrant, mutate func(*model.Task)) *model.Task {
	t.Helper()
	q := quadrant
	task := model.Task{
		UserID:     testUser,
		RawText:    "task in " + string(quadrant),
		AIQuadrant: &q,
		Status:     model.StatusActive,
	}
	if mutate != nil {
		mutate(&task)
	}
	require.NoError(t, f.tasks.Create(context.Background(), &task))
	return &task
}

// linkOnDays places the task in the user's plan N days before today.
func (f *engineFixture) linkOnDays(t *testing.T, taskID string, daysAgo ...int) {
	t.Helper()
	ctx := context.Background()
	for _, ago := range daysAgo {
		plan, err := f.plans.UpsertForDate(ctx, testUser, f.today.AddDate(0, 0, -ago))
		require.NoError(t, err)
		require.NoError(t, f.plans.LinkTask(ctx, plan.ID, taskID, model.OriginNew))
	}
}

func (f *engineFixture) reload(t *testing.T, taskID string) *model.Task {
	t.Helper()
	task, err := f.tasks.FindByID(context.Background(), testUser, taskID)
	require.NoError(t, err)
	return task
}

func TestImportantTasksPromotedToBacklog(t *testing.T) {
	for _, quadrant := range []model.Quadrant{model.QuadrantQ1, model.QuadrantQ2} {
		t.Run(string(quadrant), func(t *testing.T) {
			f := newEngineFixture(t)
			task := f.createTask(t, quadrant, nil)
			f.linkOnDays(t, task.ID, 1, 2, 3)

			result, err := f.engine.Apply(context.Background(), testUser, f.today)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Promoted)

			got := f.reload(t, task.ID)
			require.NotNil(t, got.BacklogAt)
			assert.Equal(t, clock.DayKey(f.today), clock.DayKey(*got.BacklogAt))
			assert.Equal(t, model.StatusActive, got.Status)

			// A second pass leaves the committed backlog marker alone.
			result, err = f.engine.Apply(context.Background(), testUser, f.today)
			require.NoError(t, err)
			assert.Zero(t, result.Promoted)
			assert.Equal(t, clock.DayKey(f.today), clock.DayKey(*f.reload(t, task.ID).BacklogAt))
		})
	}
}

func TestPromotionNeedsEnoughDistinctDays(t *testing.T) {
	f := newEngineFixture(t)
	task := f.createTask(t, model.QuadrantQ1, nil)
	f.linkOnDays(t, task.ID, 1, 2)

	result, err := f.engine.Apply(context.Background(), testUser, f.today)
	require.NoError(t, err)

	assert.Zero(t, result.Promoted)
	assert.Nil(t, f.reload(t, task.ID).BacklogAt)
}

func TestLookbackWindowExcludesOldPlans(t *testing.T) {
	f := newEngineFixture(t)
	task := f.createTask(t, model.QuadrantQ1, nil)
	// Two recent days plus one outside the 7-day window.
	f.linkOnDays(t, task.ID, 1, 2, 9)

	_, err := f.engine.Apply(context.Background(), testUser, f.today)
	require.NoError(t, err)

	assert.Nil(t, f.reload(t, task.ID).BacklogAt)
}

func TestQ3ReviewPromptThenTacitAbandonment(t *testing.T) {
	f := newEngineFixture(t)
	task := f.createTask(t, model.QuadrantQ3, nil)
	f.linkOnDays(t, task.ID, 1, 2)

	// First pass: prompt the user to re-judge.
	result, err := f.engine.Apply(context.Background(), testUser, f.today)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reviewed)

	got := f.reload(t, task.ID)
	require.NotNil(t, got.NeedsReviewAt)
	assert.Equal(t, model.StatusActive, got.Status)

	// Next day, prompt still unanswered: auto-discard.
	nextDay := f.today.AddDate(0, 0, 1)
	result, err = f.engine.Apply(context.Background(), testUser, nextDay)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Archived)

	got = f.reload(t, task.ID)
	assert.Equal(t, model.StatusDiscarded, got.Status)
	require.NotNil(t, got.ArchivedAt)
}

func TestQ4DiscardedWithoutGracePeriod(t *testing.T) {
	f := newEngineFixture(t)
	inYesterday := f.createTask(t, model.QuadrantQ4, nil)
	f.linkOnDays(t, inYesterday.ID, 1)
	notInYesterday := f.createTask(t, model.QuadrantQ4, nil)
	f.linkOnDays(t, notInYesterday.ID, 3)

	result, err := f.engine.Apply(context.Background(), testUser, f.today)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Archived)

	assert.Equal(t, model.StatusDiscarded, f.reload(t, inYesterday.ID).Status)
	assert.Equal(t, model.StatusActive, f.reload(t, notInYesterday.ID).Status)
}

func TestUnclassifiedTaskFallsBackToQ4(t *testing.T) {
	f := newEngineFixture(t)
	task := f.createTask(t, model.QuadrantQ4, func(task *model.Task) {
		task.AIQuadrant = nil
	})
	f.linkOnDays(t, task.ID, 1)

	_, err := f.engine.Apply(context.Background(), testUser, f.today)
	require.NoError(t, err)

	assert.Equal(t, model.StatusDiscarded, f.reload(t, task.ID).Status)
}

func TestBacklogAlertEscalation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	twoDaysAgo := f.today.AddDate(0, 0, -2)
	q1 := f.createTask(t, model.QuadrantQ1, func(task *model.Task) {
		task.BacklogAt = &twoDaysAgo
	})
	q2 := f.createTask(t, model.QuadrantQ2, func(task *model.Task) {
		task.BacklogAt = &twoDaysAgo
	})

	result, err := f.engine.Apply(ctx, testUser, f.today)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Alerted)

	// Q1 alerts after 2 days in backlog; Q2 waits for 4.
	assert.NotNil(t, f.reload(t, q1.ID).AlertAt)
	assert.Nil(t, f.reload(t, q2.ID).AlertAt)

	twoDaysLater := f.today.AddDate(0, 0, 2)
	result, err = f.engine.Apply(ctx, testUser, twoDaysLater)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Alerted)
	assert.NotNil(t, f.reload(t, q2.ID).AlertAt)
}

func TestRetentionSweepHardDeletes(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	eightDaysAgo := f.today.AddDate(0, 0, -8)
	sixDaysAgo := f.today.AddDate(0, 0, -6)

	expired := f.createTask(t, model.QuadrantQ4, func(task *model.Task) {
		task.Status = model.StatusDiscarded
		task.ArchivedAt = &eightDaysAgo
	})
	fresh := f.createTask(t, model.QuadrantQ4, func(task *model.Task) {
		task.Status = model.StatusDiscarded
		task.ArchivedAt = &sixDaysAgo
	})

	// Give the expired task a plan link and a feedback row; both must
	// go with it.
	f.linkOnDays(t, expired.ID, 8)
	require.NoError(t, f.feedback.Record(ctx, testUser, expired.ID, model.QuadrantQ4, model.QuadrantQ4))

	result, err := f.engine.Apply(ctx, testUser, f.today)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Purged)

	_, err = f.tasks.FindByID(ctx, testUser, expired.ID)
	assert.Error(t, err)
	_, err = f.tasks.FindByID(ctx, testUser, fresh.ID)
	assert.NoError(t, err)

	n, err := f.feedback.CountForTask(ctx, testUser, expired.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	yesterdayPlan, err := f.plans.FindByDate(ctx, testUser, f.today.AddDate(0, 0, -8))
	require.NoError(t, err)
	require.NotNil(t, yesterdayPlan)
	assert.Empty(t, yesterdayPlan.Tasks)
}
