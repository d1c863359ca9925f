package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eisenplan/internal/clock"
	"eisenplan/internal/model"
)

func TestListBacklogViewMergesDeferredAndUnplanned(t *testing.T) {
	tasks := NewTaskRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, clock.Zone)

	mk := func(text string, mutate func(*model.Task)) *model.Task {
		task := model.Task{UserID: "u1", RawText: text, Status: model.StatusActive}
		if mutate != nil {
			mutate(&task)
		}
		require.NoError(t, tasks.Create(ctx, &task))
		return &task
	}

	inToday := mk("in today's plan", nil)
	deferred := mk("deferred but planned today", func(task *model.Task) {
		task.BacklogAt = &now
	})
	unplanned := mk("never planned today", nil)
	mk("already done", func(task *model.Task) {
		task.Status = model.StatusCompleted
	})

	got, err := tasks.ListBacklogView(ctx, "u1", []string{inToday.ID, deferred.ID}, 0)
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, task := range got {
		ids = append(ids, task.ID)
	}
	assert.ElementsMatch(t, []string{deferred.ID, unplanned.ID}, ids)
}

func TestUpdateSetsAndClearsMarkers(t *testing.T) {
	tasks := NewTaskRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, clock.Zone)

	task := model.Task{UserID: "u1", RawText: "a task", Status: model.StatusActive}
	require.NoError(t, tasks.Create(ctx, &task))

	require.NoError(t, tasks.Update(ctx, task.ID, map[string]any{"backlog_at": now, "alert_at": now}))
	got, err := tasks.FindByID(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.BacklogAt)
	assert.NotNil(t, got.AlertAt)

	require.NoError(t, tasks.Update(ctx, task.ID, map[string]any{"backlog_at": nil, "alert_at": nil}))
	got, err = tasks.FindByID(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BacklogAt)
	assert.Nil(t, got.AlertAt)
}
