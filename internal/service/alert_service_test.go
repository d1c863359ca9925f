package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eisenplan/internal/clock"
	"eisenplan/internal/model"
)

func TestDailySummaryListsTodayAndBacklog(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	q1 := f.seedYesterdayActive(t, "prepare the <demo>", model.QuadrantQ1)
	q4 := f.seedYesterdayActive(t, "sort old screenshots", model.QuadrantQ4)
	_, err := f.planSvc.ExecuteCarryOver(ctx, testUser, []string{q1.ID, q4.ID})
	require.NoError(t, err)

	twoDaysAgo := clock.Today(f.now).AddDate(0, 0, -2)
	q := model.QuadrantQ2
	stuck := model.Task{
		UserID:        testUser,
		RawText:       "write the design doc",
		FinalQuadrant: &q,
		Status:        model.StatusActive,
		BacklogAt:     &twoDaysAgo,
		AlertAt:       &twoDaysAgo,
	}
	require.NoError(t, f.tasks.Create(ctx, &stuck))

	alertSvc := NewAlertService(f.tasks, f.plans)
	summary, err := alertSvc.DailySummary(ctx, model.User{ID: testUser}, f.now)
	require.NoError(t, err)

	assert.Contains(t, summary, clock.DayKey(clock.Today(f.now)))
	// Q1 sorts ahead of Q4 in the today section.
	assert.Less(t, strings.Index(summary, "prepare the &lt;demo&gt;"), strings.Index(summary, "sort old screenshots"))
	assert.Contains(t, summary, "(1, 1 stuck)")
	assert.Contains(t, summary, "write the design doc")
	assert.Contains(t, summary, "2d ⚠️")
}

func TestDailySummaryEmptyDay(t *testing.T) {
	f := newSvcFixture(t)

	alertSvc := NewAlertService(f.tasks, f.plans)
	summary, err := alertSvc.DailySummary(context.Background(), model.User{ID: testUser}, f.now)
	require.NoError(t, err)
	assert.Contains(t, summary, "no open tasks")
}
