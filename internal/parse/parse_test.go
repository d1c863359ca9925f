package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eisenplan/internal/clock"
)

// A Tuesday, so week-relative phrases have a fixed distance to Sunday.
var parseNow = time.Date(2026, 3, 10, 9, 0, 0, 0, clock.Zone)

func TestTaskTextExtractsDuration(t *testing.T) {
	cases := map[string]int{
		"write report 2h":          120,
		"quick call 30m":           30,
		"deep work block 1h30m":    90,
		"no duration in this text": 0,
	}
	for text, want := range cases {
		assert.Equal(t, want, TaskText(text, parseNow).DurationMinutes, text)
	}
}

func TestTaskTextExtractsIssueKeyAndURL(t *testing.T) {
	h := TaskText("review PLAN-421 (https://example.com/pr/7) before standup", parseNow)

	assert.Equal(t, "PLAN-421", h.IssueKey)
	assert.Equal(t, "https://example.com/pr/7", h.URL)
}

func TestTaskTextRelativeDays(t *testing.T) {
	h := TaskText("send the draft tomorrow", parseNow)
	assert.Equal(t, HintTomorrow, h.DateHint)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, "2026-03-11", clock.DayKey(*h.DueDate))

	h = TaskText("ship it the day after tomorrow", parseNow)
	assert.Equal(t, HintDayAfterTomorrow, h.DateHint)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, "2026-03-12", clock.DayKey(*h.DueDate))
}

func TestTaskTextExplicitDate(t *testing.T) {
	h := TaskText("file the expense report by 3/20", parseNow)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, "2026-03-20", clock.DayKey(*h.DueDate))

	// A month/day already past this year rolls into next year.
	h = TaskText("renew the certificate by 1/15", parseNow)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, "2027-01-15", clock.DayKey(*h.DueDate))
}

func TestTaskTextInDays(t *testing.T) {
	h := TaskText("follow up in 3 days", parseNow)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, "2026-03-13", clock.DayKey(*h.DueDate))
}

func TestTaskTextWeekPhrases(t *testing.T) {
	h := TaskText("finish the migration this week", parseNow)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, "2026-03-15", clock.DayKey(*h.DueDate))

	h = TaskText("plan the offsite next week", parseNow)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, "2026-03-22", clock.DayKey(*h.DueDate))
}

func TestTaskTextDueDateIsEndOfDay(t *testing.T) {
	h := TaskText("send the draft tomorrow", parseNow)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, 23, h.DueDate.In(clock.Zone).Hour())
	assert.Equal(t, 59, h.DueDate.In(clock.Zone).Minute())
}

func TestTaskTextPlainText(t *testing.T) {
	h := TaskText("think about the roadmap", parseNow)
	assert.Equal(t, Hints{}, h)
}
