// Package parse extracts structured hints from free-text task input.
// Everything here is deterministic string matching; the hints only feed
// the classifier and the due-date display.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"eisenplan/internal/clock"
)

// DateHint marks a relative-day phrase found in the text.
type DateHint string

const (
	HintTomorrow         DateHint = "tomorrow"
	HintDayAfterTomorrow DateHint = "day_after_tomorrow"
)

// Hints carries everything extracted from one task's raw text.
type Hints struct {
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	IssueKey        string     `json:"issueKey,omitempty"`
	URL             string     `json:"url,omitempty"`
	DateHint        DateHint   `json:"dateHint,omitempty"`
	DueDate         *time.Time `json:"dueDate,omitempty"`
}

var (
	durationRe = regexp.MustCompile(`\b(?:(\d+)h)?(?:(\d+)m)?\b`)
	issueKeyRe = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)
	urlRe      = regexp.MustCompile(`https?://[^\s)>\]]+`)
	mmddRe     = regexp.MustCompile(`\bby (\d{1,2})/(\d{1,2})\b`)
	inDaysRe   = regexp.MustCompile(`\bin (\d+) days?\b`)
)

// TaskText extracts hints relative to the given instant.
func TaskText(rawText string, now time.Time) Hints {
	var h Hints

	if d := parseDuration(rawText); d > 0 {
		h.DurationMinutes = d
	}
	if m := issueKeyRe.FindString(rawText); m != "" {
		h.IssueKey = m
	}
	if m := urlRe.FindString(rawText); m != "" {
		h.URL = m
	}
	h.DateHint = parseDateHint(rawText)
	h.DueDate = parseDueDate(rawText, now)
	return h
}

func parseDuration(text string) int {
	for _, m := range durationRe.FindAllStringSubmatch(text, -1) {
		hours, minutes := 0, 0
		if m[1] != "" {
			hours, _ = strconv.Atoi(m[1])
		}
		if m[2] != "" {
			minutes, _ = strconv.Atoi(m[2])
		}
		if hours > 0 || minutes > 0 {
			return hours*60 + minutes
		}
	}
	return 0
}

func parseDateHint(text string) DateHint {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "day after tomorrow") {
		return HintDayAfterTomorrow
	}
	if strings.Contains(lower, "tomorrow") {
		return HintTomorrow
	}
	return ""
}

// parseDueDate resolves due-date phrases to end-of-day instants in the
// civil calendar.
func parseDueDate(text string, now time.Time) *time.Time {
	lower := strings.ToLower(text)
	today := clock.Today(now)

	endOfDay := func(dayStart time.Time) *time.Time {
		t := dayStart.AddDate(0, 0, 1).Add(-time.Second)
		return &t
	}

	if strings.Contains(lower, "day after tomorrow") {
		return endOfDay(today.AddDate(0, 0, 2))
	}
	if strings.Contains(lower, "tomorrow") {
		return endOfDay(today.AddDate(0, 0, 1))
	}

	if m := mmddRe.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			due := time.Date(today.Year(), time.Month(month), day, 0, 0, 0, 0, clock.Zone)
			if due.Before(today) {
				due = due.AddDate(1, 0, 0)
			}
			return endOfDay(due)
		}
	}

	if m := inDaysRe.FindStringSubmatch(lower); m != nil {
		days, _ := strconv.Atoi(m[1])
		return endOfDay(today.AddDate(0, 0, days))
	}

	if strings.Contains(lower, "this week") {
		return endOfDay(today.AddDate(0, 0, daysUntilSunday(today)))
	}
	if strings.Contains(lower, "next week") {
		return endOfDay(today.AddDate(0, 0, daysUntilSunday(today)+7))
	}

	return nil
}

func daysUntilSunday(dayStart time.Time) int {
	weekday := int(dayStart.Weekday())
	if weekday == 0 {
		return 0
	}
	return 7 - weekday
}
