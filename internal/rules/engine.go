// Package rules implements the per-day sweep that ages active tasks
// according to their Eisenhower quadrant, plus the cache that keeps the
// sweep from running more than once an hour per user.
package rules

import (
	"context"
	"fmt"
	"log"
	"time"

	"eisenplan/internal/clock"
	"eisenplan/internal/model"
	"eisenplan/internal/repository"
)

// Config names every temporal threshold the engine applies. Defaults
// follow one consistent policy; callers may override individual knobs.
type Config struct {
	// LookbackDays is the trailing window for counting distinct
	// plan-inclusion days.
	LookbackDays int
	// PromotionDays is the distinct-day count at which Q1/Q2 tasks move
	// to the backlog.
	PromotionDays int
	// ReviewDays is the distinct-day count at which Q3 tasks get a
	// re-judgment prompt.
	ReviewDays int
	// Q1AlertDays and Q2AlertDays are the backlog dwell times before
	// the "still stuck" alert fires.
	Q1AlertDays int
	Q2AlertDays int
	// RetentionDays is how long soft-deleted tasks survive before the
	// retention sweep hard-deletes them.
	RetentionDays int
}

func DefaultConfig() Config {
	return Config{
		LookbackDays:  7,
		PromotionDays: 3,
		ReviewDays:    2,
		Q1AlertDays:   2,
		Q2AlertDays:   4,
		RetentionDays: 7,
	}
}

// Result aggregates what one pass did. The caller gets counts only,
// never per-task outcomes.
type Result struct {
	Promoted int // Q1/Q2 moved to backlog
	Reviewed int // Q3 review prompts set
	Archived int // Q3/Q4 auto-discarded
	Alerted  int // backlog dwell alerts set
	Purged   int // retention hard deletes
}

// Engine applies the quadrant aging policies. Each task's outcome is
// independent of every other task's outcome within a pass, so ordering
// across tasks carries no meaning.
type Engine struct {
	tasks *repository.TaskRepository
	cfg   Config
}

func NewEngine(tasks *repository.TaskRepository, cfg Config) *Engine {
	return &Engine{tasks: tasks, cfg: cfg}
}

// Apply sweeps all of the user's active tasks for the given day. Safe
// to call repeatedly: every rule checks committed state before writing.
func (e *Engine) Apply(ctx context.Context, userID string, today time.Time) (Result, error) {
	var result Result

	lookbackStart := today.AddDate(0, 0, -e.cfg.LookbackDays)
	yesterdayKey := clock.DayKey(today.AddDate(0, 0, -1))

	active, err := e.tasks.ListActiveWithPlans(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("list active tasks: %w", err)
	}

	for i := range active {
		task := &active[i]

		days := make(map[string]struct{})
		wasInYesterdayPlan := false
		for _, link := range task.PlanLinks {
			date := link.DailyPlan.Date
			if date.Before(lookbackStart) || !date.Before(today) {
				continue
			}
			key := clock.DayKey(date)
			days[key] = struct{}{}
			if key == yesterdayKey {
				wasInYesterdayPlan = true
			}
		}
		daysIncluded := len(days)

		switch task.ResolvedQuadrant() {
		case model.QuadrantQ1, model.QuadrantQ2:
			if task.BacklogAt == nil && daysIncluded >= e.cfg.PromotionDays {
				if err := e.tasks.Update(ctx, task.ID, map[string]any{"backlog_at": today}); err != nil {
					return result, err
				}
				result.Promoted++
			}
		case model.QuadrantQ3:
			if daysIncluded < e.cfg.ReviewDays {
				continue
			}
			if task.NeedsReviewAt != nil {
				// An unanswered review prompt is tacit abandonment.
				if err := e.tasks.Update(ctx, task.ID, map[string]any{
					"status":      model.StatusDiscarded,
					"archived_at": today,
				}); err != nil {
					return result, err
				}
				result.Archived++
			} else {
				if err := e.tasks.Update(ctx, task.ID, map[string]any{"needs_review_at": today}); err != nil {
					return result, err
				}
				result.Reviewed++
			}
		case model.QuadrantQ4:
			if wasInYesterdayPlan {
				if err := e.tasks.Update(ctx, task.ID, map[string]any{
					"status":      model.StatusDiscarded,
					"archived_at": today,
				}); err != nil {
					return result, err
				}
				result.Archived++
			}
		}
	}

	alerted, err := e.escalateBacklog(ctx, userID, today)
	if err != nil {
		return result, err
	}
	result.Alerted = alerted

	purged, err := e.tasks.PurgeDiscardedBefore(ctx, userID, today.AddDate(0, 0, -e.cfg.RetentionDays))
	if err != nil {
		return result, fmt.Errorf("retention sweep: %w", err)
	}
	result.Purged = purged

	if result != (Result{}) {
		log.Printf("[rules] user=%s promoted=%d reviewed=%d archived=%d alerted=%d purged=%d",
			userID, result.Promoted, result.Reviewed, result.Archived, result.Alerted, result.Purged)
	}
	return result, nil
}

// escalateBacklog sets the dwell alert on backlog tasks. It re-reads
// the backlog from storage rather than reusing the pass's in-memory
// snapshot, so a promotion committed earlier in the same pass is
// visible here and chains correctly on a later pass.
func (e *Engine) escalateBacklog(ctx context.Context, userID string, today time.Time) (int, error) {
	backlog, err := e.tasks.ListBacklogUnalerted(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list backlog: %w", err)
	}

	alerted := 0
	for i := range backlog {
		task := &backlog[i]
		if task.BacklogAt == nil {
			continue
		}

		var dwell int
		switch task.ResolvedQuadrant() {
		case model.QuadrantQ1:
			dwell = e.cfg.Q1AlertDays
		case model.QuadrantQ2:
			dwell = e.cfg.Q2AlertDays
		default:
			continue
		}

		if clock.DaysBetween(*task.BacklogAt, today) >= dwell {
			if err := e.tasks.Update(ctx, task.ID, map[string]any{"alert_at": today}); err != nil {
				return alerted, err
			}
			alerted++
		}
	}
	return alerted, nil
}
