package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"eisenplan/internal/clock"
	"eisenplan/internal/model"
	"eisenplan/internal/repository"
	"eisenplan/internal/rules"
)

// TaskWithOrigin pairs a task with how it entered the plan.
type TaskWithOrigin struct {
	model.Task
	Origin model.Origin
}

// TodayView is everything the today screen needs.
type TodayView struct {
	Plan      *model.DailyPlan
	Active    []TaskWithOrigin // in today's working set (not backlog)
	Completed []TaskWithOrigin
}

// BacklogNotification is a backlog task annotated with its dwell time.
type BacklogNotification struct {
	model.Task
	DaysInBacklog int
}

// CarryOverResult aggregates what one carry-over execution did.
type CarryOverResult struct {
	CarriedOver    int
	MovedToBacklog int
	Archived       int
}

// PlanService owns the daily-plan protocols: classification
// finalization, day-boundary carry-over, and the today view that gates
// the rule engine.
type PlanService struct {
	db       *gorm.DB
	tasks    *repository.TaskRepository
	plans    *repository.PlanRepository
	feedback *repository.FeedbackRepository
	engine   *rules.Engine
	cache    *rules.ExecutionCache
	now      func() time.Time
}

func NewPlanService(
	db *gorm.DB,
	tasks *repository.TaskRepository,
	plans *repository.PlanRepository,
	feedback *repository.FeedbackRepository,
	engine *rules.Engine,
	cache *rules.ExecutionCache,
	now func() time.Time,
) *PlanService {
	if now == nil {
		now = time.Now
	}
	return &PlanService{
		db:       db,
		tasks:    tasks,
		plans:    plans,
		feedback: feedback,
		engine:   engine,
		cache:    cache,
		now:      now,
	}
}

// Finalize commits the user's classified tasks into today's plan.
// Calling it twice in a row produces exactly the same plan links and
// feedback rows as calling it once.
func (s *PlanService) Finalize(ctx context.Context, userID string) error {
	classified, err := s.tasks.ListByStatus(ctx, userID, model.StatusClassified, 0)
	if err != nil {
		return fmt.Errorf("list classified tasks: %w", err)
	}
	if len(classified) == 0 {
		return ErrNoClassifiedTasks
	}

	now := s.now()
	today := clock.Today(now)

	// Plan creation, the finalization stamp, task updates, link upserts,
	// and feedback inserts commit together or not at all; a crash
	// mid-finalize must never leave a finalized plan with missing links
	// or the day half-activated.
	var planID string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskRepo := s.tasks.WithTx(tx)
		planRepo := s.plans.WithTx(tx)
		feedbackRepo := s.feedback.WithTx(tx)

		plan, err := planRepo.UpsertForDate(ctx, userID, today)
		if err != nil {
			return err
		}
		if err := planRepo.SetFinalized(ctx, plan.ID, now); err != nil {
			return err
		}
		planID = plan.ID

		for i := range classified {
			task := &classified[i]

			finalQuadrant := task.ResolvedQuadrant()
			finalImportant := resolveFinalFlag(task.FinalImportant, task.AIImportance)
			finalUrgent := resolveFinalFlag(task.FinalUrgent, task.AIUrgency)

			if err := taskRepo.Update(ctx, task.ID, map[string]any{
				"status":          model.StatusActive,
				"final_quadrant":  finalQuadrant,
				"final_important": finalImportant,
				"final_urgent":    finalUrgent,
			}); err != nil {
				return err
			}

			if err := planRepo.LinkTask(ctx, plan.ID, task.ID, model.OriginNew); err != nil {
				return err
			}

			if task.AIQuadrant != nil && task.AIQuadrant.Valid() {
				if err := feedbackRepo.Record(ctx, userID, task.ID, *task.AIQuadrant, finalQuadrant); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[finalize] user=%s tasks=%d plan=%s", userID, len(classified), planID)
	return nil
}

// resolveFinalFlag keeps an existing user judgment, otherwise
// thresholds the AI score at 0.5.
func resolveFinalFlag(final *bool, aiScore *float64) bool {
	if final != nil {
		return *final
	}
	if aiScore != nil {
		return *aiScore >= 0.5
	}
	return false
}

// PreviewCarryOver returns the tasks awaiting a carry-over decision:
// yesterday's working set, unless carry-over already ran today. Read
// only.
func (s *PlanService) PreviewCarryOver(ctx context.Context, userID string) ([]model.Task, error) {
	return s.pendingCarryOver(ctx, userID, s.now())
}

// pendingCarryOver is the shared gate for preview and execute: once a
// carry_over-origin link exists on today's plan, the decision was made
// and the set is empty regardless of what yesterday's plan still holds.
// Tasks already linked into today's plan by any other route (restore,
// backlog pull, finalize) are likewise settled and excluded, so an
// undone outcome of an earlier carry-over cannot resurrect the prompt.
func (s *PlanService) pendingCarryOver(ctx context.Context, userID string, now time.Time) ([]model.Task, error) {
	inToday := make(map[string]struct{})
	todayPlan, err := s.plans.FindByDate(ctx, userID, clock.Today(now))
	if err != nil {
		return nil, err
	}
	if todayPlan != nil {
		for _, link := range todayPlan.Tasks {
			if link.Origin == model.OriginCarryOver {
				return nil, nil
			}
			inToday[link.TaskID] = struct{}{}
		}
	}

	return s.carryOverEligible(ctx, userID, clock.Yesterday(now), inToday)
}

// carryOverEligible is yesterday's working set: active tasks linked to
// yesterday's plan that have not been deferred to the backlog or placed
// into today's plan already. Always computed fresh from storage — a
// snapshot from a prior preview may no longer be true.
func (s *PlanService) carryOverEligible(ctx context.Context, userID string, yesterday time.Time, exclude map[string]struct{}) ([]model.Task, error) {
	plan, err := s.plans.FindByDate(ctx, userID, yesterday)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, nil
	}

	var eligible []model.Task
	for _, link := range plan.Tasks {
		if _, ok := exclude[link.TaskID]; ok {
			continue
		}
		if link.Task.Status == model.StatusActive && link.Task.BacklogAt == nil {
			eligible = append(eligible, link.Task)
		}
	}
	return eligible, nil
}

// ExecuteCarryOver resolves the fate of yesterday's leftover tasks.
// Selected tasks carry into today's plan; unselected important tasks
// (Q1/Q2) go to the backlog, never to the archive; everything else is
// soft-deleted. Running it again finds an empty eligible set and does
// nothing — idempotent by exhaustion, not by upsert.
func (s *PlanService) ExecuteCarryOver(ctx context.Context, userID string, selectedIDs []string) (CarryOverResult, error) {
	var result CarryOverResult

	now := s.now()
	today := clock.Today(now)

	eligible, err := s.pendingCarryOver(ctx, userID, now)
	if err != nil {
		return result, err
	}
	if len(eligible) == 0 {
		return result, nil
	}

	selected := make(map[string]struct{}, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = struct{}{}
	}

	var carryIDs []string
	for i := range eligible {
		task := &eligible[i]
		if _, ok := selected[task.ID]; ok {
			carryIDs = append(carryIDs, task.ID)
			continue
		}
		if task.ResolvedQuadrant().Important() {
			if err := s.tasks.Update(ctx, task.ID, map[string]any{"backlog_at": today}); err != nil {
				return result, err
			}
			result.MovedToBacklog++
		} else {
			if err := s.tasks.Update(ctx, task.ID, map[string]any{
				"status":      model.StatusDiscarded,
				"archived_at": today,
			}); err != nil {
				return result, err
			}
			result.Archived++
		}
	}

	// Today's plan is created even when nothing was selected; the prompt
	// stays suppressed because every eligible task was just resolved.
	plan, err := s.plans.UpsertForDate(ctx, userID, today)
	if err != nil {
		return result, err
	}
	if err := s.plans.LinkTasks(ctx, plan.ID, carryIDs, model.OriginCarryOver); err != nil {
		return result, err
	}
	result.CarriedOver = len(carryIDs)

	log.Printf("[carry-over] user=%s carried=%d backlog=%d archived=%d",
		userID, result.CarriedOver, result.MovedToBacklog, result.Archived)
	return result, nil
}

// Today returns the current plan view, first giving the rule engine its
// hourly chance to run.
func (s *PlanService) Today(ctx context.Context, userID string) (*TodayView, error) {
	now := s.now()
	today := clock.Today(now)

	if s.cache.ShouldRun(userID, today) {
		if _, err := s.engine.Apply(ctx, userID, today); err != nil {
			return nil, fmt.Errorf("apply rules: %w", err)
		}
		s.cache.MarkExecuted(userID, today)
	}

	plan, err := s.plans.FindByDate(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	view := &TodayView{Plan: plan}
	if plan == nil {
		return view, nil
	}

	for _, link := range plan.Tasks {
		entry := TaskWithOrigin{Task: link.Task, Origin: link.Origin}
		switch {
		case link.Task.Status == model.StatusActive && link.Task.BacklogAt == nil:
			view.Active = append(view.Active, entry)
		case link.Task.Status == model.StatusCompleted:
			view.Completed = append(view.Completed, entry)
		}
	}
	return view, nil
}

// BacklogNotifications lists backlog tasks with their dwell times,
// oldest first.
func (s *PlanService) BacklogNotifications(ctx context.Context, userID string) ([]BacklogNotification, error) {
	today := clock.Today(s.now())

	tasks, err := s.tasks.ListBacklog(ctx, userID, 10)
	if err != nil {
		return nil, err
	}

	notifications := make([]BacklogNotification, 0, len(tasks))
	for _, task := range tasks {
		days := 0
		if task.BacklogAt != nil {
			days = clock.DaysBetween(*task.BacklogAt, today)
		}
		notifications = append(notifications, BacklogNotification{Task: task, DaysInBacklog: days})
	}
	return notifications, nil
}
