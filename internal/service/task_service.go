package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"eisenplan/internal/ai"
	"eisenplan/internal/clock"
	"eisenplan/internal/model"
	"eisenplan/internal/parse"
	"eisenplan/internal/repository"
)

// TaskService wraps task intake, the classification round, and the
// manual state transitions a user triggers directly.
type TaskService struct {
	db         *gorm.DB
	tasks      *repository.TaskRepository
	plans      *repository.PlanRepository
	users      *repository.UserRepository
	classifier ai.Classifier
	recal      *ai.Recalibrator
	now        func() time.Time
}

func NewTaskService(
	db *gorm.DB,
	tasks *repository.TaskRepository,
	plans *repository.PlanRepository,
	users *repository.UserRepository,
	classifier ai.Classifier,
	recal *ai.Recalibrator,
	now func() time.Time,
) *TaskService {
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		db:         db,
		tasks:      tasks,
		plans:      plans,
		users:      users,
		classifier: classifier,
		recal:      recal,
		now:        now,
	}
}

// AddTask stores a new draft, extracting structured hints from the text.
func (s *TaskService) AddTask(ctx context.Context, userID, rawText string) (*model.Task, error) {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return nil, ErrEmptyTaskText
	}

	hints := parse.TaskText(rawText, s.now())
	hintsJSON, err := json.Marshal(hints)
	if err != nil {
		return nil, fmt.Errorf("marshal hints: %w", err)
	}

	task := model.Task{
		UserID:  userID,
		RawText: rawText,
		Hints:   hintsJSON,
		DueDate: hints.DueDate,
		Status:  model.StatusDraft,
	}
	if err := s.tasks.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListIntake returns today's draft and classified tasks, oldest first.
func (s *TaskService) ListIntake(ctx context.Context, userID string) ([]model.Task, error) {
	now := s.now()
	return s.tasks.ListIntakeBetween(ctx, userID, clock.Today(now), clock.Tomorrow(now))
}

// ClassifyDrafts sends today's drafts to the classifier and stamps the
// results. A failed or malformed response leaves every draft untouched.
func (s *TaskService) ClassifyDrafts(ctx context.Context, userID string) error {
	now := s.now()
	drafts, err := s.tasks.ListDraftsBetween(ctx, userID, clock.Today(now), clock.Tomorrow(now))
	if err != nil {
		return fmt.Errorf("list drafts: %w", err)
	}
	if len(drafts) == 0 {
		return ErrNoDraftTasks
	}

	customPrompt := ""
	if pref, err := s.users.Preference(ctx, userID); err != nil {
		return err
	} else if pref != nil {
		customPrompt = pref.CustomPrompt
	}

	inputs := make([]ai.ClassifyInput, 0, len(drafts))
	for _, draft := range drafts {
		input := ai.ClassifyInput{ID: draft.ID, RawText: draft.RawText}
		if len(draft.Hints) > 0 {
			var hints parse.Hints
			if json.Unmarshal(draft.Hints, &hints) == nil {
				input.Hints = &hints
			}
		}
		inputs = append(inputs, input)
	}

	results, err := s.classifier.Classify(ctx, inputs, customPrompt)
	if err != nil {
		return fmt.Errorf("classify tasks: %w", err)
	}
	results, err = s.recal.Recalculate(ctx, userID, results)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskRepo := s.tasks.WithTx(tx)
		for _, r := range results {
			if err := taskRepo.Update(ctx, r.ID, map[string]any{
				"ai_importance": r.Importance,
				"ai_urgency":    r.Urgency,
				"ai_quadrant":   r.Quadrant,
				"ai_confidence": r.Confidence,
				"ai_reason":     r.Reason,
				"status":        model.StatusClassified,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[classify] user=%s drafts=%d", userID, len(results))
	return nil
}

// UpdateClassification stores the user's own important/urgent judgment
// during review, before finalization.
func (s *TaskService) UpdateClassification(ctx context.Context, userID, taskID string, important, urgent bool) error {
	if _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		return err
	}
	return s.tasks.Update(ctx, taskID, map[string]any{
		"final_important": important,
		"final_urgent":    urgent,
		"final_quadrant":  model.QuadrantFromFlags(important, urgent),
	})
}

// UpdateDueDate sets or clears a task's due date.
func (s *TaskService) UpdateDueDate(ctx context.Context, userID, taskID string, dueDate *time.Time) error {
	if _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		return err
	}
	return s.tasks.Update(ctx, taskID, map[string]any{"due_date": dueDate})
}

// Complete marks a task done and clears every pending temporal marker.
func (s *TaskService) Complete(ctx context.Context, userID, taskID string) error {
	if _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		return err
	}
	return s.tasks.Update(ctx, taskID, map[string]any{
		"status":          model.StatusCompleted,
		"completed_at":    s.now(),
		"alert_at":        nil,
		"needs_review_at": nil,
		"backlog_at":      nil,
	})
}

// Uncomplete undoes a completion.
func (s *TaskService) Uncomplete(ctx context.Context, userID, taskID string) error {
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.Status != model.StatusCompleted {
		return ErrTaskNotFound
	}
	return s.tasks.Update(ctx, taskID, map[string]any{
		"status":       model.StatusActive,
		"completed_at": nil,
	})
}

// Discard soft-deletes a task. Recoverable until the retention sweep.
func (s *TaskService) Discard(ctx context.Context, userID, taskID string) error {
	if _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		return err
	}
	return s.tasks.Update(ctx, taskID, map[string]any{
		"status":      model.StatusDiscarded,
		"archived_at": s.now(),
	})
}

// Restore brings a discarded task back as active in today's plan.
// Restoring to `classified` for a fresh AI round was considered and
// rejected: the user already judged this task once.
func (s *TaskService) Restore(ctx context.Context, userID, taskID string) error {
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.Status != model.StatusDiscarded {
		return ErrTaskNotFound
	}

	if err := s.tasks.Update(ctx, taskID, map[string]any{
		"status":          model.StatusActive,
		"archived_at":     nil,
		"backlog_at":      nil,
		"alert_at":        nil,
		"needs_review_at": nil,
	}); err != nil {
		return err
	}

	plan, err := s.plans.UpsertForDate(ctx, userID, clock.Today(s.now()))
	if err != nil {
		return err
	}
	return s.plans.LinkTask(ctx, plan.ID, taskID, model.OriginBacklog)
}

// AcknowledgeAlert clears a Q1 dwell alert, keeping the task in Q1.
func (s *TaskService) AcknowledgeAlert(ctx context.Context, userID, taskID string) error {
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.ResolvedQuadrant() != model.QuadrantQ1 {
		return ErrWrongQuadrant
	}
	return s.tasks.Update(ctx, taskID, map[string]any{"alert_at": nil})
}

// MoveQ1ToQ2 answers a Q1 alert with "not actually urgent".
func (s *TaskService) MoveQ1ToQ2(ctx context.Context, userID, taskID string) error {
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.ResolvedQuadrant() != model.QuadrantQ1 {
		return ErrWrongQuadrant
	}
	return s.tasks.Update(ctx, taskID, map[string]any{
		"final_important": true,
		"final_urgent":    false,
		"final_quadrant":  model.QuadrantQ2,
		"alert_at":        nil,
	})
}

// MoveQ3ToQ2 answers a review prompt with "this is actually important",
// clearing the now-moot prompt.
func (s *TaskService) MoveQ3ToQ2(ctx context.Context, userID, taskID string) error {
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.ResolvedQuadrant() != model.QuadrantQ3 {
		return ErrWrongQuadrant
	}
	return s.tasks.Update(ctx, taskID, map[string]any{
		"final_important": true,
		"final_urgent":    false,
		"final_quadrant":  model.QuadrantQ2,
		"needs_review_at": nil,
	})
}

// ArchiveQ3 answers a review prompt with "not important": soft delete.
func (s *TaskService) ArchiveQ3(ctx context.Context, userID, taskID string) error {
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.ResolvedQuadrant() != model.QuadrantQ3 {
		return ErrWrongQuadrant
	}
	return s.tasks.Update(ctx, taskID, map[string]any{
		"status":          model.StatusDiscarded,
		"needs_review_at": nil,
		"archived_at":     s.now(),
	})
}

// MoveToQuadrant re-files an active task into the given quadrant,
// setting the final fields directly.
func (s *TaskService) MoveToQuadrant(ctx context.Context, userID, taskID string, quadrant model.Quadrant) error {
	if !quadrant.Valid() {
		return ErrWrongQuadrant
	}
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.Status != model.StatusActive {
		return ErrTaskNotFound
	}
	return s.tasks.Update(ctx, taskID, map[string]any{
		"final_important": quadrant.Important(),
		"final_urgent":    quadrant.Urgent(),
		"final_quadrant":  quadrant,
		"needs_review_at": nil,
	})
}

// AddToToday pulls a backlog task into today's plan, resetting its
// deferral markers and backfilling final fields from the AI judgment
// when the user never set them.
func (s *TaskService) AddToToday(ctx context.Context, userID, taskID string) error {
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return err
	}

	plan, err := s.plans.UpsertForDate(ctx, userID, clock.Today(s.now()))
	if err != nil {
		return err
	}
	if err := s.plans.LinkTask(ctx, plan.ID, taskID, model.OriginBacklog); err != nil {
		return err
	}

	fields := map[string]any{
		"status":          model.StatusActive,
		"backlog_at":      nil,
		"alert_at":        nil,
		"needs_review_at": nil,
	}
	if task.FinalQuadrant == nil && task.AIQuadrant != nil && task.AIQuadrant.Valid() {
		fields["final_quadrant"] = *task.AIQuadrant
		fields["final_important"] = task.AIQuadrant.Important()
		fields["final_urgent"] = task.AIQuadrant.Urgent()
	}
	return s.tasks.Update(ctx, taskID, fields)
}

// ListBacklog returns the backlog page: active tasks outside today's
// plan plus tasks the rule engine deferred.
func (s *TaskService) ListBacklog(ctx context.Context, userID string) ([]model.Task, error) {
	plan, err := s.plans.FindByDate(ctx, userID, clock.Today(s.now()))
	if err != nil {
		return nil, err
	}
	var todayIDs []string
	if plan != nil {
		for _, link := range plan.Tasks {
			todayIDs = append(todayIDs, link.TaskID)
		}
	}
	return s.tasks.ListBacklogView(ctx, userID, todayIDs, 100)
}

// ListArchive returns soft-deleted tasks, newest first.
func (s *TaskService) ListArchive(ctx context.Context, userID string) ([]model.Task, error) {
	return s.tasks.ListArchived(ctx, userID, 200)
}

// DefaultView returns the user's preferred today layout.
func (s *TaskService) DefaultView(ctx context.Context, userID string) (string, error) {
	pref, err := s.users.Preference(ctx, userID)
	if err != nil {
		return "", err
	}
	if pref != nil && pref.DefaultView == "matrix" {
		return "matrix", nil
	}
	return "list", nil
}

// SetDefaultView stores the preferred today layout.
func (s *TaskService) SetDefaultView(ctx context.Context, userID, view string) error {
	pref, err := s.users.Preference(ctx, userID)
	if err != nil {
		return err
	}
	if pref == nil {
		pref = &model.UserPreference{UserID: userID}
	}
	pref.DefaultView = view
	return s.users.SavePreference(ctx, pref)
}

func (s *TaskService) ownedTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, userID, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return task, nil
}
