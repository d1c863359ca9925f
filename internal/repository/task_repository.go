package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"eisenplan/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) ListByStatus(ctx context.Context, userID string, status model.Status, limit int) ([]model.Task, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, status).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListIntakeBetween returns draft and classified tasks created in
// [from, to), i.e. today's intake still waiting for finalization.
func (r *TaskRepository) ListIntakeBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ? AND created_at >= ? AND created_at < ?",
			userID, []model.Status{model.StatusDraft, model.StatusClassified}, from, to).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) ListDraftsBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
			userID, model.StatusDraft, from, to).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListActiveWithPlans loads every active task together with its plan
// link history; the rule engine needs the linked plan dates for its
// lookback window.
func (r *TaskRepository) ListActiveWithPlans(ctx context.Context, userID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Preload("PlanLinks.DailyPlan").
		Where("user_id = ? AND status = ?", userID, model.StatusActive).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) ListBacklog(ctx context.Context, userID string, limit int) ([]model.Task, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND backlog_at IS NOT NULL", userID, model.StatusActive).
		Order("backlog_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListBacklogUnalerted returns backlog tasks whose dwell alert has not
// fired yet. Queried fresh so escalation chains off committed state.
func (r *TaskRepository) ListBacklogUnalerted(ctx context.Context, userID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND backlog_at IS NOT NULL AND alert_at IS NULL",
			userID, model.StatusActive).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListBacklogView returns the backlog page: active tasks either absent
// from today's plan or explicitly moved to backlog by the rule engine.
func (r *TaskRepository) ListBacklogView(ctx context.Context, userID string, todayTaskIDs []string, limit int) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ? AND status = ?", userID, model.StatusActive)
	if len(todayTaskIDs) > 0 {
		q = q.Where("id NOT IN ? OR backlog_at IS NOT NULL", todayTaskIDs)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var tasks []model.Task
	if err := q.Order("backlog_at DESC, created_at ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) ListArchived(ctx context.Context, userID string, limit int) ([]model.Task, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND archived_at IS NOT NULL", userID, model.StatusDiscarded).
		Order("archived_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update applies a partial field map so nullable markers can be set and
// cleared in one write.
func (r *TaskRepository) Update(ctx context.Context, taskID string, fields map[string]any) error {
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", taskID).Updates(fields).Error; err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// PurgeDiscardedBefore permanently deletes tasks soft-deleted at or
// before cutoff, cascading to plan links and feedback rows in one
// transaction.
func (r *TaskRepository) PurgeDiscardedBefore(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND status = ? AND archived_at IS NOT NULL AND archived_at <= ?",
			userID, model.StatusDiscarded, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("list expired tasks: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id IN ?", ids).Delete(&model.DailyPlanTask{}).Error; err != nil {
			return fmt.Errorf("delete plan links: %w", err)
		}
		if err := tx.Where("task_id IN ?", ids).Delete(&model.Feedback{}).Error; err != nil {
			return fmt.Errorf("delete feedback: %w", err)
		}
		if err := tx.Where("id IN ?", ids).Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
