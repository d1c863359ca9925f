package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eisenplan/internal/model"
)

// PlanRepository manages daily plans and their task links. Every write
// that can be double-invoked goes through an insert-ignore against the
// unique indexes declared on the models.
type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *PlanRepository) WithTx(tx *gorm.DB) *PlanRepository {
	return &PlanRepository{db: tx}
}

// UpsertForDate creates the plan for (user, date) if missing and
// returns the stored row either way.
func (r *PlanRepository) UpsertForDate(ctx context.Context, userID string, date time.Time) (*model.DailyPlan, error) {
	plan := model.DailyPlan{ID: uuid.NewString(), UserID: userID, Date: date}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoNothing: true,
	}).Create(&plan).Error; err != nil {
		return nil, fmt.Errorf("upsert plan: %w", err)
	}

	var stored model.DailyPlan
	if err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	return &stored, nil
}

// SetFinalized stamps (or refreshes) the plan's finalization time.
func (r *PlanRepository) SetFinalized(ctx context.Context, planID string, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.DailyPlan{}).
		Where("id = ?", planID).
		Update("finalized_at", at).Error; err != nil {
		return fmt.Errorf("finalize plan: %w", err)
	}
	return nil
}

// FindByDate loads the plan with its links and tasks. Returns (nil, nil)
// when no plan exists for that day.
func (r *PlanRepository) FindByDate(ctx context.Context, userID string, date time.Time) (*model.DailyPlan, error) {
	var plan model.DailyPlan
	err := r.db.WithContext(ctx).
		Preload("Tasks.Task").
		Where("user_id = ? AND date = ?", userID, date).
		First(&plan).Error
	switch {
	case err == nil:
		return &plan, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find plan: %w", err)
	}
}

// LinkTask attaches one task to a plan, ignoring duplicates.
func (r *PlanRepository) LinkTask(ctx context.Context, planID, taskID string, origin model.Origin) error {
	link := model.DailyPlanTask{
		ID:          uuid.NewString(),
		DailyPlanID: planID,
		TaskID:      taskID,
		Origin:      origin,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "daily_plan_id"}, {Name: "task_id"}},
		DoNothing: true,
	}).Create(&link).Error; err != nil {
		return fmt.Errorf("link task: %w", err)
	}
	return nil
}

// LinkTasks bulk-attaches tasks to a plan with skip-duplicate semantics.
func (r *PlanRepository) LinkTasks(ctx context.Context, planID string, taskIDs []string, origin model.Origin) error {
	if len(taskIDs) == 0 {
		return nil
	}
	links := make([]model.DailyPlanTask, 0, len(taskIDs))
	for _, taskID := range taskIDs {
		links = append(links, model.DailyPlanTask{
			ID:          uuid.NewString(),
			DailyPlanID: planID,
			TaskID:      taskID,
			Origin:      origin,
		})
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "daily_plan_id"}, {Name: "task_id"}},
		DoNothing: true,
	}).Create(&links).Error; err != nil {
		return fmt.Errorf("link tasks: %w", err)
	}
	return nil
}

// CountLinks returns the number of links on a plan.
func (r *PlanRepository) CountLinks(ctx context.Context, planID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.DailyPlanTask{}).
		Where("daily_plan_id = ?", planID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count links: %w", err)
	}
	return n, nil
}
