package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eisenplan/internal/model"
)

// FeedbackRepository stores write-once classification corrections.
type FeedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *FeedbackRepository) WithTx(tx *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: tx}
}

// Record inserts the (AI quadrant, final quadrant) pair for a task. A
// second record for the same (user, task) is silently ignored; feedback
// rows are never mutated after creation.
func (r *FeedbackRepository) Record(ctx context.Context, userID, taskID string, aiQuadrant, finalQuadrant model.Quadrant) error {
	row := model.Feedback{
		ID:            uuid.NewString(),
		UserID:        userID,
		TaskID:        taskID,
		AIQuadrant:    aiQuadrant,
		FinalQuadrant: finalQuadrant,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "task_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	return nil
}

// ListSince returns feedback rows created at or after the given instant.
func (r *FeedbackRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]model.Feedback, error) {
	var rows []model.Feedback
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountForTask reports how many feedback rows exist for a task.
func (r *FeedbackRepository) CountForTask(ctx context.Context, userID, taskID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Feedback{}).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count feedback: %w", err)
	}
	return n, nil
}
