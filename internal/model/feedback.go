package model

import "time"

// Feedback records one (AI quadrant, final quadrant) pair per task at
// finalization time. Write-once; used only to recalibrate classifier
// confidence. The (user_id, task_id) unique index guarantees at most
// one row per task.
type Feedback struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"index:idx_feedback_user_task,unique"`
	TaskID        string `gorm:"index:idx_feedback_user_task,unique"`
	AIQuadrant    Quadrant
	FinalQuadrant Quadrant
	CreatedAt     time.Time `gorm:"index"`
}
