package model

import (
	"time"

	"gorm.io/datatypes"
)

// Task represents a single item in the planner.
type Task struct {
	ID      string `gorm:"primaryKey"`
	UserID  string `gorm:"index"`
	RawText string
	Hints   datatypes.JSON // structured hints extracted from RawText
	DueDate *time.Time

	// AI-assigned classification. Nullable until a classification round runs.
	AIImportance *float64
	AIUrgency    *float64
	AIQuadrant   *Quadrant
	AIConfidence *float64
	AIReason     string

	// User-confirmed classification. Once set these permanently override
	// the AI fields for every downstream decision.
	FinalImportant *bool
	FinalUrgent    *bool
	FinalQuadrant  *Quadrant

	Status Status `gorm:"index;default:draft"`

	// Temporal markers, each independently settable and clearable.
	BacklogAt     *time.Time
	AlertAt       *time.Time
	NeedsReviewAt *time.Time
	ArchivedAt    *time.Time
	CompletedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	PlanLinks []DailyPlanTask `gorm:"foreignKey:TaskID"`
}

// ResolvedQuadrant is the single quadrant fallback chain used everywhere
// a quadrant is read: final value, else AI value, else Q4.
func (t *Task) ResolvedQuadrant() Quadrant {
	if t.FinalQuadrant != nil && t.FinalQuadrant.Valid() {
		return *t.FinalQuadrant
	}
	if t.AIQuadrant != nil && t.AIQuadrant.Valid() {
		return *t.AIQuadrant
	}
	return QuadrantQ4
}

// InBacklog reports whether an active task has been deferred out of the
// day's working set. A backlog task may still be linked to a daily plan.
func (t *Task) InBacklog() bool {
	return t.Status == StatusActive && t.BacklogAt != nil
}
