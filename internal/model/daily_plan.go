package model

import "time"

// Origin tags how a task entered a daily plan.
type Origin string

const (
	OriginNew       Origin = "new"        // finalized from today's classification round
	OriginBacklog   Origin = "backlog"    // pulled back from the backlog
	OriginCarryOver Origin = "carry_over" // carried forward from yesterday's plan
)

// DailyPlan is the working set for one (user, civil day). Created lazily
// by whichever operation first needs it; never deleted.
type DailyPlan struct {
	ID          string    `gorm:"primaryKey"`
	UserID      string    `gorm:"index:idx_plan_user_date,unique"`
	Date        time.Time `gorm:"index:idx_plan_user_date,unique"`
	FinalizedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Tasks       []DailyPlanTask `gorm:"foreignKey:DailyPlanID"`
}

// DailyPlanTask links a task into a plan. The (daily_plan_id, task_id)
// unique index is the idempotency anchor: every linking write goes
// through an insert-ignore-on-duplicate against it.
type DailyPlanTask struct {
	ID          string `gorm:"primaryKey"`
	DailyPlanID string `gorm:"index:idx_plan_task,unique"`
	TaskID      string `gorm:"index:idx_plan_task,unique"`
	Origin      Origin
	CreatedAt   time.Time

	DailyPlan DailyPlan `gorm:"foreignKey:DailyPlanID"`
	Task      Task      `gorm:"foreignKey:TaskID"`
}
