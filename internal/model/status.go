package model

// Status is the task lifecycle state.
//
// draft → classified → active → completed | discarded.
// completed → active (undo) and discarded → active (restore) are
// explicit user actions, never rule-engine transitions.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusClassified Status = "classified"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusDiscarded  Status = "discarded"
)
