package service

import "errors"

// User-facing errors. Anything else that escapes a service is a
// wrapped storage or classifier failure.
var (
	ErrNoClassifiedTasks = errors.New("no classified tasks to finalize")
	ErrNoDraftTasks      = errors.New("no draft tasks to classify")
	ErrEmptyTaskText     = errors.New("task text is required")
	ErrTaskNotFound      = errors.New("task not found")
	ErrWrongQuadrant     = errors.New("task not in expected quadrant")
)
