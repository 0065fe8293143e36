package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrTriggerNotRunning is returned by Stop on a trigger that was never started
	ErrTriggerNotRunning = errors.New("sync trigger is not running")
)
