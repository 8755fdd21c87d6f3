package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when the sweeper configuration is unusable
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSweepInProgress is returned by RunOnce while another sweep is running
	ErrSweepInProgress = errors.New("overdue sweep already in progress")
)
