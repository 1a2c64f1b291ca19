package trb

import "errors"

// Sentinel errors returned by WorkerState and WorkerTable.
var (
	// ErrThresholdsInconsistent is returned by NewWorkerState when
	// freeThreshold is greater than busyThreshold.
	ErrThresholdsInconsistent = errors.New("trb: free threshold must not exceed busy threshold")

	// ErrNoSlotsAvailable is returned by AddAssignment when the worker was
	// marked in-error between selection and commit.
	ErrNoSlotsAvailable = errors.New("trb: worker has no slots available")

	// ErrAssignmentNotFound is returned by CompleteAssignment when no
	// outstanding assignment matches the given trigger number.
	ErrAssignmentNotFound = errors.New("trb: assignment not found")
)
