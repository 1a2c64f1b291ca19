package trb

import (
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/models"
)

// Assignment pairs a trigger decision with the worker it was sent to and
// the time it was handed off. It is immutable after construction; the
// dispatcher and the owning WorkerState's outstanding list both hold a
// reference to the same value.
type Assignment struct {
	Decision   models.TriggerDecision
	WorkerName string
	AssignedAt time.Time
}
