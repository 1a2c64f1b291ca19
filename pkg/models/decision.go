package models

import "time"

// TriggerDecision is the upstream command to assemble a trigger record at a
// downstream worker. The orchestrator core treats everything but the
// trigger/run numbers as an opaque payload it passes through unexamined.
type TriggerDecision struct {
	TriggerNumber uint64            `msgpack:"trigger_number"`
	RunNumber     uint64            `msgpack:"run_number"`
	Metadata      map[string]string `msgpack:"metadata,omitempty"`
}

// CompletionToken is the asynchronous message a worker sends back once it
// has finished assembling the trigger record for a decision.
type CompletionToken struct {
	TriggerNumber       uint64 `msgpack:"trigger_number"`
	RunNumber           uint64 `msgpack:"run_number"`
	DecisionDestination string `msgpack:"decision_destination"`
}

// WorkerSpec describes one downstream worker as configured, before any
// runtime state (outstanding assignments, health) attaches to it.
type WorkerSpec struct {
	ConnectionName string `yaml:"decision_connection" json:"connection_name"`
	Capacity       int    `yaml:"capacity" json:"capacity"`
	FreeThreshold  int    `yaml:"free_threshold,omitempty" json:"free_threshold,omitempty"`

	// Address is the dial target the gRPC network manager connects to
	// for this connection name. Defaults to ConnectionName itself (a
	// resolvable hostname) when left unset.
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
}

// WorkerView is a read-only snapshot of a worker's bookkeeping, safe to
// marshal to JSON for the REST API and dashboard.
type WorkerView struct {
	ConnectionName    string        `json:"connection_name"`
	BusyThreshold     int           `json:"busy_threshold"`
	FreeThreshold     int           `json:"free_threshold"`
	Outstanding       int           `json:"outstanding"`
	IsBusy            bool          `json:"is_busy"`
	InError           bool          `json:"in_error"`
	AverageLatencyMs  float64       `json:"average_latency_ms"`
}

// LatencySince is a helper window bound used when computing AverageLatencyMs
// for a view (e.g. "average over the last five minutes").
func LatencySince(d time.Duration) time.Time {
	return time.Now().Add(-d)
}
