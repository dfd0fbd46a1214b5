// Package broker talks to the asynchronous work queue the training workers
// consume from. The queue itself is a black box to the orchestrator: tasks go
// in through Submitter, ephemeral state comes back through StatusReader.
package broker

import "context"

// Task states as reported by the broker.
const (
	StatePending  = "PENDING"
	StateStarted  = "STARTED"
	StateProgress = "PROGRESS"
	StateSuccess  = "SUCCESS"
	StateFailure  = "FAILURE"
)

// IsTerminal reports whether no further state changes are expected.
func IsTerminal(state string) bool {
	return state == StateSuccess || state == StateFailure
}

// TaskStatus is the broker-held view of one task. Meta carries transient
// progress metadata while the task runs; Result carries the terminal payload
// once the task is ready. The broker's result cache may evict or truncate
// Result, so terminal consumers should prefer the durable record.
type TaskStatus struct {
	TaskID string
	State  string
	Meta   map[string]interface{}
	Result interface{}
}

// Submitter enqueues one concrete configuration for execution and returns
// the broker task identifier. Enqueue is fire and forget: failure is
// reported per call and never affects previously queued tasks.
type Submitter interface {
	Submit(ctx context.Context, pipelineName string, config map[string]interface{}) (string, error)
}

// StatusReader looks up the broker's ephemeral state for a task.
type StatusReader interface {
	Status(ctx context.Context, taskID string) (TaskStatus, error)
}
