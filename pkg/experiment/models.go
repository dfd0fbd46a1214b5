package experiment

import (
	"time"

	"gorm.io/datatypes"
)

// Record is the durable row describing one experiment run. The worker owns
// the writes during a run; the orchestrator reads records by id or task id.
// Exactly one of CompletedAt/FailedAt is set once Status is terminal.
type Record struct {
	ID           string            `gorm:"primaryKey;column:id" json:"id"`
	TaskID       string            `gorm:"column:task_id;index" json:"task_id"`
	BatchID      *string           `gorm:"column:batch_id;index" json:"batch_id"`
	BatchName    *string           `gorm:"column:batch_name" json:"batch_name"`
	PipelineName string            `gorm:"column:pipeline_name" json:"pipeline_name"`
	Status       string            `gorm:"column:status" json:"status"`
	Config       datatypes.JSONMap `gorm:"column:config" json:"config"`
	Results      datatypes.JSONMap `gorm:"column:results" json:"results"`
	Error        string            `gorm:"column:error" json:"error,omitempty"`
	CreatedAt    time.Time         `gorm:"column:created_at" json:"created_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at" json:"completed_at"`
	FailedAt     *time.Time        `gorm:"column:failed_at" json:"failed_at"`
}

func (Record) TableName() string {
	return "experiments"
}

// SubmitResult is the outcome of one submission. A single concrete
// configuration yields TaskID; a batch yields BatchID/BatchName and the
// ordered TaskIDs, plus per-item Failures for members the queue rejected.
type SubmitResult struct {
	Message   string              `json:"message"`
	TaskID    string              `json:"task_id,omitempty"`
	BatchID   string              `json:"batch_id,omitempty"`
	BatchName string              `json:"batch_name,omitempty"`
	TaskIDs   []string            `json:"task_ids,omitempty"`
	Failures  []SubmissionFailure `json:"failures,omitempty"`
}

// SubmissionFailure records one batch member the work queue did not accept.
// Sibling submissions are unaffected: the platform favors availability of
// already-queued work over all-or-nothing atomicity.
type SubmissionFailure struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}
