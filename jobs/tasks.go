package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBulkGenerate runs a bulk article generation batch.
	TaskBulkGenerate = "articles:bulk_generate"
)

// BulkGeneratePayload carries one queued batch.
type BulkGeneratePayload struct {
	JobID   string   `json:"job_id"`
	UserID  string   `json:"user_id"`
	Email   string   `json:"email"`
	Titles  []string `json:"titles"`
	Details string   `json:"details,omitempty"`
}

// NewBulkGenerateTask constructs an Asynq task. Batches are never retried so
// a partially generated batch is not repeated.
func NewBulkGenerateTask(payload BulkGeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBulkGenerate, data, asynq.MaxRetry(0), asynq.TaskID(payload.JobID)), nil
}
