package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStagingSweep removes expired staging entries.
	TaskStagingSweep = "staging:sweep"
	// TaskStagingClearSession removes the staging entries of one finalised scan.
	TaskStagingClearSession = "staging:clear_session"

	// DefaultSweepCron runs the sweep once a day.
	DefaultSweepCron = "@daily"
)

// StagingSweepPayload carries scheduling metadata.
type StagingSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Aggressive   bool      `json:"aggressive,omitempty"`
}

// ClearSessionPayload identifies one scan session.
type ClearSessionPayload struct {
	UserID string `json:"user_id"`
	ScanID string `json:"scan_id"`
}

// NewStagingSweepTask constructs an Asynq task for the staging sweep.
func NewStagingSweepTask(at time.Time, aggressive bool) (*asynq.Task, error) {
	body, err := json.Marshal(StagingSweepPayload{ScheduledFor: at, Aggressive: aggressive})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStagingSweep, body, asynq.Queue(QueueDefault)), nil
}

// NewClearSessionTask constructs an Asynq task clearing one scan session.
func NewClearSessionTask(payload ClearSessionPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStagingClearSession, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
