package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockscan/stockscan/internal/jobs"
	"github.com/stockscan/stockscan/internal/shared"
	"github.com/stockscan/stockscan/internal/staging"
)

// Janitor is the subset of staging.Janitor used by the jobs.
type Janitor interface {
	Sweep(ctx context.Context, aggressive bool) (staging.SweepReport, error)
	ClearSession(ctx context.Context, userID, scanID string) error
}

// StagingJobs handles staging maintenance tasks.
type StagingJobs struct {
	Janitor Janitor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStagingJobs initialises the staging task handlers.
func NewStagingJobs(janitor Janitor, logger *slog.Logger, metrics *jobmetrics.Metrics) *StagingJobs {
	return &StagingJobs{Janitor: janitor, Logger: logger, Metrics: metrics}
}

// Handlers lists the task handlers to register on the worker.
func (j *StagingJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskStagingSweep, Handler: j.HandleSweep},
		{Type: TaskStagingClearSession, Handler: j.HandleClearSession},
	}
}

// HandleSweep executes a staging sweep.
func (j *StagingJobs) HandleSweep(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Janitor == nil {
		return errors.New("staging sweep: handler not configured")
	}
	var payload StagingSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := j.Metrics.Track(TaskStagingSweep)
	defer func() { err = tracker.End(err) }()

	report, err := j.Janitor.Sweep(ctx, payload.Aggressive)
	if err != nil {
		j.logger().Error("staging sweep failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("staging sweep finished",
		slog.Time("scheduled_for", payload.ScheduledFor),
		slog.Int("scanned", report.Scanned),
		slog.Int("removed", report.Removed()))
	return nil
}

// HandleClearSession removes the staging entries of one session.
func (j *StagingJobs) HandleClearSession(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Janitor == nil {
		return errors.New("staging clear session: handler not configured")
	}
	var payload ClearSessionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ScanID == "" {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskStagingClearSession)
	defer func() { err = tracker.End(err) }()

	if err := j.Janitor.ClearSession(ctx, payload.UserID, payload.ScanID); err != nil {
		if errors.Is(err, shared.ErrValidation) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

func (j *StagingJobs) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// InlineCleaner clears sessions synchronously when no queue is configured.
type InlineCleaner struct {
	Janitor Janitor
	Timeout time.Duration
}

// ScheduleSessionCleanup clears the session before returning.
func (c InlineCleaner) ScheduleSessionCleanup(ctx context.Context, userID, scanID string) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return c.Janitor.ClearSession(ctx, userID, scanID)
}
