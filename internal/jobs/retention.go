package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/JoelGresham/teamPoll/internal/events"
	"github.com/JoelGresham/teamPoll/pkg/logger"
)

const TypeRetentionSweep = "poll:retention_sweep"

// Sweeper purges completed polls older than a horizon and notifies live
// connections of each removal itself.
type Sweeper interface {
	Sweep(ctx context.Context, horizon time.Duration) ([]string, []events.Event, error)
}

type RetentionPayload struct {
	HorizonSeconds int64 `json:"horizon_seconds"`
}

func NewRetentionTask(horizon time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(RetentionPayload{HorizonSeconds: int64(horizon / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRetentionSweep, payload), nil
}

type RetentionJob struct {
	sweeper Sweeper
	horizon time.Duration
	logger  *logger.Logger
}

func NewRetentionJob(sweeper Sweeper, horizon time.Duration, l *logger.Logger) *RetentionJob {
	if l == nil {
		l = logger.NewNop()
	}
	return &RetentionJob{sweeper: sweeper, horizon: horizon, logger: l}
}

// Run performs one sweep with the given horizon and returns how many polls were removed.
func (j *RetentionJob) Run(ctx context.Context, horizon time.Duration) (int, error) {
	ids, _, err := j.sweeper.Sweep(ctx, horizon)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	return len(ids), nil
}

// HandleTask is the asynq handler for TypeRetentionSweep.
func (j *RetentionJob) HandleTask(ctx context.Context, t *asynq.Task) error {
	horizon := j.horizon
	if len(t.Payload()) > 0 {
		var payload RetentionPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode %s payload: %v: %w", TypeRetentionSweep, err, asynq.SkipRetry)
		}
		if payload.HorizonSeconds > 0 {
			horizon = time.Duration(payload.HorizonSeconds) * time.Second
		}
	}
	removed, err := j.Run(ctx, horizon)
	if err != nil {
		j.logger.Errorf("retention task failed: %v", err)
		return err
	}
	j.logger.Debugf("retention task removed %d polls", removed)
	return nil
}
