package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/JoelGresham/teamPoll/pkg/logger"
)

// Runner schedules the retention job until stopped.
type Runner interface {
	Start(ctx context.Context) error
	Stop()
}

// TickerRunner sweeps in-process on a fixed interval. Used when no Redis is configured.
type TickerRunner struct {
	job      *RetentionJob
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewTickerRunner(job *RetentionJob, interval time.Duration) *TickerRunner {
	return &TickerRunner{job: job, interval: interval}
}

func (r *TickerRunner) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("retention interval must be positive, got %s", r.interval)
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.run(ctx)
	return nil
}

func (r *TickerRunner) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.job.Run(ctx, r.job.horizon); err != nil {
				r.job.logger.Errorf("retention sweep failed: %v", err)
			}
		}
	}
}

func (r *TickerRunner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

// AsynqRunner registers the sweep with an asynq scheduler and processes it with an
// asynq worker, so several server processes sharing Redis run one sweep per tick.
type AsynqRunner struct {
	job       *RetentionJob
	interval  time.Duration
	scheduler *asynq.Scheduler
	server    *asynq.Server
	logger    *logger.Logger
}

func NewAsynqRunner(opt asynq.RedisClientOpt, job *RetentionJob, interval time.Duration, l *logger.Logger) *AsynqRunner {
	if l == nil {
		l = logger.NewNop()
	}
	sugar := l.Logger.Sugar()
	return &AsynqRunner{
		job:       job,
		interval:  interval,
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Logger: sugar}),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{"maintenance": 1},
			Logger:      sugar,
		}),
		logger: l,
	}
}

// Cronspec is the asynq schedule for interval, e.g. "@every 1h0m0s".
func Cronspec(interval time.Duration) string {
	return "@every " + interval.String()
}

func (r *AsynqRunner) Start(_ context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("retention interval must be positive, got %s", r.interval)
	}
	task, err := NewRetentionTask(r.job.horizon)
	if err != nil {
		return err
	}
	entryID, err := r.scheduler.Register(Cronspec(r.interval), task,
		asynq.Queue("maintenance"),
		asynq.MaxRetry(2),
		asynq.Unique(r.interval),
	)
	if err != nil {
		return fmt.Errorf("register retention schedule: %w", err)
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRetentionSweep, r.job.HandleTask)
	if err := r.server.Start(mux); err != nil {
		return fmt.Errorf("start retention worker: %w", err)
	}
	if err := r.scheduler.Start(); err != nil {
		r.server.Shutdown()
		return fmt.Errorf("start retention scheduler: %w", err)
	}
	r.logger.Infof("retention sweep scheduled (%s, entry %s)", Cronspec(r.interval), entryID)
	return nil
}

func (r *AsynqRunner) Stop() {
	r.scheduler.Shutdown()
	r.server.Shutdown()
}
