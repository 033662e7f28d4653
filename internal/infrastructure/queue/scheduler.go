package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"identity-registry/internal/shared"
	"identity-registry/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
}

func NewScheduler(redisAddress, redisPassword string, redisDB int) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     redisAddress,
			Password: redisPassword,
			DB:       redisDB,
		},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{scheduler: scheduler}
}

func (s *Scheduler) RegisterJobs() error {
	return s.registerSweepExpiredBindingsJob()
}

// ================================================
// JOB: Sweep Expired Bindings (Hourly)
// ================================================
// Expired bindings stay in storage until renewed or reminted; the sweep
// surfaces them for operators without mutating anything. Hourly keeps the
// report fresh without meaningful load.
func (s *Scheduler) registerSweepExpiredBindingsJob() error {
	payload, err := json.Marshal(shared.SweepExpiredPayload{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeSweepExpiredBindings, payload)

	_, err = s.scheduler.Register(
		"0 * * * *", // Hourly at minute 0
		task,
		asynq.Queue(shared.QueueSweep),
		asynq.MaxRetry(2),
		asynq.Timeout(5*time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register SweepExpiredBindings job", err)
		return err
	}

	logger.Info("✓ Registered SweepExpiredBindings: hourly", map[string]interface{}{})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
