package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronRunner запускает workflows по расписанию.
//
// Каждая запись расписания — cron-выражение и ID зарегистрированного
// workflow: на каждое срабатывание создаётся новый instance.
type CronRunner struct {
	scheduler *Scheduler
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewCronRunner создаёт runner поверх планировщика.
func NewCronRunner(s *Scheduler, logger *slog.Logger) *CronRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronRunner{
		scheduler: s,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Add регистрирует расписание запуска workflow.
// spec — стандартное пятипольное cron-выражение.
func (r *CronRunner) Add(spec, workflowID string, execCtx map[string]any) error {
	_, err := r.cron.AddFunc(spec, func() {
		id, err := r.scheduler.StartWorkflow(workflowID, execCtx)
		if err != nil {
			r.logger.Error("scheduled workflow start failed",
				"workflow_id", workflowID,
				"error", err,
			)
			return
		}
		r.logger.Info("scheduled workflow started",
			"workflow_id", workflowID,
			"instance_id", id,
		)
	})
	if err != nil {
		return fmt.Errorf("add cron schedule %q: %w", spec, err)
	}

	r.logger.Info("cron schedule added", "spec", spec, "workflow_id", workflowID)
	return nil
}

// Start запускает расписание.
func (r *CronRunner) Start() {
	r.cron.Start()
}

// Stop останавливает расписание и ждёт завершения запущенных срабатываний.
func (r *CronRunner) Stop() {
	<-r.cron.Stop().Done()
}
