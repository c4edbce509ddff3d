package api

import (
	"log/slog"

	"github.com/shaiso/Dirigent/internal/integrator"
	"github.com/shaiso/Dirigent/internal/scheduler"
	"github.com/shaiso/Dirigent/internal/taskmgr"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tasks      *taskmgr.Manager
	scheduler  *scheduler.Scheduler
	integrator *integrator.Integrator
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tasks      *taskmgr.Manager
	Scheduler  *scheduler.Scheduler
	Integrator *integrator.Integrator
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		tasks:      cfg.Tasks,
		scheduler:  cfg.Scheduler,
		integrator: cfg.Integrator,
		logger:     logger,
	}
}
