// Dirigent — оркестратор конвейера сбора и проверки прокси.
//
// Сервер:
//   - Подключается к Redis (fallback: in-memory хранилище)
//   - Регистрирует компоненты в SystemIntegrator и запускает их
//     в порядке зависимостей
//   - Поднимает HTTP API, /healthz и /metrics
//   - Останавливается по SIGINT/SIGTERM в обратном порядке
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Dirigent/internal/api"
	"github.com/shaiso/Dirigent/internal/executors"
	"github.com/shaiso/Dirigent/internal/integrator"
	"github.com/shaiso/Dirigent/internal/scheduler"
	"github.com/shaiso/Dirigent/internal/store"
	"github.com/shaiso/Dirigent/internal/taskmgr"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting dirigent")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилище: Redis, при недоступности — in-memory
	var backend store.Store
	redisStore, err := store.NewRedisStore(ctx, store.RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err != nil {
		logger.Warn("redis not available, using in-memory store", "error", err)
		backend = store.NewMemoryStore()
	} else {
		logger.Info("redis connected")
		backend = redisStore
	}

	resilient := store.NewResilient(backend, store.ResilientConfig{
		Logger: telemetry.WithComponent(logger, "store"),
	})
	defer resilient.Close()

	// Task manager с прикладными executor'ами
	registry := taskmgr.NewRegistry()
	executors.RegisterAll(registry, resilient, logger)

	maxConcurrent := 0
	if v := os.Getenv("MAX_CONCURRENT_TASKS"); v != "" {
		maxConcurrent, _ = strconv.Atoi(v)
	}

	tasks := taskmgr.New(taskmgr.Config{
		Registry:      registry,
		MaxConcurrent: maxConcurrent,
		Logger:        telemetry.WithComponent(logger, "taskmgr"),
	})

	// Сэмплер нагрузки локального узла
	var sampler telemetry.Sampler
	if s, err := telemetry.NewProcessSampler(); err != nil {
		logger.Warn("process sampler unavailable", "error", err)
	} else {
		sampler = s
	}

	sched := scheduler.New(scheduler.Config{
		Tasks:   tasks,
		Sampler: sampler,
		Logger:  telemetry.WithComponent(logger, "scheduler"),
	})

	// Стандартный конвейер прокси: регистрируется при наличии источников
	if sources := os.Getenv("PROXY_SOURCES"); sources != "" {
		def := executors.CrawlPipelineDefinition(splitCSV(sources))
		if err := sched.RegisterWorkflow(def); err != nil {
			logger.Error("failed to register proxy pipeline", "error", err)
		}
	}

	// Компоненты в порядке зависимостей: scheduler поверх taskmgr
	in := integrator.New(integrator.Config{
		Logger: telemetry.WithComponent(logger, "integrator"),
	})
	if err := in.Register("taskmgr", tasks); err != nil {
		logger.Error("failed to register component", "error", err)
		os.Exit(1)
	}
	if err := in.Register("scheduler", sched, "taskmgr"); err != nil {
		logger.Error("failed to register component", "error", err)
		os.Exit(1)
	}

	if err := in.StartAll(ctx); err != nil {
		logger.Error("failed to start components", "error", err)
		os.Exit(1)
	}

	// Периодический запуск конвейера по cron-выражению
	var cronRunner *scheduler.CronRunner
	if spec := os.Getenv("PIPELINE_CRON"); spec != "" {
		cronRunner = scheduler.NewCronRunner(sched, logger)
		if err := cronRunner.Add(spec, "proxy-pipeline", nil); err != nil {
			logger.Error("failed to add pipeline schedule", "error", err)
		} else {
			cronRunner.Start()
		}
	}

	// HTTP API
	handler := api.NewHandler(api.Config{
		Tasks:      tasks,
		Scheduler:  sched,
		Integrator: in,
		Logger:     logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := resilient.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("store unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "error", err)
	}

	if cronRunner != nil {
		cronRunner.Stop()
	}
	in.StopAll(shutdownCtx)

	logger.Info("dirigent stopped")
}

// splitCSV разбивает строку с запятыми, отбрасывая пустые элементы.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
