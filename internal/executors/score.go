package executors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/store"
	"github.com/shaiso/Dirigent/internal/taskmgr"
)

// TypeScore — тип task оценки прокси.
const TypeScore = "proxy_score"

// defaultTopCount — сколько лучших прокси возвращать в результате.
const defaultTopCount = 10

// Scorer — executor типа proxy_score.
//
// Пересчитывает оценку каждого валидного прокси и возвращает список
// лучших. Оценка 0–100 складывается из надёжности (доля успешных
// проверок, вес 70) и скорости (чем ниже задержка, тем выше вклад,
// вес 30).
//
// Конфигурация task'а:
//   - top — размер возвращаемого списка лучших (default: 10)
type Scorer struct {
	store  store.Store
	logger *slog.Logger
}

// NewScorer создаёт executor оценки прокси.
func NewScorer(st store.Store, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{store: st, logger: logger}
}

// Execute пересчитывает оценки всех валидных прокси.
func (s *Scorer) Execute(ctx context.Context, task *domain.Task, progress taskmgr.ProgressFunc) (map[string]any, error) {
	addrs, err := s.store.SMembers(ctx, validSetKey)
	if err != nil {
		return nil, fmt.Errorf("load valid proxies: %w", err)
	}
	if len(addrs) == 0 {
		// Нет валидных прокси — не ошибка: предыдущий шаг мог ничего не найти
		return map[string]any{"scored": 0, "top": []string{}}, nil
	}

	top := configInt(task.Config, "top", defaultTopCount)

	scored := make([]*Proxy, 0, len(addrs))
	for i, addr := range addrs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		proxy, err := loadProxy(ctx, s.store, addr)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				_ = s.store.SRem(ctx, validSetKey, addr)
				continue
			}
			return nil, fmt.Errorf("load proxy %s: %w", addr, err)
		}

		proxy.Score = computeScore(proxy)
		if err := saveProxy(ctx, s.store, proxy, defaultProxyTTL); err != nil {
			return nil, fmt.Errorf("save proxy %s: %w", addr, err)
		}
		scored = append(scored, proxy)

		progress((i + 1) * 100 / len(addrs))
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Addr() < scored[j].Addr()
	})

	if top > len(scored) {
		top = len(scored)
	}
	topAddrs := make([]string, 0, top)
	for _, proxy := range scored[:top] {
		topAddrs = append(topAddrs, proxy.Addr())
	}

	s.logger.Info("proxy scoring finished",
		"scored", len(scored),
		"top", len(topAddrs),
	)
	return map[string]any{
		"scored": len(scored),
		"top":    topAddrs,
	}, nil
}

// computeScore возвращает оценку прокси 0–100.
func computeScore(proxy *Proxy) float64 {
	checks := proxy.SuccessCount + proxy.FailureCount
	if checks == 0 {
		return 0
	}

	reliability := float64(proxy.SuccessCount) / float64(checks) * 70

	// Задержка до 100мс — полный балл скорости, дальше вклад тает
	var speed float64
	if proxy.LatencyMS > 0 {
		speed = 30 * 100 / float64(proxy.LatencyMS)
		if speed > 30 {
			speed = 30
		}
	}

	return reliability + speed
}

// RegisterAll регистрирует все прикладные executor'ы в реестре.
func RegisterAll(registry *taskmgr.Registry, st store.Store, logger *slog.Logger) {
	registry.Register(TypeCrawl, NewCrawler(st, logger))
	registry.Register(TypeValidate, NewValidator(st, logger))
	registry.Register(TypeScore, NewScorer(st, logger))
}

// CrawlPipelineDefinition возвращает стандартный workflow конвейера прокси:
// сбор → проверка → оценка.
func CrawlPipelineDefinition(sources []string) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:   "proxy-pipeline",
		Name: "proxy-pipeline",
		Tasks: []domain.TaskTemplate{
			{
				Name:     "crawl",
				Type:     TypeCrawl,
				Priority: domain.PriorityNormal,
				Config:   map[string]any{"sources": sources},
			},
			{
				Name:       "validate",
				Type:       TypeValidate,
				Priority:   domain.PriorityNormal,
				MaxRetries: 1,
			},
			{
				Name:     "score",
				Type:     TypeScore,
				Priority: domain.PriorityLow,
			},
		},
		Dependencies: map[string][]string{
			"validate": {"crawl"},
			"score":    {"validate"},
		},
		Strategy: domain.StrategyDependencyAware,
	}
}
