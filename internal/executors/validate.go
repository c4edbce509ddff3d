package executors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/store"
	"github.com/shaiso/Dirigent/internal/taskmgr"
)

// TypeValidate — тип task проверки прокси.
const TypeValidate = "proxy_validate"

// defaultProbeURL — URL, через который проверяется работоспособность прокси.
const defaultProbeURL = "http://www.gstatic.com/generate_204"

// defaultValidateConcurrency — проверок одновременно.
const defaultValidateConcurrency = 10

// ErrEmptyPool — пул прокси пуст, проверять нечего.
var ErrEmptyPool = errors.New("proxy pool is empty")

// Validator — executor типа proxy_validate.
//
// Прогоняет каждый прокси из пула через probe-запрос. Успешные прокси
// попадают в множество валидных, у записи обновляются задержка и
// счётчики; неуспешные из множества валидных убираются.
//
// Конфигурация task'а:
//   - probe_url   — URL probe-запроса (default: generate_204)
//   - timeout     — таймаут одной проверки (default: 10s)
//   - concurrency — проверок одновременно (default: 10)
type Validator struct {
	store  store.Store
	logger *slog.Logger

	// newClient подменяется в тестах.
	newClient func(proxyURL *url.URL, timeout time.Duration) *http.Client
}

// NewValidator создаёт executor проверки прокси.
func NewValidator(st store.Store, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		store:     st,
		logger:    logger,
		newClient: proxyClient,
	}
}

// proxyClient возвращает HTTP-клиент, ходящий через прокси.
func proxyClient(proxyURL *url.URL, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:             http.ProxyURL(proxyURL),
			DisableKeepAlives: true,
		},
	}
}

// Execute проверяет все прокси пула с ограниченной конкурентностью.
func (v *Validator) Execute(ctx context.Context, task *domain.Task, progress taskmgr.ProgressFunc) (map[string]any, error) {
	addrs, err := v.store.SMembers(ctx, poolSetKey)
	if err != nil {
		return nil, fmt.Errorf("load proxy pool: %w", err)
	}
	if len(addrs) == 0 {
		return nil, ErrEmptyPool
	}

	probeURL := configString(task.Config, "probe_url", defaultProbeURL)
	timeout := configDuration(task.Config, "timeout", 10*time.Second)
	concurrency := configInt(task.Config, "concurrency", defaultValidateConcurrency)
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		valid int
		done  int
	)
	sem := make(chan struct{}, concurrency)

	for _, addr := range addrs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			defer func() { <-sem }()

			ok := v.checkProxy(ctx, addr, probeURL, timeout)

			mu.Lock()
			if ok {
				valid++
			}
			done++
			progress(done * 100 / len(addrs))
			mu.Unlock()
		}(addr)
	}
	wg.Wait()

	v.logger.Info("proxy validation finished",
		"checked", len(addrs),
		"valid", valid,
	)
	return map[string]any{
		"checked": len(addrs),
		"valid":   valid,
		"invalid": len(addrs) - valid,
	}, nil
}

// checkProxy проверяет один прокси и обновляет его запись.
func (v *Validator) checkProxy(ctx context.Context, addr, probeURL string, timeout time.Duration) bool {
	proxy, err := loadProxy(ctx, v.store, addr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Запись истекла по TTL — выметаем осиротевший адрес из множеств
			_ = v.store.SRem(ctx, poolSetKey, addr)
			_ = v.store.SRem(ctx, validSetKey, addr)
			return false
		}
		v.logger.Warn("load proxy record failed", "proxy", addr, "error", err)
		return false
	}

	latency, anonymous, probeErr := v.probe(ctx, proxy, probeURL, timeout)

	now := time.Now()
	proxy.CheckedAt = &now
	if probeErr != nil {
		proxy.FailureCount++
		_ = v.store.SRem(ctx, validSetKey, addr)
	} else {
		proxy.SuccessCount++
		proxy.LatencyMS = latency.Milliseconds()
		proxy.Anonymous = anonymous
		_ = v.store.SAdd(ctx, validSetKey, addr)
	}

	if err := saveProxy(ctx, v.store, proxy, defaultProxyTTL); err != nil {
		v.logger.Warn("save proxy record failed", "proxy", addr, "error", err)
	}
	return probeErr == nil
}

// probe выполняет probe-запрос через прокси, возвращает задержку и
// признак анонимности. Прокси, добавляющий в ответ заголовок Via,
// раскрывает своё присутствие и анонимным не считается.
func (v *Validator) probe(ctx context.Context, proxy *Proxy, probeURL string, timeout time.Duration) (time.Duration, bool, error) {
	parsed, err := url.Parse(proxy.URL())
	if err != nil {
		return 0, false, fmt.Errorf("parse proxy url: %w", err)
	}

	client := v.newClient(parsed, timeout)
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return 0, false, fmt.Errorf("build probe request: %w", err)
	}

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return 0, false, fmt.Errorf("probe status %d", resp.StatusCode)
	}

	anonymous := resp.Header.Get("Via") == ""
	return time.Since(started), anonymous, nil
}
