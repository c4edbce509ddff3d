package executors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/store"
	"github.com/shaiso/Dirigent/internal/taskmgr"
)

// TypeCrawl — тип task сбора прокси.
const TypeCrawl = "proxy_crawl"

// proxyAddrRe выхватывает пары ip:port из произвольного текста источника.
var proxyAddrRe = regexp.MustCompile(`(\d{1,3}(?:\.\d{1,3}){3}):(\d{2,5})`)

// maxSourceBody — предел чтения тела источника.
const maxSourceBody = 4 << 20

// ErrNoSources — у task'а сбора не задано ни одного источника.
var ErrNoSources = errors.New("no proxy sources configured")

// Crawler — executor типа proxy_crawl.
//
// Обходит HTTP-источники из конфигурации task'а, выхватывает адреса
// прокси из тела ответа и складывает новые записи в хранилище.
//
// Конфигурация task'а:
//   - sources — список URL источников (обязателен)
//   - scheme  — протокол собираемых прокси (default: "http")
//   - timeout — таймаут запроса к источнику (default: 30s)
type Crawler struct {
	store  store.Store
	client *http.Client
	logger *slog.Logger
}

// NewCrawler создаёт executor сбора прокси.
func NewCrawler(st store.Store, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		store:  st,
		client: &http.Client{},
		logger: logger,
	}
}

// Execute собирает прокси из всех источников.
//
// Недоступный источник не роняет task: он пропускается с предупреждением.
// Task падает, только если источников нет вовсе.
func (c *Crawler) Execute(ctx context.Context, task *domain.Task, progress taskmgr.ProgressFunc) (map[string]any, error) {
	sources := configStrings(task.Config, "sources")
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	scheme := configString(task.Config, "scheme", "http")
	timeout := configDuration(task.Config, "timeout", 30*time.Second)

	found := 0
	added := 0
	failed := 0

	for i, source := range sources {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		addrs, err := c.fetchSource(ctx, source, timeout)
		if err != nil {
			failed++
			c.logger.Warn("proxy source fetch failed",
				"source", source,
				"error", err,
			)
			continue
		}

		found += len(addrs)
		for _, addr := range addrs {
			stored, err := c.storeProxy(ctx, addr, scheme, source)
			if err != nil {
				return nil, fmt.Errorf("store proxy %s: %w", addr.Addr(), err)
			}
			if stored {
				added++
			}
		}

		progress((i + 1) * 100 / len(sources))
	}

	if failed == len(sources) {
		return nil, fmt.Errorf("all %d proxy sources failed", failed)
	}

	c.logger.Info("proxy crawl finished",
		"sources", len(sources),
		"found", found,
		"added", added,
	)
	return map[string]any{
		"sources_total":  len(sources),
		"sources_failed": failed,
		"proxies_found":  found,
		"proxies_added":  added,
	}, nil
}

// fetchSource скачивает источник и извлекает адреса прокси.
func (c *Crawler) fetchSource(ctx context.Context, source string, timeout time.Duration) ([]*Proxy, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return parseProxies(string(body)), nil
}

// storeProxy записывает прокси, если его ещё нет в пуле.
// Возвращает true, если прокси новый.
func (c *Crawler) storeProxy(ctx context.Context, proxy *Proxy, scheme, source string) (bool, error) {
	known, err := c.store.SIsMember(ctx, poolSetKey, proxy.Addr())
	if err != nil {
		return false, err
	}
	if known {
		return false, nil
	}

	proxy.Scheme = scheme
	proxy.Source = source

	if err := saveProxy(ctx, c.store, proxy, defaultProxyTTL); err != nil {
		return false, err
	}
	if err := c.store.SAdd(ctx, poolSetKey, proxy.Addr()); err != nil {
		return false, err
	}
	return true, nil
}

// parseProxies извлекает уникальные адреса прокси из текста.
func parseProxies(body string) []*Proxy {
	matches := proxyAddrRe.FindAllStringSubmatch(body, -1)

	seen := make(map[string]bool, len(matches))
	out := make([]*Proxy, 0, len(matches))
	for _, m := range matches {
		port, err := strconv.Atoi(m[2])
		if err != nil || port < 1 || port > 65535 {
			continue
		}

		addr := m[1] + ":" + m[2]
		if seen[addr] {
			continue
		}
		seen[addr] = true

		out = append(out, &Proxy{Host: m[1], Port: port})
	}
	return out
}
