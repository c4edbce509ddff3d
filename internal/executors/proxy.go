package executors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shaiso/Dirigent/internal/store"
)

// Ключи хранилища.
const (
	// proxyKeyPrefix — префикс ключа записи прокси.
	proxyKeyPrefix = "dirigent:proxy:"

	// poolSetKey — множество всех собранных прокси (host:port).
	poolSetKey = "dirigent:proxies:pool"

	// validSetKey — множество прокси, прошедших последнюю проверку.
	validSetKey = "dirigent:proxies:valid"
)

// defaultProxyTTL — срок жизни записи прокси.
// Непроверяемые прокси вымываются из хранилища сами.
const defaultProxyTTL = 24 * time.Hour

// Proxy — запись о прокси-сервере.
type Proxy struct {
	// Host — хост прокси.
	Host string `json:"host"`

	// Port — порт прокси.
	Port int `json:"port"`

	// Scheme — протокол ("http", "socks5").
	Scheme string `json:"scheme"`

	// Source — URL источника, из которого прокси собран.
	Source string `json:"source,omitempty"`

	// LatencyMS — задержка последней успешной проверки, в миллисекундах.
	LatencyMS int64 `json:"latency_ms,omitempty"`

	// SuccessCount — количество успешных проверок.
	SuccessCount int `json:"success_count"`

	// FailureCount — количество неуспешных проверок.
	FailureCount int `json:"failure_count"`

	// Anonymous — прокси не раскрывает себя заголовком Via в ответе
	// probe-запроса. Актуально на момент последней успешной проверки.
	Anonymous bool `json:"anonymous"`

	// Score — оценка качества 0–100.
	Score float64 `json:"score"`

	// CheckedAt — время последней проверки.
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}

// Addr возвращает адрес host:port.
func (p *Proxy) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// URL возвращает URL прокси для http.Transport.
func (p *Proxy) URL() string {
	scheme := p.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, p.Addr())
}

// proxyKey возвращает ключ записи прокси в хранилище.
func proxyKey(addr string) string {
	return proxyKeyPrefix + addr
}

// loadProxy читает запись прокси из хранилища.
func loadProxy(ctx context.Context, st store.Store, addr string) (*Proxy, error) {
	raw, err := st.Get(ctx, proxyKey(addr))
	if err != nil {
		return nil, err
	}

	var proxy Proxy
	if err := json.Unmarshal([]byte(raw), &proxy); err != nil {
		return nil, fmt.Errorf("decode proxy record %s: %w", addr, err)
	}
	return &proxy, nil
}

// saveProxy записывает прокси в хранилище с TTL.
func saveProxy(ctx context.Context, st store.Store, proxy *Proxy, ttl time.Duration) error {
	raw, err := json.Marshal(proxy)
	if err != nil {
		return fmt.Errorf("encode proxy record %s: %w", proxy.Addr(), err)
	}
	return st.Set(ctx, proxyKey(proxy.Addr()), string(raw), ttl)
}

// Хелперы чтения конфигурации task'а.

func configString(config map[string]any, key, fallback string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func configStrings(config map[string]any, key string) []string {
	switch v := config[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func configInt(config map[string]any, key string, fallback int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func configDuration(config map[string]any, key string, fallback time.Duration) time.Duration {
	if s, ok := config[key].(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}
