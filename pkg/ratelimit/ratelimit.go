package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Стандартные ошибки
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrLimiterClosed     = errors.New("limiter is closed")
)

// Limiter интерфейс ограничителя запросов
type Limiter interface {
	// Allow проверяет, разрешён ли запрос
	Allow(ctx context.Context, key string) (bool, error)

	// AllowN проверяет, разрешены ли n запросов
	AllowN(ctx context.Context, key string, n int) (bool, error)

	// Wait блокирует до получения разрешения
	Wait(ctx context.Context, key string) error

	// Reset сбрасывает лимит для ключа
	Reset(ctx context.Context, key string) error

	// GetInfo возвращает информацию о текущем состоянии
	GetInfo(ctx context.Context, key string) (*LimitInfo, error)

	// Close закрывает лимитер
	Close() error
}

// LimitInfo информация о состоянии лимита
type LimitInfo struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Config конфигурация rate limiter
type Config struct {
	// Requests количество запросов
	Requests int `koanf:"requests"`

	// Window временное окно
	Window time.Duration `koanf:"window"`

	// Strategy стратегия (sliding_window, token_bucket, fixed_window)
	Strategy string `koanf:"strategy"`

	// KeyFunc функция извлечения ключа (ip, user, route)
	KeyFunc string `koanf:"key_func"`

	// Backend хранилище (memory, redis)
	Backend string `koanf:"backend"`

	// BurstSize размер burst для token bucket
	BurstSize int `koanf:"burst_size"`

	// CleanupInterval интервал очистки для in-memory
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// Redis настройки Redis
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Requests:        100,
		Window:          time.Minute,
		Strategy:        "sliding_window",
		KeyFunc:         "ip",
		Backend:         "memory",
		BurstSize:       10,
		CleanupInterval: 5 * time.Minute,
	}
}

// New создаёт лимитер на основе конфигурации
func New(cfg *Config) (Limiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case "redis":
		return NewRedisLimiter(cfg)
	case "memory", "":
		return NewMemoryLimiter(cfg), nil
	default:
		return NewMemoryLimiter(cfg), nil
	}
}

// KeyExtractor функция извлечения ключа лимита из запроса
type KeyExtractor func(ctx context.Context, route string, headers map[string]string) string

// DefaultKeyExtractor извлекает ключ по IP клиента
func DefaultKeyExtractor(_ context.Context, _ string, headers map[string]string) string {
	if ip, ok := headers["x-forwarded-for"]; ok && ip != "" {
		return ip
	}
	if ip, ok := headers["x-real-ip"]; ok && ip != "" {
		return ip
	}
	if addr, ok := headers["remote-addr"]; ok {
		return addr
	}
	return "unknown"
}

// RouteKeyExtractor извлекает ключ по маршруту запроса
func RouteKeyExtractor(_ context.Context, route string, _ map[string]string) string {
	return route
}

// UserKeyExtractor извлекает ключ по пользователю
func UserKeyExtractor(ctx context.Context, route string, headers map[string]string) string {
	if userID, ok := headers["x-user-id"]; ok && userID != "" {
		return userID
	}
	return DefaultKeyExtractor(ctx, route, headers)
}

// CompositeKeyExtractor комбинирует несколько ключей
func CompositeKeyExtractor(extractors ...KeyExtractor) KeyExtractor {
	return func(ctx context.Context, route string, headers map[string]string) string {
		var key string
		for _, ext := range extractors {
			key += ext(ctx, route, headers) + ":"
		}
		return key
	}
}

// RateLimitedRoutes пер-маршрутные лимиты поверх лимита по умолчанию.
// Тяжёлые ручки (пересчёт маршрутов, раздача зелёного) получают
// более жёсткое окно, чем чтение топологии.
type RateLimitedRoutes struct {
	mu            sync.RWMutex
	routes        map[string]*Config
	defaultConfig *Config
}

// NewRateLimitedRoutes создаёт конфигурацию маршрутов
func NewRateLimitedRoutes(defaultCfg *Config) *RateLimitedRoutes {
	if defaultCfg == nil {
		defaultCfg = DefaultConfig()
	}
	return &RateLimitedRoutes{
		routes:        make(map[string]*Config),
		defaultConfig: defaultCfg,
	}
}

// Set устанавливает лимит для маршрута
func (r *RateLimitedRoutes) Set(route string, cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[route] = cfg
}

// Get возвращает конфигурацию для маршрута
func (r *RateLimitedRoutes) Get(route string) *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.routes[route]; ok {
		return cfg
	}
	return r.defaultConfig
}
