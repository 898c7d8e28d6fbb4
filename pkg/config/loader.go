package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "DIMITO_"
	configEnvVar = "CONFIG_PATH"
)

// Loader загружает конфигурацию из разных источников
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader создаёт новый загрузчик конфигурации
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/dimito/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption - опция для конфигурации загрузчика
type LoaderOption func(*Loader)

// WithConfigPaths устанавливает пути поиска конфигурации
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix устанавливает префикс переменных окружения
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load загружает конфигурацию с приоритетом:
// 1. Defaults (самый низкий)
// 2. Config file (yaml)
// 3. Environment variables (самый высокий)
func (l *Loader) Load() (*Config, error) {
	// 1. Загружаем значения по умолчанию
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Загружаем из файла конфигурации
	if err := l.loadConfigFile(); err != nil {
		// Файл не обязателен, логируем warning
		fmt.Printf("Warning: %v\n", err)
	}

	// 3. Загружаем из переменных окружения (перезаписывают файл)
	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	// 4. Распаковываем в структуру
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Валидируем
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDefaults загружает значения по умолчанию
func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		// App
		"app.name":        "dimito",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// HTTP
		"http.port":             8080,
		"http.read_timeout":     30 * time.Second,
		"http.write_timeout":    30 * time.Second,
		"http.shutdown_timeout": 10 * time.Second,
		"http.max_body_bytes":   int64(16 * 1024 * 1024),
		// CORS - явно указываем Authorization!
		"http.cors.enabled":           true,
		"http.cors.allowed_origins":   []string{"*"},
		"http.cors.allowed_methods":   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		"http.cors.allowed_headers":   []string{"Content-Type", "Authorization", "Accept", "Origin", "X-Requested-With", "X-Request-Id"},
		"http.cors.allow_credentials": false,
		"http.cors.max_age":           86400,

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "dimito",
		"metrics.subsystem": "",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "dimito",
		"tracing.sample_rate":  0.1,

		// Database
		"database.driver":             "memory",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.database":           "dimito",
		"database.username":           "postgres",
		"database.password":           "",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  5 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.auto_migrate":       true,

		// Cache
		"cache.enabled":     false,
		"cache.driver":      "memory",
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.db":          0,
		"cache.default_ttl": 5 * time.Minute,
		"cache.max_entries": 10000,

		// Rate Limit
		"rate_limit.enabled":          true,
		"rate_limit.requests":         100,
		"rate_limit.window":           time.Minute,
		"rate_limit.strategy":         "sliding_window",
		"rate_limit.backend":          "memory",
		"rate_limit.burst_size":       10,
		"rate_limit.cleanup_interval": 5 * time.Minute,

		// Audit
		"audit.enabled":       true,
		"audit.backend":       "stdout",
		"audit.buffer_size":   1000,
		"audit.flush_period":  5 * time.Second,
		"audit.exclude_paths": []string{"/health", "/ready", "/metrics"},

		// Swagger
		"swagger.enabled": true,
		"swagger.port":    8081,
		"swagger.title":   "DiMITO Traffic API",

		// Auth
		"auth.enabled":             false,
		"auth.jwt_secret":          "",
		"auth.token_ttl":           24 * time.Hour,
		"auth.issuer":              "dimito",
		"auth.admin_user":          "admin",
		"auth.admin_password_hash": "",

		// Retry
		"retry.max_attempts":       3,
		"retry.initial_backoff":    100 * time.Millisecond,
		"retry.max_backoff":        10 * time.Second,
		"retry.backoff_multiplier": 2.0,

		// Routing - distance-vector
		"routing.alpha":          0.2,
		"routing.max_inflation":  1.5,
		"routing.beta":           0.08,
		"routing.max_cost_ratio": 3.3,
		// Routing - стоимость ребра
		"routing.queue_weight":    0.6,
		"routing.pressure_weight": 0.3,
		"routing.length_weight":   0.1,

		// Green - распределение фаз
		"green.cycle_time":       100,
		"green.min_green":        8,
		"green.max_green":        40,
		"green.queue_weight":     1.5,
		"green.wait_weight":      0.8,
		"green.pressure_weight":  4.0,
		"green.max_wait_seconds": int64(60),

		// Detector
		"detector.driver":        "fake",
		"detector.inference_url": "http://localhost:8501/v1/detect",
		"detector.timeout":       5 * time.Second,
		"detector.roi_path":      "config/cameras.yaml",
		"detector.watch":         false,
		"detector.frames_path":   "",

		// Node agent
		"node.node_id":          "",
		"node.listen_addr":      ":9100",
		"node.tick_interval":    time.Second,
		"node.recompute_before": 10 * time.Second,

		// Coordinator endpoint (для агентов)
		"coordinator.host":          "localhost",
		"coordinator.port":          8080,
		"coordinator.timeout":       10 * time.Second,
		"coordinator.max_retries":   3,
		"coordinator.retry_backoff": 100 * time.Millisecond,

		// Live - websocket трансляция
		"live.enabled":            true,
		"live.broadcast_interval": 2 * time.Second,

		// Report
		"report.max_rows_per_table": 50,
		"report.company_name":       "DiMITO Traffic Authority",

		// Report - PDF
		"report.pdf.margin_top":          15.0,
		"report.pdf.margin_bottom":       15.0,
		"report.pdf.margin_left":         15.0,
		"report.pdf.margin_right":        15.0,
		"report.pdf.font_size":           10.0,
		"report.pdf.header_font_size":    14.0,
		"report.pdf.enable_page_numbers": true,
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

// loadConfigFile загружает конфигурацию из файла
func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv загружает конфигурацию из переменных окружения
// Использует умную трансформацию ключей для полей с подчёркиванием
func (l *Loader) loadEnv() error {
	return l.k.Load(env.ProviderWithValue(l.envPrefix, ".", func(envKey string, value string) (string, interface{}) {
		// Убираем префикс и приводим к нижнему регистру
		key := strings.ToLower(strings.TrimPrefix(envKey, l.envPrefix))

		// Маппинг для полей с подчёркиванием в именах
		if mappedKey, ok := envKeyMappings[key]; ok {
			key = mappedKey
		} else {
			// По умолчанию заменяем все подчёркивания на точки
			key = strings.ReplaceAll(key, "_", ".")
		}

		// Для slice-полей разбиваем по запятой
		if isSliceField(key) {
			return key, splitAndTrim(value)
		}

		return key, value
	}), nil)
}

// envKeyMappings - маппинг переменных окружения на ключи конфига
// Необходим для полей, содержащих подчёркивания в именах
var envKeyMappings = map[string]string{
	// HTTP CORS
	"http_cors_enabled":           "http.cors.enabled",
	"http_cors_allowed_origins":   "http.cors.allowed_origins",
	"http_cors_allowed_methods":   "http.cors.allowed_methods",
	"http_cors_allowed_headers":   "http.cors.allowed_headers",
	"http_cors_allow_credentials": "http.cors.allow_credentials",
	"http_cors_max_age":           "http.cors.max_age",

	// HTTP
	"http_port":             "http.port",
	"http_read_timeout":     "http.read_timeout",
	"http_write_timeout":    "http.write_timeout",
	"http_shutdown_timeout": "http.shutdown_timeout",
	"http_max_body_bytes":   "http.max_body_bytes",

	// Database
	"database_driver":             "database.driver",
	"database_host":               "database.host",
	"database_port":               "database.port",
	"database_database":           "database.database",
	"database_username":           "database.username",
	"database_password":           "database.password",
	"database_ssl_mode":           "database.ssl_mode",
	"database_max_open_conns":     "database.max_open_conns",
	"database_max_idle_conns":     "database.max_idle_conns",
	"database_conn_max_lifetime":  "database.conn_max_lifetime",
	"database_conn_max_idle_time": "database.conn_max_idle_time",
	"database_migrations_path":    "database.migrations_path",
	"database_auto_migrate":       "database.auto_migrate",

	// Cache
	"cache_enabled":     "cache.enabled",
	"cache_driver":      "cache.driver",
	"cache_host":        "cache.host",
	"cache_port":        "cache.port",
	"cache_password":    "cache.password",
	"cache_db":          "cache.db",
	"cache_default_ttl": "cache.default_ttl",
	"cache_max_entries": "cache.max_entries",

	// Rate limit
	"rate_limit_enabled":          "rate_limit.enabled",
	"rate_limit_requests":         "rate_limit.requests",
	"rate_limit_window":           "rate_limit.window",
	"rate_limit_strategy":         "rate_limit.strategy",
	"rate_limit_backend":          "rate_limit.backend",
	"rate_limit_burst_size":       "rate_limit.burst_size",
	"rate_limit_cleanup_interval": "rate_limit.cleanup_interval",
	"rate_limit_redis_addr":       "rate_limit.redis_addr",

	// Audit
	"audit_enabled":          "audit.enabled",
	"audit_backend":          "audit.backend",
	"audit_file_path":        "audit.file_path",
	"audit_buffer_size":      "audit.buffer_size",
	"audit_flush_period":     "audit.flush_period",
	"audit_exclude_paths":    "audit.exclude_paths",
	"audit_include_request":  "audit.include_request",
	"audit_include_response": "audit.include_response",

	// Log
	"log_level":       "log.level",
	"log_format":      "log.format",
	"log_output":      "log.output",
	"log_file_path":   "log.file_path",
	"log_max_size":    "log.max_size",
	"log_max_backups": "log.max_backups",
	"log_max_age":     "log.max_age",
	"log_compress":    "log.compress",

	// Auth
	"auth_enabled":             "auth.enabled",
	"auth_jwt_secret":          "auth.jwt_secret",
	"auth_token_ttl":           "auth.token_ttl",
	"auth_issuer":              "auth.issuer",
	"auth_admin_user":          "auth.admin_user",
	"auth_admin_password_hash": "auth.admin_password_hash",

	// Routing
	"routing_alpha":           "routing.alpha",
	"routing_max_inflation":   "routing.max_inflation",
	"routing_beta":            "routing.beta",
	"routing_max_cost_ratio":  "routing.max_cost_ratio",
	"routing_queue_weight":    "routing.queue_weight",
	"routing_pressure_weight": "routing.pressure_weight",
	"routing_length_weight":   "routing.length_weight",

	// Green
	"green_cycle_time":       "green.cycle_time",
	"green_min_green":        "green.min_green",
	"green_max_green":        "green.max_green",
	"green_queue_weight":     "green.queue_weight",
	"green_wait_weight":      "green.wait_weight",
	"green_pressure_weight":  "green.pressure_weight",
	"green_max_wait_seconds": "green.max_wait_seconds",

	// Detector
	"detector_driver":        "detector.driver",
	"detector_inference_url": "detector.inference_url",
	"detector_timeout":       "detector.timeout",
	"detector_roi_path":      "detector.roi_path",
	"detector_watch":         "detector.watch",
	"detector_frames_path":   "detector.frames_path",

	// Node agent
	"node_node_id":          "node.node_id",
	"node_listen_addr":      "node.listen_addr",
	"node_tick_interval":    "node.tick_interval",
	"node_recompute_before": "node.recompute_before",

	// Coordinator
	"coordinator_host":          "coordinator.host",
	"coordinator_port":          "coordinator.port",
	"coordinator_timeout":       "coordinator.timeout",
	"coordinator_max_retries":   "coordinator.max_retries",
	"coordinator_retry_backoff": "coordinator.retry_backoff",

	// Live
	"live_enabled":            "live.enabled",
	"live_broadcast_interval": "live.broadcast_interval",

	// Report
	"report_max_rows_per_table": "report.max_rows_per_table",
	"report_company_name":       "report.company_name",
}

// sliceFields - поля, которые должны парситься как слайсы
var sliceFields = map[string]bool{
	"http.cors.allowed_origins": true,
	"http.cors.allowed_methods": true,
	"http.cors.allowed_headers": true,
	"audit.exclude_paths":       true,
}

func isSliceField(key string) bool {
	return sliceFields[key]
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// MustLoad загружает конфигурацию или паникует
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load - удобная функция для загрузки с дефолтными настройками
func Load() (*Config, error) {
	return NewLoader().Load()
}

// LoadWithServiceDefaults загружает конфигурацию с переопределением для конкретного сервиса
func LoadWithServiceDefaults(serviceName string, defaultPort int) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if cfg.HTTP.Port == 8080 && defaultPort != 0 {
		cfg.HTTP.Port = defaultPort
	}

	if cfg.App.Name == "dimito" {
		cfg.App.Name = serviceName
	}

	return cfg, nil
}
