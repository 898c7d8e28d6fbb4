// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App         AppConfig       `koanf:"app"`
	HTTP        HTTPConfig      `koanf:"http"`
	Log         LogConfig       `koanf:"log"`
	Metrics     MetricsConfig   `koanf:"metrics"`
	Tracing     TracingConfig   `koanf:"tracing"`
	Database    DatabaseConfig  `koanf:"database"`
	Cache       CacheConfig     `koanf:"cache"`
	RateLimit   RateLimitConfig `koanf:"rate_limit"`
	Audit       AuditConfig     `koanf:"audit"`
	Swagger     SwaggerConfig   `koanf:"swagger"`
	Auth        AuthConfig      `koanf:"auth"`
	Retry       RetryConfig     `koanf:"retry"`
	Routing     RoutingConfig   `koanf:"routing"`
	Green       GreenConfig     `koanf:"green"`
	Detector    DetectorConfig  `koanf:"detector"`
	Node        NodeConfig      `koanf:"node"`
	Coordinator ServiceEndpoint `koanf:"coordinator"`
	Live        LiveConfig      `koanf:"live"`
	Report      ReportConfig    `koanf:"report"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// HTTPConfig - настройки HTTP сервера
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	CORS            CORSConfig    `koanf:"cors"`
}

// CORSConfig - настройки CORS
type CORSConfig struct {
	Enabled          bool     `koanf:"enabled"`
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// ServiceEndpoint - конфигурация подключения к сервису
type ServiceEndpoint struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	Timeout      time.Duration `koanf:"timeout"`
	MaxRetries   int           `koanf:"max_retries"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`
	TLS          bool          `koanf:"tls"`
}

// Address возвращает полный адрес сервиса
func (s ServiceEndpoint) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL возвращает базовый URL HTTP API сервиса
func (s ServiceEndpoint) BaseURL() string {
	scheme := "http"
	if s.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.Host, s.Port)
}

// DatabaseConfig - настройки базы данных
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"` // memory, postgres, sqlite
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrationsPath  string        `koanf:"migrations_path"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN возвращает строку подключения
func (d DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
		)
	case "sqlite", "sqlite3":
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", d.Database)
	default:
		return ""
	}
}

// CacheConfig - настройки кэширования
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // для in-memory
}

// Address возвращает адрес кэша
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Requests        int           `koanf:"requests"`
	Window          time.Duration `koanf:"window"`
	Strategy        string        `koanf:"strategy"`
	Backend         string        `koanf:"backend"`
	BurstSize       int           `koanf:"burst_size"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	RedisAddr       string        `koanf:"redis_addr"`
}

// AuditConfig конфигурация аудит лога
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Backend         string        `koanf:"backend"`
	FilePath        string        `koanf:"file_path"`
	BufferSize      int           `koanf:"buffer_size"`
	FlushPeriod     time.Duration `koanf:"flush_period"`
	ExcludePaths    []string      `koanf:"exclude_paths"`
	IncludeRequest  bool          `koanf:"include_request"`
	IncludeResponse bool          `koanf:"include_response"`
}

// SwaggerConfig конфигурация Swagger UI
type SwaggerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Port    int    `koanf:"port"`
	Title   string `koanf:"title"`
}

// AuthConfig конфигурация аутентификации операторов
type AuthConfig struct {
	Enabled   bool          `koanf:"enabled"`
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	Issuer    string        `koanf:"issuer"`

	// Учётная запись оператора: хеш в формате argon2id
	AdminUser         string `koanf:"admin_user"`
	AdminPasswordHash string `koanf:"admin_password_hash"`
}

// RetryConfig конфигурация retry
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// RoutingConfig параметры distance-vector обмена и построения таблиц
type RoutingConfig struct {
	// Сглаживание и допуски
	Alpha        float64 `koanf:"alpha"`          // EMA: new = (1-a)*old + a*candidate
	MaxInflation float64 `koanf:"max_inflation"`  // порог отклонения кандидата
	Beta         float64 `koanf:"beta"`           // затухание веса exp(-beta*cost)
	MaxCostRatio float64 `koanf:"max_cost_ratio"` // фильтр кандидатов относительно минимума

	// Весовые коэффициенты стоимости ребра
	QueueWeight    float64 `koanf:"queue_weight"`
	PressureWeight float64 `koanf:"pressure_weight"`
	LengthWeight   float64 `koanf:"length_weight"`
}

// GreenConfig параметры распределения зелёного времени
type GreenConfig struct {
	CycleTime      int     `koanf:"cycle_time"`       // секунд на полный цикл
	MinGreen       int     `koanf:"min_green"`        // нижняя граница фазы
	MaxGreen       int     `koanf:"max_green"`        // верхняя граница фазы
	QueueWeight    float64 `koanf:"queue_weight"`     // вклад длины очереди
	WaitWeight     float64 `koanf:"wait_weight"`      // вклад времени ожидания
	PressureWeight float64 `koanf:"pressure_weight"`  // вклад давления
	MaxWaitSeconds int64   `koanf:"max_wait_seconds"` // насыщение времени ожидания
}

// DetectorConfig конфигурация детектора транспорта
type DetectorConfig struct {
	Driver       string        `koanf:"driver"` // http, fake
	InferenceURL string        `koanf:"inference_url"`
	Timeout      time.Duration `koanf:"timeout"`
	ROIPath      string        `koanf:"roi_path"` // реестр зон интереса камер
	Watch        bool          `koanf:"watch"`    // горячая перезагрузка реестра
	FramesPath   string        `koanf:"frames_path"`
}

// NodeConfig конфигурация агента перекрёстка
type NodeConfig struct {
	NodeID          string            `koanf:"node_id"`
	ListenAddr      string            `koanf:"listen_addr"` // TCP-ответчик для машин
	TickInterval    time.Duration     `koanf:"tick_interval"`
	RecomputeBefore time.Duration     `koanf:"recompute_before"` // упреждение перед сменой фазы
	Cameras         map[string]string `koanf:"cameras"`          // ребро -> путь к файлу кадра
}

// LiveConfig конфигурация потоковой трансляции метрик
type LiveConfig struct {
	Enabled           bool          `koanf:"enabled"`
	BroadcastInterval time.Duration `koanf:"broadcast_interval"`
}

// ReportConfig конфигурация генерации отчётов
type ReportConfig struct {
	MaxRowsPerTable int       `koanf:"max_rows_per_table"` // строк на таблицу отчёта
	CompanyName     string    `koanf:"company_name"`
	PDF             PDFConfig `koanf:"pdf"`
}

// PDFConfig конфигурация PDF генератора
type PDFConfig struct {
	MarginTop         float64 `koanf:"margin_top"`       // mm
	MarginBottom      float64 `koanf:"margin_bottom"`    // mm
	MarginLeft        float64 `koanf:"margin_left"`      // mm
	MarginRight       float64 `koanf:"margin_right"`     // mm
	FontSize          float64 `koanf:"font_size"`        // pt
	HeaderFontSize    float64 `koanf:"header_font_size"` // pt
	EnablePageNumbers bool    `koanf:"enable_page_numbers"`
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	validDrivers := map[string]bool{"memory": true, "postgres": true, "postgresql": true, "sqlite": true, "sqlite3": true}
	if c.Database.Driver != "" && !validDrivers[strings.ToLower(c.Database.Driver)] {
		errs = append(errs, fmt.Sprintf("database.driver must be one of: memory, postgres, sqlite, got %s", c.Database.Driver))
	}

	// Валидация Routing config
	if c.Routing.Alpha <= 0 || c.Routing.Alpha > 1 {
		errs = append(errs, fmt.Sprintf("routing.alpha must be in (0, 1], got %g", c.Routing.Alpha))
	}
	if c.Routing.MaxInflation < 1 {
		errs = append(errs, fmt.Sprintf("routing.max_inflation must be >= 1, got %g", c.Routing.MaxInflation))
	}
	if c.Routing.Beta <= 0 {
		errs = append(errs, fmt.Sprintf("routing.beta must be positive, got %g", c.Routing.Beta))
	}
	if c.Routing.MaxCostRatio < 1 {
		errs = append(errs, fmt.Sprintf("routing.max_cost_ratio must be >= 1, got %g", c.Routing.MaxCostRatio))
	}

	// Валидация Green config
	if c.Green.CycleTime <= 0 {
		errs = append(errs, fmt.Sprintf("green.cycle_time must be positive, got %d", c.Green.CycleTime))
	}
	if c.Green.MinGreen < 0 || c.Green.MaxGreen < c.Green.MinGreen {
		errs = append(errs, fmt.Sprintf("green bounds invalid: min=%d max=%d", c.Green.MinGreen, c.Green.MaxGreen))
	}

	validDetectors := map[string]bool{"http": true, "fake": true}
	if c.Detector.Driver != "" && !validDetectors[c.Detector.Driver] {
		errs = append(errs, fmt.Sprintf("detector.driver must be one of: http, fake, got %s", c.Detector.Driver))
	}

	if c.Node.TickInterval < 0 {
		errs = append(errs, "node.tick_interval must be non-negative")
	}
	if c.Node.RecomputeBefore < 0 {
		errs = append(errs, "node.recompute_before must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment проверяет режим разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction проверяет продакшн режим
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
