package config

import (
	"testing"
	"time"
)

// baseConfig возвращает минимально валидную конфигурацию для тестов
func baseConfig() Config {
	return Config{
		App:  AppConfig{Name: "test-service"},
		HTTP: HTTPConfig{Port: 8080},
		Log:  LogConfig{Level: "info"},
		Routing: RoutingConfig{
			Alpha:        0.2,
			MaxInflation: 1.5,
			Beta:         0.08,
			MaxCostRatio: 3.3,
		},
		Green: GreenConfig{
			CycleTime: 100,
			MinGreen:  8,
			MaxGreen:  40,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing app name",
			mutate:  func(c *Config) { c.App.Name = "" },
			wantErr: true,
		},
		{
			name:    "invalid port - zero",
			mutate:  func(c *Config) { c.HTTP.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port - too high",
			mutate:  func(c *Config) { c.HTTP.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "invalid" },
			wantErr: true,
		},
		{
			name:    "valid debug level",
			mutate:  func(c *Config) { c.Log.Level = "debug" },
			wantErr: false,
		},
		{
			name:    "invalid database driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: true,
		},
		{
			name:    "valid sqlite driver",
			mutate:  func(c *Config) { c.Database.Driver = "sqlite" },
			wantErr: false,
		},
		{
			name:    "alpha out of range",
			mutate:  func(c *Config) { c.Routing.Alpha = 1.5 },
			wantErr: true,
		},
		{
			name:    "alpha zero",
			mutate:  func(c *Config) { c.Routing.Alpha = 0 },
			wantErr: true,
		},
		{
			name:    "max inflation below one",
			mutate:  func(c *Config) { c.Routing.MaxInflation = 0.9 },
			wantErr: true,
		},
		{
			name:    "beta non-positive",
			mutate:  func(c *Config) { c.Routing.Beta = 0 },
			wantErr: true,
		},
		{
			name:    "max cost ratio below one",
			mutate:  func(c *Config) { c.Routing.MaxCostRatio = 0.5 },
			wantErr: true,
		},
		{
			name:    "zero cycle time",
			mutate:  func(c *Config) { c.Green.CycleTime = 0 },
			wantErr: true,
		},
		{
			name: "green bounds inverted",
			mutate: func(c *Config) {
				c.Green.MinGreen = 40
				c.Green.MaxGreen = 8
			},
			wantErr: true,
		},
		{
			name:    "invalid detector driver",
			mutate:  func(c *Config) { c.Detector.Driver = "lidar" },
			wantErr: true,
		},
		{
			name:    "valid fake detector",
			mutate:  func(c *Config) { c.Detector.Driver = "fake" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"dev", true},
		{"production", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"prod", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsProduction(); got != tt.want {
			t.Errorf("IsProduction() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestServiceEndpoint_Address(t *testing.T) {
	endpoint := ServiceEndpoint{
		Host: "localhost",
		Port: 8080,
	}

	addr := endpoint.Address()
	if addr != "localhost:8080" {
		t.Errorf("expected 'localhost:8080', got %s", addr)
	}
}

func TestServiceEndpoint_BaseURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint ServiceEndpoint
		expect   string
	}{
		{
			name:     "http",
			endpoint: ServiceEndpoint{Host: "localhost", Port: 8080},
			expect:   "http://localhost:8080",
		},
		{
			name:     "https",
			endpoint: ServiceEndpoint{Host: "coordinator.local", Port: 443, TLS: true},
			expect:   "https://coordinator.local:443",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.endpoint.BaseURL(); got != tt.expect {
				t.Errorf("expected %s, got %s", tt.expect, got)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name   string
		cfg    DatabaseConfig
		expect string
	}{
		{
			name: "postgres",
			cfg: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
				SSLMode:  "disable",
			},
			expect: "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable",
		},
		{
			name: "sqlite",
			cfg: DatabaseConfig{
				Driver:   "sqlite",
				Database: "/path/to/db.sqlite",
			},
			expect: "file:/path/to/db.sqlite?_busy_timeout=5000&_journal_mode=WAL",
		},
		{
			name: "unknown",
			cfg: DatabaseConfig{
				Driver: "unknown",
			},
			expect: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := tt.cfg.DSN()
			if dsn != tt.expect {
				t.Errorf("expected DSN %s, got %s", tt.expect, dsn)
			}
		})
	}
}

func TestCacheConfig_Address(t *testing.T) {
	cfg := CacheConfig{
		Host: "redis.local",
		Port: 6379,
	}

	addr := cfg.Address()
	if addr != "redis.local:6379" {
		t.Errorf("expected 'redis.local:6379', got %s", addr)
	}
}

func TestNodeConfig(t *testing.T) {
	cfg := NodeConfig{
		NodeID:          "node-7",
		ListenAddr:      ":9100",
		TickInterval:    time.Second,
		RecomputeBefore: 10 * time.Second,
	}

	if cfg.TickInterval != time.Second {
		t.Errorf("unexpected TickInterval: %v", cfg.TickInterval)
	}
	if cfg.RecomputeBefore != 10*time.Second {
		t.Errorf("unexpected RecomputeBefore: %v", cfg.RecomputeBefore)
	}
}

func TestCORSConfig(t *testing.T) {
	cfg := CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"http://localhost:3000", "https://example.com"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	}

	if !cfg.Enabled {
		t.Error("expected CORS to be enabled")
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %d", len(cfg.AllowedOrigins))
	}
}

func TestPDFConfig_Defaults(t *testing.T) {
	cfg := PDFConfig{
		MarginTop:         15.0,
		MarginBottom:      15.0,
		MarginLeft:        15.0,
		MarginRight:       15.0,
		FontSize:          10.0,
		HeaderFontSize:    14.0,
		EnablePageNumbers: true,
	}

	if cfg.MarginTop != 15.0 {
		t.Errorf("expected margin 15.0, got %f", cfg.MarginTop)
	}
	if cfg.FontSize != 10.0 {
		t.Errorf("expected font size 10.0, got %f", cfg.FontSize)
	}
}
