package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Check defaults
	if cfg.App.Name != "dimito" {
		t.Errorf("expected app name 'dimito', got %s", cfg.App.Name)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected HTTP port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("expected metrics port 9090, got %d", cfg.Metrics.Port)
	}
	if cfg.Routing.Alpha != 0.2 {
		t.Errorf("expected routing alpha 0.2, got %g", cfg.Routing.Alpha)
	}
	if cfg.Routing.MaxInflation != 1.5 {
		t.Errorf("expected max inflation 1.5, got %g", cfg.Routing.MaxInflation)
	}
	if cfg.Green.CycleTime != 100 {
		t.Errorf("expected cycle time 100, got %d", cfg.Green.CycleTime)
	}
	if cfg.Green.MinGreen != 8 || cfg.Green.MaxGreen != 40 {
		t.Errorf("expected green bounds [8, 40], got [%d, %d]", cfg.Green.MinGreen, cfg.Green.MaxGreen)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("expected database driver 'memory', got %s", cfg.Database.Driver)
	}
}

func TestLoader_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: custom-service
  version: 2.0.0
  environment: staging
http:
  port: 8082
log:
  level: debug
routing:
  alpha: 0.3
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := NewLoader(WithConfigPaths(configPath))
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "custom-service" {
		t.Errorf("expected app name 'custom-service', got %s", cfg.App.Name)
	}
	if cfg.App.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %s", cfg.App.Version)
	}
	if cfg.HTTP.Port != 8082 {
		t.Errorf("expected port 8082, got %d", cfg.HTTP.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Log.Level)
	}
	if cfg.Routing.Alpha != 0.3 {
		t.Errorf("expected routing alpha 0.3, got %g", cfg.Routing.Alpha)
	}
}

func TestLoader_LoadFromEnv(t *testing.T) {
	// Set env vars
	os.Setenv("DIMITO_APP_NAME", "env-service")
	os.Setenv("DIMITO_HTTP_PORT", "8083")
	defer func() {
		os.Unsetenv("DIMITO_APP_NAME")
		os.Unsetenv("DIMITO_HTTP_PORT")
	}()

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-service" {
		t.Errorf("expected app name 'env-service', got %s", cfg.App.Name)
	}
	if cfg.HTTP.Port != 8083 {
		t.Errorf("expected port 8083, got %d", cfg.HTTP.Port)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: file-service
http:
  port: 8084
`
	os.WriteFile(configPath, []byte(configContent), 0644)

	// Env should override file
	os.Setenv("DIMITO_APP_NAME", "env-override")
	defer os.Unsetenv("DIMITO_APP_NAME")

	cfg, err := NewLoader(WithConfigPaths(configPath)).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-override" {
		t.Errorf("expected env override, got %s", cfg.App.Name)
	}
	// Port should come from file
	if cfg.HTTP.Port != 8084 {
		t.Errorf("expected port from file 8084, got %d", cfg.HTTP.Port)
	}
}

func TestLoader_WithEnvPrefix(t *testing.T) {
	os.Setenv("CUSTOM_APP_NAME", "custom-prefix-service")
	defer os.Unsetenv("CUSTOM_APP_NAME")

	cfg, err := NewLoader(WithEnvPrefix("CUSTOM_")).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "custom-prefix-service" {
		t.Errorf("expected 'custom-prefix-service', got %s", cfg.App.Name)
	}
}

func TestLoader_EnvKeyMapping(t *testing.T) {
	os.Setenv("DIMITO_ROUTING_MAX_COST_RATIO", "4.0")
	os.Setenv("DIMITO_GREEN_MAX_WAIT_SECONDS", "90")
	defer func() {
		os.Unsetenv("DIMITO_ROUTING_MAX_COST_RATIO")
		os.Unsetenv("DIMITO_GREEN_MAX_WAIT_SECONDS")
	}()

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Routing.MaxCostRatio != 4.0 {
		t.Errorf("expected max cost ratio 4.0, got %g", cfg.Routing.MaxCostRatio)
	}
	if cfg.Green.MaxWaitSeconds != 90 {
		t.Errorf("expected max wait 90, got %d", cfg.Green.MaxWaitSeconds)
	}
}

func TestLoader_SliceFromEnv(t *testing.T) {
	os.Setenv("DIMITO_AUDIT_EXCLUDE_PATHS", "/health, /metrics ,/ready")
	defer os.Unsetenv("DIMITO_AUDIT_EXCLUDE_PATHS")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if len(cfg.Audit.ExcludePaths) != 3 {
		t.Fatalf("expected 3 exclude paths, got %d: %v", len(cfg.Audit.ExcludePaths), cfg.Audit.ExcludePaths)
	}
	if cfg.Audit.ExcludePaths[1] != "/metrics" {
		t.Errorf("expected trimmed '/metrics', got %q", cfg.Audit.ExcludePaths[1])
	}
}

func TestMustLoad_Success(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustLoad should not panic with valid config")
		}
	}()

	cfg := MustLoad()
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoad_Simple(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoadWithServiceDefaults(t *testing.T) {
	cfg, err := LoadWithServiceDefaults("coordinator-svc", 8090)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	// Should use service defaults since no explicit config
	if cfg.App.Name != "coordinator-svc" {
		t.Errorf("expected app name 'coordinator-svc', got %s", cfg.App.Name)
	}
	if cfg.HTTP.Port != 8090 {
		t.Errorf("expected port 8090, got %d", cfg.HTTP.Port)
	}
}

func TestLoader_ConfigEnvVar(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom-config.yaml")

	configContent := `
app:
  name: config-env-var-service
`
	os.WriteFile(configPath, []byte(configContent), 0644)

	os.Setenv("CONFIG_PATH", configPath)
	defer os.Unsetenv("CONFIG_PATH")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "config-env-var-service" {
		t.Errorf("expected 'config-env-var-service', got %s", cfg.App.Name)
	}
}
