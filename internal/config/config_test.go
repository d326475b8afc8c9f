package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allEnvVars = []string{
	"HOST", "PORT", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT", "ENVIRONMENT", "ALLOWED_ORIGINS",
	"STORAGE_DRIVER", "SQLITE_PATH", "STORAGE_KEY_PREFIX",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME",
	"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"REDIS_MIN_IDLE_CONNS", "REDIS_MAX_RETRIES", "REDIS_DIAL_TIMEOUT", "REDIS_READ_TIMEOUT", "REDIS_WRITE_TIMEOUT",
	"JWT_SECRET", "SESSION_TTL", "BCRYPT_COST", "AUTH_LOGIN_LATENCY", "AUTH_CHECK_LATENCY",
	"TASK_ADD_LATENCY", "TASK_MUTATE_LATENCY",
	"WEATHER_API_KEY", "WEATHER_BASE_URL", "WEATHER_UNITS", "WEATHER_TIMEOUT", "WEATHER_DEFAULT_LOCATION", "WEATHER_SIMULATED_DELAY",
	"DISPATCH_CONCURRENCY", "DISPATCH_QUEUE_SIZE",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPM", "RATE_LIMIT_BURST", "RATE_LIMIT_CLEANUP",
}

func setEnvVars(vars map[string]string) {
	for k, v := range vars {
		os.Setenv(k, v)
	}
}

func clearEnvVars(vars []string) {
	for _, k := range vars {
		os.Unsetenv(k)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnvVars(allEnvVars)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with default config, got: %v", err)
	}

	if config.Server.Host != "localhost" {
		t.Errorf("Expected default host 'localhost', got %s", config.Server.Host)
	}

	if config.Server.Port != "8080" {
		t.Errorf("Expected default port '8080', got %s", config.Server.Port)
	}

	if config.Server.Environment != "development" {
		t.Errorf("Expected default environment 'development', got %s", config.Server.Environment)
	}

	if config.Storage.Driver != StorageMemory {
		t.Errorf("Expected default storage driver 'memory', got %s", config.Storage.Driver)
	}

	if config.Pipeline.AddLatency != 300*time.Millisecond {
		t.Errorf("Expected default add latency 300ms, got %v", config.Pipeline.AddLatency)
	}

	if config.Pipeline.MutateLatency != 200*time.Millisecond {
		t.Errorf("Expected default mutate latency 200ms, got %v", config.Pipeline.MutateLatency)
	}

	if config.Auth.LoginLatency != time.Second {
		t.Errorf("Expected default login latency 1s, got %v", config.Auth.LoginLatency)
	}

	if config.Auth.CheckLatency != 500*time.Millisecond {
		t.Errorf("Expected default check latency 500ms, got %v", config.Auth.CheckLatency)
	}

	if config.Auth.DemoEmail != "demo@example.com" || config.Auth.DemoPassword != "password" {
		t.Errorf("Unexpected demo credentials %s/%s", config.Auth.DemoEmail, config.Auth.DemoPassword)
	}

	if config.Weather.DefaultLocation != "New York" {
		t.Errorf("Expected default weather location 'New York', got %s", config.Weather.DefaultLocation)
	}

	if !config.UsesSimulatedWeather() {
		t.Error("Expected simulated weather when no API key is set")
	}

	if config.Dispatch.Concurrency != 4 {
		t.Errorf("Expected default dispatch concurrency 4, got %d", config.Dispatch.Concurrency)
	}

	if config.Redis.Port != "6379" {
		t.Errorf("Expected default Redis port '6379', got %s", config.Redis.Port)
	}

	if !config.RateLimit.Enabled {
		t.Error("Expected rate limiting to be enabled by default")
	}

	if len(config.Server.AllowedOrigins) != 1 {
		t.Errorf("Expected 1 default allowed origin, got %d", len(config.Server.AllowedOrigins))
	}
}

func TestLoadConfig_CustomEnvironment(t *testing.T) {
	envVars := map[string]string{
		"HOST":                 "0.0.0.0",
		"PORT":                 "9000",
		"STORAGE_DRIVER":       "Redis",
		"REDIS_HOST":           "redis.example.com",
		"REDIS_DB":             "1",
		"TASK_ADD_LATENCY":     "10ms",
		"TASK_MUTATE_LATENCY":  "5ms",
		"WEATHER_API_KEY":      "abc123",
		"DISPATCH_CONCURRENCY": "8",
		"RATE_LIMIT_ENABLED":   "false",
		"ALLOWED_ORIGINS":      "http://a.test, http://b.test",
	}

	clearEnvVars(allEnvVars)
	setEnvVars(envVars)
	defer clearEnvVars(allEnvVars)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with custom config, got: %v", err)
	}

	if config.Storage.Driver != StorageRedis {
		t.Errorf("Expected storage driver 'redis', got %s", config.Storage.Driver)
	}

	if config.GetRedisAddr() != "redis.example.com:6379" {
		t.Errorf("Expected redis addr 'redis.example.com:6379', got %s", config.GetRedisAddr())
	}

	if config.Redis.DB != 1 {
		t.Errorf("Expected Redis DB 1, got %d", config.Redis.DB)
	}

	if config.Pipeline.AddLatency != 10*time.Millisecond {
		t.Errorf("Expected add latency 10ms, got %v", config.Pipeline.AddLatency)
	}

	if config.UsesSimulatedWeather() {
		t.Error("Expected real weather provider when API key is set")
	}

	if config.Dispatch.Concurrency != 8 {
		t.Errorf("Expected dispatch concurrency 8, got %d", config.Dispatch.Concurrency)
	}

	if config.RateLimit.Enabled {
		t.Error("Expected rate limiting to be disabled")
	}

	if config.GetServerAddr() != "0.0.0.0:9000" {
		t.Errorf("Expected server addr '0.0.0.0:9000', got %s", config.GetServerAddr())
	}

	if len(config.Server.AllowedOrigins) != 2 || config.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("Unexpected allowed origins %v", config.Server.AllowedOrigins)
	}
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	clearEnvVars(allEnvVars)
	setEnvVars(map[string]string{
		"REDIS_DB":           "not-a-number",
		"TASK_ADD_LATENCY":   "soon",
		"RATE_LIMIT_ENABLED": "maybe",
	})
	defer clearEnvVars(allEnvVars)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if config.Redis.DB != 0 {
		t.Errorf("Expected fallback Redis DB 0, got %d", config.Redis.DB)
	}

	if config.Pipeline.AddLatency != 300*time.Millisecond {
		t.Errorf("Expected fallback add latency 300ms, got %v", config.Pipeline.AddLatency)
	}

	if !config.RateLimit.Enabled {
		t.Error("Expected fallback rate limiting enabled")
	}
}

func TestLoadConfig_ProductionValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{
			name:    "default JWT secret rejected",
			env:     map[string]string{"ENVIRONMENT": "production"},
			wantErr: true,
		},
		{
			name:    "postgres without password rejected",
			env:     map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "s3cret", "STORAGE_DRIVER": "postgres"},
			wantErr: true,
		},
		{
			name:    "memory store with secret accepted",
			env:     map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "s3cret"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(allEnvVars)
			setEnvVars(tt.env)
			defer clearEnvVars(allEnvVars)

			_, err := LoadConfig()
			if tt.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestLoadConfig_UnsupportedStorageDriver(t *testing.T) {
	clearEnvVars(allEnvVars)
	setEnvVars(map[string]string{"STORAGE_DRIVER": "localstorage"})
	defer clearEnvVars(allEnvVars)

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for unsupported storage driver")
	}
}

func TestGetDatabaseDSN(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Host:     "db",
			Port:     "5432",
			User:     "u",
			Password: "p",
			Name:     "n",
			SSLMode:  "disable",
		},
	}

	expected := "host=db port=5432 user=u password=p dbname=n sslmode=disable"
	if dsn := config.GetDatabaseDSN(); dsn != expected {
		t.Errorf("Expected DSN %q, got %q", expected, dsn)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnvVars(allEnvVars)
	defer clearEnvVars(allEnvVars)

	path := filepath.Join(t.TempDir(), ".env")
	content := "WEATHER_API_KEY=from-file\nPORT=9090\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	os.Setenv("PORT", "7070")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if config.Weather.APIKey != "from-file" {
		t.Errorf("Expected API key from env file, got %q", config.Weather.APIKey)
	}
	if config.Server.Port != "7070" {
		t.Errorf("Expected existing PORT to win, got %q", config.Server.Port)
	}
	if config.UsesSimulatedWeather() {
		t.Error("Expected real weather provider when the env file sets an API key")
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("Expected missing env file to be ignored, got: %v", err)
	}
}

func TestLoadDotEnv_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("NOT-VALID=1\n"), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	if err := LoadDotEnv(path); err == nil {
		t.Error("Expected error for malformed env file")
	}
}
