package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Auth      AuthConfig      `json:"auth"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Weather   WeatherConfig   `json:"weather"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Environment     string        `json:"environment"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type StorageConfig struct {
	Driver     string `json:"driver"`
	SQLitePath string `json:"sqlite_path"`
	KeyPrefix  string `json:"key_prefix"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	Name            string        `json:"name"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type AuthConfig struct {
	JWTSecret    string        `json:"jwt_secret"`
	SessionTTL   time.Duration `json:"session_ttl"`
	BCryptCost   int           `json:"bcrypt_cost"`
	LoginLatency time.Duration `json:"login_latency"`
	CheckLatency time.Duration `json:"check_latency"`
	DemoEmail    string        `json:"demo_email"`
	DemoPassword string        `json:"-"`
	DemoName     string        `json:"demo_name"`
	TokenIssuer  string        `json:"token_issuer"`
}

type PipelineConfig struct {
	AddLatency    time.Duration `json:"add_latency"`
	MutateLatency time.Duration `json:"mutate_latency"`
}

type WeatherConfig struct {
	APIKey          string        `json:"-"`
	BaseURL         string        `json:"base_url"`
	Units           string        `json:"units"`
	Timeout         time.Duration `json:"timeout"`
	DefaultLocation string        `json:"default_location"`
	SimulatedDelay  time.Duration `json:"simulated_delay"`
}

type DispatchConfig struct {
	Concurrency int `json:"concurrency"`
	QueueSize   int `json:"queue_size"`
}

type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	RequestsPerMin  int           `json:"requests_per_minute"`
	BurstSize       int           `json:"burst_size"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

const defaultJWTSecret = "your-secret-key"

// LoadDotEnv copies variables from the given env files (".env" when none are
// named) into the process environment. Variables already set win, and a
// missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("HOST", "localhost"),
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			Environment:     getEnv("ENVIRONMENT", "development"),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Storage: StorageConfig{
			Driver:     strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
			SQLitePath: getEnv("SQLITE_PATH", "taskdash.db"),
			KeyPrefix:  getEnv("STORAGE_KEY_PREFIX", "taskdash:"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "taskdash"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", defaultJWTSecret),
			SessionTTL:   getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			BCryptCost:   getEnvAsInt("BCRYPT_COST", 10),
			LoginLatency: getEnvAsDuration("AUTH_LOGIN_LATENCY", time.Second),
			CheckLatency: getEnvAsDuration("AUTH_CHECK_LATENCY", 500*time.Millisecond),
			DemoEmail:    "demo@example.com",
			DemoPassword: "password",
			DemoName:     "Demo User",
			TokenIssuer:  "taskdash",
		},
		Pipeline: PipelineConfig{
			AddLatency:    getEnvAsDuration("TASK_ADD_LATENCY", 300*time.Millisecond),
			MutateLatency: getEnvAsDuration("TASK_MUTATE_LATENCY", 200*time.Millisecond),
		},
		Weather: WeatherConfig{
			APIKey:          getEnv("WEATHER_API_KEY", ""),
			BaseURL:         getEnv("WEATHER_BASE_URL", "https://api.openweathermap.org"),
			Units:           getEnv("WEATHER_UNITS", "metric"),
			Timeout:         getEnvAsDuration("WEATHER_TIMEOUT", 10*time.Second),
			DefaultLocation: getEnv("WEATHER_DEFAULT_LOCATION", "New York"),
			SimulatedDelay:  getEnvAsDuration("WEATHER_SIMULATED_DELAY", 800*time.Millisecond),
		},
		Dispatch: DispatchConfig{
			Concurrency: getEnvAsInt("DISPATCH_CONCURRENCY", 4),
			QueueSize:   getEnvAsInt("DISPATCH_QUEUE_SIZE", 64),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin:  getEnvAsInt("RATE_LIMIT_RPM", 100),
			BurstSize:       getEnvAsInt("RATE_LIMIT_BURST", 10),
			CleanupInterval: getEnvAsDuration("RATE_LIMIT_CLEANUP", 10*time.Minute),
		},
	}

	switch config.Storage.Driver {
	case StorageMemory, StorageRedis, StorageSQLite, StoragePostgres:
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", config.Storage.Driver)
	}

	if config.Storage.Driver == StoragePostgres && config.Database.Password == "" && config.IsProduction() {
		return nil, fmt.Errorf("database password is required in production")
	}

	if config.Auth.JWTSecret == defaultJWTSecret && config.IsProduction() {
		return nil, fmt.Errorf("JWT secret must be set in production")
	}

	if config.Dispatch.Concurrency < 1 {
		return nil, fmt.Errorf("dispatch concurrency must be at least 1, got %d", config.Dispatch.Concurrency)
	}

	return config, nil
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// UsesSimulatedWeather reports whether the weather widget falls back to the
// built-in table because no provider key is configured.
func (c *Config) UsesSimulatedWeather() bool {
	return c.Weather.APIKey == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
