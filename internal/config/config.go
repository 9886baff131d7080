package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Tracking     TrackingConfig
	Storage      StorageConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	RunMigrations     bool
	MigrationsDir     string
	ConnMaxIdleSec    int32
	ConnMaxLifeSec    int32
	LockTimeoutMillis int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr               string
	Password           string
	DB                 int
	PoolSize           int
	DialTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

// NotificationConfig controls where lifecycle notifications are fanned out.
type NotificationConfig struct {
	Enabled      bool
	RedisChannel string
}

// TrackingConfig controls tracking number allocation.
type TrackingConfig struct {
	Prefix      string
	MaxAttempts int
}

// StorageConfig locates attachment files.
type StorageConfig struct {
	Driver           string
	AttachmentDir    string
	CloudinaryURL    string
	CloudinaryFolder string
	MaxUploadMB      int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "complaint-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:               os.Getenv("POSTGRES_DSN"),
			MaxConns:          int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:          int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:     getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:     getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:    int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:    int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			LockTimeoutMillis: getEnvAsInt("POSTGRES_LOCK_TIMEOUT_MS", 5000),
		},
		Redis: RedisConfig{
			Addr:               getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:           os.Getenv("REDIS_PASSWORD"),
			DB:                 redisDB,
			PoolSize:           getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeoutSeconds: getEnvAsInt("REDIS_DIAL_TIMEOUT_SECONDS", 5),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("AUTH_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			Enabled:      getEnvAsBool("NOTIFY_ENABLED", true),
			RedisChannel: getEnv("NOTIFY_REDIS_CHANNEL", "complaints.events"),
		},
		Tracking: TrackingConfig{
			Prefix:      getEnv("TRACKING_PREFIX", "CMP"),
			MaxAttempts: getEnvAsInt("TRACKING_MAX_ATTEMPTS", 5),
		},
		Storage: StorageConfig{
			Driver:           getEnv("STORAGE_DRIVER", "local"),
			AttachmentDir:    getEnv("STORAGE_ATTACHMENT_DIR", "data/attachments"),
			CloudinaryURL:    os.Getenv("CLOUDINARY_URL"),
			CloudinaryFolder: getEnv("CLOUDINARY_FOLDER", "complaints"),
			MaxUploadMB:      getEnvAsInt("STORAGE_MAX_UPLOAD_MB", 10),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
