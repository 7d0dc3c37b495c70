package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int
	LogLevel     slog.Level

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	CORSAllowedOrigins []string
	RateLimitRPS       int
	RateLimitBurst     int

	// Cron-выражение для планировщика статусов турниров.
	StatusSchedule     string
	ScoringPresetsFile string

	RedisURL        string
	ResultsCacheTTL time.Duration

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// PublishingEnabled reports whether every R2 setting needed to upload result snapshots is present.
func (c *Config) PublishingEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Ошибку не считаем фатальной: .env в продакшене обычно отсутствует.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intFromEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	level, err := parseLogLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	rps, err := intFromEnv("RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, err
	}
	burst, err := intFromEnv("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, err
	}
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive, got %d and %d", rps, burst)
	}

	maxOpen, err := intFromEnv("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	maxIdle, err := intFromEnv("DB_MAX_IDLE_CONNS", maxOpen)
	if err != nil {
		return nil, err
	}
	if maxOpen <= 0 || maxIdle < 0 {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive and DB_MAX_IDLE_CONNS not negative, got %d and %d", maxOpen, maxIdle)
	}
	connLifetime := 5 * time.Minute
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME"); raw != "" {
		connLifetime, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME environment variable: %w", err)
		}
	}

	cacheTTL := 5 * time.Minute
	if ttlStr := os.Getenv("RESULTS_CACHE_TTL"); ttlStr != "" {
		cacheTTL, err = time.ParseDuration(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid RESULTS_CACHE_TTL environment variable: %w", err)
		}
		if cacheTTL <= 0 {
			return nil, fmt.Errorf("RESULTS_CACHE_TTL must be positive, got %s", cacheTTL)
		}
	}

	schedule := os.Getenv("STATUS_SCHEDULE")
	if schedule == "" {
		schedule = "@every 30s"
	}

	cfg := &Config{
		DatabaseURL:        dbURL,
		JWTSecretKey:       jwtKey,
		ServerPort:         port,
		LogLevel:           level,
		DBMaxOpenConns:     maxOpen,
		DBMaxIdleConns:     maxIdle,
		DBConnMaxLifetime:  connLifetime,
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS"), []string{"*"}),
		RateLimitRPS:       rps,
		RateLimitBurst:     burst,
		StatusSchedule:     schedule,
		ScoringPresetsFile: os.Getenv("SCORING_PRESETS_FILE"),
		RedisURL:           os.Getenv("REDIS_URL"),
		ResultsCacheTTL:    cacheTTL,
		R2AccountID:        os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:      os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:  os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:       os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:    os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

func intFromEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: expected debug, info, warn or error", raw)
	}
}

func splitList(raw string, def []string) []string {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
