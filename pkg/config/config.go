package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Selection SelectionConfig
	Exports   ExportsConfig
	Jobs      JobsConfig
	Cache     CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SelectionConfig tunes the allocation engine.
type SelectionConfig struct {
	// RankingReferenceDate anchors the age tie-break so reruns stay stable.
	RankingReferenceDate time.Time
	// MaxMultiplier caps round overbooking.
	MaxMultiplier int
	// TempPasswordLength sizes provisioned candidate credentials.
	TempPasswordLength int
}

// ExportsConfig configures call-list export artifacts.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// JobsConfig configures the background close runner.
type JobsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// CacheConfig tunes derived-data caching.
type CacheConfig struct {
	StatusTTL     time.Duration
	RankedListTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Selection = SelectionConfig{
		RankingReferenceDate: parseDate(v.GetString("RANKING_REFERENCE_DATE")),
		MaxMultiplier:        v.GetInt("MAX_CALL_MULTIPLIER"),
		TempPasswordLength:   v.GetInt("TEMP_PASSWORD_LENGTH"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		BufferSize: v.GetInt("JOBS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), time.Second),
	}

	cfg.Cache = CacheConfig{
		StatusTTL:     parseDuration(v.GetString("STATUS_CACHE_TTL"), time.Minute),
		RankedListTTL: parseDuration(v.GetString("RANKED_LIST_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "admissions")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RANKING_REFERENCE_DATE", "")
	v.SetDefault("MAX_CALL_MULTIPLIER", 5)
	v.SetDefault("TEMP_PASSWORD_LENGTH", 12)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")

	v.SetDefault("JOBS_WORKERS", 1)
	v.SetDefault("JOBS_BUFFER_SIZE", 8)
	v.SetDefault("JOBS_MAX_RETRIES", 1)
	v.SetDefault("JOBS_RETRY_DELAY", "1s")

	v.SetDefault("STATUS_CACHE_TTL", "1m")
	v.SetDefault("RANKED_LIST_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

// parseDate accepts YYYY-MM-DD; an empty or malformed value falls back to the
// start of the current year so development runs still rank deterministically
// within a single process.
func parseDate(raw string) time.Time {
	if raw != "" {
		if d, err := time.Parse("2006-01-02", raw); err == nil {
			return d
		}
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
