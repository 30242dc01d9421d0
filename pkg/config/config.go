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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Payments      PaymentsConfig
	Certificates  CertificatesConfig
	Notifications NotificationsConfig
	Journals      JournalsConfig
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
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PaymentsConfig carries per-provider webhook secrets and the redirect base
// used when initiating a payment session.
type PaymentsConfig struct {
	PaymeSecret     string
	ClickSecret     string
	RedirectBaseURL string
}

// CertificatesConfig governs certificate issuance.
type CertificatesConfig struct {
	IssuerName          string
	VerificationBaseURL string
	WorkerConcurrency   int
	WorkerRetries       int
}

// NotificationsConfig tunes the email dispatch queue.
type NotificationsConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
}

// JournalsConfig governs cache behaviour for the journal catalog.
type JournalsConfig struct {
	CacheTTL time.Duration
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
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Payments = PaymentsConfig{
		PaymeSecret:     v.GetString("PAYME_WEBHOOK_SECRET"),
		ClickSecret:     v.GetString("CLICK_WEBHOOK_SECRET"),
		RedirectBaseURL: v.GetString("PAYMENT_REDIRECT_BASE_URL"),
	}

	cfg.Certificates = CertificatesConfig{
		IssuerName:          v.GetString("CERTIFICATE_ISSUER_NAME"),
		VerificationBaseURL: v.GetString("CERTIFICATE_VERIFICATION_BASE_URL"),
		WorkerConcurrency:   v.GetInt("CERTIFICATE_WORKER_CONCURRENCY"),
		WorkerRetries:       v.GetInt("CERTIFICATE_WORKER_RETRIES"),
	}

	cfg.Notifications = NotificationsConfig{
		WorkerConcurrency: v.GetInt("NOTIFICATION_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("NOTIFICATION_WORKER_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("NOTIFICATION_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Journals = JournalsConfig{
		CacheTTL: parseDuration(v.GetString("JOURNAL_CACHE_TTL"), 10*time.Minute),
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
	v.SetDefault("DB_NAME", "ujmp_editorial")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PAYME_WEBHOOK_SECRET", "")
	v.SetDefault("CLICK_WEBHOOK_SECRET", "")
	v.SetDefault("PAYMENT_REDIRECT_BASE_URL", "http://localhost:8080/pay")

	v.SetDefault("CERTIFICATE_ISSUER_NAME", "Universal Journal of Medical Publishing")
	v.SetDefault("CERTIFICATE_VERIFICATION_BASE_URL", "http://localhost:8080/verify")
	v.SetDefault("CERTIFICATE_WORKER_CONCURRENCY", 1)
	v.SetDefault("CERTIFICATE_WORKER_RETRIES", 3)

	v.SetDefault("NOTIFICATION_WORKER_CONCURRENCY", 2)
	v.SetDefault("NOTIFICATION_WORKER_RETRIES", 3)
	v.SetDefault("NOTIFICATION_RETRY_DELAY", "5s")

	v.SetDefault("JOURNAL_CACHE_TTL", "10m")
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
