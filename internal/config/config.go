package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the console.
type Config struct {
	App       AppConfig
	Backend   BackendConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Session   SessionConfig
	Web       WebConfig
	Query     QueryConfig
	Messaging MessagingConfig
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

// BackendConfig points the console at the copilot REST API.
type BackendConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SessionConfig defines browser session parameters.
type SessionConfig struct {
	CookieName           string
	Secret               string
	Store                string
	TokenTTLMinutes      int
	IdleMinutes          int
	SweepIntervalSeconds int
	SecureCookie         bool
}

// WebConfig locates the page templates.
type WebConfig struct {
	TemplateDir string
}

// QueryConfig tunes the data-fetch cache.
type QueryConfig struct {
	StaleSeconds int
}

// MessagingConfig enables the AMQP audit sink when URL is set.
type MessagingConfig struct {
	AMQPURL  string
	Exchange string
}

const (
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

// DevSessionSecret signs cookies when SESSION_SECRET is unset. It is refused
// outside development.
const DevSessionSecret = "dev-secret"

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	app := AppConfig{
		Name:                  getEnv("APP_NAME", "servicedesk-copilot-web"),
		Env:                   getEnv("APP_ENV", "development"),
		Host:                  getEnv("APP_HOST", "0.0.0.0"),
		Port:                  getEnv("APP_PORT", "8080"),
		Version:               getEnv("APP_VERSION", "dev"),
		RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
	}

	defaultStore := SessionStoreRedis
	if app.IsDevelopment() {
		defaultStore = SessionStoreMemory
	}
	store := strings.ToLower(getEnv("SESSION_STORE", defaultStore))
	if store != SessionStoreRedis && store != SessionStoreMemory {
		return nil, fmt.Errorf("invalid SESSION_STORE %q", store)
	}

	secret := getEnv("SESSION_SECRET", DevSessionSecret)
	if secret == DevSessionSecret && !app.IsDevelopment() {
		return nil, fmt.Errorf("SESSION_SECRET must be set when APP_ENV=%s", app.Env)
	}

	cfg := &Config{
		App: app,
		Backend: BackendConfig{
			BaseURL:        getEnv("COPILOT_API_BASE", app.Origin()),
			TimeoutSeconds: getEnvAsInt("COPILOT_API_TIMEOUT_SECONDS", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Session: SessionConfig{
			CookieName:           getEnv("SESSION_COOKIE_NAME", "copilot_session"),
			Secret:               secret,
			Store:                store,
			TokenTTLMinutes:      getEnvAsInt("SESSION_TOKEN_TTL_MINUTES", 0),
			IdleMinutes:          getEnvAsInt("SESSION_IDLE_MINUTES", 120),
			SweepIntervalSeconds: getEnvAsInt("SESSION_SWEEP_INTERVAL_SECONDS", 300),
			SecureCookie:         getEnvAsBool("SESSION_SECURE_COOKIE", false),
		},
		Web: WebConfig{
			TemplateDir: getEnv("WEB_TEMPLATE_DIR", "web/templates"),
		},
		Query: QueryConfig{
			StaleSeconds: getEnvAsInt("QUERY_STALE_SECONDS", 0),
		},
		Messaging: MessagingConfig{
			AMQPURL:  os.Getenv("AMQP_URL"),
			Exchange: getEnv("AMQP_EXCHANGE", "copilot.events"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// Origin is the console's own origin, used as the default backend base URL.
func (a AppConfig) Origin() string {
	host := a.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%s", host, a.Port)
}

// IsDevelopment reports whether the console runs in a development environment.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development" || a.Env == "local"
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-call client timeout, zero meaning none.
func (b BackendConfig) Timeout() time.Duration {
	return seconds(b.TimeoutSeconds)
}

// TokenTTL is how long a persisted token survives in durable storage, zero meaning forever.
func (s SessionConfig) TokenTTL() time.Duration {
	if s.TokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(s.TokenTTLMinutes) * time.Minute
}

// IdleTimeout returns how long an unused in-memory session is kept.
func (s SessionConfig) IdleTimeout() time.Duration {
	if s.IdleMinutes <= 0 {
		return 0
	}
	return time.Duration(s.IdleMinutes) * time.Minute
}

// SweepInterval returns the idle session sweep period.
func (s SessionConfig) SweepInterval() time.Duration {
	return seconds(s.SweepIntervalSeconds)
}

// StaleTime returns how long a fetched result is served without refetching.
func (q QueryConfig) StaleTime() time.Duration {
	return seconds(q.StaleSeconds)
}

// Enabled reports whether the AMQP audit sink should be started.
func (m MessagingConfig) Enabled() bool {
	return m.AMQPURL != ""
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
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
