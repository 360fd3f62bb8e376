package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Env         string
	HTTPAddr    string
	CORSOrigins []string

	// Session policy. TTL is fixed at creation; there is no sliding
	// expiration.
	SessionTTL     time.Duration
	SweepInterval  time.Duration
	SessionBackend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DBDriver string
	DBDSN    string

	CookieSecure bool

	APIRateLimitRPM  int
	AuthRateLimitRPM int

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	LogLevel string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELHTTPEnabled           bool
	OTELMetricsExportInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Env = getString("APP_ENV", "development")
	cfg.HTTPAddr = getString("HTTP_ADDR", ":8080")
	cfg.CORSOrigins = getList("CORS_ORIGINS", nil)
	cfg.SessionBackend = strings.ToLower(getString("SESSION_BACKEND", BackendMemory))
	cfg.RedisAddr = getString("REDIS_ADDR", "")
	cfg.RedisPassword = getString("REDIS_PASSWORD", "")
	cfg.DBDriver = strings.ToLower(getString("DB_DRIVER", DriverSQLite))
	cfg.DBDSN = getString("DB_DSN", "file:marketplace.db?cache=shared")
	cfg.LogLevel = strings.ToLower(getString("LOG_LEVEL", "info"))
	cfg.OTELServiceName = getString("OTEL_SERVICE_NAME", "session-auth-service")
	cfg.OTELEnvironment = getString("OTEL_ENVIRONMENT", cfg.Env)
	cfg.OTELExporterOTLPEndpoint = getString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	cfg.SessionTTL, err = getDuration("SESSION_TTL", 720*time.Hour)
	if err == nil {
		cfg.SweepInterval, err = getDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute)
	}
	if err == nil {
		cfg.RedisDB, err = getInt("REDIS_DB", 0)
	}
	if err == nil {
		cfg.CookieSecure, err = getBool("COOKIE_SECURE", true)
	}
	if err == nil {
		cfg.APIRateLimitRPM, err = getInt("API_RATE_LIMIT_RPM", 600)
	}
	if err == nil {
		cfg.AuthRateLimitRPM, err = getInt("AUTH_RATE_LIMIT_RPM", 30)
	}
	if err == nil {
		cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second)
	}
	if err == nil {
		cfg.ShutdownHTTPDrainTimeout, err = getDuration("SHUTDOWN_HTTP_DRAIN_TIMEOUT", 10*time.Second)
	}
	if err == nil {
		cfg.ShutdownObservabilityTimeout, err = getDuration("SHUTDOWN_OBSERVABILITY_TIMEOUT", 5*time.Second)
	}
	if err == nil {
		cfg.OTELExporterOTLPInsecure, err = getBool("OTEL_EXPORTER_OTLP_INSECURE", true)
	}
	if err == nil {
		cfg.OTELMetricsEnabled, err = getBool("OTEL_METRICS_ENABLED", false)
	}
	if err == nil {
		cfg.OTELTracesEnabled, err = getBool("OTEL_TRACES_ENABLED", false)
	}
	if err == nil {
		cfg.OTELLogsEnabled, err = getBool("OTEL_LOGS_ENABLED", false)
	}
	if err == nil {
		cfg.OTELHTTPEnabled, err = getBool("OTEL_HTTP_ENABLED", false)
	}
	if err == nil {
		cfg.OTELMetricsExportInterval, err = getDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second)
	}
	if err == nil {
		err = cfg.validate()
	}
	if err != nil {
		recordConfigValidationEvent(context.Background(), cfg.Env, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), cfg.Env, "success", "none")
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []string
	if c.HTTPAddr == "" {
		problems = append(problems, "HTTP_ADDR must not be empty")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		problems = append(problems, "SESSION_SWEEP_INTERVAL must be positive")
	}
	switch c.SessionBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			problems = append(problems, "REDIS_ADDR is required for the redis session backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown SESSION_BACKEND %q", c.SessionBackend))
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		problems = append(problems, fmt.Sprintf("unknown DB_DRIVER %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		problems = append(problems, "DB_DSN must not be empty")
	}
	if c.APIRateLimitRPM <= 0 || c.AuthRateLimitRPM <= 0 {
		problems = append(problems, "rate limits must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("validate config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getList(key string, def []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getInt(key string, def int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, def bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
