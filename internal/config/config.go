package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	DatabaseURL           string
	RedisURL              string
	NATSURL               string
	EventsChannel         string
	JWTSecret             string
	JWTRefreshSecret      string
	JWTIssuer             string
	AssignmentCacheTTL    time.Duration
	ReportCacheTTL        time.Duration
	DashboardCacheTTL     time.Duration
	NotificationStreamTTL time.Duration
	AnswerRateLimitPerMin int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "GEMA Classroom API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "gema:classroom")
	v.SetDefault("assignment.cache_ttl", "10m")
	v.SetDefault("report.cache_ttl", "2m")
	v.SetDefault("dashboard.cache_ttl", "1m")
	v.SetDefault("notification.stream_timeout", "30s")
	v.SetDefault("rate_limit.answers_per_minute", 120)

	cacheTTL, err := parseDuration(v, "assignment.cache_ttl", 10*time.Minute)
	if err != nil {
		return Config{}, err
	}

	reportTTL, err := parseDuration(v, "report.cache_ttl", 2*time.Minute)
	if err != nil {
		return Config{}, err
	}

	dashboardTTL, err := parseDuration(v, "dashboard.cache_ttl", time.Minute)
	if err != nil {
		return Config{}, err
	}

	streamTimeout, err := parseDuration(v, "notification.stream_timeout", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		EventsChannel:         v.GetString("events.channel"),
		JWTSecret:             v.GetString("jwt.secret"),
		JWTRefreshSecret:      v.GetString("jwt.refresh_secret"),
		JWTIssuer:             v.GetString("jwt.issuer"),
		AssignmentCacheTTL:    cacheTTL,
		ReportCacheTTL:        reportTTL,
		DashboardCacheTTL:     dashboardTTL,
		NotificationStreamTTL: streamTimeout,
		AnswerRateLimitPerMin: v.GetInt("rate_limit.answers_per_minute"),
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.AnswerRateLimitPerMin <= 0 {
		cfg.AnswerRateLimitPerMin = 120
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
