package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	DBDriver          string
	DBDSN             string
	SQLitePath        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	// DBLogSQL wraps the driver so every statement is logged at debug level.
	DBLogSQL bool

	MQTTBroker   string
	MQTTPort     int
	MQTTTopic    string
	MQTTClientID string

	SweepSchedule    string
	SweepWindow      time.Duration
	CleanupSchedule  string
	HistoryRetention time.Duration

	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	NotifyFromEmail string
	NotifyFromName  string

	TwilioEnabled    bool
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioBaseURL    string

	// AlertsFile is an optional YAML file of alerts created at startup.
	AlertsFile string
}

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		DBDriver:        env("DB_DRIVER", "sqlite3"),
		DBDSN:           env("DB_DSN", ""),
		SQLitePath:      env("SQLITE_PATH", "data/tempest.db"),
		MQTTBroker:      env("MQTT_BROKER", "localhost"),
		MQTTTopic:       env("MQTT_TOPIC", "weather/+/telemetry"),
		MQTTClientID:    env("MQTT_CLIENT_ID", "tempest-server-"+uuid.NewString()[:8]),
		SweepSchedule:   env("SWEEP_SCHEDULE", "@every 5m"),
		CleanupSchedule: env("CLEANUP_SCHEDULE", "0 2 * * *"),
		SMTPHost:        env("SMTP_HOST", ""),
		SMTPUsername:    env("SMTP_USERNAME", ""),
		SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
		NotifyFromEmail: env("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:  env("NOTIFY_FROM_NAME", "Tempest Weather"),

		TwilioAccountSID: env("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  env("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: env("TWILIO_FROM_NUMBER", ""),
		TwilioBaseURL:    env("TWILIO_BASE_URL", "https://api.twilio.com"),
		AlertsFile:       env("ALERTS_FILE", ""),
	}

	if cfg.DBMaxOpenConns, err = envInt("DB_MAX_OPEN_CONNS", "1"); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxIdleConns, err = envInt("DB_MAX_IDLE_CONNS", "1"); err != nil {
		return Config{}, err
	}
	if cfg.DBConnMaxLifetime, err = envDuration("DB_CONN_MAX_LIFETIME", "0s"); err != nil {
		return Config{}, err
	}
	if cfg.DBLogSQL, err = envBool("DB_LOG_SQL", "false"); err != nil {
		return Config{}, err
	}

	if cfg.MQTTPort, err = envInt("MQTT_PORT", "1883"); err != nil {
		return Config{}, err
	}
	if cfg.MQTTPort <= 0 || cfg.MQTTPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", cfg.MQTTPort)
	}

	if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
		return Config{}, fmt.Errorf("invalid SWEEP_SCHEDULE %q: %w", cfg.SweepSchedule, err)
	}
	if _, err := cron.ParseStandard(cfg.CleanupSchedule); err != nil {
		return Config{}, fmt.Errorf("invalid CLEANUP_SCHEDULE %q: %w", cfg.CleanupSchedule, err)
	}
	if cfg.SweepWindow, err = envDuration("SWEEP_WINDOW", "10m"); err != nil {
		return Config{}, err
	}
	if cfg.SweepWindow <= 0 {
		return Config{}, fmt.Errorf("SWEEP_WINDOW must be positive, got %v", cfg.SweepWindow)
	}
	if cfg.HistoryRetention, err = envDuration("HISTORY_RETENTION", "2160h"); err != nil {
		return Config{}, err
	}
	if cfg.HistoryRetention <= 0 {
		return Config{}, fmt.Errorf("HISTORY_RETENTION must be positive, got %v", cfg.HistoryRetention)
	}

	if cfg.SMTPPort, err = envInt("SMTP_PORT", "587"); err != nil {
		return Config{}, err
	}
	if cfg.SMTPHost != "" && cfg.NotifyFromEmail == "" {
		return Config{}, fmt.Errorf("NOTIFY_FROM_EMAIL is required when SMTP_HOST is set")
	}

	if cfg.TwilioEnabled, err = envBool("TWILIO_ENABLED", "false"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key, def string) (int, error) {
	s := env(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envDuration(key, def string) (time.Duration, error) {
	s := env(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func envBool(key, def string) (bool, error) {
	s := env(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
