package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_ADDR",
	"DB_DRIVER", "DB_DSN", "SQLITE_PATH", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_LOG_SQL",
	"MQTT_BROKER", "MQTT_PORT", "MQTT_TOPIC", "MQTT_CLIENT_ID",
	"SWEEP_SCHEDULE", "SWEEP_WINDOW", "CLEANUP_SCHEDULE", "HISTORY_RETENTION",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "NOTIFY_FROM_EMAIL", "NOTIFY_FROM_NAME",
	"TWILIO_ENABLED", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER", "TWILIO_BASE_URL",
	"ALERTS_FILE",
}

// clearEnv blanks every variable LoadFromEnv reads so tests see defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":8080")
	}
	if got.DBDriver != "sqlite3" {
		t.Errorf("DBDriver = %q, want sqlite3", got.DBDriver)
	}
	if got.DBMaxOpenConns != 1 || got.DBMaxIdleConns != 1 {
		t.Errorf("pool = %d/%d, want 1/1", got.DBMaxOpenConns, got.DBMaxIdleConns)
	}
	if got.MQTTPort != 1883 {
		t.Errorf("MQTTPort = %d, want 1883", got.MQTTPort)
	}
	if got.MQTTTopic != "weather/+/telemetry" {
		t.Errorf("MQTTTopic = %q", got.MQTTTopic)
	}
	if !strings.HasPrefix(got.MQTTClientID, "tempest-server-") {
		t.Errorf("MQTTClientID = %q, want tempest-server- prefix", got.MQTTClientID)
	}
	if got.SweepSchedule != "@every 5m" {
		t.Errorf("SweepSchedule = %q", got.SweepSchedule)
	}
	if got.SweepWindow != 10*time.Minute {
		t.Errorf("SweepWindow = %v, want 10m", got.SweepWindow)
	}
	if got.CleanupSchedule != "0 2 * * *" {
		t.Errorf("CleanupSchedule = %q", got.CleanupSchedule)
	}
	if got.HistoryRetention != 90*24*time.Hour {
		t.Errorf("HistoryRetention = %v, want 90 days", got.HistoryRetention)
	}
	if got.TwilioEnabled {
		t.Errorf("TwilioEnabled = true, want false")
	}
	if got.TwilioBaseURL != "https://api.twilio.com" {
		t.Errorf("TwilioBaseURL = %q", got.TwilioBaseURL)
	}
}

func TestLoadFromEnv_AppEnv_Valid(t *testing.T) {
	tests := []struct {
		name   string
		appEnv string
		want   string
	}{
		{name: "dev", appEnv: "dev", want: "dev"},
		{name: "prod", appEnv: "prod", want: "prod"},
		{name: "dev with whitespace", appEnv: "  dev  ", want: "dev"},
		{name: "prod with whitespace", appEnv: "\nprod\t", want: "prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", tt.appEnv)

			got, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.AppEnv != tt.want {
				t.Errorf("AppEnv = %q, want %q", got.AppEnv, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_AppEnv_Invalid(t *testing.T) {
	for _, appEnv := range []string{"staging", "qa", "DEV", "whatever"} {
		t.Run(appEnv, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", appEnv)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil")
			}
		})
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "max open conns", key: "DB_MAX_OPEN_CONNS", value: "many", wantErr: "DB_MAX_OPEN_CONNS"},
		{name: "conn lifetime", key: "DB_CONN_MAX_LIFETIME", value: "forever", wantErr: "DB_CONN_MAX_LIFETIME"},
		{name: "log sql", key: "DB_LOG_SQL", value: "sometimes", wantErr: "DB_LOG_SQL"},
		{name: "mqtt port text", key: "MQTT_PORT", value: "abc", wantErr: "MQTT_PORT"},
		{name: "mqtt port range", key: "MQTT_PORT", value: "70000", wantErr: "MQTT_PORT"},
		{name: "sweep schedule", key: "SWEEP_SCHEDULE", value: "every five", wantErr: "SWEEP_SCHEDULE"},
		{name: "cleanup schedule", key: "CLEANUP_SCHEDULE", value: "61 * * * *", wantErr: "CLEANUP_SCHEDULE"},
		{name: "sweep window", key: "SWEEP_WINDOW", value: "-1m", wantErr: "SWEEP_WINDOW"},
		{name: "retention", key: "HISTORY_RETENTION", value: "0s", wantErr: "HISTORY_RETENTION"},
		{name: "smtp port", key: "SMTP_PORT", value: "x", wantErr: "SMTP_PORT"},
		{name: "twilio enabled", key: "TWILIO_ENABLED", value: "yes please", wantErr: "TWILIO_ENABLED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadFromEnv()
			if err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %s", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv_SMTPRequiresFromAddress(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMTP_HOST", "smtp.example.com")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("LoadFromEnv() error = nil, want NOTIFY_FROM_EMAIL error")
	}

	t.Setenv("NOTIFY_FROM_EMAIL", "alerts@example.com")
	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.SMTPHost != "smtp.example.com" || got.SMTPPort != 587 {
		t.Errorf("smtp = %s:%d", got.SMTPHost, got.SMTPPort)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", "  :9090  ")
	t.Setenv("SWEEP_SCHEDULE", "*/2 * * * *")
	t.Setenv("SWEEP_WINDOW", "15m")
	t.Setenv("MQTT_CLIENT_ID", "station-gw")
	t.Setenv("TWILIO_ENABLED", "true")
	t.Setenv("DB_LOG_SQL", "1")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", got.HTTPAddr)
	}
	if got.SweepSchedule != "*/2 * * * *" || got.SweepWindow != 15*time.Minute {
		t.Errorf("sweep = %q/%v", got.SweepSchedule, got.SweepWindow)
	}
	if got.MQTTClientID != "station-gw" {
		t.Errorf("MQTTClientID = %q", got.MQTTClientID)
	}
	if !got.TwilioEnabled || !got.DBLogSQL {
		t.Errorf("TwilioEnabled=%v DBLogSQL=%v, want both true", got.TwilioEnabled, got.DBLogSQL)
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "info", in: "info", want: slog.LevelInfo},
		{name: "warn", in: "warn", want: slog.LevelWarn},
		{name: "warning", in: "warning", want: slog.LevelWarn},
		{name: "error", in: "error", want: slog.LevelError},
		{name: "case insensitive", in: "DeBuG", want: slog.LevelDebug},
		{name: "trims whitespace", in: "  warn \n", want: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Invalid(t *testing.T) {
	for _, in := range []string{"", "nope", "warns", "1"} {
		got, err := parseLogLevel(in)
		if err == nil {
			t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", in)
		}
		// For invalid inputs, function returns LevelInfo along with an error.
		if got != slog.LevelInfo {
			t.Errorf("parseLogLevel(%q) = %v, want %v on error", in, got, slog.LevelInfo)
		}
	}
}
