// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// Telegram transport, the durable store, deduplication behaviour, the run
// lock, logging, the admin HTTP API, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissing marks configuration that is required but absent. The CLI maps it
// to a non-zero exit code; every other runtime failure is logged and swallowed.
var ErrMissing = errors.New("required configuration missing")

// TelegramConfig defines the chat transport settings.
type TelegramConfig struct {
	Token       string        // TELEGRAM_BOT_TOKEN (required)
	ChatID      int64         // TELEGRAM_CHAT_ID (required): the collection chat
	APIEndpoint string        // TELEGRAM_API_ENDPOINT, printf pattern with token and method
	PollTimeout time.Duration // TELEGRAM_POLL_TIMEOUT, 0 = short poll
	SendRPS     float64       // TELEGRAM_SEND_RPS
	SendBurst   int           // TELEGRAM_SEND_BURST
}

// TablesConfig holds table-name overrides so the store can follow an
// existing schema.
type TablesConfig struct {
	Messages string // TBL_MESSAGES
	Meta     string // TBL_META
	Images   string // TBL_IMAGES ("" disables the images table)
	Roster   string // TBL_ROSTER
}

// StoreConfig defines the durable store.
type StoreConfig struct {
	Driver      string // DB_DRIVER: sqlite|postgres
	Path        string // DB_PATH (sqlite)
	DatabaseURL string // DATABASE_URL (postgres)
	Tables      TablesConfig
}

// CollectorConfig defines the behaviour of a collect pass.
type CollectorConfig struct {
	ImageDedup   bool          // IMAGE_DEDUP
	StrictFormat bool          // FORMAT_STRICT
	LockTTL      time.Duration // LOCK_TTL
	TZOffset     int           // TZ_OFFSET_HOURS, fixed offset (no DST)
	CallTimeout  time.Duration // CALL_TIMEOUT, per network call
	Interval     time.Duration // COLLECT_INTERVAL, serve mode only

	AckText       string // MSG_ACK
	MalformedText string // MSG_MALFORMED
	DuplicateText string // MSG_DUPLICATE
	StartText     string // MSG_START
}

// ReportConfig defines where the daily report goes.
type ReportConfig struct {
	ChatID   int64 // REPORT_CHAT_ID, defaults to Telegram.ChatID
	ThreadID int   // REPORT_THREAD_ID
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	Telegram  TelegramConfig
	Store     StoreConfig
	Collector CollectorConfig
	Report    ReportConfig

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Admin HTTP API (serve mode)
	Port        string
	GinMode     string // debug|release|test
	APIBasePath string
	AdminToken  string // ADMIN_TOKEN, guards POST /collect; empty disables
	RateRPS     float64
	RateBurst   int
	CORS        CORSConfig
	Security    SecurityConfig

	// Observability
	OTEL           OTELConfig
	PushgatewayURL string // PUSHGATEWAY_URL, optional
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Telegram: TelegramConfig{
			Token:       strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
			ChatID:      getint64("TELEGRAM_CHAT_ID", 0),
			APIEndpoint: getenv("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s"),
			PollTimeout: getdur("TELEGRAM_POLL_TIMEOUT", 0),
			SendRPS:     getfloat("TELEGRAM_SEND_RPS", 1.0),
			SendBurst:   getint("TELEGRAM_SEND_BURST", 3),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:        getenv("DB_PATH", "reports.db"),
			DatabaseURL: getenv("DATABASE_URL", ""),
			Tables: TablesConfig{
				Messages: getenv("TBL_MESSAGES", "messages"),
				Meta:     getenv("TBL_META", "meta"),
				Images:   getenvAllowEmpty("TBL_IMAGES", "images"),
				Roster:   getenv("TBL_ROSTER", "roster"),
			},
		},
		Collector: CollectorConfig{
			ImageDedup:   getbool("IMAGE_DEDUP", true),
			StrictFormat: getbool("FORMAT_STRICT", false),
			LockTTL:      getdur("LOCK_TTL", 4*time.Minute),
			TZOffset:     getint("TZ_OFFSET_HOURS", 7),
			CallTimeout:  getdur("CALL_TIMEOUT", 20*time.Second),
			Interval:     getdur("COLLECT_INTERVAL", 5*time.Minute),

			AckText:       getenv("MSG_ACK", "Đã ghi nhận báo cáo 5S ngày hôm nay"),
			MalformedText: getenv("MSG_MALFORMED", "Kiểm tra lại format và gửi báo cáo lại (ví dụ: 12345678 - Nội dung)"),
			DuplicateText: getenv("MSG_DUPLICATE", "Báo cáo này đã được ghi nhận trước đó, không cần gửi lại"),
			StartText:     getenv("MSG_START", "Bot sẵn sàng. Gửi báo cáo theo dạng `12345678 - Nội dung` nhé!"),
		},
		Report: ReportConfig{
			ChatID:   getint64("REPORT_CHAT_ID", 0),
			ThreadID: getint("REPORT_THREAD_ID", 0),
		},

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		Port:        getenv("PORT", "8080"),
		GinMode:     strings.ToLower(getenv("GIN_MODE", "release")),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		AdminToken:  strings.TrimSpace(getenv("ADMIN_TOKEN", "")),
		RateRPS:     getfloat("RATE_RPS", 5.0),
		RateBurst:   getint("RATE_BURST", 10),
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-report-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
		PushgatewayURL: getenv("PUSHGATEWAY_URL", ""),
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Report.ChatID == 0 {
		cfg.Report.ChatID = cfg.Telegram.ChatID
	}
	if cfg.Store.Driver == "postgresql" || cfg.Store.Driver == "pg" {
		cfg.Store.Driver = "postgres"
	}

	// --- required ---
	if cfg.Telegram.Token == "" {
		return cfg, fmt.Errorf("%w: TELEGRAM_BOT_TOKEN", ErrMissing)
	}
	if cfg.Telegram.ChatID == 0 {
		return cfg, fmt.Errorf("%w: TELEGRAM_CHAT_ID", ErrMissing)
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	switch cfg.Store.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.Store.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.Store.DatabaseURL) == "" {
			return cfg, fmt.Errorf("%w: DATABASE_URL (DB_DRIVER=postgres)", ErrMissing)
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.Store.Tables.Messages == "" || cfg.Store.Tables.Meta == "" || cfg.Store.Tables.Roster == "" {
		return cfg, errors.New("TBL_MESSAGES, TBL_META and TBL_ROSTER must not be empty")
	}
	if cfg.Collector.LockTTL <= 0 {
		return cfg, errors.New("LOCK_TTL must be > 0")
	}
	if cfg.Collector.TZOffset < -12 || cfg.Collector.TZOffset > 14 {
		return cfg, errors.New("TZ_OFFSET_HOURS must be between -12 and 14")
	}
	if cfg.Collector.CallTimeout <= 0 {
		return cfg, errors.New("CALL_TIMEOUT must be > 0")
	}
	if cfg.Collector.Interval < time.Second {
		return cfg, errors.New("COLLECT_INTERVAL must be >= 1s")
	}
	if cfg.Telegram.PollTimeout < 0 {
		return cfg, errors.New("TELEGRAM_POLL_TIMEOUT must be >= 0")
	}
	if cfg.Telegram.SendRPS <= 0 {
		return cfg, errors.New("TELEGRAM_SEND_RPS must be > 0")
	}
	if cfg.Telegram.SendBurst < 1 {
		return cfg, errors.New("TELEGRAM_SEND_BURST must be >= 1")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Location returns the fixed-offset operating timezone.
func (c CollectorConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.TZOffset), c.TZOffset*3600)
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

// getenvAllowEmpty distinguishes "unset" (default) from "set to empty".
func getenvAllowEmpty(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
