// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage, Telegram access, rate limiting,
// and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "botnorrea-v2")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TableConfig names the physical table of each entity.
type TableConfig struct {
	Users    string // TABLE_USERS
	Groups   string // TABLE_GROUPS
	Commands string // TABLE_COMMANDS
	Updates  string // TABLE_UPDATES
}

// TelegramConfig holds Bot API access settings.
type TelegramConfig struct {
	BotToken string        // TELEGRAM_BOT_TOKEN; empty disables chat replies
	APIURL   string        // TELEGRAM_API_URL; empty means the public Bot API
	Timeout  time.Duration // TELEGRAM_TIMEOUT per call
	BotName  string        // BOT_NAME shown in api key messages
	Domain   string        // BOT_DOMAIN public base URL of this service
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver string // sqlite|postgres
	DBDSN    string // file path for sqlite, connection string for postgres
	Tables   TableConfig

	// Bot
	Telegram         TelegramConfig
	RelayTimeout     time.Duration // per relayed update
	ReceiptTTL       time.Duration // how long a dispatched update_id is remembered
	ProbeEnabled     bool          // probe new command endpoints before registering
	IdentityKey      string        // authorizer context key carrying the caller
	MaxBodyBytes     int64         // webhook body limit
	ReceiptPurgeTick time.Duration // interval of the expired receipt sweep

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBDriver: strings.ToLower(strings.TrimSpace(getenv("DB_DRIVER", "sqlite"))),
		DBDSN:    getenv("DB_DSN", getenv("DB_PATH", "botnorrea.db")),
		Tables: TableConfig{
			Users:    getenv("TABLE_USERS", "users"),
			Groups:   getenv("TABLE_GROUPS", "groups"),
			Commands: getenv("TABLE_COMMANDS", "commands"),
			Updates:  getenv("TABLE_UPDATES", "update_receipts"),
		},

		// Bot
		Telegram: TelegramConfig{
			BotToken: strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
			APIURL:   strings.TrimSpace(getenv("TELEGRAM_API_URL", "")),
			Timeout:  getdur("TELEGRAM_TIMEOUT", 10*time.Second),
			BotName:  getenv("BOT_NAME", "Botnorrea"),
			Domain:   strings.TrimRight(strings.TrimSpace(getenv("BOT_DOMAIN", "")), "/"),
		},
		RelayTimeout:     getdur("RELAY_TIMEOUT", 10*time.Second),
		ReceiptTTL:       getdur("UPDATE_RECEIPT_TTL", 24*time.Hour),
		ProbeEnabled:     getbool("COMMAND_PROBE_ENABLED", false),
		IdentityKey:      getenv("IDENTITY_CONTEXT_KEY", "Botnorrea-v2"),
		MaxBodyBytes:     int64(getint("MAX_BODY_BYTES", 1<<20)),
		ReceiptPurgeTick: getdur("UPDATE_RECEIPT_PURGE_INTERVAL", time.Hour),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "botnorrea-v2"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
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
	if cfg.DBDriver == "postgresql" || cfg.DBDriver == "pg" {
		cfg.DBDriver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	// The relay webhook lives at the root; API routes need their own prefix.
	if cfg.APIBasePath == "/" {
		return cfg, errors.New("API_BASE_PATH must not be the root path")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.DBDSN) == "" {
		return cfg, errors.New("DB_DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Tables.Users) == "" || strings.TrimSpace(cfg.Tables.Groups) == "" ||
		strings.TrimSpace(cfg.Tables.Commands) == "" || strings.TrimSpace(cfg.Tables.Updates) == "" {
		return cfg, errors.New("TABLE_* names must not be empty")
	}
	if cfg.Telegram.Timeout <= 0 || cfg.RelayTimeout <= 0 {
		return cfg, errors.New("TELEGRAM_TIMEOUT and RELAY_TIMEOUT must be > 0")
	}
	if cfg.ReceiptTTL <= 0 {
		return cfg, errors.New("UPDATE_RECEIPT_TTL must be > 0")
	}
	if cfg.ReceiptPurgeTick <= 0 {
		return cfg, errors.New("UPDATE_RECEIPT_PURGE_INTERVAL must be > 0")
	}
	if strings.TrimSpace(cfg.IdentityKey) == "" {
		return cfg, errors.New("IDENTITY_CONTEXT_KEY must not be empty")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
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

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
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
		if i, err := strconv.Atoi(v); err == nil {
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
	if p == "" {
		return "/"
	}
	return p
}
