package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string
	APIURL   string

	DBDSN     string
	JWTSecret string

	LogLevel    string
	SessionDays int

	SMTP SMTPConfig

	MaxUploadBytes int64
	MaxUploadRows  int

	ResponsesAgeRecipient string
	ResponsesAgeIdentity  string

	ReminderSchedule  string
	ReminderAfterDays int

	MetricsEnabled bool
	MetricsToken   string

	Tracing TracingConfig
}

// TracingConfig holds the OpenTelemetry exporter settings. With no endpoint
// spans go to stdout.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	Headers     map[string]string
	SampleRatio float64
}

// SMTPConfig holds the mail relay settings. Host, user and password may be
// empty at boot; sends fail until they are configured.
type SMTPConfig struct {
	Server     string
	Port       int
	User       string
	Password   string
	SenderName string
	ReplyTo    string
	Timeout    time.Duration
}

// Configured reports whether the relay has everything needed to send.
func (s SMTPConfig) Configured() bool {
	return s.Server != "" && s.User != "" && s.Password != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("APP_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("APP_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("HTTP_ADDR", ":8080")

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("APP_BASE_URL")), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("APP_BASE_URL is required")
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(os.Getenv("API_URL")), "/")

	cfg.DBDSN = strings.TrimSpace(os.Getenv("DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	var err error
	cfg.SessionDays, err = getEnvIntOrDefault("SESSION_DAYS", 7)
	if err != nil {
		return nil, err
	}

	cfg.SMTP, err = loadSMTP()
	if err != nil {
		return nil, err
	}

	cfg.MaxUploadBytes, err = getEnvInt64OrDefault("MAX_UPLOAD_BYTES", 1*1024*1024)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadRows, err = getEnvIntOrDefault("MAX_UPLOAD_ROWS", 500)
	if err != nil {
		return nil, err
	}
	if cfg.MaxUploadRows <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_ROWS must be positive (got: %d)", cfg.MaxUploadRows)
	}

	cfg.ResponsesAgeRecipient = strings.TrimSpace(os.Getenv("RESPONSES_AGE_RECIPIENT"))
	cfg.ResponsesAgeIdentity = strings.TrimSpace(os.Getenv("RESPONSES_AGE_IDENTITY"))

	cfg.ReminderSchedule = getEnvOrDefault("REMINDER_SCHEDULE", "0 9 * * *")
	if strings.EqualFold(cfg.ReminderSchedule, "off") {
		cfg.ReminderSchedule = ""
	}
	cfg.ReminderAfterDays, err = getEnvIntOrDefault("REMINDER_AFTER_DAYS", 3)
	if err != nil {
		return nil, err
	}
	if cfg.ReminderAfterDays < 1 {
		return nil, fmt.Errorf("REMINDER_AFTER_DAYS must be at least 1 (got: %d)", cfg.ReminderAfterDays)
	}

	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)
	cfg.MetricsToken = strings.TrimSpace(os.Getenv("METRICS_TOKEN"))

	cfg.Tracing, err = loadTracing()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadTracing() (TracingConfig, error) {
	tc := TracingConfig{
		Enabled:     getEnvBool("OTEL_ENABLED", false),
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		Headers:     parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		SampleRatio: 0.1,
	}
	if raw := strings.TrimSpace(os.Getenv("OTEL_SAMPLER_RATIO")); raw != "" {
		ratio, err := strconv.ParseFloat(raw, 64)
		if err != nil || ratio < 0 || ratio > 1 {
			return TracingConfig{}, fmt.Errorf("OTEL_SAMPLER_RATIO must be a number between 0 and 1 (got: %q)", raw)
		}
		tc.SampleRatio = ratio
	}
	return tc, nil
}

// parseHeaders reads "k1=v1,k2=v2". Malformed pairs are skipped.
func parseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if key == "" || val == "" {
			continue
		}
		headers[key] = val
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func loadSMTP() (SMTPConfig, error) {
	smtp := SMTPConfig{
		Server:     strings.TrimSpace(os.Getenv("SMTP_SERVER")),
		User:       strings.TrimSpace(os.Getenv("SMTP_USER")),
		Password:   os.Getenv("SMTP_PASSWORD"),
		SenderName: getEnvOrDefault("SENDER_NAME", "Black Belt Consultoria"),
		ReplyTo:    strings.TrimSpace(os.Getenv("REPLY_TO")),
	}

	var err error
	smtp.Port, err = getEnvIntOrDefault("SMTP_PORT", 587)
	if err != nil {
		return SMTPConfig{}, err
	}
	if smtp.Port <= 0 || smtp.Port > 65535 {
		return SMTPConfig{}, fmt.Errorf("SMTP_PORT must be between 1 and 65535 (got: %d)", smtp.Port)
	}

	timeoutMS, err := getEnvIntOrDefault("SMTP_TIMEOUT_MS", 10000)
	if err != nil {
		return SMTPConfig{}, err
	}
	if timeoutMS <= 0 || timeoutMS > 60000 {
		return SMTPConfig{}, fmt.Errorf("SMTP_TIMEOUT_MS must be between 1 and 60000 (got: %d)", timeoutMS)
	}
	smtp.Timeout = time.Duration(timeoutMS) * time.Millisecond

	return smtp, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// SealsResponses reports whether raw answers are encrypted at rest.
func (c *Config) SealsResponses() bool {
	return c.ResponsesAgeRecipient != ""
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"APP_ENV":                     c.Env,
		"HTTP_ADDR":                   c.HTTPAddr,
		"APP_BASE_URL":                c.BaseURL,
		"API_URL":                     c.APIURL,
		"DB_DSN":                      redactDSN(c.DBDSN),
		"JWT_SECRET":                  "[REDACTED]",
		"LOG_LEVEL":                   c.LogLevel,
		"SESSION_DAYS":                strconv.Itoa(c.SessionDays),
		"SMTP_SERVER":                 c.SMTP.Server,
		"SMTP_PORT":                   strconv.Itoa(c.SMTP.Port),
		"SMTP_USER":                   c.SMTP.User,
		"SMTP_PASSWORD":               redactSecret(c.SMTP.Password),
		"SENDER_NAME":                 c.SMTP.SenderName,
		"REPLY_TO":                    c.SMTP.ReplyTo,
		"SMTP_TIMEOUT_MS":             strconv.FormatInt(c.SMTP.Timeout.Milliseconds(), 10),
		"MAX_UPLOAD_BYTES":            strconv.FormatInt(c.MaxUploadBytes, 10),
		"MAX_UPLOAD_ROWS":             strconv.Itoa(c.MaxUploadRows),
		"RESPONSES_AGE_RECIPIENT":     c.ResponsesAgeRecipient,
		"RESPONSES_AGE_IDENTITY":      redactSecret(c.ResponsesAgeIdentity),
		"REMINDER_SCHEDULE":           c.ReminderSchedule,
		"REMINDER_AFTER_DAYS":         strconv.Itoa(c.ReminderAfterDays),
		"METRICS_ENABLED":             strconv.FormatBool(c.MetricsEnabled),
		"METRICS_TOKEN":               redactSecret(c.MetricsToken),
		"OTEL_ENABLED":                strconv.FormatBool(c.Tracing.Enabled),
		"OTEL_EXPORTER_OTLP_ENDPOINT": c.Tracing.Endpoint,
		"OTEL_SAMPLER_RATIO":          strconv.FormatFloat(c.Tracing.SampleRatio, 'f', -1, 64),
	}
}

func redactSecret(v string) string {
	if v == "" {
		return ""
	}
	return "[REDACTED]"
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}

func getEnvInt64OrDefault(key string, defaultValue int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}
