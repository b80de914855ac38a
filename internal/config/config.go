package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	LLM           LLMConfig
	Chat          ChatConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig carries the default connection fields offered to new
// sessions. A session may override any of them at connect time.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type ChatConfig struct {
	// MaxResultRows caps how many result rows are rendered into the
	// answer prompt. Execution itself is never truncated.
	MaxResultRows int
	// ReadOnly rejects statements that are not SELECT/WITH before they
	// reach the database.
	ReadOnly bool
	// SessionLimit bounds concurrent open sessions; zero means unbounded.
	SessionLimit int
}

const (
	AuditBackendNone = "none"
	AuditBackendFile = "file"
	AuditBackendS3   = "s3"
)

type AuditConfig struct {
	Backend string
	Path    string
	S3      S3Config
}

type S3Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLCHAT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLCHAT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "SQLCHAT_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLCHAT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLCHAT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLCHAT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_DB_DRIVER", &cfg.Database.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_DB_HOST", &cfg.Database.Host); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_DB_PORT", &cfg.Database.Port); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_DB_USER", &cfg.Database.Username); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_DB_PASSWORD", &cfg.Database.Password); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_DB_NAME", &cfg.Database.Database); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_LLM_BASE_URL", &cfg.LLM.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_LLM_API_KEY", &cfg.LLM.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_LLM_MODEL", &cfg.LLM.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SQLCHAT_LLM_TEMPERATURE", &cfg.LLM.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLCHAT_LLM_TIMEOUT", &cfg.LLM.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLCHAT_CHAT_MAX_RESULT_ROWS", &cfg.Chat.MaxResultRows); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLCHAT_CHAT_READ_ONLY", &cfg.Chat.ReadOnly); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLCHAT_CHAT_SESSION_LIMIT", &cfg.Chat.SessionLimit); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_AUDIT_BACKEND", &cfg.Audit.Backend); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_AUDIT_PATH", &cfg.Audit.Path); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_AUDIT_S3_ENDPOINT", &cfg.Audit.S3.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_AUDIT_S3_REGION", &cfg.Audit.S3.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_AUDIT_S3_BUCKET", &cfg.Audit.S3.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_AUDIT_S3_ACCESS_KEY", &cfg.Audit.S3.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_AUDIT_S3_SECRET_KEY", &cfg.Audit.S3.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLCHAT_AUDIT_S3_USE_SSL", &cfg.Audit.S3.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_AUDIT_S3_PREFIX", &cfg.Audit.S3.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLCHAT_AUDIT_S3_AUTO_CREATE_BUCKET", &cfg.Audit.S3.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLCHAT_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SQLCHAT_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLCHAT_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if !isValidAuditBackend(cfg.Audit.Backend) {
		return Config{}, fmt.Errorf("invalid SQLCHAT_AUDIT_BACKEND: %q", cfg.Audit.Backend)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlchat-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     "5432",
			Username: "postgres",
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			Timeout:     30 * time.Second,
		},
		Chat: ChatConfig{
			MaxResultRows: 50,
			ReadOnly:      false,
			SessionLimit:  0,
		},
		Audit: AuditConfig{
			Backend: "file",
			Path:    "sqlchat_audit.log",
			S3: S3Config{
				Endpoint:         "localhost:9000",
				Region:           "us-east-1",
				Bucket:           "sqlchat",
				UseSSL:           false,
				AutoCreateBucket: true,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Audit.Backend = AuditBackendNone
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.Audit.S3.UseSSL = true
		cfg.Audit.S3.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func isValidAuditBackend(backend string) bool {
	switch backend {
	case AuditBackendNone, AuditBackendFile, AuditBackendS3:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
