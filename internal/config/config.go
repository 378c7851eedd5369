// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App          AppConfig          `koanf:"app"`
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	JWT          JWTConfig          `koanf:"jwt"`
	Session      SessionConfig      `koanf:"session"`
	Verification VerificationConfig `koanf:"verification"`
	Recovery     RecoveryConfig     `koanf:"recovery"`
	Password     PasswordConfig     `koanf:"password"`
	Username     UsernameConfig     `koanf:"username"`
	Auth         AuthConfig         `koanf:"auth"`
	Audit        AuditConfig        `koanf:"audit"`
	Notify       NotifyConfig       `koanf:"notify"`
	Janitor      JanitorConfig      `koanf:"janitor"`
	Log          LogConfig          `koanf:"log"`
	Otel         OtelConfig         `koanf:"otel"`
	Metrics      MetricsConfig      `koanf:"metrics"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath string `koanf:"private_key_path"`
	PublicKeyPath  string `koanf:"public_key_path"`
	Issuer         string `koanf:"issuer"`
	Audience       string `koanf:"audience"`
}

type SessionConfig struct {
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
}

type VerificationConfig struct {
	CodeLength  int           `koanf:"code_length"`
	CodeTTL     time.Duration `koanf:"code_ttl"`
	Retention   time.Duration `koanf:"retention"`
	MaxAttempts int           `koanf:"max_attempts"`
	KeyPrefix   string        `koanf:"key_prefix"`
}

type RecoveryConfig struct {
	TokenTTL   time.Duration `koanf:"token_ttl"`
	TokenBytes int           `koanf:"token_bytes"`
}

type PasswordConfig struct {
	MinLength    int  `koanf:"min_length"`
	MaxLength    int  `koanf:"max_length"`
	RequireUpper bool `koanf:"require_upper"`
	RequireLower bool `koanf:"require_lower"`
	RequireDigit bool `koanf:"require_digit"`
}

type UsernameConfig struct {
	MinLength int `koanf:"min_length"`
	MaxLength int `koanf:"max_length"`
}

type AuthConfig struct {
	DefaultRole         string `koanf:"default_role"`
	RequireSecondFactor bool   `koanf:"require_second_factor"`
	RoleSource          string `koanf:"role_source"`
}

type AuditConfig struct {
	Enabled    bool   `koanf:"enabled"`
	BufferSize int    `koanf:"buffer_size"`
	DropIfFull bool   `koanf:"drop_if_full"`
	Sink       string `koanf:"sink"`
}

type NotifyConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Channel        string `koanf:"channel"`
	BufferSize     int    `koanf:"buffer_size"`
	PerChatMinute  int    `koanf:"per_chat_minute"`
	PerChatBurst   int    `koanf:"per_chat_burst"`
	ThrottleFailOK bool   `koanf:"throttle_fail_open"`
}

type JanitorConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
	Grace    time.Duration `koanf:"grace"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	out := &Config{}
	if err := k.Unmarshal("", out); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(out); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return out, nil
}

func Defaults() map[string]any {
	return map[string]any{
		"app.name":        "taskflow-auth",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8081,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.issuer":           "taskflow-auth",
		"jwt.audience":         "taskflow-api",
		"jwt.private_key_path": "keys/private.pem",
		"jwt.public_key_path":  "keys/public.pem",

		"session.access_ttl":  "1h",
		"session.refresh_ttl": "168h",

		"verification.code_length":  6,
		"verification.code_ttl":     "10m",
		"verification.retention":    "24h",
		"verification.max_attempts": 5,
		"verification.key_prefix":   "vc",

		"recovery.token_ttl":   "24h",
		"recovery.token_bytes": 32,

		"password.min_length":    8,
		"password.max_length":    128,
		"password.require_upper": true,
		"password.require_lower": true,
		"password.require_digit": true,

		"username.min_length": 3,
		"username.max_length": 50,

		"auth.default_role":          "worker",
		"auth.require_second_factor": false,
		"auth.role_source":           "database",

		"audit.enabled":      true,
		"audit.buffer_size":  1024,
		"audit.drop_if_full": true,
		"audit.sink":         "database",

		"notify.enabled":            true,
		"notify.channel":            "tgbot:deliveries",
		"notify.buffer_size":        256,
		"notify.per_chat_minute":    5,
		"notify.per_chat_burst":     3,
		"notify.throttle_fail_open": true,

		"janitor.enabled":  true,
		"janitor.interval": "15m",
		"janitor.grace":    "24h",

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "taskflow-auth",

		"metrics.enabled": true,
		"metrics.path":    "/metrics",
	}
}

func loadDefaults(k *koanf.Koanf) error {
	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"SESSION_ACCESS_TTL":          "session.access_ttl",
	"SESSION_REFRESH_TTL":         "session.refresh_ttl",
	"VERIFICATION_CODE_TTL":       "verification.code_ttl",
	"VERIFICATION_MAX_ATTEMPTS":   "verification.max_attempts",
	"RECOVERY_TOKEN_TTL":          "recovery.token_ttl",
	"AUTH_REQUIRE_SECOND_FACTOR":  "auth.require_second_factor",
	"AUTH_ROLE_SOURCE":            "auth.role_source",
	"AUDIT_SINK":                  "audit.sink",
	"NOTIFY_CHANNEL":              "notify.channel",
	"NOTIFY_ENABLED":              "notify.enabled",
	"JANITOR_INTERVAL":            "janitor.interval",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"METRICS_ENABLED":             "metrics.enabled",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.Session.AccessTTL <= 0 || c.Session.RefreshTTL <= 0 {
		return fmt.Errorf("session lifetimes must be positive")
	}

	if c.Session.RefreshTTL < c.Session.AccessTTL {
		return fmt.Errorf("session.refresh_ttl must not be shorter than session.access_ttl")
	}

	if c.Verification.CodeLength < 4 || c.Verification.CodeLength > 10 {
		return fmt.Errorf("verification.code_length must be between 4 and 10")
	}

	if c.Verification.CodeTTL <= 0 {
		return fmt.Errorf("verification.code_ttl must be positive")
	}

	if c.Verification.MaxAttempts < 1 {
		return fmt.Errorf("verification.max_attempts must be at least 1")
	}

	if c.Recovery.TokenTTL <= 0 {
		return fmt.Errorf("recovery.token_ttl must be positive")
	}

	if c.Recovery.TokenBytes < 16 {
		return fmt.Errorf("recovery.token_bytes must be at least 16")
	}

	if c.Password.MinLength < 1 || c.Password.MaxLength < c.Password.MinLength {
		return fmt.Errorf("password length bounds are invalid")
	}

	if c.Username.MinLength < 1 || c.Username.MaxLength < c.Username.MinLength {
		return fmt.Errorf("username length bounds are invalid")
	}

	switch c.Audit.Sink {
	case "database", "log":
	default:
		return fmt.Errorf("audit.sink must be one of database, log")
	}

	switch c.Auth.RoleSource {
	case "database", "static":
	default:
		return fmt.Errorf("auth.role_source must be one of database, static")
	}

	if c.Metrics.Enabled && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		return fmt.Errorf("metrics.path must start with /")
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
