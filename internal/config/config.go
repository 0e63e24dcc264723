package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Log      LogConfig      `mapstructure:"log" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
	Lark     LarkConfig     `mapstructure:"lark" validate:"required"`
	GitLab   GitLabConfig   `mapstructure:"gitlab" validate:"required"`
	Identity IdentityConfig `mapstructure:"identity"`
}

// ServerConfig contains the HTTP surface settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig controls the structured logger. An empty File logs to stdout.
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gt=0"`
}

// AuthConfig holds the service-token settings guarding the HTTP API.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// WorkerConfig tunes the sync worker. CallTimeout bounds every external call
// and, together with LeaseMargin, must stay below VisibilityTimeout so a slow
// call cannot outlive its lease.
type WorkerConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	BatchSize         int           `mapstructure:"batch_size" validate:"gt=0,lte=100"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" validate:"gt=0"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"gt=0"`
	CallTimeout       time.Duration `mapstructure:"call_timeout" validate:"gt=0,ltfield=VisibilityTimeout"`
	LeaseMargin       time.Duration `mapstructure:"lease_margin" validate:"gte=0"`
}

// LarkConfig holds the task-suite open platform credentials.
type LarkConfig struct {
	BaseURL    string `mapstructure:"base_url" validate:"required,url"`
	AppID      string `mapstructure:"app_id" validate:"required"`
	AppSecret  string `mapstructure:"app_secret" validate:"required"`
	UserIDType string `mapstructure:"user_id_type" validate:"required,oneof=open_id union_id user_id"`
	MaxRetries int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
}

// GitLabConfig configures the glab CLI invocation.
type GitLabConfig struct {
	Binary   string `mapstructure:"binary" validate:"required"`
	BaseURL  string `mapstructure:"base_url" validate:"required,url"`
	Token    string `mapstructure:"token"`
	Timezone string `mapstructure:"timezone" validate:"required"`
}

// IdentityConfig tunes the user-mapping heuristic fallback.
type IdentityConfig struct {
	EmailSuffix string `mapstructure:"email_suffix"`
}
