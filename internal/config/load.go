package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load,
// e.g. TASKLINK_WORKER_POLL_INTERVAL.
const EnvPrefix = "TASKLINK"

// Load reads configuration from defaults, an optional tasklink.yaml in the
// working directory, a .env file and the environment. Environment variables
// take precedence over the config file.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the working directory for tasklink.{yaml,json,toml} and tolerates its absence.
func LoadFile(path string) (*Config, error) {
	// A missing .env file is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tasklink")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every struct tag constraint and the time zone name.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Worker.CallTimeout+c.Worker.LeaseMargin >= c.Worker.VisibilityTimeout {
		return fmt.Errorf("invalid configuration: worker.call_timeout plus worker.lease_margin must stay below worker.visibility_timeout")
	}

	if _, err := time.LoadLocation(c.GitLab.Timezone); err != nil {
		return fmt.Errorf("invalid configuration: gitlab.timezone: %w", err)
	}

	return nil
}

// setDefaults registers every key so AutomaticEnv can bind nested fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("worker.poll_interval", 30*time.Second)
	v.SetDefault("worker.batch_size", 5)
	v.SetDefault("worker.visibility_timeout", 120*time.Second)
	v.SetDefault("worker.max_attempts", 8)
	v.SetDefault("worker.call_timeout", 60*time.Second)
	v.SetDefault("worker.lease_margin", 10*time.Second)

	v.SetDefault("lark.base_url", "https://open.feishu.cn")
	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")
	v.SetDefault("lark.user_id_type", "open_id")
	v.SetDefault("lark.max_retries", 2)

	v.SetDefault("gitlab.binary", "glab")
	v.SetDefault("gitlab.base_url", "https://gitlab.com")
	v.SetDefault("gitlab.token", "")
	v.SetDefault("gitlab.timezone", "UTC")

	v.SetDefault("identity.email_suffix", "")
}
