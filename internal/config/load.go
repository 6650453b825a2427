package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "GAPFILL"

// ErrValidationFailed wraps configuration validation errors.
var ErrValidationFailed = errors.New("validation failed")

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound explicitly.
	for _, key := range []string{"database.url", "llm.gemini_api_key", "mastery.redis_addr", "mastery.redis_password"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags on cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_output_tokens", 8192)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_base_delay", "1s")
	v.SetDefault("llm.interactive_timeout", "8s")
	v.SetDefault("llm.background_timeout", "60s")
	v.SetDefault("llm.prompt_template_path", "")

	v.SetDefault("queue.max_concurrent", 3)
	v.SetDefault("queue.coverage_target", 10)
	v.SetDefault("queue.recover_on_start", true)

	v.SetDefault("resolver.on_demand_enabled", true)
	v.SetDefault("resolver.on_demand_cap", 10)
	v.SetDefault("resolver.max_count", 50)

	v.SetDefault("mastery.backend", "memory")
	v.SetDefault("mastery.streak", 3)
	v.SetDefault("mastery.ttl", "24h")
	v.SetDefault("mastery.redis_db", 0)

	v.SetDefault("exercise.languages", []string{"en", "es"})
	v.SetDefault("exercise.import_seeds_on_start", true)
}
