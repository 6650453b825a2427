package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Resolver ResolverConfig `mapstructure:"resolver" validate:"required"`
	Mastery  MasteryConfig  `mapstructure:"mastery" validate:"required"`
	Exercise ExerciseConfig `mapstructure:"exercise" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"required,oneof=json text"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey    string  `mapstructure:"gemini_api_key" validate:"required"`
	ModelName       string  `mapstructure:"model_name" validate:"required"`
	Temperature     float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens" validate:"gt=0"`
	// MaxRetries bounds the in-call backoff used by background generation.
	// Interactive calls never retry.
	MaxRetries         int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay     time.Duration `mapstructure:"retry_base_delay" validate:"gt=0"`
	InteractiveTimeout time.Duration `mapstructure:"interactive_timeout" validate:"gt=0"`
	BackgroundTimeout  time.Duration `mapstructure:"background_timeout" validate:"gt=0"`
	// PromptTemplatePath overrides the embedded prompt template when set.
	PromptTemplatePath string `mapstructure:"prompt_template_path"`
}

// QueueConfig controls the background backfill queue.
type QueueConfig struct {
	MaxConcurrent  int  `mapstructure:"max_concurrent" validate:"gte=1,lte=32"`
	CoverageTarget int  `mapstructure:"coverage_target" validate:"gte=1"`
	RecoverOnStart bool `mapstructure:"recover_on_start"`
}

// ResolverConfig controls the tiered exercise lookup.
type ResolverConfig struct {
	OnDemandEnabled bool `mapstructure:"on_demand_enabled"`
	OnDemandCap     int  `mapstructure:"on_demand_cap" validate:"gte=1,lte=10"`
	MaxCount        int  `mapstructure:"max_count" validate:"gte=1"`
}

// MasteryConfig selects and tunes the mastered-answer backend.
type MasteryConfig struct {
	Backend       string        `mapstructure:"backend" validate:"required,oneof=memory redis"`
	Streak        int           `mapstructure:"streak" validate:"gte=1"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gt=0"`
	RedisAddr     string        `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"gte=0"`
}

// ExerciseConfig holds content rules shared by validation and generation.
type ExerciseConfig struct {
	// Languages lists the UI languages every exercise must explain itself in.
	Languages []string `mapstructure:"languages" validate:"required,min=1,dive,len=2"`
	// ImportSeedsOnStart writes the seed bank into the store before serving,
	// so usage reports against served seeds find their rows.
	ImportSeedsOnStart bool `mapstructure:"import_seeds_on_start"`
}
