package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"     validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"   validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"       validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm"        validate:"required"`
	Jobs      JobsConfig      `mapstructure:"jobs"       validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"       validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level"  validate:"required,oneof=debug info warn error fatal"`
	// LogFormat selects JSON output for services or the human-readable console format.
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json console"`
	// ShutdownTimeoutSeconds bounds graceful HTTP shutdown.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"            validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0,lt=44640"`
	BCryptCost           int    `mapstructure:"bcrypt_cost"            validate:"gte=4,lte=31"`
}

// LLMConfig contains the settings of the screen translation model.
//
// GeminiAPIKey is optional: without it the server starts with translations disabled.
type LLMConfig struct {
	GeminiAPIKey string  `mapstructure:"gemini_api_key"`
	ModelName    string  `mapstructure:"model_name"    validate:"required"`
	MaxTokens    int32   `mapstructure:"max_tokens"    validate:"gt=0"`
	Temperature  float32 `mapstructure:"temperature"   validate:"gte=0,lte=2"`
	TopP         float32 `mapstructure:"top_p"         validate:"gte=0,lte=1"`
	StopSequence string  `mapstructure:"stop_sequence" validate:"required"`
	// MaxRetries bounds retries of transient model errors.
	MaxRetries   int `mapstructure:"max_retries"    validate:"gte=0,lte=10"`
	RetryDelayMS int `mapstructure:"retry_delay_ms" validate:"gte=0"`
}

// JobsConfig controls the background job runner.
type JobsConfig struct {
	WorkerCount        int `mapstructure:"worker_count"          validate:"gt=0"`
	QueueSize          int `mapstructure:"queue_size"            validate:"gt=0"`
	StuckJobAgeMinutes int `mapstructure:"stuck_job_age_minutes" validate:"gt=0"`
}

// RateLimitConfig limits translation requests per user.
type RateLimitConfig struct {
	TranslationsPerMinute float64 `mapstructure:"translations_per_minute" validate:"gt=0"`
	Burst                 int     `mapstructure:"burst"                   validate:"gt=0"`
}
