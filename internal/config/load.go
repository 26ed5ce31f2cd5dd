package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "BPM"

// defaults lists every key Load knows about. Registering a default for each
// key is what lets viper's Unmarshal see values that only exist in the environment.
var defaults = map[string]any{
	"server.port":                     8080,
	"server.log_level":                "info",
	"server.log_format":               "json",
	"server.shutdown_timeout_seconds": 10,

	"database.url":            "",
	"database.max_open_conns": 25,
	"database.max_idle_conns": 25,

	"auth.jwt_secret":             "",
	"auth.token_lifetime_minutes": 60,
	"auth.bcrypt_cost":            10,

	"llm.gemini_api_key": "",
	"llm.model_name":     "gemini-2.0-flash",
	"llm.max_tokens":     1500,
	"llm.temperature":    0.7,
	"llm.top_p":          1.0,
	"llm.stop_sequence":  "END_",
	"llm.max_retries":    3,
	"llm.retry_delay_ms": 2000,

	"jobs.worker_count":          2,
	"jobs.queue_size":            100,
	"jobs.stuck_job_age_minutes": 30,

	"rate_limit.translations_per_minute": 6,
	"rate_limit.burst":                   3,
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given config file instead of
// searching for config.yaml in the working directory. An empty path searches.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
