package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the service reads,
// e.g. DOCMINE_SERVER_PORT or DOCMINE_TASK_WORKER_COUNT.
const EnvPrefix = "DOCMINE"

// setDefaults registers the default value of every key. Registering a
// default also makes the key visible to AutomaticEnv during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.max_upload_mb", 100)
	v.SetDefault("server.read_timeout_seconds", 60)
	v.SetDefault("server.write_timeout_seconds", 0)
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("storage.root_dir", "output")

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.orphan_sweep_interval_minutes", 30)
	v.SetDefault("task.orphan_grace_minutes", 10)

	v.SetDefault("analyzer.ocr_backend", "none")
	v.SetDefault("analyzer.min_text_chars", 50)
	v.SetDefault("analyzer.gemini_api_key", "")
	v.SetDefault("analyzer.model_name", "gemini-2.0-flash")
	v.SetDefault("analyzer.prompt_template_path", "")
	v.SetDefault("analyzer.timeout_seconds", 300)
	v.SetDefault("analyzer.max_retries", 2)
	v.SetDefault("analyzer.retry_delay_seconds", 2)
}

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

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
