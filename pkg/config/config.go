// Package config loads the execution core's single configuration struct.
// There are no hidden globals: every tunable named in spec §6 lives here and
// is threaded explicitly into the component that consumes it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Config is the single configuration struct recognized by the core (spec §6).
type Config struct {
	Executor     ExecutorConfig     `mapstructure:"executor" validate:"required"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" validate:"required"`
	Validator    ValidatorConfig    `mapstructure:"validator"`
	Evidence     EvidenceConfig     `mapstructure:"evidence" validate:"required"`
}

// ExecutorConfig configures the Job Executor (spec §4.3, §6).
type ExecutorConfig struct {
	WorkerCount                int           `mapstructure:"worker_count" validate:"gt=0"`
	MaxConcurrentJobsPerWorker int           `mapstructure:"max_concurrent_jobs_per_worker" validate:"gt=0"`
	JobTimeout                 time.Duration `mapstructure:"job_timeout" validate:"gt=0"`
	BaseRetryDelayMs           int64         `mapstructure:"base_retry_delay_ms" validate:"gte=0"`
	MaxRetryDelayMs            int64         `mapstructure:"max_retry_delay_ms" validate:"gtefield=BaseRetryDelayMs"`
	EnableAutoScale            bool          `mapstructure:"enable_auto_scale"`
	EventBufferSize            int           `mapstructure:"event_buffer_size" validate:"gt=0"`
}

// OrchestratorConfig configures the Study Orchestrator (spec §4.4, §6).
type OrchestratorConfig struct {
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval" validate:"gt=0"`
}

// ValidatorConfig configures the Validator (spec §4.5, §6).
type ValidatorConfig struct {
	StrictMode bool `mapstructure:"strict_mode"`
}

// EvidenceConfig configures the optional evidence blob store.
type EvidenceConfig struct {
	Provider string `mapstructure:"provider" validate:"oneof=memory s3"`
	S3Bucket string `mapstructure:"s3_bucket" validate:"required_if=Provider s3"`
	S3Prefix string `mapstructure:"s3_prefix"`
}

// Load reads configuration from an optional file plus STUDYCORE_-prefixed
// environment variables, falling back to the defaults set below.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile == "" {
		configFile = os.Getenv("STUDYCORE_CONFIG_FILE")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	v.SetEnvPrefix("STUDYCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("executor.worker_count", 8)
	v.SetDefault("executor.max_concurrent_jobs_per_worker", 4)
	v.SetDefault("executor.job_timeout", 120*time.Second)
	v.SetDefault("executor.base_retry_delay_ms", 1000)
	v.SetDefault("executor.max_retry_delay_ms", 60000)
	v.SetDefault("executor.enable_auto_scale", false)
	v.SetDefault("executor.event_buffer_size", 256)

	v.SetDefault("orchestrator.checkpoint_interval", 30*time.Second)

	v.SetDefault("validator.strict_mode", false)

	v.SetDefault("evidence.provider", "memory")
	v.SetDefault("evidence.s3_prefix", "evidence/")
}

// Default returns the configuration produced by defaults alone, useful for
// tests and for the cmd/studyrunner binary's zero-flag invocation.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults-only load cannot fail; a failure here is a programming error.
		panic(err)
	}
	return cfg
}
