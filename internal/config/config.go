// Package config manages configuration for the chefctl CLI.
// It uses Viper for unified configuration management from files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Defaults for the fixed deployment topology. Everything here can be
// overridden from ~/.chefctl/config.yaml or CHEFCTL_* environment variables.
const (
	DefaultRegion         = "us-central1"
	DefaultServiceName    = "bringo-chef-ai"
	DefaultAppName        = "bringo_chef_ai_assistant"
	DefaultCPU            = "2"
	DefaultMemory         = "2Gi"
	DefaultTimeoutSeconds = 300
	DefaultMaxInstances   = 10
	DefaultProbeTimeout   = 30 * time.Second
)

// CustomRole declares the single custom role the agent's service identity
// must hold, with upsert semantics (created if absent, updated if present).
type CustomRole struct {
	ID          string   `mapstructure:"id" yaml:"id" validate:"required"`
	Title       string   `mapstructure:"title" yaml:"title" validate:"required"`
	Permissions []string `mapstructure:"permissions" yaml:"permissions" validate:"required,min=1"`
}

// RetryPolicy controls the propagation wait between IAM changes and
// verification: an initial delay followed by a bounded exponential-backoff
// poll.
type RetryPolicy struct {
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"required,min=1"`
	BaseDelay     time.Duration `mapstructure:"base_delay" yaml:"base_delay" validate:"required"`
	BackoffFactor float64       `mapstructure:"backoff_factor" yaml:"backoff_factor" validate:"required,gte=1"`
}

// Config is the full configuration for a deployment run.
type Config struct {
	ProjectID   string `mapstructure:"project_id" yaml:"project_id" validate:"required"`
	Region      string `mapstructure:"region" yaml:"region" validate:"required"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name" validate:"required"`

	// Image is the container artifact submitted to Cloud Run.
	Image string `mapstructure:"image" yaml:"image" validate:"required"`

	// AppName is the agent application name used in functional probes.
	AppName string `mapstructure:"app_name" yaml:"app_name" validate:"required"`

	// Resource profile for the deployed service.
	CPU            string `mapstructure:"cpu" yaml:"cpu" validate:"required"`
	Memory         string `mapstructure:"memory" yaml:"memory" validate:"required"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds" validate:"required,min=1"`
	MaxInstances   int    `mapstructure:"max_instances" yaml:"max_instances" validate:"required,min=1"`

	// Access provisioning inputs.
	RequiredAPIs    []string   `mapstructure:"required_apis" yaml:"required_apis" validate:"required,min=1"`
	PredefinedRoles []string   `mapstructure:"predefined_roles" yaml:"predefined_roles" validate:"required,min=1"`
	CustomRole      CustomRole `mapstructure:"custom_role" yaml:"custom_role"`

	// Retry is the propagation wait policy.
	Retry RetryPolicy `mapstructure:"retry" yaml:"retry"`

	// ProbeTimeout is the per-probe timeout during verification.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout" validate:"required"`

	// SourceDir is the local working directory holding the agent sources.
	SourceDir string `mapstructure:"source_dir" yaml:"source_dir"`
}

var validate = validator.New()

// Load loads the configuration using Viper.
// It reads ~/.chefctl/config.yaml when present; CHEFCTL_* environment
// variables take precedence over config file values.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := loadConfigFile(v); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CHEFCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("region", DefaultRegion)
	v.SetDefault("service_name", DefaultServiceName)
	v.SetDefault("app_name", DefaultAppName)
	v.SetDefault("cpu", DefaultCPU)
	v.SetDefault("memory", DefaultMemory)
	v.SetDefault("timeout_seconds", DefaultTimeoutSeconds)
	v.SetDefault("max_instances", DefaultMaxInstances)
	v.SetDefault("probe_timeout", DefaultProbeTimeout)
	v.SetDefault("source_dir", ".")

	v.SetDefault("required_apis", []string{
		"aiplatform.googleapis.com",
		"run.googleapis.com",
		"cloudbuild.googleapis.com",
		"iam.googleapis.com",
		"cloudresourcemanager.googleapis.com",
		"serviceusage.googleapis.com",
	})
	v.SetDefault("predefined_roles", []string{
		"roles/aiplatform.user",
		"roles/ml.developer",
		"roles/serviceusage.serviceUsageConsumer",
		"roles/logging.logWriter",
		"roles/storage.objectViewer",
	})
	v.SetDefault("custom_role.id", "vertexAgentInvoker")
	v.SetDefault("custom_role.title", "Vertex Agent Invoker")
	v.SetDefault("custom_role.permissions", []string{
		"aiplatform.endpoints.predict",
	})

	// IAM changes are eventually consistent; wait half a minute before the
	// first probe, then back off.
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_delay", 30*time.Second)
	v.SetDefault("retry.backoff_factor", 2.0)
}

func loadConfigFile(v *viper.Viper) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return viper.ConfigFileNotFoundError{}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(home, ".chefctl"))

	return v.ReadInConfig()
}

// bindEnvVars binds nested keys explicitly; AutomaticEnv alone does not
// pick up keys that only exist as defaults on some viper versions.
func bindEnvVars(v *viper.Viper) {
	keys := []string{
		"project_id", "region", "service_name", "image", "app_name",
		"cpu", "memory", "timeout_seconds", "max_instances",
		"probe_timeout", "source_dir",
		"custom_role.id", "custom_role.title",
		"retry.max_attempts", "retry.base_delay", "retry.backoff_factor",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}
