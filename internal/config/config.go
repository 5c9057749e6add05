// Package config handles configuration loading and management for orch.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for orch.
type Config struct {
	Registry  RegistryConfig  `mapstructure:"registry"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// RegistryConfig holds agent discovery settings.
type RegistryConfig struct {
	// Path is the manifest directory containing agent descriptor files.
	Path string `mapstructure:"path"`
	// MinTeamFraction is the minimum fraction of the discovered set a
	// whole-team candidate list must cover.
	MinTeamFraction float64 `mapstructure:"min_team_fraction"`
}

// PlannerConfig holds invocation planning settings.
type PlannerConfig struct {
	// ConfirmationThreshold is the agent count above which a plan
	// requires explicit confirmation before execution.
	ConfirmationThreshold int `mapstructure:"confirmation_threshold"`
	// PerAgentTime is the estimated time per agent invocation.
	PerAgentTime time.Duration `mapstructure:"per_agent_time"`
	// PerAgentCost is the estimated cost per agent invocation.
	PerAgentCost float64 `mapstructure:"per_agent_cost"`
}

// SchedulerConfig holds dispatcher settings.
type SchedulerConfig struct {
	// MaxConcurrency bounds how many units run at once within a stage.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// MaxRetries is the number of retries after a unit's first failure.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryBackoff is the base backoff between retries; it doubles per attempt.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// UnitTimeout bounds a single unit invocation.
	UnitTimeout time.Duration `mapstructure:"unit_timeout"`
	// FailFast cancels not-yet-started units once any unit is
	// terminally failed. When false, independent units continue and the
	// plan is marked partial.
	FailFast bool `mapstructure:"fail_fast"`
}

// ConsensusConfig holds consensus engine settings.
type ConsensusConfig struct {
	// Quorum is the minimum approval fraction among responders.
	Quorum float64 `mapstructure:"quorum"`
	// MinParticipation is the minimum response fraction among invited
	// participants for a decisive outcome.
	MinParticipation float64 `mapstructure:"min_participation"`
	// VoteTimeout bounds how long a vote round waits for responses.
	VoteTimeout time.Duration `mapstructure:"vote_timeout"`
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	// Path is the SQLite database file for the audit log. Empty means
	// the default project-local path.
	Path string `mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings for the production invoker.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ORCH_*, ANTHROPIC_API_KEY)
// 2. Project config (.orch.yaml in current directory or parent)
// 3. User config (~/.config/orch/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Project config takes precedence over the user config.
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("ORCH")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("registry.path", "ORCH_REGISTRY_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("registry.path", "team")
	v.SetDefault("registry.min_team_fraction", 0.9)

	v.SetDefault("planner.confirmation_threshold", 10)
	v.SetDefault("planner.per_agent_time", "30s")
	v.SetDefault("planner.per_agent_cost", 0.10)

	v.SetDefault("scheduler.max_concurrency", 4)
	v.SetDefault("scheduler.max_retries", 2)
	v.SetDefault("scheduler.retry_backoff", "1s")
	v.SetDefault("scheduler.unit_timeout", "5m")
	v.SetDefault("scheduler.fail_fast", false)

	v.SetDefault("consensus.quorum", 0.7)
	v.SetDefault("consensus.min_participation", 0.8)
	v.SetDefault("consensus.vote_timeout", "2m")

	v.SetDefault("audit.path", "")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
}

// getUserConfigDir returns the XDG config directory for orch.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "orch")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "orch")
	}
	return filepath.Join(home, ".config", "orch")
}

// findProjectConfig searches for .orch.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".orch.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			Path:            "team",
			MinTeamFraction: 0.9,
		},
		Planner: PlannerConfig{
			ConfirmationThreshold: 10,
			PerAgentTime:          30 * time.Second,
			PerAgentCost:          0.10,
		},
		Scheduler: SchedulerConfig{
			MaxConcurrency: 4,
			MaxRetries:     2,
			RetryBackoff:   time.Second,
			UnitTimeout:    5 * time.Minute,
			FailFast:       false,
		},
		Consensus: ConsensusConfig{
			Quorum:           0.7,
			MinParticipation: 0.8,
			VoteTimeout:      2 * time.Minute,
		},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
	}
}
