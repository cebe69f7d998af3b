// Package config loads specprobe configuration from an optional yaml
// file with environment overrides. The loaded value is threaded into
// constructors and never mutated afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the pipeline reads.
type Config struct {
	// Provider selects the upstream capability backend: anthropic,
	// gemini, or none.
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`

	TotalPrompts        int `yaml:"total_prompts"`
	Trials              int `yaml:"trials"`
	TrialParallelism    int `yaml:"trial_parallelism"`
	AgentTimeoutSeconds int `yaml:"agent_timeout_seconds"`

	// StorePath is the sqlite audit database. Empty disables persistence.
	StorePath string `yaml:"store_path"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Provider:            "none",
		TotalPrompts:        10,
		Trials:              5,
		TrialParallelism:    2,
		AgentTimeoutSeconds: 60,
	}
}

// Load reads path over the defaults, then applies environment
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString("SPECPROBE_PROVIDER", &cfg.Provider)
	setString("SPECPROBE_API_KEY", &cfg.APIKey)
	setString("SPECPROBE_MODEL", &cfg.Model)
	setString("SPECPROBE_STORE_PATH", &cfg.StorePath)
	setInt("SPECPROBE_TOTAL_PROMPTS", &cfg.TotalPrompts)
	setInt("SPECPROBE_TRIALS", &cfg.Trials)
	setInt("SPECPROBE_TRIAL_PARALLELISM", &cfg.TrialParallelism)
	setInt("SPECPROBE_AGENT_TIMEOUT_SECONDS", &cfg.AgentTimeoutSeconds)
}

func (c Config) validate() error {
	switch c.Provider {
	case "anthropic", "gemini", "none", "":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.TotalPrompts < 0 {
		return fmt.Errorf("total_prompts must not be negative")
	}
	if c.Trials < 0 {
		return fmt.Errorf("trials must not be negative")
	}
	return nil
}
