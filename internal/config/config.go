package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/michaelbrown/concierge/internal/agent"
	"github.com/michaelbrown/concierge/internal/tools"
)

// DefaultModel is used when a provider names no default model.
const DefaultModel = "gpt-4-1106-preview"

type ProviderConfig struct {
	BaseURL string            `mapstructure:"base_url"`
	APIKey  string            `mapstructure:"api_key"`
	Models  map[string]string `mapstructure:"models"`
}

type AgentConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	Temperature   float64       `mapstructure:"temperature"`
	Strict        bool          `mapstructure:"strict"`
	StreamTimeout time.Duration `mapstructure:"stream_timeout"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout"`
	SystemPrompt  string        `mapstructure:"system_prompt"`
	ProfilesDir   string        `mapstructure:"profiles_dir"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type Config struct {
	Providers       map[string]ProviderConfig         `mapstructure:"providers"`
	DefaultProvider string                            `mapstructure:"default_provider"`
	Agent           AgentConfig                       `mapstructure:"agent"`
	Server          ServerConfig                      `mapstructure:"server"`
	Storage         StorageConfig                     `mapstructure:"storage"`
	BuiltinTools    []string                          `mapstructure:"builtin_tools"`
	Tools           map[string]tools.ToolServerConfig `mapstructure:"tools"`
}

// Load reads concierge.yaml from the working directory or ~/.concierge.
// A missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(".", filepath.Join(os.Getenv("HOME"), ".concierge"))
}

// LoadFrom reads concierge.yaml from the first of dirs that has one.
func LoadFrom(dirs ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("concierge")
	v.SetConfigType("yaml")
	for _, d := range dirs {
		v.AddConfigPath(d)
	}

	v.SetDefault("default_provider", "openai")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("providers.openai.models.default", DefaultModel)
	v.SetDefault("agent.max_iterations", agent.DefaultMaxIterations)
	v.SetDefault("agent.temperature", 0.0)
	v.SetDefault("agent.strict", false)
	v.SetDefault("agent.profiles_dir", filepath.Join(os.Getenv("HOME"), ".concierge", "profiles"))
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".concierge", "concierge.db"))
	v.SetDefault("builtin_tools", []string{
		"get_current_weather",
		"get_taxi_booking_information",
		"get_user_information",
	})

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for name, p := range cfg.Providers {
		p.APIKey = expandEnv(p.APIKey)
		cfg.Providers[name] = p
	}

	return &cfg, nil
}

// expandEnv resolves a value of the form ${VAR}; other values pass through.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}

// IsOllama returns true if this provider looks like an Ollama instance.
func (p ProviderConfig) IsOllama() bool {
	return strings.Contains(p.BaseURL, ":11434") || strings.Contains(strings.ToLower(p.BaseURL), "ollama")
}

// Model resolves a model alias through the provider's models map. An empty
// name selects the "default" alias, then DefaultModel.
func (p ProviderConfig) Model(name string) string {
	if name == "" {
		name = "default"
	}
	if m, ok := p.Models[name]; ok {
		return m
	}
	if name == "default" {
		return DefaultModel
	}
	return name
}

// Provider returns the config for a named provider, falling back to the default.
func (c *Config) Provider(name string) (ProviderConfig, error) {
	if name == "" {
		name = c.DefaultProvider
	}
	p, ok := c.Providers[name]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}

// Profile loads the named agent profile from the profiles directory. An empty
// name yields a nil profile.
func (c *Config) Profile(name string) (*agent.Profile, error) {
	if name == "" {
		return nil, nil
	}
	p, err := agent.LoadProfile(filepath.Join(c.Agent.ProfilesDir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return p, nil
}

// Selection is the provider and model a conversation runs with.
type Selection struct {
	ProviderName string
	Provider     ProviderConfig
	Model        string
}

// Select resolves the provider and model. Explicit names win over the
// profile's, which win over the configured defaults.
func (c *Config) Select(providerName, model string, profile *agent.Profile) (Selection, error) {
	if profile != nil {
		if providerName == "" {
			providerName = profile.Provider
		}
		if model == "" {
			model = profile.Model
		}
	}
	if providerName == "" {
		providerName = c.DefaultProvider
	}
	p, err := c.Provider(providerName)
	if err != nil {
		return Selection{}, err
	}
	return Selection{ProviderName: providerName, Provider: p, Model: p.Model(model)}, nil
}

// LoopOptions converts the agent section into conversation loop options.
func (c *Config) LoopOptions() agent.Options {
	return agent.Options{
		MaxIterations: c.Agent.MaxIterations,
		Temperature:   c.Agent.Temperature,
		StreamTimeout: c.Agent.StreamTimeout,
		ToolTimeout:   c.Agent.ToolTimeout,
		Strict:        c.Agent.Strict,
	}
}
