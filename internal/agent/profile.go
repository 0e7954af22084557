package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile defines an agent's personality and capabilities.
type Profile struct {
	Name         string   `yaml:"name"`
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	SystemPrompt string   `yaml:"system_prompt"`
	Tools        []string `yaml:"tools"`
	MaxIter      int      `yaml:"max_iterations"`
	Temperature  *float64 `yaml:"temperature"`
	Strict       *bool    `yaml:"strict"`
}

// LoadProfile reads an agent profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}

	return &p, nil
}

// Apply overlays the profile's settings onto loop options.
func (p *Profile) Apply(opts Options) Options {
	if p == nil {
		return opts
	}
	if p.MaxIter > 0 {
		opts.MaxIterations = p.MaxIter
	}
	if p.Temperature != nil {
		opts.Temperature = *p.Temperature
	}
	if p.Strict != nil {
		opts.Strict = *p.Strict
	}
	return opts
}
