package main

import (
	"log/slog"

	"github.com/michaelbrown/concierge/internal/agent"
	"github.com/michaelbrown/concierge/internal/config"
	"github.com/michaelbrown/concierge/internal/tools"
	"github.com/michaelbrown/concierge/internal/tools/builtin"
)

// buildRegistry registers the enabled built-in tools and every configured
// MCP tool server, then seals the registry.
func buildRegistry(cfg *config.Config) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	if err := builtin.Register(registry, cfg.BuiltinTools); err != nil {
		registry.Close()
		return nil, err
	}

	for name, toolCfg := range cfg.Tools {
		if err := registry.RegisterServer(name, toolCfg); err != nil {
			slog.Warn("failed to start tool server", "server", name, "error", err)
		}
	}

	registry.Seal()
	return registry, nil
}

// selection is the provider, model and profile a chat runs with.
type selection struct {
	providerName string
	provider     config.ProviderConfig
	model        string
	profile      *agent.Profile
}

// resolveSelection applies flags over the profile over the config.
func resolveSelection(cfg *config.Config, providerName, model, profileName string) (*selection, error) {
	profile, err := cfg.Profile(profileName)
	if err != nil {
		return nil, err
	}
	picked, err := cfg.Select(providerName, model, profile)
	if err != nil {
		return nil, err
	}
	return &selection{
		providerName: picked.ProviderName,
		provider:     picked.Provider,
		model:        picked.Model,
		profile:      profile,
	}, nil
}
