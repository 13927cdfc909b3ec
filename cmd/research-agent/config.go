// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pdiddy/research-agent/internal/archive"
	"github.com/pdiddy/research-agent/internal/llm"
	"github.com/pdiddy/research-agent/internal/research"
	"github.com/pdiddy/research-agent/internal/secrets"
	"github.com/pdiddy/research-agent/internal/websearch"
	"github.com/pdiddy/research-agent/pkg/types"
)

// providerSecrets names the secret that authenticates each model provider.
var providerSecrets = map[types.ModelProvider]string{
	types.ProviderGemini: secrets.GeminiAPIKey,
	types.ProviderOpenAI: secrets.OpenAIAPIKey,
	types.ProviderClaude: secrets.AnthropicAPIKey,
}

func aiConfig() (types.AIConfig, error) {
	var cfg types.AIConfig
	if err := viper.UnmarshalKey("ai", &cfg); err != nil {
		return cfg, fmt.Errorf("reading ai config: %w", err)
	}
	if cfg.Provider == "" {
		cfg.Provider = types.ProviderGemini
	}
	cfg.APIKey = secretDefault(providerSecrets[cfg.Provider], cfg.APIKey)
	if cfg.UserAgent == "" {
		cfg.UserAgent = "research-agent/" + version
	}
	return cfg, nil
}

func searchConfig() (types.SearchConfig, error) {
	var cfg types.SearchConfig
	if err := viper.UnmarshalKey("search", &cfg); err != nil {
		return cfg, fmt.Errorf("reading search config: %w", err)
	}
	switch cfg.Backend {
	case types.SearchTavily:
		cfg.APIKey = secretDefault(secrets.TavilyAPIKey, cfg.APIKey)
	case types.SearchGemini, "":
		cfg.APIKey = secretDefault(secrets.GeminiAPIKey, cfg.APIKey)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "research-agent/" + version
	}
	return cfg, nil
}

func archiveConfig() (types.ArchiveConfig, error) {
	var cfg types.ArchiveConfig
	if err := viper.UnmarshalKey("archive", &cfg); err != nil {
		return cfg, fmt.Errorf("reading archive config: %w", err)
	}
	return cfg, nil
}

func serverConfig() (types.ServerConfig, error) {
	cfg := types.ServerConfig{Addr: ":8123", FrontendDir: "frontend/dist"}
	if err := viper.UnmarshalKey("server", &cfg); err != nil {
		return cfg, fmt.Errorf("reading server config: %w", err)
	}
	return cfg, nil
}

// newAgent builds the agent from the config file, environment and secrets.
// The research section of the config file is the run configuration.
func newAgent() (*research.Agent, error) {
	ai, err := aiConfig()
	if err != nil {
		return nil, err
	}
	scfg, err := searchConfig()
	if err != nil {
		return nil, err
	}

	generator, err := llm.New(ai, logger)
	if err != nil {
		return nil, err
	}
	searcher, err := websearch.New(scfg, ai, logger)
	if err != nil {
		return nil, err
	}
	rcfg, err := research.ResolveConfiguration(viper.GetStringMap("research"))
	if err != nil {
		return nil, err
	}
	return research.New(generator, searcher, rcfg, research.WithLogger(logger))
}

func openArchive() (*archive.Store, error) {
	cfg, err := archiveConfig()
	if err != nil {
		return nil, err
	}
	return archive.Open(cfg)
}
