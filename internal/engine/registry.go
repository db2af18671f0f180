package engine

import (
	"context"

	"github.com/citewatch-agent/internal/config"
	"github.com/citewatch-agent/internal/storage"
	"github.com/citewatch-agent/pkg/logger"
	"github.com/citewatch-agent/pkg/ratelimit"
)

// NewRegistryFromConfig constructs clients for every provider with an API key
// configured. A provider whose key is missing is skipped with a warning;
// its engine is disabled for this process while the others keep working.
func NewRegistryFromConfig(ctx context.Context, cfg config.ProvidersConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Registry {
	registry := NewRegistry()

	if chatgpt, err := NewChatGPTClient(cfg.OpenAI, limiter, log); err != nil {
		log.Warn().Err(err).Msg("ChatGPT engine disabled")
	} else {
		registry.Register(chatgpt)
	}

	if perplexity, err := NewPerplexityClient(cfg.Perplexity, limiter, log); err != nil {
		log.Warn().Err(err).Msg("Perplexity engine disabled")
	} else {
		registry.Register(perplexity)
	}

	if gemini, err := NewGeminiClient(ctx, cfg.Gemini, limiter, log); err != nil {
		log.Warn().Err(err).Msg("Gemini engine disabled")
	} else {
		registry.Register(gemini)
	}

	log.Info().Strs("engines", registry.Names()).Msg("Engine registry initialized")
	return registry
}

// NewAdapters builds one adapter per registered engine client
func NewAdapters(registry *Registry, repo storage.Repository, log *logger.Logger) map[string]*Adapter {
	adapters := make(map[string]*Adapter)
	for _, name := range registry.Names() {
		client, _ := registry.Get(name)
		adapters[name] = NewAdapter(client, repo, log)
	}
	return adapters
}
