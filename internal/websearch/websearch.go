// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package websearch runs grounded web searches. A Searcher returns text
// together with the grounding chunks (source URLs and titles) and supports
// (byte ranges of the text backed by chunks) that the citation package
// turns into short URLs and inline markers.
package websearch

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-agent/internal/llm"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Request is one search call.
type Request struct {
	// Query is the search query text.
	Query string

	// Prompt is the rendered web-searcher instruction. Model-backed
	// searchers send it; snippet backends use Query.
	Prompt string

	// Model is the model used by model-backed searchers.
	Model string
}

// Searcher performs a grounded search. Implementations must be safe for
// concurrent use; one search wave calls Search from several goroutines.
type Searcher interface {
	Search(ctx context.Context, req Request) (types.GroundedResponse, error)
}

// groundedGenerator is the part of llm.GeminiBackend used for search.
type groundedGenerator interface {
	GenerateGrounded(ctx context.Context, model, prompt string) (types.GroundedResponse, error)
}

// GeminiSearcher searches through the Gemini google_search tool.
type GeminiSearcher struct {
	backend groundedGenerator
}

// NewGeminiSearcher wraps a Gemini backend.
func NewGeminiSearcher(backend *llm.GeminiBackend) *GeminiSearcher {
	return &GeminiSearcher{backend: backend}
}

// Search implements Searcher.
func (g *GeminiSearcher) Search(ctx context.Context, req Request) (types.GroundedResponse, error) {
	return g.backend.GenerateGrounded(ctx, req.Model, req.Prompt)
}

// RateLimited shares a token bucket across every call to the wrapped
// Searcher. Search blocks until a token is available or ctx is done.
type RateLimited struct {
	next    Searcher
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter of rps requests per second.
// A burst below one is raised to one.
func NewRateLimited(next Searcher, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Search implements Searcher.
func (r *RateLimited) Search(ctx context.Context, req Request) (types.GroundedResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return types.GroundedResponse{}, fmt.Errorf("waiting for search rate limit: %w", err)
	}
	return r.next.Search(ctx, req)
}

// New constructs the Searcher selected by cfg.Backend. The gemini backend
// uses ai for its endpoint and falls back to the model API key when
// cfg.APIKey is empty. A positive RequestsPerSecond adds a RateLimited
// wrapper.
func New(cfg types.SearchConfig, ai types.AIConfig, logger *zap.Logger) (Searcher, error) {
	var s Searcher
	switch cfg.Backend {
	case types.SearchGemini, "":
		gcfg := ai
		gcfg.Provider = types.ProviderGemini
		if cfg.APIKey != "" {
			gcfg.APIKey = cfg.APIKey
		}
		if ai.Provider != types.ProviderGemini && ai.Provider != "" {
			gcfg.BaseURL = ""
		}
		if cfg.Timeout > 0 {
			gcfg.Timeout = cfg.Timeout
		}
		if gcfg.APIKey == "" {
			return nil, fmt.Errorf("gemini search requires an API key (set GEMINI_API_KEY or .secrets/gemini-api-key)")
		}
		s = NewGeminiSearcher(llm.NewGemini(gcfg, logger))
	case types.SearchTavily:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("tavily search requires an API key (set TAVILY_API_KEY or .secrets/tavily-api-key)")
		}
		s = NewTavily(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown search backend %q: use gemini or tavily", cfg.Backend)
	}

	if cfg.RequestsPerSecond > 0 {
		s = NewRateLimited(s, cfg.RequestsPerSecond, cfg.Burst)
	}
	return s, nil
}
