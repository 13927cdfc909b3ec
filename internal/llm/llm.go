// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm abstracts the language model APIs used by the research agent.
// A Generator turns a prompt into text; GenerateStructured decodes that text
// into a Go value for stages that request JSON output. Backends for Gemini,
// OpenAI-compatible services, and Claude are provided. The OpenAI backend
// uses the openai-go SDK; Gemini and Claude are thin REST clients.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/httputil"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Request is a single generation call.
type Request struct {
	// Model is the provider model identifier.
	Model string

	// Prompt is sent as the only user message.
	Prompt string

	// Temperature is the sampling temperature.
	Temperature float64

	// JSON asks the provider for a JSON object when it supports a JSON mode.
	JSON bool

	// Schema constrains the JSON object when the provider supports
	// schema-guided output. It implies JSON.
	Schema *Schema
}

// Response is the generated text.
type Response struct {
	Text string
}

// Generator produces text from a prompt. Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GenerateStructured requests JSON output conforming to the schema of out
// and decodes it into out. Output that is not an object, lacks a required
// key, or has a value of the wrong type is an error.
func GenerateStructured(ctx context.Context, g Generator, req Request, out any) error {
	req.JSON = true
	if req.Schema == nil {
		req.Schema = SchemaFor(out)
	}
	resp, err := g.Generate(ctx, req)
	if err != nil {
		return err
	}
	raw, err := extractObject(resp.Text)
	if err != nil {
		return fmt.Errorf("decoding structured output: %w", err)
	}
	if err := req.Schema.validate(raw); err != nil {
		return fmt.Errorf("decoding structured output: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding structured output: parsing model output: %w", err)
	}
	return nil
}

// DecodeJSON decodes the first JSON object in text into out. Markdown code
// fences and prose around the object are ignored.
func DecodeJSON(text string, out any) error {
	raw, err := extractObject(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing model output: %w", err)
	}
	return nil
}

func extractObject(text string) ([]byte, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in model output %q", truncate(text, 120))
	}
	return []byte(text[start : end+1]), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

const defaultUserAgent = "research-agent/0.1"

// New constructs the Generator selected by cfg.Provider.
func New(cfg types.AIConfig, logger *zap.Logger) (Generator, error) {
	switch cfg.Provider {
	case types.ProviderGemini, "":
		return NewGemini(cfg, logger), nil
	case types.ProviderOpenAI:
		return NewOpenAI(cfg, logger), nil
	case types.ProviderClaude:
		return NewClaude(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q: use gemini, openai, or claude", cfg.Provider)
	}
}

// client is the HTTP plumbing shared by the REST backends.
type client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	logger     *zap.Logger
}

func newClient(cfg types.AIConfig, logger *zap.Logger) client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return client{
		http:       &http.Client{Timeout: timeout},
		userAgent:  ua,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// postJSON sends body as JSON to url and decodes a 200 response into out.
func (c client) postJSON(ctx context.Context, provider, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.maxRetries, c.logger)
	if err != nil {
		return fmt.Errorf("calling %s API: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s API returned %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", provider, err)
	}
	return nil
}
