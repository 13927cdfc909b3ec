// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const claudeMaxTokens = 4096

// ClaudeBackend calls the Claude Messages API. Claude has no JSON mode; the
// stage prompts ask for a JSON object, a request Schema is appended to the
// prompt, and GenerateStructured extracts the object.
type ClaudeBackend struct {
	APIKey  string
	BaseURL string
	client
}

// NewClaude returns a Claude backend configured from cfg.
func NewClaude(cfg types.AIConfig, logger *zap.Logger) *ClaudeBackend {
	return &ClaudeBackend{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		client:  newClient(cfg, logger),
	}
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Generate implements Generator.
func (c *ClaudeBackend) Generate(ctx context.Context, req Request) (Response, error) {
	temp := req.Temperature
	if temp > 1 {
		temp = 1
	}
	prompt := req.Prompt
	if req.Schema != nil {
		if def, err := json.Marshal(req.Schema.Definition); err == nil {
			prompt += "\n\nRespond with a single JSON object matching this JSON schema:\n" + string(def)
		}
	}
	body := claudeRequest{
		Model:       req.Model,
		MaxTokens:   claudeMaxTokens,
		Temperature: temp,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	}

	url := c.BaseURL
	if url == "" {
		url = claudeAPIURL
	}
	headers := map[string]string{
		"x-api-key":         c.APIKey,
		"anthropic-version": "2023-06-01",
	}

	var resp claudeResponse
	if err := c.postJSON(ctx, "Claude", url, headers, body, &resp); err != nil {
		return Response{}, err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return Response{}, fmt.Errorf("no text content in Claude API response")
	}
	return Response{Text: b.String()}, nil
}
