// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/pkg/types"
)

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint. Any
// compatible service (DashScope, vLLM, Ollama) is selected with
// AIConfig.BaseURL.
type OpenAIBackend struct {
	client openai.Client
	logger *zap.Logger
}

// NewOpenAI returns an OpenAI-compatible backend configured from cfg.
func NewOpenAI(cfg types.AIConfig, logger *zap.Logger) *OpenAIBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithHeader("User-Agent", ua),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &OpenAIBackend{
		client: openai.NewClient(opts...),
		logger: logger,
	}
}

// Generate implements Generator. A request with a Schema uses the
// json_schema response format in strict mode; JSON alone uses json_object.
func (o *OpenAIBackend) Generate(ctx context.Context, req Request) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
		Temperature: openai.Float(req.Temperature),
	}
	switch {
	case req.Schema != nil:
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.Schema.Name,
					Schema: req.Schema.jsonMap(),
					Strict: openai.Bool(true),
				},
			},
		}
	case req.JSON:
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Response{}, fmt.Errorf("OpenAI API returned %d: %w", apiErr.StatusCode, err)
		}
		return Response{}, fmt.Errorf("calling OpenAI API: %w", err)
	}
	o.logger.Debug("chat completion",
		zap.String("model", req.Model),
		zap.Duration("elapsed", time.Since(start)))

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return Response{}, fmt.Errorf("OpenAI API returned empty content")
	}
	return Response{Text: completion.Choices[0].Message.Content}, nil
}
