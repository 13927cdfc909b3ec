// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/pkg/types"
)

// geminiAPIBase is the Generative Language API root. Declared as a var so
// tests can substitute an httptest server.
var geminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiBackend calls the Gemini generateContent endpoint. Besides plain
// generation it runs grounded searches through the google_search tool.
type GeminiBackend struct {
	APIKey  string
	BaseURL string
	client
}

// NewGemini returns a Gemini backend configured from cfg.
func NewGemini(cfg types.AIConfig, logger *zap.Logger) *GeminiBackend {
	return &GeminiBackend{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		client:  newClient(cfg, logger),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   any     `json:"responseSchema,omitempty"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	Tools            []geminiTool           `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content           geminiContent            `json:"content"`
	FinishReason      string                   `json:"finishReason"`
	GroundingMetadata *geminiGroundingMetadata `json:"groundingMetadata"`
}

type geminiGroundingMetadata struct {
	GroundingChunks []struct {
		Web *struct {
			URI   string `json:"uri"`
			Title string `json:"title"`
		} `json:"web"`
	} `json:"groundingChunks"`
	GroundingSupports []struct {
		Segment *struct {
			StartIndex int `json:"startIndex"`
			EndIndex   int `json:"endIndex"`
		} `json:"segment"`
		GroundingChunkIndices []int `json:"groundingChunkIndices"`
	} `json:"groundingSupports"`
}

func (g *GeminiBackend) call(ctx context.Context, model string, body geminiRequest) (geminiCandidate, error) {
	if strings.TrimSpace(model) == "" {
		return geminiCandidate{}, fmt.Errorf("gemini: model is required")
	}
	base := g.BaseURL
	if base == "" {
		base = geminiAPIBase
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(base, "/"), model)

	var resp geminiResponse
	if err := g.postJSON(ctx, "Gemini", url, map[string]string{"x-goog-api-key": g.APIKey}, body, &resp); err != nil {
		return geminiCandidate{}, err
	}
	if len(resp.Candidates) == 0 {
		return geminiCandidate{}, fmt.Errorf("Gemini API returned no candidates")
	}
	return resp.Candidates[0], nil
}

func candidateText(c geminiCandidate) string {
	var b strings.Builder
	for _, p := range c.Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Generate implements Generator.
func (g *GeminiBackend) Generate(ctx context.Context, req Request) (Response, error) {
	body := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{Temperature: req.Temperature},
	}
	if req.JSON || req.Schema != nil {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}
	if req.Schema != nil {
		body.GenerationConfig.ResponseSchema = geminiSchema(req.Schema.jsonMap())
	}

	cand, err := g.call(ctx, req.Model, body)
	if err != nil {
		return Response{}, err
	}
	text := candidateText(cand)
	if text == "" {
		return Response{}, fmt.Errorf("Gemini API returned empty content (finish reason %q)", cand.FinishReason)
	}
	return Response{Text: text}, nil
}

// GenerateGrounded runs prompt with the google_search tool enabled at
// temperature 0 and returns the text with its grounding metadata.
// Chunks without web metadata are kept with an empty URL so chunk
// indices in the supports stay aligned.
func (g *GeminiBackend) GenerateGrounded(ctx context.Context, model, prompt string) (types.GroundedResponse, error) {
	body := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{Temperature: 0},
		Tools:            []geminiTool{{GoogleSearch: &struct{}{}}},
	}

	cand, err := g.call(ctx, model, body)
	if err != nil {
		return types.GroundedResponse{}, err
	}

	out := types.GroundedResponse{Text: candidateText(cand)}
	if md := cand.GroundingMetadata; md != nil {
		for _, ch := range md.GroundingChunks {
			var gc types.GroundingChunk
			if ch.Web != nil {
				gc = types.GroundingChunk{URL: ch.Web.URI, Title: ch.Web.Title}
			}
			out.Chunks = append(out.Chunks, gc)
		}
		for _, s := range md.GroundingSupports {
			if s.Segment == nil {
				continue
			}
			out.Supports = append(out.Supports, types.GroundingSupport{
				StartIndex:   s.Segment.StartIndex,
				EndIndex:     s.Segment.EndIndex,
				ChunkIndices: s.GroundingChunkIndices,
			})
		}
	}
	return out, nil
}
