// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

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

// tavilyAPIURL is the Tavily search endpoint. Package-level var for test substitution.
var tavilyAPIURL = "https://api.tavily.com/search"

const defaultTavilyResults = 5

// Tavily searches with the Tavily API. The returned text is the result
// snippets joined into one document; each snippet is a support backed by
// the chunk for its result, so snippets cite like model-grounded text.
type Tavily struct {
	APIKey     string
	MaxResults int
	client     *http.Client
	userAgent  string
	logger     *zap.Logger
}

// NewTavily returns a Tavily searcher configured from cfg.
func NewTavily(cfg types.SearchConfig, logger *zap.Logger) *Tavily {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	n := cfg.MaxResults
	if n <= 0 {
		n = defaultTavilyResults
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "research-agent/0.1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tavily{
		APIKey:     cfg.APIKey,
		MaxResults: n,
		client:     &http.Client{Timeout: timeout},
		userAgent:  ua,
		logger:     logger,
	}
}

type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search implements Searcher.
func (t *Tavily) Search(ctx context.Context, req Request) (types.GroundedResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return types.GroundedResponse{}, fmt.Errorf("tavily: query is empty")
	}
	payload, err := json.Marshal(tavilyRequest{Query: req.Query, SearchDepth: "basic", MaxResults: t.MaxResults})
	if err != nil {
		return types.GroundedResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIURL, bytes.NewReader(payload))
	if err != nil {
		return types.GroundedResponse{}, fmt.Errorf("creating tavily request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.APIKey)
	httpReq.Header.Set("User-Agent", t.userAgent)

	resp, err := httputil.DoWithRetry(ctx, t.client, httpReq, 0, t.logger)
	if err != nil {
		return types.GroundedResponse{}, fmt.Errorf("calling tavily: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return types.GroundedResponse{}, fmt.Errorf("tavily returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return types.GroundedResponse{}, fmt.Errorf("decoding tavily response: %w", err)
	}
	return stitch(tr, t.MaxResults), nil
}

// stitch joins snippets into one text, recording each snippet's byte range
// as a support for its chunk.
func stitch(tr tavilyResponse, max int) types.GroundedResponse {
	var (
		b   strings.Builder
		out types.GroundedResponse
	)
	for _, r := range tr.Results {
		if len(out.Chunks) >= max {
			break
		}
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		start := b.Len()
		b.WriteString(content)
		out.Supports = append(out.Supports, types.GroundingSupport{
			StartIndex:   start,
			EndIndex:     b.Len(),
			ChunkIndices: []int{len(out.Chunks)},
		})
		out.Chunks = append(out.Chunks, types.GroundingChunk{URL: r.URL, Title: r.Title})
	}
	out.Text = b.String()
	return out
}
