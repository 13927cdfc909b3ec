// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/pkg/types"
)

// --- helpers ---

type fakeGenerator struct {
	text string
	err  error
	got  Request
}

func (f *fakeGenerator) Generate(_ context.Context, req Request) (Response, error) {
	f.got = req
	return Response{Text: f.text}, f.err
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(v))
}

// --- DecodeJSON / GenerateStructured ---

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    types.QueryBatch
		wantErr bool
	}{
		{
			name: "bare object",
			text: `{"query": ["a", "b"], "rationale": "why"}`,
			want: types.QueryBatch{Queries: []string{"a", "b"}, Rationale: "why"},
		},
		{
			name: "fenced object",
			text: "```json\n{\"query\": [\"a\"], \"rationale\": \"r\"}\n```",
			want: types.QueryBatch{Queries: []string{"a"}, Rationale: "r"},
		},
		{
			name: "prose around object",
			text: "Here you go: {\"query\": [], \"rationale\": \"\"} hope it helps",
			want: types.QueryBatch{Queries: []string{}},
		},
		{name: "no object", text: "I cannot help", wantErr: true},
		{name: "malformed", text: `{"query": [}`, wantErr: true},
		{name: "wrong type", text: `{"query": "single"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got types.QueryBatch
			err := DecodeJSON(tt.text, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateStructuredSetsJSONMode(t *testing.T) {
	g := &fakeGenerator{text: `{"is_sufficient": true, "knowledge_gap": "", "follow_up_queries": []}`}

	var r types.Reflection
	err := GenerateStructured(context.Background(), g, Request{Model: "m", Prompt: "p"}, &r)
	require.NoError(t, err)
	assert.True(t, g.got.JSON)
	require.NotNil(t, g.got.Schema)
	assert.Equal(t, "reflection", g.got.Schema.Name)
	assert.True(t, r.IsSufficient)
}

func TestGenerateStructuredEnforcesSchema(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		out     any
		wantErr string
	}{
		{"reflection empty object", `{}`, &types.Reflection{}, "missing is_sufficient, knowledge_gap, follow_up_queries"},
		{"reflection wrong keys", `{"verdict":"done","notes":[1,2]}`, &types.Reflection{}, "does not match schema reflection"},
		{"reflection null key", `{"is_sufficient":true,"knowledge_gap":null,"follow_up_queries":[]}`, &types.Reflection{}, "missing knowledge_gap"},
		{"reflection wrong type", `{"is_sufficient":"yes","knowledge_gap":"","follow_up_queries":[]}`, &types.Reflection{}, "parsing model output"},
		{"query batch missing rationale", `{"query":["a"]}`, &types.QueryBatch{}, "missing rationale"},
		{"query batch string query", `{"query":"single","rationale":"r"}`, &types.QueryBatch{}, "parsing model output"},
		{"truncated object", `{"query":["a"],"rationale":"r"`, &types.QueryBatch{}, "no JSON object"},
		{"valid query batch", "```json\n{\"query\":[\"a\",\"b\"],\"rationale\":\"r\"}\n```", &types.QueryBatch{}, ""},
		{"valid reflection", `{"is_sufficient":false,"knowledge_gap":"gap","follow_up_queries":["q"]}`, &types.Reflection{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GenerateStructured(context.Background(), &fakeGenerator{text: tt.text}, Request{Model: "m"}, tt.out)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "decoding structured output")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchemaFor(t *testing.T) {
	tests := []struct {
		name         string
		v            any
		wantName     string
		wantRequired []string
	}{
		{"query batch", &types.QueryBatch{}, "query_batch", []string{"query", "rationale"}},
		{"reflection", types.Reflection{}, "reflection", []string{"is_sufficient", "knowledge_gap", "follow_up_queries"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SchemaFor(tt.v)
			assert.Equal(t, tt.wantName, s.Name)
			assert.ElementsMatch(t, tt.wantRequired, s.Definition.Required)
			assert.Empty(t, s.Definition.Version)
			assert.Same(t, s, SchemaFor(tt.v))
		})
	}
}

func TestGeminiSchema(t *testing.T) {
	got := geminiSchema(SchemaFor(&types.QueryBatch{}).jsonMap())

	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "OBJECT", m["type"])
	assert.NotContains(t, m, "additionalProperties")
	assert.ElementsMatch(t, []any{"query", "rationale"}, m["required"])

	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	query, ok := props["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ARRAY", query["type"])
	assert.Equal(t, map[string]any{"type": "STRING"}, query["items"])
	assert.Equal(t, map[string]any{"type": "STRING"}, props["rationale"])
}

func TestGenerateStructuredPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	var r types.Reflection
	err := GenerateStructured(context.Background(), &fakeGenerator{err: boom}, Request{}, &r)
	assert.ErrorIs(t, err, boom)

	err = GenerateStructured(context.Background(), &fakeGenerator{text: "nope"}, Request{}, &r)
	assert.ErrorContains(t, err, "decoding structured output")
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider types.ModelProvider
		wantType any
		wantErr  bool
	}{
		{"", &GeminiBackend{}, false},
		{types.ProviderGemini, &GeminiBackend{}, false},
		{types.ProviderOpenAI, &OpenAIBackend{}, false},
		{types.ProviderClaude, &ClaudeBackend{}, false},
		{"mystery", nil, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			g, err := New(types.AIConfig{Provider: tt.provider}, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, g)
		})
	}
}

// --- Gemini ---

func TestGeminiGenerate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("x-goog-api-key"))

		var body geminiRequest
		decodeBody(t, r, &body)
		assert.Equal(t, "application/json", body.GenerationConfig.ResponseMimeType)
		assert.Equal(t, 1.0, body.GenerationConfig.Temperature)
		assert.Empty(t, body.Tools)
		assert.Equal(t, "hello", body.Contents[0].Parts[0].Text)

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"a\":"},{"text":"1}"}]}}]}`))
	}))
	defer ts.Close()

	g := NewGemini(types.AIConfig{APIKey: "key-123", BaseURL: ts.URL}, nil)
	resp, err := g.Generate(context.Background(), Request{Model: "gemini-test", Prompt: "hello", Temperature: 1, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Text)
}

func TestGeminiGenerateWithSchema(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		decodeBody(t, r, &body)
		cfg, ok := body["generationConfig"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "application/json", cfg["responseMimeType"])
		schema, ok := cfg["responseSchema"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "OBJECT", schema["type"])
		assert.ElementsMatch(t, []any{"is_sufficient", "knowledge_gap", "follow_up_queries"}, schema["required"])

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`))
	}))
	defer ts.Close()

	g := NewGemini(types.AIConfig{BaseURL: ts.URL}, nil)
	_, err := g.Generate(context.Background(), Request{Model: "m", Prompt: "p", Schema: SchemaFor(&types.Reflection{})})
	require.NoError(t, err)
}

func TestGeminiGenerateGrounded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		decodeBody(t, r, &body)
		assert.Contains(t, body, "tools")

		w.Write([]byte(`{"candidates":[{
			"content":{"parts":[{"text":"Go was released in 2009."}]},
			"groundingMetadata":{
				"groundingChunks":[
					{"web":{"uri":"https://go.dev/doc","title":"go.dev"}},
					{"retrievedContext":{}}
				],
				"groundingSupports":[
					{"segment":{"endIndex":24,"text":"Go was released in 2009."},"groundingChunkIndices":[0,1]},
					{"groundingChunkIndices":[0]}
				]
			}
		}]}`))
	}))
	defer ts.Close()

	g := NewGemini(types.AIConfig{BaseURL: ts.URL}, nil)
	got, err := g.GenerateGrounded(context.Background(), "gemini-test", "prompt")
	require.NoError(t, err)

	assert.Equal(t, "Go was released in 2009.", got.Text)
	assert.Equal(t, []types.GroundingChunk{{URL: "https://go.dev/doc", Title: "go.dev"}, {}}, got.Chunks)
	assert.Equal(t, []types.GroundingSupport{{StartIndex: 0, EndIndex: 24, ChunkIndices: []int{0, 1}}}, got.Supports)
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		errMsg string
	}{
		{"http error", http.StatusBadRequest, `{"error":"bad"}`, "Gemini API returned 400"},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, "no candidates"},
		{"empty content", http.StatusOK, `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`, "SAFETY"},
		{"bad json", http.StatusOK, `not json`, "decoding Gemini response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			g := NewGemini(types.AIConfig{BaseURL: ts.URL, MaxRetries: 1}, nil)
			_, err := g.Generate(context.Background(), Request{Model: "m", Prompt: "p"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestGeminiRequiresModel(t *testing.T) {
	g := NewGemini(types.AIConfig{}, nil)
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorContains(t, err, "model is required")
}

// --- OpenAI ---

func TestOpenAIGenerate(t *testing.T) {
	tests := []struct {
		name       string
		req        Request
		wantFormat string
	}{
		{"json object", Request{Model: "qwen-plus", Prompt: "p", JSON: true}, "json_object"},
		{"json schema", Request{Model: "qwen-plus", Prompt: "p", Schema: SchemaFor(&types.Reflection{})}, "json_schema"},
		{"plain text", Request{Model: "qwen-plus", Prompt: "p"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

				var body map[string]any
				decodeBody(t, r, &body)
				assert.Equal(t, "qwen-plus", body["model"])
				if tt.wantFormat == "" {
					assert.NotContains(t, body, "response_format")
				} else {
					format, ok := body["response_format"].(map[string]any)
					require.True(t, ok)
					assert.Equal(t, tt.wantFormat, format["type"])
					if tt.wantFormat == "json_schema" {
						js, ok := format["json_schema"].(map[string]any)
						require.True(t, ok)
						assert.Equal(t, "reflection", js["name"])
						assert.Equal(t, true, js["strict"])
						schema, ok := js["schema"].(map[string]any)
						require.True(t, ok)
						assert.ElementsMatch(t, []any{"is_sufficient", "knowledge_gap", "follow_up_queries"}, schema["required"])
					}
				}

				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"qwen-plus","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
			}))
			defer ts.Close()

			o := NewOpenAI(types.AIConfig{APIKey: "sk-test", BaseURL: ts.URL + "/"}, nil)
			resp, err := o.Generate(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, `{"ok":true}`, resp.Text)
		})
	}
}

func TestOpenAIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		errMsg string
	}{
		{"empty choices", http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[]}`, "empty content"},
		{"empty content", http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`, "empty content"},
		{"http error", http.StatusBadRequest, `{"error":{"message":"bad model","type":"invalid_request_error"}}`, "OpenAI API returned 400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			o := NewOpenAI(types.AIConfig{APIKey: "sk-test", BaseURL: ts.URL + "/"}, nil)
			_, err := o.Generate(context.Background(), Request{Model: "m", Prompt: "p"})
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

// --- Claude ---

func TestClaudeGenerate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body claudeRequest
		decodeBody(t, r, &body)
		assert.Equal(t, claudeMaxTokens, body.MaxTokens)
		assert.Equal(t, 1.0, body.Temperature)

		w.Write([]byte(`{"content":[{"type":"thinking","text":"hmm"},{"type":"text","text":"answer"}]}`))
	}))
	defer ts.Close()

	c := NewClaude(types.AIConfig{APIKey: "ak-test", BaseURL: ts.URL}, nil)
	resp, err := c.Generate(context.Background(), Request{Model: "claude-test", Prompt: "p", Temperature: 1.5})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Text)
}

func TestClaudeAppendsSchema(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body claudeRequest
		decodeBody(t, r, &body)
		require.Len(t, body.Messages, 1)
		assert.Contains(t, body.Messages[0].Content, "p\n\nRespond with a single JSON object")
		assert.Contains(t, body.Messages[0].Content, `"rationale"`)

		w.Write([]byte(`{"content":[{"type":"text","text":"{}"}]}`))
	}))
	defer ts.Close()

	c := NewClaude(types.AIConfig{BaseURL: ts.URL}, nil)
	_, err := c.Generate(context.Background(), Request{Model: "m", Prompt: "p", Schema: SchemaFor(&types.QueryBatch{})})
	require.NoError(t, err)
}

func TestClaudeNoText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer ts.Close()

	c := NewClaude(types.AIConfig{BaseURL: ts.URL}, nil)
	_, err := c.Generate(context.Background(), Request{Model: "m"})
	assert.ErrorContains(t, err, "no text content")
}
