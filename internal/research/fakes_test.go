// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pdiddy/research-agent/internal/llm"
	"github.com/pdiddy/research-agent/internal/websearch"
	"github.com/pdiddy/research-agent/pkg/types"
)

const (
	queryModel   = "query-model"
	reflectModel = "reflect-model"
	answerModel  = "answer-model"
)

func testConfig() Configuration {
	return Configuration{
		QueryGeneratorModel:    queryModel,
		ReflectionModel:        reflectModel,
		AnswerModel:            answerModel,
		NumberOfInitialQueries: 3,
		MaxResearchLoops:       2,
		SearchFailurePolicy:    SearchFailFast,
	}
}

// scriptedModel answers by model name: the query model returns queries,
// the reflection model returns reflections in order (the last one repeats),
// and the answer model returns answer(prompt).
type scriptedModel struct {
	mu sync.Mutex

	queries     []string
	queryErr    error
	queryRaw    string
	reflections []types.Reflection
	reflectErr  error
	reflectRaw  string
	answer      func(prompt string) string
	answerErr   error

	calls   map[string]int
	prompts map[string][]string
	temps   map[string][]float64
}

func (m *scriptedModel) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
		m.prompts = map[string][]string{}
		m.temps = map[string][]float64{}
	}
	n := m.calls[req.Model]
	m.calls[req.Model]++
	m.prompts[req.Model] = append(m.prompts[req.Model], req.Prompt)
	m.temps[req.Model] = append(m.temps[req.Model], req.Temperature)

	switch req.Model {
	case queryModel:
		if m.queryErr != nil {
			return llm.Response{}, m.queryErr
		}
		if m.queryRaw != "" {
			return llm.Response{Text: m.queryRaw}, nil
		}
		queries := m.queries
		if queries == nil {
			queries = []string{}
		}
		b, _ := json.Marshal(types.QueryBatch{Queries: queries, Rationale: "cover the topic"})
		return llm.Response{Text: string(b)}, nil
	case reflectModel:
		if m.reflectErr != nil {
			return llm.Response{}, m.reflectErr
		}
		if m.reflectRaw != "" {
			return llm.Response{Text: m.reflectRaw}, nil
		}
		r := types.Reflection{IsSufficient: true}
		if len(m.reflections) > 0 {
			r = m.reflections[min(n, len(m.reflections)-1)]
		}
		if r.FollowUpQueries == nil {
			r.FollowUpQueries = []string{}
		}
		b, _ := json.Marshal(r)
		return llm.Response{Text: string(b)}, nil
	case answerModel:
		if m.answerErr != nil {
			return llm.Response{}, m.answerErr
		}
		if m.answer != nil {
			return llm.Response{Text: m.answer(req.Prompt)}, nil
		}
		return llm.Response{Text: "The answer."}, nil
	}
	return llm.Response{}, fmt.Errorf("unexpected model %q", req.Model)
}

func (m *scriptedModel) count(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[model]
}

func (m *scriptedModel) promptsFor(model string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts[model]...)
}

// fakeSearcher returns one grounded chunk per query by default.
type fakeSearcher struct {
	mu      sync.Mutex
	respond func(ctx context.Context, req websearch.Request) (types.GroundedResponse, error)
	queries []string
}

func (s *fakeSearcher) Search(ctx context.Context, req websearch.Request) (types.GroundedResponse, error) {
	s.mu.Lock()
	s.queries = append(s.queries, req.Query)
	respond := s.respond
	s.mu.Unlock()
	if respond != nil {
		return respond(ctx, req)
	}
	return groundedFor(req.Query), nil
}

func (s *fakeSearcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func slug(q string) string {
	return strings.ReplaceAll(strings.ToLower(q), " ", "-")
}

// groundedFor returns a response whose whole text is backed by one chunk.
func groundedFor(query string) types.GroundedResponse {
	text := "Findings about " + query + "."
	return types.GroundedResponse{
		Text:     text,
		Chunks:   []types.GroundingChunk{{URL: "https://example.com/" + slug(query), Title: "example.com"}},
		Supports: []types.GroundingSupport{{StartIndex: 0, EndIndex: len(text), ChunkIndices: []int{0}}},
	}
}

// recorder collects observer events.
type recorder struct {
	events []Event
}

func (r *recorder) Observe(e Event) { r.events = append(r.events, e) }

func (r *recorder) byStage(s Stage) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Stage == s {
			out = append(out, e)
		}
	}
	return out
}

func question(q string) []types.Message {
	return []types.Message{types.HumanMessage(q)}
}
