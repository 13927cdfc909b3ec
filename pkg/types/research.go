// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research agent:
// conversation messages, the structured outputs requested from language
// models, grounding metadata returned by search backends, and the final
// research result.
package types

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// HumanMessage returns a message authored by the user.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AIMessage returns a message authored by the agent.
func AIMessage(content string) Message {
	return Message{Role: RoleAI, Content: content}
}

// QueryBatch is the structured output of query generation.
type QueryBatch struct {
	Queries   []string `json:"query" yaml:"query"`
	Rationale string   `json:"rationale" yaml:"rationale"`
}

// SearchTask is one grounded search dispatched during a wave. ID is unique
// across the whole execution and scopes the short URLs of its sources.
type SearchTask struct {
	Query string `json:"query" yaml:"query"`
	ID    int    `json:"id" yaml:"id"`
}

// Reflection is the structured output of the reflection stage.
type Reflection struct {
	IsSufficient    bool     `json:"is_sufficient" yaml:"is_sufficient"`
	KnowledgeGap    string   `json:"knowledge_gap" yaml:"knowledge_gap"`
	FollowUpQueries []string `json:"follow_up_queries" yaml:"follow_up_queries"`
}

// Source is a web page cited by a search task.
type Source struct {
	// Label is the human-readable identifier derived from the page title.
	Label string `json:"label" yaml:"label"`

	// ShortURL is the compact stand-in used as a citation marker until the
	// answer is finalized.
	ShortURL string `json:"short_url" yaml:"short_url"`

	// Value is the resolved URL of the page.
	Value string `json:"value" yaml:"value"`

	// Segment is the passage of the search text the page supports.
	Segment string `json:"segment,omitempty" yaml:"segment,omitempty"`

	// TaskID is the id of the search task that gathered the source.
	TaskID int `json:"task_id" yaml:"task_id"`
}

// GroundingChunk references a web page returned by a grounded search.
type GroundingChunk struct {
	URL   string `json:"url" yaml:"url"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// GroundingSupport ties a byte range of the search text to the chunks that
// support it.
type GroundingSupport struct {
	StartIndex   int   `json:"start_index" yaml:"start_index"`
	EndIndex     int   `json:"end_index" yaml:"end_index"`
	ChunkIndices []int `json:"chunk_indices" yaml:"chunk_indices"`
}

// GroundedResponse is the result of one grounded web search.
type GroundedResponse struct {
	Text     string             `json:"text" yaml:"text"`
	Chunks   []GroundingChunk   `json:"chunks" yaml:"chunks"`
	Supports []GroundingSupport `json:"supports" yaml:"supports"`
}

// Result is the output of a completed research execution.
type Result struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	Question  string    `json:"question" yaml:"question"`
	Answer    string    `json:"answer" yaml:"answer"`
	Sources   []Source  `json:"sources" yaml:"sources"`
	Queries   []string  `json:"queries" yaml:"queries"`
	LoopCount int       `json:"loop_count" yaml:"loop_count"`
	Started   time.Time `json:"started" yaml:"started"`
	Finished  time.Time `json:"finished" yaml:"finished"`
}
