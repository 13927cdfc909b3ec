// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompts

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/pkg/types"
)

func TestMain(m *testing.M) {
	now = func() time.Time { return time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC) }
	os.Exit(m.Run())
}

func TestCurrentDate(t *testing.T) {
	assert.Equal(t, "March 4, 2026", CurrentDate())
}

func TestResearchTopic(t *testing.T) {
	tests := []struct {
		name     string
		messages []types.Message
		want     string
	}{
		{
			name:     "single message used verbatim",
			messages: []types.Message{types.HumanMessage("What is RISC-V?")},
			want:     "What is RISC-V?",
		},
		{
			name: "conversation rendered as transcript",
			messages: []types.Message{
				types.HumanMessage("Who won the 2022 World Cup?"),
				types.AIMessage("Argentina."),
				types.HumanMessage("Who scored in the final?"),
			},
			want: "User: Who won the 2022 World Cup?\nAssistant: Argentina.\nUser: Who scored in the final?\n",
		},
		{
			name:     "empty conversation",
			messages: nil,
			want:     "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResearchTopic(tt.messages))
		})
	}
}

func TestQueryWriter(t *testing.T) {
	p, err := QueryWriter("solid state batteries", 4)
	require.NoError(t, err)
	assert.Contains(t, p, "Don't produce more than 4 queries.")
	assert.Contains(t, p, "Context: solid state batteries")
	assert.Contains(t, p, "The current date is March 4, 2026.")
	assert.Contains(t, p, `"rationale"`)
}

func TestWebSearcher(t *testing.T) {
	p, err := WebSearcher("lithium prices 2026")
	require.NoError(t, err)
	assert.Contains(t, p, `information on "lithium prices 2026"`)
	assert.Contains(t, p, "Research Topic:\nlithium prices 2026")
}

func TestReflectionJoinsSummaries(t *testing.T) {
	p, err := Reflection("topic", []string{"first", "second"})
	require.NoError(t, err)
	assert.Contains(t, p, "first\n\n---\n\nsecond")
	assert.Contains(t, p, `"follow_up_queries"`)
}

func TestAnswerJoinsSummaries(t *testing.T) {
	p, err := Answer("topic", []string{"first", "second"})
	require.NoError(t, err)
	assert.Contains(t, p, "first\n---\n\nsecond")
	assert.Contains(t, p, "- topic")
}
