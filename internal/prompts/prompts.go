// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompts renders the instructions sent to language models at each
// research stage. Templates are pure: they depend only on their inputs and
// the current date.
package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/research-agent/pkg/types"
)

// now is the clock used for the current date. Tests substitute a fixed time.
var now = time.Now

const dateLayout = "January 2, 2006"

// CurrentDate returns today's date in the long form used by every prompt.
func CurrentDate() string {
	return now().Format(dateLayout)
}

// ResearchTopic extracts the research topic from the conversation. A single
// message is used verbatim; longer conversations are rendered as a
// User/Assistant transcript so follow-up questions keep their context.
func ResearchTopic(messages []types.Message) string {
	if len(messages) == 1 {
		return messages[0].Content
	}
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case types.RoleHuman:
			fmt.Fprintf(&b, "User: %s\n", m.Content)
		case types.RoleAI:
			fmt.Fprintf(&b, "Assistant: %s\n", m.Content)
		}
	}
	return b.String()
}

var queryWriterTmpl = template.Must(template.New("query_writer").Parse(`Your goal is to generate sophisticated and diverse web search queries. These queries are intended for an advanced automated web research tool capable of analyzing complex results, following links, and synthesizing information.

Instructions:
- Always prefer a single search query; only add another query if the original question requests multiple aspects or elements and one query is not enough.
- Each query should focus on one specific aspect of the original question.
- Don't produce more than {{.NumberQueries}} queries.
- Queries should be diverse; if the topic is broad, generate more than 1 query.
- Don't generate multiple similar queries, 1 is enough.
- Queries should ensure that the most current information is gathered. The current date is {{.CurrentDate}}.

Format:
- Format your response as a JSON object with exactly these two keys:
   - "rationale": brief explanation of why these queries are relevant
   - "query": a list of search queries

Example:

Topic: What revenue grew more last year apple stock or the number of people buying an iphone
` + "```json" + `
{
    "rationale": "To answer this comparative growth question accurately, we need specific data points on Apple's stock performance and iPhone sales metrics. These queries target the precise financial information needed: company revenue trends, product-specific unit sales figures, and stock price movement over the same fiscal period for direct comparison.",
    "query": ["Apple total revenue growth fiscal year 2024", "iPhone unit sales growth fiscal year 2024", "Apple stock price growth fiscal year 2024"]
}
` + "```" + `

Context: {{.ResearchTopic}}`))

var webSearcherTmpl = template.Must(template.New("web_searcher").Parse(`Conduct targeted searches to gather the most recent, credible information on "{{.ResearchTopic}}" and synthesize it into a verifiable text artifact.

Instructions:
- The query should ensure that the most current information is gathered. The current date is {{.CurrentDate}}.
- Conduct multiple, diverse searches to gather comprehensive information.
- Consolidate key findings while meticulously tracking the source(s) for each specific piece of information.
- The output should be a well-written summary or report based on your search findings.
- Only include the information found in the search results, don't make up any information.

Research Topic:
{{.ResearchTopic}}
`))

var reflectionTmpl = template.Must(template.New("reflection").Parse(`You are an expert research assistant analyzing summaries about "{{.ResearchTopic}}".

Instructions:
- Identify knowledge gaps or areas that need deeper exploration and generate follow-up queries (1 or multiple).
- If the provided summaries are sufficient to answer the user's question, don't generate follow-up queries.
- If there is a knowledge gap, generate follow-up queries that would help expand your understanding.
- Focus on technical details, implementation specifics, or emerging trends that weren't fully covered.

Requirements:
- Ensure the follow-up queries are self-contained and include the necessary context for web search.

Output Format:
- Format your response as a JSON object with these exact keys:
   - "is_sufficient": true or false
   - "knowledge_gap": describe what information is missing or needs clarification
   - "follow_up_queries": write specific questions to address this gap

Example:
` + "```json" + `
{
    "is_sufficient": true,
    "knowledge_gap": "The summary lacks information about performance metrics and benchmarks",
    "follow_up_queries": ["What are typical performance benchmarks and metrics used to evaluate [specific technology]?"]
}
` + "```" + `

Reflect carefully on the summaries to identify knowledge gaps and produce a follow-up query. Then, produce your output following this JSON format.

The current date is {{.CurrentDate}}.

Summaries:
{{.Summaries}}
`))

var answerTmpl = template.Must(template.New("answer").Parse(`Generate a high-quality answer to the user's question based on the provided summaries.

Instructions:
- The current date is {{.CurrentDate}}.
- You are the final step of a multi-step research process, don't mention that you are the final step.
- You have access to all the information gathered from the previous steps.
- You have access to the user's question.
- Generate a high-quality answer to the user's question based on the provided summaries and the user's question.
- You MUST include all the citations from the summaries in the answer correctly.

User Context:
- {{.ResearchTopic}}

Summaries:
{{.Summaries}}`))

// data is the template input shared by all prompts.
type data struct {
	ResearchTopic string
	CurrentDate   string
	NumberQueries int
	Summaries     string
}

func render(t *template.Template, d data) (string, error) {
	d.CurrentDate = CurrentDate()
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// QueryWriter renders the query generation prompt asking for at most n queries.
func QueryWriter(topic string, n int) (string, error) {
	return render(queryWriterTmpl, data{ResearchTopic: topic, NumberQueries: n})
}

// WebSearcher renders the grounded search prompt for one query.
func WebSearcher(query string) (string, error) {
	return render(webSearcherTmpl, data{ResearchTopic: query})
}

// Reflection renders the sufficiency check over all summaries gathered so far.
func Reflection(topic string, summaries []string) (string, error) {
	return render(reflectionTmpl, data{
		ResearchTopic: topic,
		Summaries:     strings.Join(summaries, "\n\n---\n\n"),
	})
}

// Answer renders the final answer prompt.
func Answer(topic string, summaries []string) (string, error) {
	return render(answerTmpl, data{
		ResearchTopic: topic,
		Summaries:     strings.Join(summaries, "\n---\n\n"),
	})
}
