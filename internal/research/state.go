// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"github.com/pdiddy/research-agent/pkg/types"
)

// State is the record threaded through one execution of the graph. It is
// owned by the goroutine running Run; search tasks never touch it and their
// outcomes are merged after the wave barrier.
type State struct {
	RunID    string
	Messages []types.Message

	// SearchQueries holds every dispatched query in task id order.
	SearchQueries []string

	// WebResearchResults holds the marked-up text of each successful task
	// in wave order, then task id order.
	WebResearchResults []string

	// SourcesGathered holds the sources of every successful task in the
	// same order as WebResearchResults.
	SourcesGathered []types.Source

	ResearchLoopCount  int
	NumberOfRanQueries int
	IsSufficient       bool
	KnowledgeGap       string
	FollowUpQueries    []string

	InitialSearchQueryCount int
	MaxResearchLoops        int
	ReasoningModel          string
}

// taskOutcome is what one web research task contributes to State.
type taskOutcome struct {
	task    types.SearchTask
	text    string
	sources []types.Source
	err     error
}

// merge folds the outcomes of one wave into s in task id order. Every
// dispatched query is recorded so ids stay unique even when a failed task
// is dropped. It returns the number of successful tasks.
func (s *State) merge(outcomes []taskOutcome) int {
	ok := 0
	for _, o := range outcomes {
		s.SearchQueries = append(s.SearchQueries, o.task.Query)
		if o.err != nil {
			continue
		}
		ok++
		s.WebResearchResults = append(s.WebResearchResults, o.text)
		s.SourcesGathered = append(s.SourcesGathered, o.sources...)
	}
	return ok
}
