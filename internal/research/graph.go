// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"fmt"

	"github.com/pdiddy/research-agent/pkg/types"
)

// Stage is a node of the research graph.
type Stage int

const (
	StageGenerating Stage = iota
	StageSearching
	StageReflecting
	StageFinalizing
)

var stageNames = map[Stage]string{
	StageGenerating: "generate_query",
	StageSearching:  "web_research",
	StageReflecting: "reflection",
	StageFinalizing: "finalize_answer",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// MarshalText renders the stage name in JSON and YAML.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// decision is the tagged result of a stage: the next stage and, when that
// stage is StageSearching, the tasks of the wave to run.
type decision struct {
	next  Stage
	tasks []types.SearchTask
}

// dispatch turns queries into search tasks with ids base, base+1, ...
func dispatch(queries []string, base int) []types.SearchTask {
	tasks := make([]types.SearchTask, len(queries))
	for i, q := range queries {
		tasks[i] = types.SearchTask{Query: q, ID: base + i}
	}
	return tasks
}

// evaluate decides what follows a reflection. Sufficiency is checked before
// the loop budget, and an insufficient reflection with no follow-up queries
// finalizes because an empty wave adds nothing.
func evaluate(s *State) decision {
	if s.IsSufficient || s.ResearchLoopCount >= s.MaxResearchLoops {
		return decision{next: StageFinalizing}
	}
	if len(s.FollowUpQueries) == 0 {
		return decision{next: StageFinalizing}
	}
	return decision{next: StageSearching, tasks: dispatch(s.FollowUpQueries, s.NumberOfRanQueries)}
}

// maxSteps bounds the dispatcher: one generation, a search and a reflection
// per loop, and one finalization.
func maxSteps(maxLoops int) int {
	return 2*maxLoops + 2
}
