// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-agent/internal/citation"
	"github.com/pdiddy/research-agent/internal/llm"
	"github.com/pdiddy/research-agent/internal/metrics"
	"github.com/pdiddy/research-agent/internal/prompts"
	"github.com/pdiddy/research-agent/internal/tracing"
	"github.com/pdiddy/research-agent/internal/websearch"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Sampling temperatures per stage.
const (
	queryTemperature      = 1.0
	reflectionTemperature = 1.0
	answerTemperature     = 0.0
)

// generateQueries asks the query model for the first wave. The batch is
// truncated to the configured count.
func (a *Agent) generateQueries(ctx context.Context, st *State, obs Observer, log *zap.Logger) (_ decision, err error) {
	ctx, span := tracing.StartStage(ctx, StageGenerating.String())
	defer func() { tracing.End(span, err) }()

	topic := prompts.ResearchTopic(st.Messages)
	prompt, err := prompts.QueryWriter(topic, st.InitialSearchQueryCount)
	if err != nil {
		return decision{}, &GenerationError{Stage: StageGenerating, Err: err}
	}

	var batch types.QueryBatch
	req := llm.Request{Model: a.config.QueryGeneratorModel, Prompt: prompt, Temperature: queryTemperature}
	if err := llm.GenerateStructured(ctx, a.generator, req, &batch); err != nil {
		return decision{}, &GenerationError{Stage: StageGenerating, Err: err}
	}

	queries := cleanQueries(batch.Queries)
	if len(queries) == 0 {
		return decision{}, &GenerationError{Stage: StageGenerating, Err: errors.New("model returned no search queries")}
	}
	if len(queries) > st.InitialSearchQueryCount {
		log.Debug("truncating query batch",
			zap.Int("returned", len(queries)),
			zap.Int("requested", st.InitialSearchQueryCount))
		queries = queries[:st.InitialSearchQueryCount]
	}

	log.Info("queries generated", zap.Strings("queries", queries))
	obs.Observe(Event{Stage: StageGenerating, RunID: st.RunID, Queries: queries, Rationale: batch.Rationale})
	return decision{next: StageSearching, tasks: dispatch(queries, 0)}, nil
}

// searchWave runs one wave of tasks concurrently and merges their outcomes
// after all of them have finished.
func (a *Agent) searchWave(ctx context.Context, st *State, tasks []types.SearchTask, obs Observer, log *zap.Logger) (_ decision, err error) {
	ctx, span := tracing.StartStage(ctx, StageSearching.String(), attribute.Int("research.tasks", len(tasks)))
	defer func() { tracing.End(span, err) }()

	tolerate := a.config.SearchFailurePolicy == SearchTolerate
	outcomes := make([]taskOutcome, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		g.Go(func() error {
			out, err := a.webResearch(gctx, task, log)
			if err != nil {
				metrics.SearchTasks.WithLabelValues("error").Inc()
				if tolerate && ctx.Err() == nil {
					log.Warn("search task failed, continuing",
						zap.Int("task_id", task.ID),
						zap.String("query", task.Query),
						zap.Error(err))
					outcomes[i] = taskOutcome{task: task, err: err}
					return nil
				}
				return err
			}
			metrics.SearchTasks.WithLabelValues("success").Inc()
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decision{}, err
	}

	ok := st.merge(outcomes)
	for _, o := range outcomes {
		task := o.task
		ev := Event{Stage: StageSearching, RunID: st.RunID, Task: &task, Sources: o.sources}
		if o.err != nil {
			ev.Error = o.err.Error()
		}
		obs.Observe(ev)
	}
	if ok == 0 && len(outcomes) > 0 {
		return decision{}, outcomes[0].err
	}

	log.Info("search wave complete",
		zap.Int("tasks", len(tasks)),
		zap.Int("succeeded", ok),
		zap.Int("results", len(st.WebResearchResults)),
		zap.Int("sources", len(st.SourcesGathered)))
	return decision{next: StageReflecting}, nil
}

// webResearch runs one grounded search and turns its grounding metadata
// into short URLs and inline citation markers scoped by the task id.
func (a *Agent) webResearch(ctx context.Context, task types.SearchTask, log *zap.Logger) (taskOutcome, error) {
	prompt, err := prompts.WebSearcher(task.Query)
	if err != nil {
		return taskOutcome{}, &SearchError{Query: task.Query, TaskID: task.ID, Err: err}
	}

	resp, err := a.searcher.Search(ctx, websearch.Request{
		Query:  task.Query,
		Prompt: prompt,
		Model:  a.config.QueryGeneratorModel,
	})
	if err != nil {
		return taskOutcome{}, &SearchError{Query: task.Query, TaskID: task.ID, Err: err}
	}

	resolved := citation.ResolveURLs(resp.Chunks, task.ID)
	citations, problems := citation.Build(resp, resolved, task.ID)
	for _, p := range problems {
		metrics.CitationsSkipped.Inc()
		var re *CitationResolutionError
		if errors.As(p, &re) {
			log.Debug("skipping grounding entry",
				zap.Int("task_id", re.TaskID),
				zap.Int("chunk", re.ChunkIndex),
				zap.Int("support", re.SupportIndex),
				zap.String("reason", re.Reason))
		}
	}

	out := taskOutcome{
		task:    task,
		text:    citation.InsertMarkers(resp.Text, citations),
		sources: citation.Sources(resp.Text, citations, task.ID),
	}
	log.Debug("search task complete",
		zap.Int("task_id", task.ID),
		zap.String("query", task.Query),
		zap.Int("chunks", len(resp.Chunks)),
		zap.Int("sources", len(out.sources)))
	return out, nil
}

// reflect counts the loop, records how many queries have run, and asks the
// reflection model whether the results suffice.
func (a *Agent) reflect(ctx context.Context, st *State, obs Observer, log *zap.Logger) (_ decision, err error) {
	st.ResearchLoopCount++
	st.NumberOfRanQueries = len(st.SearchQueries)

	ctx, span := tracing.StartStage(ctx, StageReflecting.String(), attribute.Int("research.loop", st.ResearchLoopCount))
	defer func() { tracing.End(span, err) }()

	prompt, err := prompts.Reflection(prompts.ResearchTopic(st.Messages), st.WebResearchResults)
	if err != nil {
		return decision{}, &GenerationError{Stage: StageReflecting, Err: err}
	}

	var r types.Reflection
	req := llm.Request{Model: a.reflectionModel(st), Prompt: prompt, Temperature: reflectionTemperature}
	if err := llm.GenerateStructured(ctx, a.generator, req, &r); err != nil {
		return decision{}, &GenerationError{Stage: StageReflecting, Err: err}
	}

	st.IsSufficient = r.IsSufficient
	st.KnowledgeGap = r.KnowledgeGap
	st.FollowUpQueries = cleanQueries(r.FollowUpQueries)

	log.Info("reflection",
		zap.Int("loop", st.ResearchLoopCount),
		zap.Bool("sufficient", st.IsSufficient),
		zap.Strings("follow_up", st.FollowUpQueries))
	obs.Observe(Event{
		Stage:           StageReflecting,
		RunID:           st.RunID,
		Loop:            st.ResearchLoopCount,
		IsSufficient:    st.IsSufficient,
		KnowledgeGap:    st.KnowledgeGap,
		FollowUpQueries: st.FollowUpQueries,
	})
	return evaluate(st), nil
}

// finalize writes the answer and swaps short URLs for real ones. Only the
// sources the answer cites are returned.
func (a *Agent) finalize(ctx context.Context, st *State, obs Observer, log *zap.Logger) (_ string, _ []types.Source, err error) {
	ctx, span := tracing.StartStage(ctx, StageFinalizing.String())
	defer func() { tracing.End(span, err) }()

	prompt, err := prompts.Answer(prompts.ResearchTopic(st.Messages), st.WebResearchResults)
	if err != nil {
		return "", nil, &GenerationError{Stage: StageFinalizing, Err: err}
	}

	resp, err := a.generator.Generate(ctx, llm.Request{Model: a.answerModel(st), Prompt: prompt, Temperature: answerTemperature})
	if err != nil {
		return "", nil, &GenerationError{Stage: StageFinalizing, Err: err}
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", nil, &GenerationError{Stage: StageFinalizing, Err: fmt.Errorf("model returned an empty answer")}
	}

	answer, used := citation.Substitute(resp.Text, st.SourcesGathered)
	st.Messages = append(st.Messages, types.AIMessage(answer))

	log.Info("answer finalized", zap.Int("cited", len(used)), zap.Int("gathered", len(st.SourcesGathered)))
	obs.Observe(Event{Stage: StageFinalizing, RunID: st.RunID, Answer: answer, Sources: used})
	return answer, used, nil
}

// cleanQueries trims queries and drops blank ones.
func cleanQueries(qs []string) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}
