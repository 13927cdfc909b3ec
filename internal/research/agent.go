// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research runs the iterative research graph: generate search
// queries, search them in parallel, reflect on what was found, loop with
// follow-up queries up to a bound, and write a cited answer.
//
// The graph is fixed. Each stage returns a decision naming the next stage
// and Run dispatches on it until the answer is finalized.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/llm"
	"github.com/pdiddy/research-agent/internal/metrics"
	"github.com/pdiddy/research-agent/internal/tracing"
	"github.com/pdiddy/research-agent/internal/websearch"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Request is one research question.
type Request struct {
	// Messages is the conversation. At least one human message is required.
	Messages []types.Message

	// InitialSearchQueryCount overrides NumberOfInitialQueries when positive.
	InitialSearchQueryCount int

	// MaxResearchLoops overrides the configured loop bound when positive.
	MaxResearchLoops int

	// ReasoningModel overrides the reflection and answer models when set.
	ReasoningModel string

	// Observer receives progress events. It may be nil.
	Observer Observer
}

// Event reports progress of a run. Which fields are set depends on Stage.
type Event struct {
	Stage Stage  `json:"stage"`
	RunID string `json:"run_id"`

	// generate_query
	Queries   []string `json:"queries,omitempty"`
	Rationale string   `json:"rationale,omitempty"`

	// web_research, once per task
	Task    *types.SearchTask `json:"task,omitempty"`
	Sources []types.Source    `json:"sources,omitempty"`
	Error   string            `json:"error,omitempty"`

	// reflection
	Loop            int      `json:"loop,omitempty"`
	IsSufficient    bool     `json:"is_sufficient,omitempty"`
	KnowledgeGap    string   `json:"knowledge_gap,omitempty"`
	FollowUpQueries []string `json:"follow_up_queries,omitempty"`

	// finalize_answer
	Answer string `json:"answer,omitempty"`
}

// Observer receives events on the goroutine that called Run.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }

// Agent runs research requests. It holds no per-run state and is safe for
// concurrent use.
type Agent struct {
	generator llm.Generator
	searcher  websearch.Searcher
	config    Configuration
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger. The default discards logs.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New returns an Agent. cfg must be valid.
func New(generator llm.Generator, searcher websearch.Searcher, cfg Configuration, opts ...Option) (*Agent, error) {
	if generator == nil {
		return nil, errors.New("research: generator is required")
	}
	if searcher == nil {
		return nil, errors.New("research: searcher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		generator: generator,
		searcher:  searcher,
		config:    cfg,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Configuration returns the agent's configuration.
func (a *Agent) Configuration() Configuration { return a.config }

// Run executes the graph for req and returns the cited answer. Cancelling
// ctx cancels every outstanding search task. Any stage failure ends the run
// with an error and no partial result.
func (a *Agent) Run(ctx context.Context, req Request) (types.Result, error) {
	question := latestQuestion(req.Messages)
	if question == "" {
		return types.Result{}, ErrEmptyQuestion
	}

	st := a.newState(req)
	obs := req.Observer
	if obs == nil {
		obs = ObserverFunc(func(Event) {})
	}
	log := a.logger.With(zap.String("run_id", st.RunID))

	ctx, span := tracing.StartStage(ctx, "run", attribute.String("research.run_id", st.RunID))
	metrics.RunsStarted.Inc()
	started := a.now()
	log.Info("research started",
		zap.String("question", question),
		zap.Int("initial_queries", st.InitialSearchQueryCount),
		zap.Int("max_loops", st.MaxResearchLoops))

	answer, sources, err := a.execute(ctx, st, obs, log)
	finished := a.now()
	tracing.End(span, err)

	if err != nil {
		status := "error"
		if ctx.Err() != nil {
			status = "canceled"
		}
		metrics.RecordRun(status, finished.Sub(started).Seconds(), st.ResearchLoopCount)
		log.Warn("research failed", zap.Error(err), zap.Int("loops", st.ResearchLoopCount))
		return types.Result{}, err
	}

	metrics.RecordRun("success", finished.Sub(started).Seconds(), st.ResearchLoopCount)
	metrics.SourcesCited.Observe(float64(len(sources)))
	log.Info("research finished",
		zap.Int("loops", st.ResearchLoopCount),
		zap.Int("queries", len(st.SearchQueries)),
		zap.Int("sources", len(sources)),
		zap.Duration("elapsed", finished.Sub(started)))

	return types.Result{
		RunID:     st.RunID,
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		Queries:   st.SearchQueries,
		LoopCount: st.ResearchLoopCount,
		Started:   started,
		Finished:  finished,
	}, nil
}

// execute is the dispatcher. It consumes the decision of each stage until
// the finalize stage runs.
func (a *Agent) execute(ctx context.Context, st *State, obs Observer, log *zap.Logger) (string, []types.Source, error) {
	d := decision{next: StageGenerating}
	limit := maxSteps(st.MaxResearchLoops)

	for step := 0; step < limit; step++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		log.Debug("stage", zap.Stringer("stage", d.next), zap.Int("step", step))

		ran, stageStart := d.next, a.now()
		var err error
		switch ran {
		case StageGenerating:
			d, err = a.generateQueries(ctx, st, obs, log)
		case StageSearching:
			d, err = a.searchWave(ctx, st, d.tasks, obs, log)
		case StageReflecting:
			d, err = a.reflect(ctx, st, obs, log)
		case StageFinalizing:
			answer, sources, ferr := a.finalize(ctx, st, obs, log)
			metrics.StageDuration.WithLabelValues(ran.String()).Observe(a.now().Sub(stageStart).Seconds())
			return answer, sources, ferr
		default:
			return "", nil, fmt.Errorf("research: unknown stage %v", ran)
		}
		metrics.StageDuration.WithLabelValues(ran.String()).Observe(a.now().Sub(stageStart).Seconds())
		if err != nil {
			return "", nil, err
		}
	}
	return "", nil, fmt.Errorf("research: graph did not finish within %d steps", limit)
}

func (a *Agent) newState(req Request) *State {
	n := a.config.NumberOfInitialQueries
	if req.InitialSearchQueryCount > 0 {
		n = req.InitialSearchQueryCount
	}
	loops := a.config.MaxResearchLoops
	if req.MaxResearchLoops > 0 {
		loops = req.MaxResearchLoops
	}
	return &State{
		RunID:                   uuid.NewString(),
		Messages:                append([]types.Message(nil), req.Messages...),
		InitialSearchQueryCount: n,
		MaxResearchLoops:        loops,
		ReasoningModel:          strings.TrimSpace(req.ReasoningModel),
	}
}

func (a *Agent) reflectionModel(st *State) string {
	if st.ReasoningModel != "" {
		return st.ReasoningModel
	}
	return a.config.ReflectionModel
}

func (a *Agent) answerModel(st *State) string {
	if st.ReasoningModel != "" {
		return st.ReasoningModel
	}
	return a.config.AnswerModel
}

// latestQuestion returns the content of the last human message.
func latestQuestion(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleHuman {
			if q := strings.TrimSpace(messages[i].Content); q != "" {
				return q
			}
		}
	}
	return ""
}
