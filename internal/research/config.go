// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// SearchFailurePolicy decides what a failed search task does to its wave.
type SearchFailurePolicy string

const (
	// SearchFailFast cancels the wave and fails the run on the first
	// failed task.
	SearchFailFast SearchFailurePolicy = "fail_fast"

	// SearchTolerate drops failed tasks from the wave. The run fails only
	// when every task of a wave fails.
	SearchTolerate SearchFailurePolicy = "tolerate"
)

// Configuration keys. Each key is also read from the environment variable
// of the same name in upper case.
const (
	KeyQueryGeneratorModel    = "query_generator_model"
	KeyReflectionModel        = "reflection_model"
	KeyAnswerModel            = "answer_model"
	KeyNumberOfInitialQueries = "number_of_initial_queries"
	KeyMaxResearchLoops       = "max_research_loops"
	KeySearchFailurePolicy    = "search_failure_policy"
)

var configKeys = []string{
	KeyQueryGeneratorModel,
	KeyReflectionModel,
	KeyAnswerModel,
	KeyNumberOfInitialQueries,
	KeyMaxResearchLoops,
	KeySearchFailurePolicy,
}

// Defaults.
const (
	DefaultQueryGeneratorModel    = "gemini-2.0-flash"
	DefaultNumberOfInitialQueries = 3
	DefaultMaxResearchLoops       = 2
)

// Configuration selects the models and loop bounds of the agent.
type Configuration struct {
	// QueryGeneratorModel generates queries and runs grounded searches.
	QueryGeneratorModel string `json:"query_generator_model" yaml:"query_generator_model" mapstructure:"query_generator_model"`

	// ReflectionModel judges sufficiency and proposes follow-up queries.
	ReflectionModel string `json:"reflection_model" yaml:"reflection_model" mapstructure:"reflection_model"`

	// AnswerModel writes the final answer.
	AnswerModel string `json:"answer_model" yaml:"answer_model" mapstructure:"answer_model"`

	// NumberOfInitialQueries is the size of the first search wave.
	NumberOfInitialQueries int `json:"number_of_initial_queries" yaml:"number_of_initial_queries" mapstructure:"number_of_initial_queries"`

	// MaxResearchLoops bounds the number of reflections.
	MaxResearchLoops int `json:"max_research_loops" yaml:"max_research_loops" mapstructure:"max_research_loops"`

	// SearchFailurePolicy is fail_fast or tolerate.
	SearchFailurePolicy SearchFailurePolicy `json:"search_failure_policy" yaml:"search_failure_policy" mapstructure:"search_failure_policy"`
}

// ResolveConfiguration builds a Configuration from run. For every key the
// environment variable named after the upper-cased key wins over the run
// value, which wins over the default. A missing reflection or answer model
// or a value of the wrong type is a ConfigurationError.
func ResolveConfiguration(run map[string]any) (Configuration, error) {
	v := viper.New()
	v.SetDefault(KeyQueryGeneratorModel, DefaultQueryGeneratorModel)
	v.SetDefault(KeyNumberOfInitialQueries, DefaultNumberOfInitialQueries)
	v.SetDefault(KeyMaxResearchLoops, DefaultMaxResearchLoops)
	v.SetDefault(KeySearchFailurePolicy, string(SearchFailFast))

	for _, k := range configKeys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return Configuration{}, &ConfigurationError{Field: k, Err: err}
		}
	}
	if len(run) > 0 {
		if err := v.MergeConfigMap(run); err != nil {
			return Configuration{}, &ConfigurationError{Field: "run", Err: err}
		}
	}

	var cfg Configuration
	var err error
	if cfg.QueryGeneratorModel, err = stringKey(v, KeyQueryGeneratorModel); err != nil {
		return Configuration{}, err
	}
	if cfg.ReflectionModel, err = stringKey(v, KeyReflectionModel); err != nil {
		return Configuration{}, err
	}
	if cfg.AnswerModel, err = stringKey(v, KeyAnswerModel); err != nil {
		return Configuration{}, err
	}
	if cfg.NumberOfInitialQueries, err = intKey(v, KeyNumberOfInitialQueries); err != nil {
		return Configuration{}, err
	}
	if cfg.MaxResearchLoops, err = intKey(v, KeyMaxResearchLoops); err != nil {
		return Configuration{}, err
	}
	policy, err := stringKey(v, KeySearchFailurePolicy)
	if err != nil {
		return Configuration{}, err
	}
	cfg.SearchFailurePolicy = SearchFailurePolicy(policy)

	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

func stringKey(v *viper.Viper, key string) (string, error) {
	s, err := cast.ToStringE(v.Get(key))
	if err != nil {
		return "", &ConfigurationError{Field: key, Err: err}
	}
	return strings.TrimSpace(s), nil
}

func intKey(v *viper.Viper, key string) (int, error) {
	raw := v.Get(key)
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, &ConfigurationError{Field: key, Err: err}
	}
	return n, nil
}

// Validate reports the first invalid field as a ConfigurationError.
func (c Configuration) Validate() error {
	switch {
	case c.QueryGeneratorModel == "":
		return &ConfigurationError{Field: KeyQueryGeneratorModel, Err: errors.New("model is required")}
	case c.ReflectionModel == "":
		return &ConfigurationError{Field: KeyReflectionModel, Err: errors.New("model is required")}
	case c.AnswerModel == "":
		return &ConfigurationError{Field: KeyAnswerModel, Err: errors.New("model is required")}
	case c.NumberOfInitialQueries < 1:
		return &ConfigurationError{Field: KeyNumberOfInitialQueries, Err: fmt.Errorf("must be at least 1, got %d", c.NumberOfInitialQueries)}
	case c.MaxResearchLoops < 1:
		return &ConfigurationError{Field: KeyMaxResearchLoops, Err: fmt.Errorf("must be at least 1, got %d", c.MaxResearchLoops)}
	}
	switch c.SearchFailurePolicy {
	case SearchFailFast, SearchTolerate:
		return nil
	default:
		return &ConfigurationError{
			Field: KeySearchFailurePolicy,
			Err:   fmt.Errorf("unknown policy %q: use %s or %s", c.SearchFailurePolicy, SearchFailFast, SearchTolerate),
		}
	}
}
