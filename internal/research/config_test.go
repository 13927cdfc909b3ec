// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv blanks every configuration variable for the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"QUERY_GENERATOR_MODEL", "REFLECTION_MODEL", "ANSWER_MODEL",
		"NUMBER_OF_INITIAL_QUERIES", "MAX_RESEARCH_LOOPS", "SEARCH_FAILURE_POLICY",
	} {
		t.Setenv(k, "")
	}
}

func requiredModels() map[string]any {
	return map[string]any{
		KeyReflectionModel: "gemini-2.5-flash",
		KeyAnswerModel:     "gemini-2.5-pro",
	}
}

func TestResolveConfigurationDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := ResolveConfiguration(requiredModels())
	require.NoError(t, err)
	assert.Equal(t, Configuration{
		QueryGeneratorModel:    DefaultQueryGeneratorModel,
		ReflectionModel:        "gemini-2.5-flash",
		AnswerModel:            "gemini-2.5-pro",
		NumberOfInitialQueries: 3,
		MaxResearchLoops:       2,
		SearchFailurePolicy:    SearchFailFast,
	}, cfg)
}

func TestResolveConfigurationRunOverridesDefaults(t *testing.T) {
	clearConfigEnv(t)

	run := requiredModels()
	run[KeyQueryGeneratorModel] = "qwen-plus"
	run[KeyNumberOfInitialQueries] = 5
	run[KeyMaxResearchLoops] = float64(4) // as decoded from JSON
	run[KeySearchFailurePolicy] = "tolerate"

	cfg, err := ResolveConfiguration(run)
	require.NoError(t, err)
	assert.Equal(t, "qwen-plus", cfg.QueryGeneratorModel)
	assert.Equal(t, 5, cfg.NumberOfInitialQueries)
	assert.Equal(t, 4, cfg.MaxResearchLoops)
	assert.Equal(t, SearchTolerate, cfg.SearchFailurePolicy)
}

func TestResolveConfigurationEnvironmentWins(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ANSWER_MODEL", "env-answer")
	t.Setenv("NUMBER_OF_INITIAL_QUERIES", " 7 ")

	run := requiredModels()
	run[KeyNumberOfInitialQueries] = 2

	cfg, err := ResolveConfiguration(run)
	require.NoError(t, err)
	assert.Equal(t, "env-answer", cfg.AnswerModel)
	assert.Equal(t, "gemini-2.5-flash", cfg.ReflectionModel)
	assert.Equal(t, 7, cfg.NumberOfInitialQueries)
}

func TestResolveConfigurationEnvironmentSuppliesRequiredModels(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("REFLECTION_MODEL", "r")
	t.Setenv("ANSWER_MODEL", "a")

	cfg, err := ResolveConfiguration(nil)
	require.NoError(t, err)
	assert.Equal(t, "r", cfg.ReflectionModel)
	assert.Equal(t, "a", cfg.AnswerModel)
}

func TestResolveConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		run   map[string]any
		env   map[string]string
		field string
	}{
		{
			name:  "missing reflection model",
			run:   map[string]any{KeyAnswerModel: "a"},
			field: KeyReflectionModel,
		},
		{
			name:  "missing answer model",
			run:   map[string]any{KeyReflectionModel: "r"},
			field: KeyAnswerModel,
		},
		{
			name:  "non-numeric env",
			run:   requiredModels(),
			env:   map[string]string{"MAX_RESEARCH_LOOPS": "many"},
			field: KeyMaxResearchLoops,
		},
		{
			name:  "non-numeric run value",
			run:   map[string]any{KeyReflectionModel: "r", KeyAnswerModel: "a", KeyNumberOfInitialQueries: "three"},
			field: KeyNumberOfInitialQueries,
		},
		{
			name:  "zero queries",
			run:   map[string]any{KeyReflectionModel: "r", KeyAnswerModel: "a", KeyNumberOfInitialQueries: 0},
			field: KeyNumberOfInitialQueries,
		},
		{
			name:  "unknown policy",
			run:   map[string]any{KeyReflectionModel: "r", KeyAnswerModel: "a", KeySearchFailurePolicy: "retry"},
			field: KeySearchFailurePolicy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := ResolveConfiguration(tt.run)
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}
