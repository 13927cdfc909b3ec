// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"errors"
	"fmt"

	"github.com/pdiddy/research-agent/internal/citation"
)

// ErrEmptyQuestion is returned when a request carries no question.
var ErrEmptyQuestion = errors.New("research request has no question")

// ConfigurationError reports a missing or invalid configuration value.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// GenerationError reports a failed or malformed model call in a stage.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SearchError reports a failed web research task.
type SearchError struct {
	Query  string
	TaskID int
	Err    error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search task %d (%q): %v", e.TaskID, e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// CitationResolutionError reports a grounding entry that was skipped. It is
// logged and never returned from Run.
type CitationResolutionError = citation.ResolutionError
