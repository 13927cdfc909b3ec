// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/archive"
	"github.com/pdiddy/research-agent/internal/research"
	"github.com/pdiddy/research-agent/pkg/types"
)

// statusClientClosedRequest is the nginx convention for a request the
// client abandoned before the response was ready.
const statusClientClosedRequest = 499

// ResearchRequest is the body of the research endpoints. Question is a
// shorthand for a single human message.
type ResearchRequest struct {
	Messages                []types.Message `json:"messages"`
	Question                string          `json:"question"`
	InitialSearchQueryCount int             `json:"initial_search_query_count"`
	MaxResearchLoops        int             `json:"max_research_loops"`
	ReasoningModel          string          `json:"reasoning_model"`
}

func (r ResearchRequest) toRequest() research.Request {
	messages := r.Messages
	if len(messages) == 0 && strings.TrimSpace(r.Question) != "" {
		messages = []types.Message{types.HumanMessage(r.Question)}
	}
	return research.Request{
		Messages:                messages,
		InitialSearchQueryCount: r.InitialSearchQueryCount,
		MaxResearchLoops:        r.MaxResearchLoops,
		ReasoningModel:          r.ReasoningModel,
	}
}

// APIError is the error body returned by every endpoint.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorStatus maps an error to its HTTP status and code.
func errorStatus(err error) (int, string) {
	var (
		cfgErr    *research.ConfigurationError
		genErr    *research.GenerationError
		searchErr *research.SearchError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "CANCELED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "DEADLINE_EXCEEDED"
	case errors.Is(err, research.ErrEmptyQuestion):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, archive.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, "CONFIGURATION"
	case errors.As(err, &genErr):
		return http.StatusBadGateway, "GENERATION"
	case errors.As(err, &searchErr):
		return http.StatusBadGateway, "SEARCH"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (s *Server) abort(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": APIError{Code: code, Message: err.Error()}})
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

func (s *Server) bind(c *gin.Context) (research.Request, bool) {
	var body ResearchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": APIError{Code: "INVALID_ARGUMENT", Message: err.Error()}})
		return research.Request{}, false
	}
	return body.toRequest(), true
}

// save archives a completed run. Failures are logged; the caller still
// receives its answer.
func (s *Server) save(ctx context.Context, res types.Result) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Save(ctx, res); err != nil {
		s.logger.Warn("archiving run failed", zap.String("run_id", res.RunID), zap.Error(err))
	}
}

// research handles POST /api/research and blocks until the answer is ready.
func (s *Server) research(c *gin.Context) {
	req, ok := s.bind(c)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.runner.Run(ctx, req)
	if err != nil {
		s.abort(c, err)
		return
	}
	s.save(context.WithoutCancel(ctx), res)
	c.JSON(http.StatusOK, res)
}

// stream handles POST /api/research/stream. Each progress event is sent as a
// server-sent event named after its stage, followed by a final result or
// error event.
func (s *Server) stream(c *gin.Context) {
	req, ok := s.bind(c)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	events := make(chan research.Event, 16)
	req.Observer = research.ObserverFunc(func(e research.Event) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	})

	type outcome struct {
		res types.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.runner.Run(ctx, req)
		// Observe runs on this goroutine, so no send can follow.
		close(events)
		done <- outcome{res, err}
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for e := range events {
		c.SSEvent(e.Stage.String(), e)
		c.Writer.Flush()
	}

	out := <-done
	if out.err != nil {
		_, code := errorStatus(out.err)
		s.logger.Warn("streamed run failed", zap.String("code", code), zap.Error(out.err))
		c.SSEvent("error", APIError{Code: code, Message: out.err.Error()})
	} else {
		s.save(context.WithoutCancel(ctx), out.res)
		c.SSEvent("result", out.res)
	}
	c.Writer.Flush()
}

// listRuns handles GET /api/runs?q=&limit=.
func (s *Server) listRuns(c *gin.Context) {
	opts := archive.QueryOptions{Query: c.Query("q")}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": APIError{Code: "INVALID_ARGUMENT", Message: "limit must be a non-negative integer"}})
			return
		}
		opts.MaxResults = n
	}

	runs, err := s.archive.List(c.Request.Context(), opts)
	if err != nil {
		s.abort(c, err)
		return
	}
	if runs == nil {
		runs = []archive.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// getRun handles GET /api/runs/:id.
func (s *Server) getRun(c *gin.Context) {
	res, err := s.archive.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
