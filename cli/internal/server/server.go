// Package server exposes the workflow catalog over HTTP with gin.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Jeffail/gabs/v2"
	"github.com/gin-gonic/gin"

	"github.com/hexastack/agentic/channel"
	"github.com/hexastack/agentic/channel/web"
	"github.com/hexastack/agentic/runtime"
)

type Options struct {
	// Hub serves GET /ws/:subscriber when set.
	Hub *web.Hub
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// DefaultChannel addresses runs whose request names no channel.
	DefaultChannel string
	// OnMessage is the workflow run for inbound channel messages.
	OnMessage string
}

type Server struct {
	l       *slog.Logger
	catalog *runtime.Catalog
	interp  *runtime.Interpreter
	opts    Options
	engine  *gin.Engine
}

func New(l *slog.Logger, catalog *runtime.Catalog, interp *runtime.Interpreter, opts Options) *Server {
	if l == nil {
		l = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		l:       l,
		catalog: catalog,
		interp:  interp,
		opts:    opts,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.logRequests)
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/workflows", s.listWorkflows)
	s.engine.GET("/workflows/:name", s.getWorkflow)
	s.engine.POST("/workflows/:name/run", s.runWorkflow)
	s.engine.GET("/actions", s.listActions)

	if s.opts.Hub != nil {
		s.engine.GET("/ws/:subscriber", func(c *gin.Context) {
			if err := s.opts.Hub.Serve(c.Writer, c.Request, c.Param("subscriber")); err != nil {
				s.l.Warn("Web socket closed with error", "error", err)
			}
		})
	}
	if s.opts.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}
}

func (s *Server) logRequests(c *gin.Context) {
	c.Next()
	s.l.Debug("HTTP request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status())
}

type workflowSummary struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Tasks       []string `json:"tasks"`
	Actions     []string `json:"actions"`
}

func summarize(wf *runtime.Workflow) workflowSummary {
	return workflowSummary{
		Name:        wf.Name(),
		Version:     wf.Version(),
		Description: wf.Description(),
		Tasks:       wf.Tasks(),
		Actions:     wf.Actions(),
	}
}

func (s *Server) listWorkflows(c *gin.Context) {
	list := s.catalog.List()
	out := make([]workflowSummary, 0, len(list))
	for _, wf := range list {
		out = append(out, summarize(wf))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getWorkflow(c *gin.Context) {
	wf, err := s.catalog.Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"workflow": summarize(wf),
		"source":   string(wf.Source()),
	})
}

type actionInfo struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	InputSchema    map[string]any `json:"input_schema,omitempty"`
	OutputSchema   map[string]any `json:"output_schema,omitempty"`
	SettingsSchema map[string]any `json:"settings_schema,omitempty"`
}

func (s *Server) listActions(c *gin.Context) {
	actions := s.catalog.Registry().List()
	out := make([]actionInfo, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionInfo{
			Name:           a.Name(),
			Description:    a.Description(),
			InputSchema:    a.InputSchema(),
			OutputSchema:   a.OutputSchema(),
			SettingsSchema: a.SettingsSchema(),
		})
	}
	c.JSON(http.StatusOK, out)
}

var wrongBodyFormatRes = gin.H{"message": "Wrong request body format"}

func (s *Server) runWorkflow(c *gin.Context) {
	wf, err := s.catalog.Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}

	req, err := s.parseRunRequest(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, wrongBodyFormatRes)
		return
	}

	result, err := s.interp.Run(c.Request.Context(), wf, req)
	if err != nil {
		var execErr *runtime.ExecutionError
		if !errors.As(err, &execErr) {
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
		c.JSON(statusFor(execErr), gin.H{
			"run_id":   result.RunID,
			"workflow": result.Workflow,
			"status":   result.Status,
			"steps":    result.Steps,
			"error":    execErr.ToMap(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// parseRunRequest reads {vars, input, channel, recipient, metadata}. Every
// field is optional; an empty body runs with empty state.
func (s *Server) parseRunRequest(body io.Reader) (runtime.RunRequest, error) {
	req := runtime.RunRequest{Channel: runtime.Channel{Name: s.opts.DefaultChannel}}

	data, err := io.ReadAll(body)
	if err != nil {
		return req, err
	}
	if len(data) == 0 {
		return req, nil
	}
	parsed, err := gabs.ParseJSON(data)
	if err != nil {
		return req, err
	}
	if _, ok := parsed.Data().(map[string]any); !ok {
		return req, errors.New("request body must be an object")
	}

	req.Vars, _ = parsed.S("vars").Data().(map[string]any)
	req.Input, _ = parsed.S("input").Data().(map[string]any)
	if name, ok := parsed.S("channel").Data().(string); ok && name != "" {
		req.Channel.Name = name
	}
	req.Channel.Recipient, _ = parsed.S("recipient").Data().(string)
	req.Channel.Metadata, _ = parsed.S("metadata").Data().(map[string]any)
	return req, nil
}

func statusFor(err *runtime.ExecutionError) int {
	switch err.Kind() {
	case runtime.KindDefinition:
		return http.StatusUnprocessableEntity
	case runtime.KindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleMessage runs the OnMessage workflow for an inbound channel message,
// replying on the channel it came from. It is a channel.Handler.
func (s *Server) HandleMessage(ctx context.Context, msg channel.Message) {
	if s.opts.OnMessage == "" {
		return
	}
	l := s.l.With("channel", msg.Channel, "sender", msg.Sender)

	wf, err := s.catalog.Get(s.opts.OnMessage)
	if err != nil {
		l.ErrorContext(ctx, "Inbound message dropped", "error", err)
		return
	}
	if _, err := s.interp.Run(ctx, wf, runtime.RunRequest{
		Input:   msg.Input(),
		Channel: msg.Target(),
	}); err != nil {
		l.ErrorContext(ctx, "Inbound message handling failed", "error", err)
	}
}
