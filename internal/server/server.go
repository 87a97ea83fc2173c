// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes research sessions over HTTP.
//
//	POST /api/research              start a session: {"topic": "..."}
//	GET  /api/research/:id/stream   progress events as server-sent events
//	GET  /api/research/:id          the finished session
//	GET  /healthz                   liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/archive"
	"github.com/pdiddy/research-assistant/internal/session"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Response messages.
const (
	msgTopicRequired   = "Topic is required."
	msgSessionNotFound = "Session not found."
	msgNotFinished     = "Session not found or still running."
)

// Sessions starts sessions and exposes their events and results.
// *session.Registry satisfies it.
type Sessions interface {
	Start(topic string) string
	Events(id string) (<-chan types.Event, bool)
	Result(id string) (*types.Session, bool)
}

// Archive looks up sessions that are no longer held in memory.
// *archive.Store satisfies it.
type Archive interface {
	Get(ctx context.Context, id string) (*types.Session, error)
}

// Options configures a Server.
type Options struct {
	Sessions Sessions

	// Archive is optional.
	Archive Archive

	// LLMError, when set, makes POST /api/research fail with its message.
	// It reports a model that cannot be called, such as a missing API key.
	LLMError error

	AllowedOrigins []string
	Heartbeat      time.Duration
	Logger         *zap.Logger
}

// Server is the HTTP front end.
type Server struct {
	engine    *gin.Engine
	sessions  Sessions
	archive   Archive
	llmErr    error
	heartbeat time.Duration
	logger    *zap.Logger
}

// New builds the router. Callers choose the gin mode beforehand.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sessions:  opts.Sessions,
		archive:   opts.Archive,
		llmErr:    opts.LLMError,
		heartbeat: opts.Heartbeat,
		logger:    logger,
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(corsMiddleware(opts.AllowedOrigins))

	r.GET("/healthz", s.health)
	api := r.Group("/api/research")
	api.POST("", s.startResearch)
	api.GET("/:id/stream", s.streamEvents)
	api.GET("/:id", s.getSession)

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type startRequest struct {
	Topic string `json:"topic"`
}

func (s *Server) startResearch(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("bad start request", zap.Error(err))
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgTopicRequired})
		return
	}
	if s.llmErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": s.llmErr.Error()})
		return
	}

	id := s.sessions.Start(topic)
	c.JSON(http.StatusOK, gin.H{"session_id": id, "status": "started"})
}

func (s *Server) streamEvents(c *gin.Context) {
	id := c.Param("id")
	events, ok := s.sessions.Events(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": msgSessionNotFound})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	err := session.Stream(c.Request.Context(), events, s.heartbeat, func(ev types.Event) error {
		return writeSSE(c, ev)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("stream ended", zap.String("session", id), zap.Error(err))
	}
}

// writeSSE writes ev as one "data:" frame and flushes it.
func writeSSE(c *gin.Context, ev types.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := c.Writer.WriteString("data: " + string(data) + "\n\n"); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

func (s *Server) getSession(c *gin.Context) {
	id := c.Param("id")
	if sess, ok := s.sessions.Result(id); ok {
		c.JSON(http.StatusOK, sess)
		return
	}

	if s.archive != nil {
		sess, err := s.archive.Get(c.Request.Context(), id)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, sess)
			return
		case !errors.Is(err, archive.ErrNotFound):
			s.logger.Error("archive lookup failed", zap.String("session", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Archive lookup failed."})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": msgNotFinished})
}
