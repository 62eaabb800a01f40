// Package httpapi provides the HTTP API for medchatd.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/conversation"
	"github.com/willowhealth/medchatd/internal/gate"
	"github.com/willowhealth/medchatd/internal/workflow"
)

// Workflow starts a question-answering run for a conversation state.
type Workflow interface {
	Start(ctx context.Context, state *conversation.State) (*workflow.Execution, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Addr string
}

// Server provides the HTTP endpoints for medchatd.
type Server struct {
	echo     *echo.Echo
	workflow Workflow
	metrics  *Metrics
	logger   *zap.Logger
	config   Config
}

// NewServer creates the HTTP server.
func NewServer(wf Workflow, metrics *Metrics, logger *zap.Logger, cfg Config) (*Server, error) {
	if wf == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		workflow: wf,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/messages", s.handleMessages)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleMessages runs the workflow for the posted conversation and returns
// the mutated envelope: the assistant reply appended to the transcript and
// one urls entry appended (source URLs on the answer path, null on the
// reject path). A stage failure yields an error status with no partial
// transcript.
func (s *Server) handleMessages(c echo.Context) error {
	var envelope ChatEnvelope
	if err := c.Bind(&envelope); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	start := time.Now()

	ex, err := s.workflow.Start(ctx, envelope.toState())
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidInput) {
			s.metrics.observe(OutcomeFailed, time.Since(start).Seconds())
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.metrics.observe(OutcomeFailed, time.Since(start).Seconds())
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to start workflow")
	}

	rejected := false
	stageStart := time.Now()
	for delta := range ex.Deltas() {
		if delta.Stage == workflow.StageRelevanceCheck && delta.Verdict == gate.NotRelevant {
			rejected = true
		}
		s.metrics.stageDuration.WithLabelValues(string(delta.Stage)).Observe(time.Since(stageStart).Seconds())
		stageStart = time.Now()
		s.logger.Debug("workflow stage complete",
			zap.String("stage", string(delta.Stage)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
	}

	final, err := ex.Wait()
	if err != nil {
		s.metrics.observe(OutcomeFailed, time.Since(start).Seconds())
		s.logger.Error("workflow failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to answer question")
	}

	reply, ok := final.LastMessage()
	if !ok || reply.Role != conversation.RoleAssistant {
		s.metrics.observe(OutcomeFailed, time.Since(start).Seconds())
		return echo.NewHTTPError(http.StatusInternalServerError, "workflow produced no reply")
	}

	envelope.Input.Messages = append(envelope.Input.Messages, ChatMessage{
		Role:    string(reply.Role),
		Content: reply.Content,
	})

	if rejected {
		// null urls entry marks the refusal.
		envelope.URLs = append(envelope.URLs, nil)
		s.metrics.observe(OutcomeRejected, time.Since(start).Seconds())
	} else {
		envelope.URLs = append(envelope.URLs, sourceURLs(final.Documents))
		s.metrics.documentsServed.Observe(float64(len(final.Documents)))
		s.metrics.observe(OutcomeAnswered, time.Since(start).Seconds())
	}

	return c.JSON(http.StatusOK, &envelope)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	return s.echo.Start(s.config.Addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
