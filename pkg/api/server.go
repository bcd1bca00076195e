// Package api exposes the chatrelay HTTP surface: the streaming chat
// endpoint, health probes, and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentline/chatrelay/pkg/config"
	"github.com/agentline/chatrelay/pkg/relay"
	"github.com/agentline/chatrelay/pkg/upstream"
)

// UpstreamClient is the slice of the agent-service client the API needs.
type UpstreamClient interface {
	Stream(ctx context.Context, req upstream.ChatRequest) (<-chan upstream.Event, error)
	Health(ctx context.Context) error
}

// Server is the chatrelay API server.
type Server struct {
	cfg           *config.Config
	upstream      UpstreamClient
	relay         *relay.Relay
	healthTimeout time.Duration
	echo          *echo.Echo
	httpServer    *http.Server
}

// NewServer assembles the server, its relay, and all routes.
func NewServer(cfg *config.Config, upstreamClient UpstreamClient) *Server {
	healthTimeout, err := cfg.ParsedHealthTimeout()
	if err != nil {
		// Load validates the duration; reaching this means the config was
		// built by hand. Fall back rather than panic.
		healthTimeout = 5 * time.Second
	}

	s := &Server{
		cfg:           cfg,
		upstream:      upstreamClient,
		relay:         relay.New(upstreamClient, cfg.Chat.MaxRetries),
		healthTimeout: healthTimeout,
	}

	e := echo.New()
	e.Use(securityHeaders(), requestMetrics())

	origins := originCheck(cfg.Server.AllowedOrigins)
	e.POST("/api/chat", s.chatHandler, origins, requestSizeLimit(cfg.Chat.MaxRequestBytes))
	e.OPTIONS("/api/chat", s.chatPreflightHandler, origins)
	e.GET("/api/chat", s.chatLivenessHandler, origins)

	e.GET("/api/health", s.healthHandler)
	e.HEAD("/api/health", s.healthHeadHandler)

	promHandler := promhttp.Handler()
	e.GET("/metrics", func(c *echo.Context) error {
		promHandler.ServeHTTP(c.Response(), c.Request())
		return nil
	})

	s.echo = e
	return s
}

// Handler returns the underlying HTTP handler (used by tests).
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving HTTP on addr until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, letting in-flight streams finish
// within ctx's budget.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
