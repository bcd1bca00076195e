package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/agentline/chatrelay/pkg/sse"
)

// chatHandler handles POST /api/chat. It validates the conversation turn,
// opens the first upstream stream, and hands the response body over to the
// relay as an SSE feed. Failures before streaming starts are HTTP errors;
// once the SSE headers are written every failure is reported in-band.
func (s *Server) chatHandler(c *echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, &ErrorResponse{
			Error:   "validation_error",
			Message: "request body must be valid JSON",
			Path:    "body",
		})
	}

	if failure := validateChatRequest(&req, s.cfg.Chat); failure != nil {
		return c.JSON(http.StatusBadRequest, &ErrorResponse{
			Error:   "validation_error",
			Message: failure.Message,
			Path:    failure.Path,
		})
	}

	upstreamReq := toUpstreamRequest(&req)
	ctx := c.Request().Context()

	// The pre-stream/mid-stream distinction matters: a connection failure
	// here can still be a structured HTTP error, a later one cannot.
	stream, err := s.upstream.Stream(ctx, upstreamReq)
	if err != nil {
		slog.Error("Upstream unreachable before streaming started",
			"thread_id", req.ThreadID, "error", err)
		return c.JSON(http.StatusServiceUnavailable, &ErrorResponse{
			Error:   "upstream_unavailable",
			Message: "agent service is unreachable",
			Details: err.Error(),
		})
	}

	h := c.Response().Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	s.relay.Run(ctx, upstreamReq, stream, sse.NewWriter(c.Response()))
	return nil
}

// chatPreflightHandler handles OPTIONS /api/chat (CORS preflight).
// Allow-Origin/Allow-Credentials are set by the originCheck middleware.
func (s *Server) chatPreflightHandler(c *echo.Context) error {
	h := c.Response().Header()
	h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Max-Age", "86400")
	return c.NoContent(http.StatusNoContent)
}

// chatLivenessHandler handles GET /api/chat.
func (s *Server) chatLivenessHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &LivenessResponse{
		Message: "chat endpoint is running, POST a conversation to stream a response",
	})
}
