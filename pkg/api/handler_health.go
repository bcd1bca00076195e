package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /api/health. The upstream agent service is the
// only external dependency, so its connectivity check (bounded by the
// configured timeout) decides the overall status.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), s.healthTimeout)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if err := s.upstream.Health(reqCtx); err != nil {
		status = healthStatusUnhealthy
		checks["upstream"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["upstream"] = HealthCheck{Status: healthStatusHealthy}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status: status,
		Checks: checks,
	})
}

// healthHeadHandler handles HEAD /api/health with a bare 200.
func (s *Server) healthHeadHandler(c *echo.Context) error {
	return c.NoContent(http.StatusOK)
}
