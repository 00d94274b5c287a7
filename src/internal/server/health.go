package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/casapps/casrecipes/src/internal/database"
)

// ComponentHealth represents the health status of a component
type ComponentHealth struct {
	Status  string `json:"status"` // healthy, critical, disabled
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// handleHealth reports 200 when the database answers and 503 otherwise.
// A failing cache degrades the status without failing the check.
func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:     "healthy",
		Version:    s.config.GetString("version"),
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: make(map[string]ComponentHealth),
	}
	code := http.StatusOK

	if err := database.Ping(ctx, s.db); err != nil {
		resp.Components["database"] = ComponentHealth{Status: "critical", Message: err.Error()}
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	} else {
		resp.Components["database"] = ComponentHealth{Status: "healthy"}
	}

	switch {
	case !s.cache.Enabled():
		resp.Components["cache"] = ComponentHealth{Status: "disabled"}
	default:
		if err := s.cache.Ping(ctx); err != nil {
			resp.Components["cache"] = ComponentHealth{Status: "critical", Message: err.Error()}
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		} else {
			resp.Components["cache"] = ComponentHealth{Status: "healthy"}
		}
	}

	return c.JSON(code, resp)
}
