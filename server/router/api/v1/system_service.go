package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/yougpt/ai"
	"github.com/hrygo/yougpt/chat"
	"github.com/hrygo/yougpt/internal/profile"
)

// healthCheckTimeout bounds a health probe regardless of the engine.
const healthCheckTimeout = 3 * time.Second

type SystemService struct {
	Chat    *chat.Service
	Profile *profile.Profile
}

type HealthResponse struct {
	ai.HealthStatus
	Engine  string `json:"engine"`
	Version string `json:"version"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

func (s *SystemService) GetHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	status := s.Chat.Engine().HealthCheck(ctx)
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, &HealthResponse{
		HealthStatus: status,
		Engine:       s.Profile.Engine,
		Version:      s.Profile.Version,
	})
}

func (s *SystemService) GetModel(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Chat.Engine().ModelInfo())
}

func (s *SystemService) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, &StatusResponse{Status: s.Chat.Status()})
}
