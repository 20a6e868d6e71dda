package handlers

import (
	"context"
	"os"
	"time"

	"github.com/amirphl/measurement-reporting/app/dto"
	"github.com/amirphl/measurement-reporting/utils"
	"github.com/gofiber/fiber/v3"
)

// Pinger is a dependency the health endpoint checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandlerInterface interface {
	Health(c fiber.Ctx) error
}

type HealthHandler struct {
	checks  map[string]Pinger
	version string
}

// NewHealthHandler checks every named dependency on each request; nil pingers are skipped
func NewHealthHandler(version string, checks map[string]Pinger) HealthHandlerInterface {
	filtered := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			filtered[name] = p
		}
	}
	return &HealthHandler{checks: filtered, version: version}
}

// Health reports dependency health
// @Summary Health Check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.HealthResponse}
// @Failure 503 {object} dto.APIResponse{data=dto.HealthResponse}
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	res := dto.HealthResponse{
		Status:  "ok",
		Checks:  make(map[string]string, len(h.checks)),
		Time:    utils.UTCNow(),
		Version: h.version,
	}
	if hostname, err := os.Hostname(); err == nil {
		res.Hostname = hostname
	}

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			res.Checks[name] = err.Error()
			res.Status = "degraded"
			continue
		}
		res.Checks[name] = "ok"
	}

	if res.Status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{Success: false, Message: "Service is degraded", Data: res, Error: dto.ErrorDetail{Code: "SERVICE_DEGRADED"}})
	}
	return c.JSON(dto.APIResponse{Success: true, Message: "Service is healthy", Data: res})
}
