package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// Pinger reports per-backend connectivity, keyed by backend name.
type Pinger interface {
	Ping(ctx context.Context) map[string]error
}

type HealthHandler struct {
	backends Pinger
	checks   map[string]func(context.Context) error
	timeout  time.Duration
}

func NewHealthHandler(backends Pinger) *HealthHandler {
	return &HealthHandler{
		backends: backends,
		checks:   map[string]func(context.Context) error{},
		timeout:  3 * time.Second,
	}
}

// WithCheck adds a named dependency, such as the limiter storage, to the
// health report.
func (h *HealthHandler) WithCheck(name string, check func(context.Context) error) *HealthHandler {
	h.checks[name] = check
	return h
}

func (h *HealthHandler) results(ctx context.Context) map[string]error {
	results := h.backends.Ping(ctx)
	for name, check := range h.checks {
		results[name] = check(ctx)
	}
	return results
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	status := "ok"
	code := fiber.StatusOK
	backends := map[string]string{}
	for name, err := range h.results(ctx) {
		if err != nil {
			backends[name] = "unhealthy: " + err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
			continue
		}
		backends[name] = "ok"
	}

	return c.Status(code).JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Backends:  backends,
	})
}
