package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthInfo describes the configured backends
type HealthInfo struct {
	Storage     string // "s3" or "memory"
	Queue       string // "asynq" or "local"
	AuthEnabled bool
}

type HealthHandler struct {
	redis *redis.Client
	info  HealthInfo
}

// NewHealthHandler creates the health handler. redisClient may be nil when
// no backend needs redis.
func NewHealthHandler(redisClient *redis.Client, info HealthInfo) *HealthHandler {
	return &HealthHandler{redis: redisClient, info: info}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := "ok"
	redisStatus := "disabled"

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		redisStatus = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unavailable"
			status = "degraded"
		}
	}

	return c.JSON(fiber.Map{
		"status": status,
		"services": fiber.Map{
			"redis":   redisStatus,
			"storage": h.info.Storage,
			"queue":   h.info.Queue,
			"auth":    h.info.AuthEnabled,
		},
	})
}

// Root handles GET /
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"timestamp": time.Now().Unix(),
	})
}
