package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mathieu-neron/nichescope/internal/events"
)

type HealthHandler struct {
	pool    *pgxpool.Pool
	rdb     *redis.Client
	events  *events.Publisher
	startAt time.Time
}

func NewHealthHandler(pool *pgxpool.Pool, rdb *redis.Client, publisher *events.Publisher) *HealthHandler {
	return &HealthHandler{
		pool:    pool,
		rdb:     rdb,
		events:  publisher,
		startAt: time.Now(),
	}
}

// Live handles GET /health/live: liveness probe.
func (h *HealthHandler) Live(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready handles GET /health/ready: readiness probe with dependency checks.
// The database is required; Redis and NATS are optional and only degrade
// readiness when configured but unreachable.
func (h *HealthHandler) Ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{
		"database": checkDB(ctx, h.pool),
		"redis":    checkRedis(ctx, h.rdb),
		"nats":     checkNATS(h.events),
	}

	overallStatus := "healthy"
	for _, check := range checks {
		if st := check.(fiber.Map)["status"]; st != "up" && st != "disabled" {
			overallStatus = "degraded"
		}
	}

	resp := fiber.Map{
		"status":         overallStatus,
		"checks":         checks,
		"uptime_seconds": int(time.Since(h.startAt).Seconds()),
		"version":        "1.0.0",
	}

	status := fiber.StatusOK
	if overallStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(resp)
}

func checkDB(ctx context.Context, pool *pgxpool.Pool) fiber.Map {
	if pool == nil {
		return fiber.Map{"status": "down", "error": "not configured"}
	}

	start := time.Now()
	err := pool.Ping(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return fiber.Map{
			"status":     "down",
			"latency_ms": latency,
			"error":      "connection failed",
		}
	}
	return fiber.Map{
		"status":     "up",
		"latency_ms": latency,
	}
}

func checkRedis(ctx context.Context, rdb *redis.Client) fiber.Map {
	if rdb == nil {
		return fiber.Map{
			"status": "disabled",
		}
	}

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return fiber.Map{
			"status":     "down",
			"latency_ms": latency,
			"error":      "connection failed",
		}
	}
	return fiber.Map{
		"status":     "up",
		"latency_ms": latency,
	}
}

func checkNATS(p *events.Publisher) fiber.Map {
	switch {
	case !p.Enabled():
		return fiber.Map{"status": "disabled"}
	case !p.Connected():
		return fiber.Map{"status": "down", "error": "reconnecting"}
	default:
		return fiber.Map{"status": "up"}
	}
}
