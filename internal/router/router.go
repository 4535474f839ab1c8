package router

import (
	"context"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/mathieu-neron/nichescope/internal/handler"
	"github.com/mathieu-neron/nichescope/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Health     *handler.HealthHandler
	Niche      *handler.NicheHandler
	Competitor *handler.CompetitorHandler
	Stats      *handler.StatsHandler
}

// Gates holds the subscription dependencies for plan-gated routes.
type Gates struct {
	Subscriptions     middleware.SubscriptionLookup
	Quota             middleware.QuotaCounter
	FreeDailyAnalyses int
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
// Background rate-limiter cleanup stops when ctx is cancelled.
func Setup(ctx context.Context, app *fiber.App, h *Handlers, g Gates, corsOrigins string) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(handler.MetricsMiddleware())
	app.Use(middleware.NewCORS(corsOrigins))

	// Probes and metrics (no auth)
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	requireUser := middleware.RequireUser()
	requirePlan := middleware.RequirePlan(g.Subscriptions, g.Quota, g.FreeDailyAnalyses)
	analyzeLimit := middleware.NewAnalyzeRateLimiter(ctx).Handler()
	scoreLimit := middleware.NewScoreRateLimiter(ctx).Handler()
	competitorLimit := middleware.NewCompetitorRateLimiter(ctx).Handler()
	statsLimit := middleware.NewStatsRateLimiter(ctx).Handler()

	api := app.Group("/api")

	// Niche routes
	api.Post("/niches/analyze", requireUser, analyzeLimit, requirePlan, h.Niche.Analyze)
	api.Post("/niches/score", scoreLimit, h.Niche.Score)
	api.Get("/niches/history", requireUser, h.Niche.History)
	api.Get("/niches/history/:id", requireUser, h.Niche.GetRun)
	api.Delete("/niches/history/:id", requireUser, h.Niche.DeleteRun)
	api.Post("/niches/history/:id/refresh", requireUser, h.Niche.Refresh)

	// Competitor routes
	api.Get("/competitors", requireUser, h.Competitor.List)
	api.Post("/competitors", requireUser, competitorLimit, h.Competitor.Track)
	api.Delete("/competitors/:channelId", requireUser, h.Competitor.Untrack)
	api.Get("/competitors/:channelId/snapshots", requireUser, h.Competitor.Snapshots)

	// Stats routes
	api.Get("/stats", statsLimit, h.Stats.GetStats)
}
