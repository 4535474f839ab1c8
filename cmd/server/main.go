package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/nichescope/internal/cluster"
	"github.com/mathieu-neron/nichescope/internal/config"
	"github.com/mathieu-neron/nichescope/internal/db"
	"github.com/mathieu-neron/nichescope/internal/events"
	"github.com/mathieu-neron/nichescope/internal/handler"
	"github.com/mathieu-neron/nichescope/internal/logging"
	"github.com/mathieu-neron/nichescope/internal/repository"
	"github.com/mathieu-neron/nichescope/internal/router"
	"github.com/mathieu-neron/nichescope/internal/service"
	"github.com/mathieu-neron/nichescope/internal/youtube"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogLevel, cfg.ServiceName)
	log := logging.Component("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	yt, err := youtube.NewClient(ctx, cfg.YouTubeAPIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create YouTube client")
	}

	cache := service.NewCacheService(cfg.RedisURL)
	defer cache.Close()

	publisher := events.Connect(cfg.NATSURL)
	defer publisher.Close()

	// Repositories
	historyRepo := repository.NewHistoryRepo(pool)
	competitorRepo := repository.NewCompetitorRepo(pool)
	subscriptionRepo := repository.NewSubscriptionRepo(pool)

	// Services
	metrics := service.NewMetricsService()
	nicheSvc := service.NewNicheService(yt, buildClusterer(cfg), metrics, historyRepo, cache, publisher)
	competitorSvc := service.NewCompetitorService(yt, competitorRepo, metrics, publisher)
	statsSvc := service.NewStatsService(historyRepo, cache)

	// Background workers
	refreshWorker := service.NewRefreshWorker(pool, nicheSvc, cfg.RefreshWindow)
	competitorWorker := service.NewCompetitorWorker(competitorSvc, cfg.CompetitorInterval)
	go refreshWorker.Start(ctx)
	go competitorWorker.Start(ctx)

	handler.InitMetrics(pool)

	app := fiber.New(fiber.Config{
		AppName:      "NicheScope API",
		ServerHeader: "NicheScope",
	})

	router.Setup(ctx, app, &router.Handlers{
		Health:     handler.NewHealthHandler(pool, cache.Client(), publisher),
		Niche:      handler.NewNicheHandler(nicheSvc),
		Competitor: handler.NewCompetitorHandler(competitorSvc),
		Stats:      handler.NewStatsHandler(statsSvc),
	}, router.Gates{
		Subscriptions:     subscriptionRepo,
		Quota:             cache,
		FreeDailyAnalyses: cfg.FreeDailyAnalyses,
	}, cfg.CORSOrigins)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("NicheScope API starting")
	if err := app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// buildClusterer chains the LLM clusterer (when an API key is configured)
// in front of the keyword clusterer.
func buildClusterer(cfg *config.Config) *cluster.Chain {
	var clusterers []cluster.Clusterer
	if cfg.LLMAPIKey != "" {
		client := cluster.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL)
		clusterers = append(clusterers, cluster.NewLLMClusterer(client, cfg.LLMModel, cfg.LLMTimeout))
	} else {
		logging.Component("server").Warn().Msg("LLM_API_KEY not set, using keyword clustering only")
	}
	clusterers = append(clusterers, cluster.NewKeywordClusterer())
	return cluster.NewChain(clusterers...)
}
