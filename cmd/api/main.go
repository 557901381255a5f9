package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fundcrm/internal/adapter/repo"
	"fundcrm/internal/http/handlers"
	"fundcrm/internal/http/httpapi"
	"fundcrm/internal/infra"
	"fundcrm/internal/pipeline"
	"fundcrm/internal/providers/draft"
	"fundcrm/internal/slack"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	donors := repo.NewDonorRepository(dbpool, cfg.StoreTimeout)
	activities := repo.NewActivityRepository(infra.NewSQLRunner(dbpool, logger), cfg.StoreTimeout)

	engine := pipeline.New(donors, activities, logger, pipeline.Options{
		LockClosedStages: cfg.LockClosedStages,
	})

	drafter := buildDrafter(cfg, logger)

	var commander *slack.Commander
	if cfg.SlackSigningSecret != "" {
		commander = slack.NewCommander(engine, logger)
	} else {
		logger.Warn().Msg("SLACK_SIGNING_SECRET not set, slash commands disabled")
	}

	app := handlers.NewApp(engine, drafter, commander, cfg.SlackSigningSecret, logger)

	router := httpapi.NewRouter(app, logger, httpapi.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		DraftRatePerMin: cfg.DraftRatePerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func buildDrafter(cfg *infra.Config, logger infra.Logger) draft.Drafter {
	template := draft.NewTemplateDrafter("Diksha Foundation")
	if cfg.DraftProvider != "deepseek" {
		return template
	}
	drafter, err := draft.NewDeepSeekDrafter(draft.DeepSeekOptions{
		APIKey:   cfg.DeepSeekAPIKey,
		Model:    cfg.DeepSeekModel,
		BaseURL:  cfg.DeepSeekBaseURL,
		Fallback: template,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("deepseek draft fell back to template")
		},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("deepseek drafter unavailable, using templates")
		return template
	}
	return drafter
}
