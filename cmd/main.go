package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stockfolio/backend/config"
	"github.com/stockfolio/backend/data"
	"github.com/stockfolio/backend/data/lock"
	"github.com/stockfolio/backend/data/repository/postgres"
	"github.com/stockfolio/backend/internal/externalApi/iexApi"
	"github.com/stockfolio/backend/internal/httpserver"
	"github.com/stockfolio/backend/internal/reportGenerator/xlsxGenerator"
	"github.com/stockfolio/backend/internal/scheduler"
	"github.com/stockfolio/backend/internal/service/authService"
	"github.com/stockfolio/backend/internal/service/portfolioService"
	"github.com/stockfolio/backend/internal/transport/rest"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	demoLock := lock.NewRedisLock(redisClient, cfg)

	iexApiClient := iexApi.New(cfg)

	reportGenerator := xlsxGenerator.New()

	authSrv := authService.New(cfg, pgRepo)
	portfolioSrv := portfolioService.New(cfg, pgRepo, iexApiClient, demoLock, reportGenerator)

	sched := scheduler.New()
	sched.NewCrontabJob("portfolio value snapshot", portfolioSrv.SnapshotPortfolioValues, cfg.Jobs.SnapshotCrontab, false)
	sched.Start()
	defer sched.Stop()

	ctrl := rest.NewController(iexApiClient, authSrv, portfolioSrv)

	server := httpserver.New(cfg, ctrl, authSrv)
	server.Start()
	defer server.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
