package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"troupe/internal/bot"
	"troupe/internal/config"
	"troupe/internal/db"
	"troupe/internal/game"
	"troupe/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadBotFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var st game.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg := store.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("schema init failed", "err", err)
			os.Exit(1)
		}
		st = pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMemory()
	}

	catalog, err := game.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Error("load catalog failed", "err", err)
		os.Exit(1)
	}
	bal, err := game.LoadBalance(cfg.BalancePath)
	if err != nil {
		logger.Error("load balance failed", "err", err)
		os.Exit(1)
	}

	gameSvc := game.NewService(st, catalog, bal, logger)
	gateway, err := bot.New(cfg.DiscordToken, cfg.CommandPrefix, gameSvc, logger)
	if err != nil {
		logger.Error("bot init failed", "err", err)
		os.Exit(1)
	}
	if err := gateway.Start(); err != nil {
		logger.Error("bot start failed", "err", err)
		os.Exit(1)
	}
	logger.Info("troupe bot connected", "prefix", cfg.CommandPrefix)

	<-ctx.Done()
	if err := gateway.Stop(); err != nil {
		logger.Error("bot stop failed", "err", err)
	}
}
