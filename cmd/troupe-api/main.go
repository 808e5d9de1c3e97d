package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"troupe/internal/api"
	"troupe/internal/auth"
	"troupe/internal/config"
	"troupe/internal/db"
	"troupe/internal/game"
	"troupe/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.NewPostgres(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
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

	authMgr := auth.NewManager(st)
	gameSvc := game.NewService(st, catalog, bal, logger)

	server := api.New(cfg, logger, authMgr, gameSvc)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("troupe api listening", "addr", cfg.Addr, "catalog", catalog.Len())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
