package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seaprocure/internal/api"
	"seaprocure/internal/auth"
	"seaprocure/internal/config"
	"seaprocure/internal/database"
	"seaprocure/internal/server"
	"seaprocure/internal/storage"
	"seaprocure/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	seed := flag.Bool("seed", false, "Create demo users and RFQ-1001")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}
	if *seed {
		cfg.Server.Seed = true
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("DB init failed: %w", err)
	}
	defer db.Close()

	perms := auth.NewPermCache()
	if err := auth.InitPermissionsTable(db, perms); err != nil {
		return fmt.Errorf("permissions init failed: %w", err)
	}
	if cfg.Server.Seed {
		password := cfg.Server.SeedPassword
		if password == "" {
			password = database.DemoPassword
		}
		if err := database.SeedWithPassword(db, logger, password); err != nil {
			return err
		}
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage init failed: %w", err)
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("no jwt_secret configured, using a random one; tokens will not survive a restart")
	}

	app := &server.App{
		DB:      db,
		Hub:     websocket.NewHub(logger),
		Perms:   perms,
		Tokens:  auth.NewTokens(secret, cfg.Server.AccessTTL, cfg.Server.RefreshTTL),
		Store:   store,
		Limiter: server.NewRateLimiter(),
		Logger:  logger,
	}

	jobs, err := server.StartMaintenance(app, cfg.Server.Maintenance)
	if err != nil {
		return err
	}
	defer jobs.Stop()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(app),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("seaprocure listening", "addr", cfg.Server.Addr, "db", cfg.Server.DBPath, "storage", cfg.Storage.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
