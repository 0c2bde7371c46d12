package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnhub-backend/internal/config"
	"learnhub-backend/internal/database"
	"learnhub-backend/internal/handlers"
	"learnhub-backend/internal/logger"
	"learnhub-backend/internal/middleware"
	"learnhub-backend/internal/repository"
	"learnhub-backend/internal/router"
	"learnhub-backend/internal/services"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting learnhub backend", "env", cfg.Env)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres connection failed", "error", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	// ──── Step 3: Run Database Migrations ────
	if err := database.RunMigrations(context.Background(), pool, database.Migrations(), log); err != nil {
		log.Fatal("database migration failed", "error", err)
	}
	log.Info("database migrations applied")

	// ──── Step 4: Initialize Redis Client ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatal("redis connection failed", "error", err)
	}
	defer redisClient.Close()
	log.Info("redis connected")

	// ──── Initialize Repositories ────
	catalog := repository.NewCachedCatalog(
		repository.NewCatalogRepo(pool),
		redisClient,
		cfg.CatalogCacheTTL,
		log.With("component", "catalog_cache"),
	)
	enrollment := repository.NewEnrollmentRepo(pool)
	progressStore := repository.NewProgressRepo(pool)

	// ──── Initialize Services ────
	engine := services.NewProgressEngine(catalog, progressStore, log.With("component", "progress_engine"))
	queries := services.NewProgressQueryService(catalog, enrollment, progressStore)
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	// ──── Initialize Handlers ────
	progressHandler := handlers.NewProgressHandler(engine, queries, log.With("component", "http"))

	// ──── Step 5: Start HTTP Server ────
	r, writeLimiter := router.New(jwtAuth, progressHandler, log, router.Options{
		FrontendURL:        cfg.FrontendURL,
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")
		writeLimiter.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Info("learnhub backend ready", "addr", server.Addr, "api", "/api/v1")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("server error", "error", err)
	}
}
