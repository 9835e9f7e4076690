// backend-go/cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/api"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/cache"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/config"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/repository"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/service"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/storage"
	"github.com/andresuchdata/autopo-dp/backend-go/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := service.Options{
		BatchWorkers: cfg.Solver.BatchWorkers,
		MaxCells:     cfg.Solver.MaxCells,
	}

	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to migrate database")
		}
		opts.Runs = repository.NewRunRepository(db)
	}

	if cfg.Storage.Enabled {
		store, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize object storage")
		}
		opts.Storage = store
		opts.ExportPrefix = cfg.Storage.Prefix
	}

	resultCache, err := cache.NewResultCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, result cache disabled")
		resultCache = cache.NewNoopResultCache()
	}

	solverService := service.NewSolverService(resultCache, opts)
	router := api.NewRouter(&api.Services{SolverService: solverService}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// In-flight solves get the write timeout to finish
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.WriteTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
