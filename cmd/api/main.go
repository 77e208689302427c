package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smart-audit/backend/internal/api"
	"github.com/smart-audit/backend/internal/config"
	"github.com/smart-audit/backend/internal/logger"
	"github.com/smart-audit/backend/internal/queue"
	"github.com/smart-audit/backend/internal/repository"
	"github.com/smart-audit/backend/internal/service"
	"github.com/smart-audit/backend/internal/storage"
)

func main() {
	// Initialize logger first
	log := logger.NewDefault()
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	jobRepo := repository.NewJobRepository(db)

	// Initialize document storage
	store, err := storage.NewDocumentStore(&cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize document storage")
	}

	// Connect the queue publisher; a broker outage degrades submissions to
	// queued=false instead of failing startup
	publisher := queue.NewPublisher(&cfg.RabbitMQ, log)
	if err := publisher.Connect(); err != nil {
		log.WithError(err).Warn("RabbitMQ connection failed, jobs will not be queued")
	}
	defer publisher.Close()

	documentService := service.NewDocumentService(jobRepo, store, publisher, log)

	// Setup router
	router := api.SetupRouter(documentService, jobRepo, cfg, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}

	log.Info("Server exited")
}
