package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/smart-audit/backend/internal/analysis"
	"github.com/smart-audit/backend/internal/config"
	"github.com/smart-audit/backend/internal/domain"
	"github.com/smart-audit/backend/internal/logger"
	"github.com/smart-audit/backend/internal/repository"
	"github.com/smart-audit/backend/internal/storage"
	"github.com/smart-audit/backend/internal/worker"
)

func main() {
	// Initialize logger first (with defaults)
	envCfg := logger.LoadFromEnv()
	envCfg.ServiceName = "smart-audit-worker"
	log := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()
	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_PATH")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
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

	// Initialize analysis gateway
	gateway := analysis.NewClient(analysis.Config{
		Endpoint:     cfg.Analysis.Endpoint,
		APIKey:       cfg.Analysis.APIKey,
		AnalyzerID:   cfg.Analysis.AnalyzerID,
		APIVersion:   cfg.Analysis.APIVersion,
		PollInterval: cfg.Analysis.PollInterval,
		Timeout:      cfg.Analysis.Timeout,
	}, log)
	if !gateway.Configured() {
		log.Warn("Analysis service not configured, jobs will complete with analysis skipped")
	}

	processor := worker.NewProcessor(jobRepo, store, gateway, log)
	w := worker.New(&cfg.RabbitMQ, processor, log)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	if pending, err := jobRepo.CountByStatus(ctx, domain.JobStatusPending); err == nil {
		log.WithField(logger.FieldCount, pending).Info("Pending job backlog at startup")
	}

	log.WithField(logger.FieldQueue, cfg.RabbitMQ.Queue).Info("Document processing worker starting")
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("Worker exited unexpectedly")
	}
}
