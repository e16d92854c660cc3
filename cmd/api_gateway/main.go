package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scrapyard-ledger/internal/api_gateway"
	"github.com/scrapyard-ledger/internal/api_gateway/service"
	"github.com/scrapyard-ledger/internal/config"
	"github.com/scrapyard-ledger/internal/data/mongo"
	"github.com/scrapyard-ledger/internal/data/postgres"
	"github.com/scrapyard-ledger/internal/logger"
	"github.com/scrapyard-ledger/internal/platform/messaging/consumers"
	"github.com/scrapyard-ledger/internal/platform/messaging/producers"
	"github.com/scrapyard-ledger/internal/platform/persistence"
	"github.com/scrapyard-ledger/internal/reconciler"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	if err := mongo.EnsureLedgerIndexes(appCtx, mongoDB.Database()); err != nil {
		log.Error("Failed to ensure ledger indexes", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	employeeRepo := postgres.NewEmployeeRepository(log, postgresDB)
	advanceRepo := postgres.NewAdvanceRepository(log, postgresDB)
	ledgerRepo := mongo.NewLedgerRepository(log, mongoDB.Database())

	// Initialize Kafka producers
	changeEventProducer, err := producers.NewChangeEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize change event Kafka producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize services
	transactionService := service.NewLifecycleService(
		log, postgresDB, transactionRepo, outboxRepo, employeeRepo, changeEventProducer, cfg.Server.CompleteTimeout,
	)
	ledgerService := service.NewLedgerService(log, ledgerRepo, outboxRepo)
	employeeService := service.NewEmployeeService(log, employeeRepo, advanceRepo, outboxRepo)

	// Initialize the change-event reconciler. Its cache converges this
	// instance with mutations made through other instances of the gateway.
	cache := reconciler.NewCache()
	changeConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)
	recon := reconciler.NewReconciler(log, &cfg.Kafka, cache, changeConsumer, dlqProducer)
	if err := recon.Start(appCtx); err != nil {
		log.Error("Failed to start change event reconciler", "error", err)
		os.Exit(1)
	}

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, transactionService, ledgerService, employeeService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first so no request observes a closed pool
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Stop the reconciler and the Kafka producers
	if err = recon.Close(); err != nil {
		log.Error("Error closing change event reconciler", "error", err)
	}
	if err = changeEventProducer.Close(); err != nil {
		log.Error("Error closing change event Kafka producer", "error", err)
	}
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
