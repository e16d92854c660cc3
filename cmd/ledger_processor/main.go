package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/scrapyard-ledger/internal/config"
	"github.com/scrapyard-ledger/internal/data/mongo"
	"github.com/scrapyard-ledger/internal/data/postgres"
	"github.com/scrapyard-ledger/internal/ledger_processor"
	"github.com/scrapyard-ledger/internal/logger"
	"github.com/scrapyard-ledger/internal/platform/messaging/producers"
	"github.com/scrapyard-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("ledger_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
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

	// Initialize outbox poller
	ledgerPublisher := ledger_processor.NewLedgerPublisher(
		outboxRepo,
		ledgerRepo,
		changeEventProducer,
		log,
	)
	poller := ledger_processor.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		ledgerPublisher,
		dlqProducer,
		log,
	)

	// Initialize payroll deduction scheduler
	payroll := ledger_processor.NewPayrollScheduler(log, &cfg.Payroll, advanceRepo)
	if err := payroll.Start(); err != nil {
		log.Error("Failed to start payroll scheduler", "error", err)
		os.Exit(1)
	}

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	<-quit
	log.Info("Shutdown signal received")

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	payroll.Stop()

	// Wait for the poller to finish its current batch
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka producers
	if err = changeEventProducer.Close(); err != nil {
		log.Error("Error closing change event Kafka producer", "error", err)
	}
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	log.Info("Ledger Processor shutdown completed")
}
