package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quantfolio/portfolio-ledger/internal/api"
	"github.com/quantfolio/portfolio-ledger/internal/batch"
	"github.com/quantfolio/portfolio-ledger/internal/calendar"
	"github.com/quantfolio/portfolio-ledger/internal/config"
	"github.com/quantfolio/portfolio-ledger/internal/database"
	"github.com/quantfolio/portfolio-ledger/internal/logging"
	"github.com/quantfolio/portfolio-ledger/internal/marketdata"
	"github.com/quantfolio/portfolio-ledger/internal/repository"
	"github.com/quantfolio/portfolio-ledger/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync errors are expected

	// Open database connection and apply migrations. The pool is sized to
	// the batch concurrency limit so portfolio workers never starve on
	// connection acquisition.
	db, err := database.Open(cfg.Database.Path, cfg.Batch.MaxConcurrent)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	logger.Info("connected to database", zap.String("path", cfg.Database.Path))

	// Create repositories
	portfolioRepo := repository.NewPortfolioRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)

	// Build the trading calendar from the holiday table
	location, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		logger.Fatal("invalid market timezone", zap.Error(err))
	}

	holidays, err := holidayRepo.ListDates(context.Background())
	if err != nil {
		logger.Fatal("failed to load market holidays", zap.Error(err))
	}
	cal := calendar.New(holidays, location, cfg.Market.CloseOffset, cfg.Market.CloseBuffer)

	// Market-data provider client
	provider := marketdata.NewClient(cfg.Provider.BaseURL, cfg.Provider.Timeout, cfg.Provider.RetryAttempts)

	// Create services
	priceService := service.NewPriceService(priceRepo)
	positionService := service.NewPositionService(positionRepo, priceService, logger)
	pnlService := service.NewPnLService(positionRepo, snapshotRepo, priceService, cal)
	portfolioService := service.NewPortfolioService(portfolioRepo, snapshotRepo)
	collectorService := service.NewCollectorService(priceRepo, provider, logger)
	metadataService := service.NewMetadataService(companyRepo, positionRepo, provider, logger)

	// Batch orchestrator and scheduler
	orchestrator := batch.NewOrchestrator(
		portfolioRepo,
		positionRepo,
		snapshotRepo,
		collectorService,
		metadataService,
		positionService,
		pnlService,
		cal,
		marketdata.NoopAnalytics{},
		logger,
		batch.Config{
			MaxConcurrent: cfg.Batch.MaxConcurrent,
			PhaseTimeout:  cfg.Batch.PhaseTimeout,
			HistorySize:   cfg.Batch.RunHistorySize,
		},
	)

	scheduler := batch.NewScheduler(orchestrator, location, logger, context.Background())
	if err := scheduler.Schedule(cfg.Batch.Schedule); err != nil {
		logger.Fatal("failed to schedule batch", zap.Error(err))
	}
	scheduler.Start()

	// Create router
	router := api.NewRouter(db, portfolioService, positionService, pnlService, orchestrator, logger, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	scheduler.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
