package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/quantfolio/portfolio-ledger/internal/api/handlers"
	custommiddleware "github.com/quantfolio/portfolio-ledger/internal/api/middleware"
	"github.com/quantfolio/portfolio-ledger/internal/batch"
	"github.com/quantfolio/portfolio-ledger/internal/config"
	"github.com/quantfolio/portfolio-ledger/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	db *sql.DB,
	portfolioService *service.PortfolioService,
	positionService *service.PositionService,
	pnlService *service.PnLService,
	orchestrator *batch.Orchestrator,
	logger *zap.Logger,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		systemHandler := handlers.NewSystemHandler(db)
		r.Get("/health", systemHandler.Health)

		portfolioHandler := handlers.NewPortfolioHandler(portfolioService, positionService)
		batchHandler := handlers.NewBatchHandler(orchestrator, pnlService, logger)

		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/", portfolioHandler.Portfolios)
			r.Get("/{id}/positions", portfolioHandler.Positions)
			r.Get("/{id}/snapshots", portfolioHandler.Snapshots)
			r.Post("/{id}/snapshots/{date}/recompute", batchHandler.Recompute)
		})

		r.Route("/batch", func(r chi.Router) {
			r.Get("/runs", batchHandler.Runs)
			r.Post("/run", batchHandler.Trigger)
		})
	})

	return r
}
