package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quantfolio/portfolio-ledger/internal/api/response"
	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/batch"
	"github.com/quantfolio/portfolio-ledger/internal/service"
	"github.com/quantfolio/portfolio-ledger/internal/validation"
)

// BatchHandler exposes the batch pipeline to operators: recent run
// summaries, a manual trigger, and per-date snapshot recomputation.
type BatchHandler struct {
	orchestrator *batch.Orchestrator
	pnlService   *service.PnLService
	logger       *zap.Logger
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(orchestrator *batch.Orchestrator, pnlService *service.PnLService, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{
		orchestrator: orchestrator,
		pnlService:   pnlService,
		logger:       logger,
	}
}

// Runs returns recent run summaries, newest first.
func (h *BatchHandler) Runs(w http.ResponseWriter, r *http.Request) {
	response.RespondJSON(w, http.StatusOK, h.orchestrator.History().Recent())
}

// Trigger starts a batch run asynchronously and returns 202 Accepted. The
// run's outcome is observable through the Runs endpoint.
func (h *BatchHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	go func() {
		// Detached from the request context: the run must outlive the
		// HTTP request that triggered it.
		if _, err := h.orchestrator.Run(context.Background()); err != nil {
			h.logger.Error("triggered batch run failed", zap.Error(err))
		}
	}()

	response.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// Recompute deletes and regenerates the snapshot for one (portfolio, date).
func (h *BatchHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateUUID(id); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid portfolio ID", err.Error())
		return
	}

	date, err := validation.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	snapshot, err := h.pnlService.RecomputeSnapshot(r.Context(), id, date)
	switch {
	case errors.Is(err, apperrors.ErrNotTradingDay):
		response.RespondError(w, http.StatusBadRequest, "not a trading day", err.Error())
	case errors.Is(err, apperrors.ErrCurrentPriceMissing),
		errors.Is(err, apperrors.ErrNoEquitySeed):
		response.RespondError(w, http.StatusConflict, "ledger integrity failure", err.Error())
	case err != nil:
		response.RespondError(w, http.StatusInternalServerError, "failed to recompute snapshot", err.Error())
	default:
		response.RespondJSON(w, http.StatusOK, toSnapshotResponse(snapshot))
	}
}
