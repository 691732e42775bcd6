package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/quantfolio/portfolio-ledger/internal/api/response"
	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/model"
	"github.com/quantfolio/portfolio-ledger/internal/service"
	"github.com/quantfolio/portfolio-ledger/internal/validation"
)

// PortfolioHandler serves read-only portfolio, position and snapshot
// endpoints for reporting and monitoring consumers.
type PortfolioHandler struct {
	portfolioService *service.PortfolioService
	positionService  *service.PositionService
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService *service.PortfolioService, positionService *service.PositionService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
		positionService:  positionService,
	}
}

// Portfolios returns all portfolios.
func (h *PortfolioHandler) Portfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.portfolioService.GetAllPortfolios(r.Context())
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to retrieve portfolios", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, portfolios)
}

// Positions returns a portfolio's positions with their cached valuations.
func (h *PortfolioHandler) Positions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateUUID(id); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid portfolio ID", err.Error())
		return
	}

	positions, err := h.positionService.GetPortfolioPositions(r.Context(), id)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to retrieve positions", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, positions)
}

// snapshotResponse is the JSON shape for one snapshot row, including the
// derived cash/margin figure (equity balance minus total market value).
type snapshotResponse struct {
	Date          string          `json:"date"`
	EquityBalance decimal.Decimal `json:"equityBalance"`
	DailyPnL      decimal.Decimal `json:"dailyPnl"`
	CumulativePnL decimal.Decimal `json:"cumulativePnl"`
	DailyReturn   decimal.Decimal `json:"dailyReturn"`
	LongValue     decimal.Decimal `json:"longValue"`
	ShortValue    decimal.Decimal `json:"shortValue"`
	CashOrMargin  decimal.Decimal `json:"cashOrMargin"`
	IsPartial     bool            `json:"isPartial"`
}

func toSnapshotResponse(s model.PortfolioSnapshot) snapshotResponse {
	return snapshotResponse{
		Date:          s.Date.Format("2006-01-02"),
		EquityBalance: s.EquityBalance,
		DailyPnL:      s.DailyPnL,
		CumulativePnL: s.CumulativePnL,
		DailyReturn:   s.DailyReturn,
		LongValue:     s.LongValue,
		ShortValue:    s.ShortValue,
		CashOrMargin:  s.CashOrMargin(),
		IsPartial:     s.IsPartial,
	}
}

// Snapshots returns a portfolio's snapshot ledger for a date range.
func (h *PortfolioHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateUUID(id); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid portfolio ID", err.Error())
		return
	}

	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	startDate, endDate, err := validation.ParseDateRange(start, end)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date range", err.Error())
		return
	}

	if _, err := h.portfolioService.GetPortfolio(r.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrPortfolioNotFound) {
			response.RespondError(w, http.StatusNotFound, "portfolio not found", "")
			return
		}
		response.RespondError(w, http.StatusInternalServerError, "failed to retrieve portfolio", err.Error())
		return
	}

	snapshots, err := h.portfolioService.GetSnapshotRange(r.Context(), id, startDate, endDate)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to retrieve snapshots", err.Error())
		return
	}

	result := make([]snapshotResponse, len(snapshots))
	for i, s := range snapshots {
		result[i] = toSnapshotResponse(s)
	}

	response.RespondJSON(w, http.StatusOK, result)
}
