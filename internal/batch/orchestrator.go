package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/calendar"
	"github.com/quantfolio/portfolio-ledger/internal/marketdata"
	"github.com/quantfolio/portfolio-ledger/internal/model"
	"github.com/quantfolio/portfolio-ledger/internal/repository"
	"github.com/quantfolio/portfolio-ledger/internal/service"
)

// Phase names, in execution order.
const (
	phaseMetadataSync = "metadata-sync"
	phaseMarketData   = "market-data"
	phaseRegistration = "symbol-registration"
	phaseFundamentals = "fundamentals"
	phaseValuation    = "valuation"
	phaseSnapshot     = "snapshot"
	phaseSectorTags   = "sector-tags"
	phaseAnalytics    = "analytics"
)

// phaseBackfill is not a pipeline phase. It labels failures that happen
// while enumerating a portfolio's missing trading days, before any phase
// can run, so the run summary does not blame a phase that never executed.
const phaseBackfill = "backfill"

// errSkipped signals that a phase decided it had nothing to do for this unit
// (e.g. the date is already snapshotted). Recorded as skipped, not failed.
var errSkipped = errors.New("phase skipped")

// phase is one step of the pipeline, described as data so that execution
// order, backfill-skip rules and failure policy live in one table instead of
// branches scattered across control flow.
type phase struct {
	name string

	// finalDateOnly phases run only on the final date of a backfill range.
	// They are not date-sensitive for historical days, so replaying them per
	// backfilled date would be wasted provider traffic.
	finalDateOnly bool

	// critical phases abort the remaining phases for this (portfolio, date)
	// and all later dates for the portfolio when they fail, because each
	// date's equity seed depends on the previous date's persisted snapshot.
	critical bool

	run func(ctx context.Context, u *unit) error
}

// unit is one (portfolio, date) unit of work flowing through the phases.
type unit struct {
	portfolio model.Portfolio
	date      time.Time
	final     bool     // date is the final date of the run, not a backfilled one
	symbols   []string // distinct symbols of positions open as of date
}

// Orchestrator drives the daily batch calculation pipeline: for every active
// portfolio it enumerates unprocessed trading days and replays the phase
// sequence for each, oldest first, so equity rolls forward correctly through
// any gap.
//
// Failure isolation: one portfolio's failure never aborts another's
// processing; a non-critical phase failure is recorded and later phases
// still run with whatever state exists.
type Orchestrator struct {
	portfolioRepo *repository.PortfolioRepository
	positionRepo  *repository.PositionRepository
	snapshotRepo  *repository.SnapshotRepository

	collector *service.CollectorService
	metadata  *service.MetadataService
	positions *service.PositionService
	pnl       *service.PnLService

	calendar  *calendar.Calendar
	analytics marketdata.AnalyticsNotifier
	logger    *zap.Logger

	maxConcurrent int
	phaseTimeout  time.Duration
	history       *History
}

// Config bundles the orchestrator's tunables.
type Config struct {
	MaxConcurrent int           // Concurrent portfolios, sized to the DB connection budget
	PhaseTimeout  time.Duration // Deadline per phase per (portfolio, date)
	HistorySize   int           // Recent runs kept for the monitoring API
}

// NewOrchestrator creates an orchestrator with the provided dependencies.
func NewOrchestrator(
	portfolioRepo *repository.PortfolioRepository,
	positionRepo *repository.PositionRepository,
	snapshotRepo *repository.SnapshotRepository,
	collector *service.CollectorService,
	metadata *service.MetadataService,
	positions *service.PositionService,
	pnl *service.PnLService,
	cal *calendar.Calendar,
	analytics marketdata.AnalyticsNotifier,
	logger *zap.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if analytics == nil {
		analytics = marketdata.NoopAnalytics{}
	}
	return &Orchestrator{
		portfolioRepo: portfolioRepo,
		positionRepo:  positionRepo,
		snapshotRepo:  snapshotRepo,
		collector:     collector,
		metadata:      metadata,
		positions:     positions,
		pnl:           pnl,
		calendar:      cal,
		analytics:     analytics,
		logger:        logger,
		maxConcurrent: cfg.MaxConcurrent,
		phaseTimeout:  cfg.PhaseTimeout,
		history:       NewHistory(cfg.HistorySize),
	}
}

// History returns the in-memory record of recent runs.
func (o *Orchestrator) History() *History {
	return o.history
}

// phases returns the pipeline's phase table in execution order.
func (o *Orchestrator) phases() []phase {
	return []phase{
		{name: phaseMetadataSync, finalDateOnly: true, run: o.phaseMetadataSync},
		{name: phaseMarketData, run: o.phaseMarketData},
		{name: phaseRegistration, run: o.phaseRegistration},
		{name: phaseFundamentals, finalDateOnly: true, run: o.phaseFundamentals},
		{name: phaseValuation, critical: true, run: o.phaseValuation},
		{name: phaseSnapshot, critical: true, run: o.phaseSnapshot},
		{name: phaseSectorTags, run: o.phaseSectorTags},
		{name: phaseAnalytics, finalDateOnly: true, run: o.phaseAnalytics},
	}
}

// Run executes the pipeline for every active portfolio up to the most recent
// date whose closing data is reliably available. Portfolios are processed
// concurrently, bounded by the configured limit; dates within one portfolio
// are strictly sequential, oldest first, because equity rollforward is a
// left-fold over time.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	now := time.Now()
	target := o.calendar.AdjustToValidDate(now, now)
	return o.RunForDate(ctx, target)
}

// RunForDate executes the pipeline targeting a specific, already-adjusted
// trading date.
func (o *Orchestrator) RunForDate(ctx context.Context, target time.Time) (Summary, error) {
	if !o.calendar.IsTradingDay(target) {
		return Summary{}, fmt.Errorf("%w: %s", apperrors.ErrNotTradingDay, target.Format("2006-01-02"))
	}

	portfolios, err := o.portfolioRepo.List(ctx, model.PortfolioFilter{})
	if err != nil {
		return Summary{}, err
	}

	run := NewRun(target)
	o.logger.Info("batch run started",
		zap.String("run_id", run.ID),
		zap.String("target_date", run.TargetDate),
		zap.Int("portfolios", len(portfolios)))

	var g errgroup.Group
	g.SetLimit(o.maxConcurrent)
	for _, p := range portfolios {
		p := p
		g.Go(func() error {
			o.processPortfolio(ctx, run, p, target)
			return nil
		})
	}
	_ = g.Wait() // goroutines record failures in the run context instead of returning them

	run.Finish()
	summary := run.Summarize()
	o.history.Add(summary)

	o.logger.Info("batch run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(summary.Status)),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))

	return summary, nil
}

// processPortfolio replays the pipeline for every unprocessed trading day of
// one portfolio, oldest first. A critical failure on one date stops the
// portfolio's remaining dates, since the next date's equity seed would be
// missing, but never affects other portfolios.
func (o *Orchestrator) processPortfolio(ctx context.Context, run *Run, p model.Portfolio, target time.Time) {
	dates, err := o.backfillDates(ctx, p, target)
	if err != nil {
		run.Record(PhaseResult{
			PortfolioID: p.ID,
			Date:        target.Format("2006-01-02"),
			Phase:       phaseBackfill,
			Status:      StatusFailed,
			Error:       err.Error(),
		})
		return
	}
	if len(dates) == 0 {
		o.logger.Debug("portfolio already up to date", zap.String("portfolio_id", p.ID))
		return
	}

	for i, date := range dates {
		final := i == len(dates)-1
		if !o.runPhases(ctx, run, p, date, final) {
			o.logger.Error("aborting remaining dates for portfolio",
				zap.String("portfolio_id", p.ID),
				zap.String("date", date.Format("2006-01-02")),
				zap.Int("dates_remaining", len(dates)-i-1))
			return
		}
	}
}

// backfillDates enumerates the trading days the portfolio is missing: every
// trading day strictly after its most recent snapshot, up to and including
// the target date. A portfolio with no history starts at the target date;
// there is no anchor to enumerate a gap from.
func (o *Orchestrator) backfillDates(ctx context.Context, p model.Portfolio, target time.Time) ([]time.Time, error) {
	latest, err := o.snapshotRepo.Latest(ctx, p.ID)
	if errors.Is(err, apperrors.ErrSnapshotNotFound) {
		return []time.Time{target}, nil
	}
	if err != nil {
		return nil, err
	}

	return o.calendar.TradingDaysBetween(latest.Date, target), nil
}

// runPhases executes the phase table for one (portfolio, date) unit. Returns
// false when a critical phase failed and the portfolio's later dates must
// not be attempted.
func (o *Orchestrator) runPhases(ctx context.Context, run *Run, p model.Portfolio, date time.Time, final bool) bool {
	u := &unit{portfolio: p, date: date, final: final}

	positions, err := o.positionRepo.ListOpenAsOf(ctx, p.ID, date)
	if err != nil {
		run.Record(PhaseResult{
			PortfolioID: p.ID,
			Date:        date.Format("2006-01-02"),
			Phase:       phaseValuation,
			Status:      StatusFailed,
			Error:       err.Error(),
		})
		return false
	}
	seen := make(map[string]struct{}, len(positions))
	for _, pos := range positions {
		if _, ok := seen[pos.Symbol]; !ok {
			seen[pos.Symbol] = struct{}{}
			u.symbols = append(u.symbols, pos.Symbol)
		}
	}

	for _, ph := range o.phases() {
		if ph.finalDateOnly && !final {
			continue
		}

		start := time.Now()
		err := o.runPhase(ctx, ph, u)
		result := PhaseResult{
			PortfolioID: p.ID,
			Date:        date.Format("2006-01-02"),
			Phase:       ph.name,
			Status:      StatusCompleted,
			Duration:    time.Since(start),
		}

		switch {
		case errors.Is(err, errSkipped):
			result.Status = StatusSkipped
		case err != nil && ph.critical:
			result.Status = StatusFailed
			result.Error = err.Error()
			run.Record(result)
			o.logger.Error("critical phase failed",
				zap.String("portfolio_id", p.ID),
				zap.String("date", result.Date),
				zap.String("phase", ph.name),
				zap.Error(err))
			return false
		case err != nil:
			result.Status = StatusPartial
			result.Error = err.Error()
			o.logger.Warn("phase degraded",
				zap.String("portfolio_id", p.ID),
				zap.String("date", result.Date),
				zap.String("phase", ph.name),
				zap.Error(err))
		}

		run.Record(result)
	}

	return true
}

// runPhase executes one phase under the configured per-phase deadline.
func (o *Orchestrator) runPhase(ctx context.Context, ph phase, u *unit) error {
	if o.phaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.phaseTimeout)
		defer cancel()
	}
	return ph.run(ctx, u)
}

func (o *Orchestrator) phaseMetadataSync(ctx context.Context, u *unit) error {
	return o.metadata.SyncCompanies(ctx, u.symbols)
}

func (o *Orchestrator) phaseMarketData(ctx context.Context, u *unit) error {
	return o.collector.CollectPrices(ctx, u.symbols, u.date)
}

func (o *Orchestrator) phaseRegistration(ctx context.Context, u *unit) error {
	return o.metadata.RegisterSymbols(ctx, u.symbols)
}

func (o *Orchestrator) phaseFundamentals(ctx context.Context, u *unit) error {
	return o.metadata.CollectFundamentals(ctx, u.symbols)
}

func (o *Orchestrator) phaseValuation(ctx context.Context, u *unit) error {
	result, err := o.positions.RevaluePortfolio(ctx, u.portfolio.ID, u.date)
	if err != nil {
		return err
	}
	if len(result.Stale) > 0 {
		// Stale positions are tolerated here; the snapshot phase decides
		// whether the ledger can still be produced.
		o.logger.Warn("valuation left stale positions",
			zap.String("portfolio_id", u.portfolio.ID),
			zap.Strings("symbols", result.Stale))
	}
	return nil
}

func (o *Orchestrator) phaseSnapshot(ctx context.Context, u *unit) error {
	exists, err := o.snapshotRepo.Exists(ctx, u.portfolio.ID, u.date)
	if err != nil {
		return err
	}
	if exists {
		// Already processed: rerunning for a processed date must not
		// double-count. Recomputation is an explicit operator action.
		return errSkipped
	}

	_, err = o.pnl.CreateSnapshot(ctx, u.portfolio.ID, u.date)
	return err
}

func (o *Orchestrator) phaseSectorTags(ctx context.Context, u *unit) error {
	return o.metadata.RestoreSectorTags(ctx, u.portfolio.ID, u.date)
}

func (o *Orchestrator) phaseAnalytics(ctx context.Context, u *unit) error {
	return o.analytics.SnapshotReady(ctx, u.portfolio.ID, u.date)
}
