package batch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status classifies a phase outcome or an aggregate run outcome.
type Status string

// Phase and run statuses. "partial" means some symbols or phases degraded
// but the ledger is sound; "failed" means the ledger was not produced for
// the affected date. Analytics consumers must be able to tell these apart.
const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// PhaseResult records one phase's outcome for one (portfolio, date) unit of
// work.
type PhaseResult struct {
	PortfolioID string        `json:"portfolioId"`
	Date        string        `json:"date"`
	Phase       string        `json:"phase"`
	Status      Status        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Run tracks one batch invocation: which phases ran for which (date,
// portfolio) combination, success or failure per phase, and timing. It is
// ephemeral process state passed explicitly through the pipeline, never
// ambient, so concurrent portfolio processing cannot leak results across
// runs. It is not part of the financial ledger.
type Run struct {
	ID         string    `json:"id"`
	TargetDate string    `json:"targetDate"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	mu      sync.Mutex
	Results []PhaseResult `json:"results"`
}

// NewRun creates a run context for the given target date.
func NewRun(targetDate time.Time) *Run {
	return &Run{
		ID:         uuid.NewString(),
		TargetDate: targetDate.Format("2006-01-02"),
		StartedAt:  time.Now().UTC(),
	}
}

// Record appends a phase result. Safe for concurrent use.
func (r *Run) Record(result PhaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, result)
}

// Finish stamps the run's completion time.
func (r *Run) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now().UTC()
}

// Status derives the aggregate run outcome from the recorded phase results:
// failed if any critical phase failed, partial if anything else degraded,
// completed otherwise.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := StatusCompleted
	for _, result := range r.Results {
		switch result.Status {
		case StatusFailed:
			if result.Phase == phaseSnapshot || result.Phase == phaseValuation || result.Phase == phaseBackfill {
				return StatusFailed
			}
			status = StatusPartial
		case StatusPartial:
			status = StatusPartial
		}
	}
	return status
}

// Summary is the JSON shape the monitoring API returns for a run.
type Summary struct {
	ID         string        `json:"id"`
	TargetDate string        `json:"targetDate"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Status     Status        `json:"status"`
	Results    []PhaseResult `json:"results"`
}

// Summarize snapshots the run into an immutable summary.
func (r *Run) Summarize() Summary {
	status := r.Status()

	r.mu.Lock()
	defer r.mu.Unlock()
	results := make([]PhaseResult, len(r.Results))
	copy(results, r.Results)

	return Summary{
		ID:         r.ID,
		TargetDate: r.TargetDate,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Status:     status,
		Results:    results,
	}
}

// History is a bounded, in-memory ring of recent run summaries for the
// monitoring API. Run state is deliberately not persisted; it is
// observability data, not ledger data.
type History struct {
	mu   sync.Mutex
	runs []Summary
	size int
}

// NewHistory creates a history ring holding at most size runs.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 1
	}
	return &History{size: size}
}

// Add records a completed run, evicting the oldest entry when full.
func (h *History) Add(s Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, s)
	if len(h.runs) > h.size {
		h.runs = h.runs[len(h.runs)-h.size:]
	}
}

// Recent returns the stored summaries, newest first.
func (h *History) Recent() []Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Summary, 0, len(h.runs))
	for i := len(h.runs) - 1; i >= 0; i-- {
		out = append(out, h.runs[i])
	}
	return out
}
