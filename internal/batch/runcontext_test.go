package batch_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/quantfolio/portfolio-ledger/internal/batch"
)

// TestRun_Status tests aggregate status derivation from phase results.
//
// WHY: Monitoring and analytics consumers key off this classification:
// "failed" means a date's ledger was not produced, "partial" means the ledger
// is sound but something ancillary degraded. Conflating the two either hides
// missing ledger data or cries wolf on cosmetic failures.
func TestRun_Status(t *testing.T) {
	result := func(phase string, status batch.Status) batch.PhaseResult {
		return batch.PhaseResult{
			PortfolioID: "p1",
			Date:        "2024-01-09",
			Phase:       phase,
			Status:      status,
		}
	}

	tests := []struct {
		name    string
		results []batch.PhaseResult
		want    batch.Status
	}{
		{
			name:    "no results is completed",
			results: nil,
			want:    batch.StatusCompleted,
		},
		{
			name: "all phases completed",
			results: []batch.PhaseResult{
				result("market-data", batch.StatusCompleted),
				result("snapshot", batch.StatusCompleted),
			},
			want: batch.StatusCompleted,
		},
		{
			name: "skipped phases do not degrade the run",
			results: []batch.PhaseResult{
				result("snapshot", batch.StatusSkipped),
			},
			want: batch.StatusCompleted,
		},
		{
			name: "ancillary phase failure is partial",
			results: []batch.PhaseResult{
				result("fundamentals", batch.StatusFailed),
				result("snapshot", batch.StatusCompleted),
			},
			want: batch.StatusPartial,
		},
		{
			name: "snapshot failure is failed",
			results: []batch.PhaseResult{
				result("market-data", batch.StatusCompleted),
				result("snapshot", batch.StatusFailed),
			},
			want: batch.StatusFailed,
		},
		{
			name: "valuation failure is failed",
			results: []batch.PhaseResult{
				result("valuation", batch.StatusFailed),
			},
			want: batch.StatusFailed,
		},
		{
			// A backfill-enumeration failure means no phase ran at all for
			// the portfolio, so no ledger rows exist for its missing dates.
			name: "backfill enumeration failure is failed",
			results: []batch.PhaseResult{
				result("backfill", batch.StatusFailed),
			},
			want: batch.StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := batch.NewRun(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))
			for _, r := range tt.results {
				run.Record(r)
			}

			if got := run.Status(); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}

// TestHistory tests the bounded in-memory run history.
//
// WHY: Run state is observability data, deliberately unpersisted. The ring
// must evict oldest-first and report newest-first, or the monitoring API
// shows stale runs as current.
func TestHistory(t *testing.T) {
	t.Run("evicts oldest when full", func(t *testing.T) {
		history := batch.NewHistory(2)

		for i := 1; i <= 3; i++ {
			history.Add(batch.Summary{ID: fmt.Sprintf("run-%d", i)})
		}

		recent := history.Recent()
		if len(recent) != 2 {
			t.Fatalf("Expected 2 retained runs, got %d", len(recent))
		}
		if recent[0].ID != "run-3" || recent[1].ID != "run-2" {
			t.Errorf("Expected [run-3 run-2], got [%s %s]", recent[0].ID, recent[1].ID)
		}
	})

	t.Run("newest first", func(t *testing.T) {
		history := batch.NewHistory(10)
		history.Add(batch.Summary{ID: "old"})
		history.Add(batch.Summary{ID: "new"})

		recent := history.Recent()
		if recent[0].ID != "new" {
			t.Errorf("Expected newest run first, got %s", recent[0].ID)
		}
	})

	t.Run("empty history returns empty slice", func(t *testing.T) {
		history := batch.NewHistory(5)
		if got := history.Recent(); len(got) != 0 {
			t.Errorf("Expected empty history, got %d entries", len(got))
		}
	})
}
