package scrape

import (
	"context"
	"log/slog"

	"carsentry/internal/store"
	"carsentry/pkg/models"
)

// CarReconciler is the store capability the upserter depends on: reconcile a
// single listing inside its own transaction.
type CarReconciler interface {
	ReconcileCar(ctx context.Context, l models.Listing) (store.ReconcileOutcome, error)
}

// Upserter reconciles raw listings into the car store, row by row. A failing
// row is counted and logged, never allowed to abort the remaining rows.
type Upserter struct {
	store CarReconciler
}

func NewUpserter(s CarReconciler) *Upserter {
	return &Upserter{store: s}
}

// Reconcile applies a batch of listings. A listing without a URL cannot be
// keyed and is counted as skipped. Reconciling the same unchanged listing
// twice is a no-op.
func (u *Upserter) Reconcile(ctx context.Context, listings []models.Listing) models.ScrapeCounters {
	var counters models.ScrapeCounters

	for _, l := range listings {
		if l.URL == "" {
			counters.Skipped++
			continue
		}

		outcome, err := u.store.ReconcileCar(ctx, l)
		if err != nil {
			counters.Failed++
			slog.Warn("upsert: row reconciliation failed", "url", l.URL, "error", err)
			continue
		}

		switch outcome {
		case store.OutcomeInserted:
			counters.Inserted++
		case store.OutcomeUpdated:
			counters.Updated++
		}
	}
	return counters
}
