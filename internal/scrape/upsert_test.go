package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"carsentry/internal/store"
	"carsentry/pkg/models"
)

type fakeReconciler struct {
	outcomes map[string]store.ReconcileOutcome
	errs     map[string]error
	calls    []string
}

func (f *fakeReconciler) ReconcileCar(_ context.Context, l models.Listing) (store.ReconcileOutcome, error) {
	f.calls = append(f.calls, l.URL)
	if err := f.errs[l.URL]; err != nil {
		return "", err
	}
	if outcome, ok := f.outcomes[l.URL]; ok {
		return outcome, nil
	}
	return store.OutcomeUnchanged, nil
}

func TestReconcile_CountsOutcomes(t *testing.T) {
	f := &fakeReconciler{outcomes: map[string]store.ReconcileOutcome{
		"a": store.OutcomeInserted,
		"b": store.OutcomeUpdated,
		"c": store.OutcomeUnchanged,
	}}
	u := NewUpserter(f)

	counters := u.Reconcile(context.Background(), []models.Listing{
		{URL: "a"}, {URL: "b"}, {URL: "c"},
	})

	assert.Equal(t, 1, counters.Inserted)
	assert.Equal(t, 1, counters.Updated)
	assert.Equal(t, 0, counters.Skipped)
	assert.Equal(t, 0, counters.Failed)
}

func TestReconcile_SkipsListingsWithoutURL(t *testing.T) {
	f := &fakeReconciler{}
	u := NewUpserter(f)

	counters := u.Reconcile(context.Background(), []models.Listing{
		{URL: ""}, {URL: "a"},
	})

	assert.Equal(t, 1, counters.Skipped)
	assert.Equal(t, []string{"a"}, f.calls)
}

func TestReconcile_FailingRowDoesNotAbortBatch(t *testing.T) {
	f := &fakeReconciler{
		outcomes: map[string]store.ReconcileOutcome{"c": store.OutcomeInserted},
		errs:     map[string]error{"b": errors.New("deadlock")},
	}
	u := NewUpserter(f)

	counters := u.Reconcile(context.Background(), []models.Listing{
		{URL: "a"}, {URL: "b"}, {URL: "c"},
	})

	assert.Equal(t, 1, counters.Failed)
	assert.Equal(t, 1, counters.Inserted)
	assert.Equal(t, []string{"a", "b", "c"}, f.calls)
}

func TestReconcile_RepeatedUnchangedBatchIsNoOp(t *testing.T) {
	f := &fakeReconciler{outcomes: map[string]store.ReconcileOutcome{
		"a": store.OutcomeUnchanged,
	}}
	u := NewUpserter(f)

	listings := []models.Listing{{URL: "a"}}
	first := u.Reconcile(context.Background(), listings)
	second := u.Reconcile(context.Background(), listings)

	assert.Equal(t, first, second)
	assert.Zero(t, second.Inserted)
	assert.Zero(t, second.Updated)
}
