package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/au-lex/safeqly-backend/internal/models"
)

type stubLister struct {
	byType map[string][]models.Transaction
	err    error
}

func (s *stubLister) ListStalePending(ctx context.Context, txType string, olderThanMinutes, limit int) ([]models.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byType[txType], nil
}

type recordingReconciler struct {
	mu          sync.Mutex
	deposits    []string
	withdrawals []string
	failOn      string
}

func (r *recordingReconciler) ReconcileDeposit(ctx context.Context, reference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reference == r.failOn {
		return errors.New("provider unavailable")
	}
	r.deposits = append(r.deposits, reference)
	return nil
}

func (r *recordingReconciler) ReconcileWithdrawal(ctx context.Context, reference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reference == r.failOn {
		return errors.New("provider unavailable")
	}
	r.withdrawals = append(r.withdrawals, reference)
	return nil
}

func TestSettlement_RunOnce_ReconcilesBothTypes(t *testing.T) {
	lister := &stubLister{byType: map[string][]models.Transaction{
		models.TransactionTypeDeposit: {
			{Reference: "SQ-DEP-1"},
			{Reference: "SQ-DEP-2"},
		},
		models.TransactionTypeWithdrawal: {
			{Reference: "SQ-WDR-1"},
		},
	}}
	reconciler := &recordingReconciler{}
	settlement := NewSettlement(lister, reconciler)

	settlement.runOnce()

	if len(reconciler.deposits) != 2 {
		t.Fatalf("сверено пополнений: %d, ожидалось 2", len(reconciler.deposits))
	}
	if len(reconciler.withdrawals) != 1 {
		t.Fatalf("сверено выводов: %d, ожидался 1", len(reconciler.withdrawals))
	}
}

func TestSettlement_RunOnce_FailureDoesNotStopBatch(t *testing.T) {
	lister := &stubLister{byType: map[string][]models.Transaction{
		models.TransactionTypeDeposit: {
			{Reference: "SQ-DEP-bad"},
			{Reference: "SQ-DEP-good"},
		},
	}}
	reconciler := &recordingReconciler{failOn: "SQ-DEP-bad"}
	settlement := NewSettlement(lister, reconciler)

	settlement.runOnce()

	if len(reconciler.deposits) != 1 || reconciler.deposits[0] != "SQ-DEP-good" {
		t.Fatalf("ожидалась сверка SQ-DEP-good, получено %v", reconciler.deposits)
	}
}

func TestSettlement_RunOnce_ListerErrorSkipsBatch(t *testing.T) {
	lister := &stubLister{err: errors.New("db down")}
	reconciler := &recordingReconciler{}
	settlement := NewSettlement(lister, reconciler)

	settlement.runOnce()

	if len(reconciler.deposits) != 0 || len(reconciler.withdrawals) != 0 {
		t.Fatal("при ошибке выборки сверка не должна выполняться")
	}
}

func TestSettlement_StartStop(t *testing.T) {
	lister := &stubLister{}
	settlement := NewSettlement(lister, &recordingReconciler{})

	if err := settlement.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	settlement.Stop()
}
