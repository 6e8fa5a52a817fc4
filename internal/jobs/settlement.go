package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/au-lex/safeqly-backend/internal/logger"
	"github.com/au-lex/safeqly-backend/internal/models"
)

const (
	// Транзакции моложе отсечки не трогаем: пользователь ещё может
	// завершить оплату сам.
	staleAfterMinutes = 15
	batchSize         = 50
)

// PendingLister возвращает зависшие pending транзакции.
type PendingLister interface {
	ListStalePending(ctx context.Context, txType string, olderThanMinutes, limit int) ([]models.Transaction, error)
}

// Reconciler доводит транзакцию до терминального статуса по данным провайдера.
type Reconciler interface {
	ReconcileDeposit(ctx context.Context, reference string) error
	ReconcileWithdrawal(ctx context.Context, reference string) error
}

// Settlement — фоновая сверка с платёжным провайдером. Подбирает
// пополнения, брошенные без verify, и выводы, зависшие в обработке.
type Settlement struct {
	wallets    PendingLister
	reconciler Reconciler
	cron       *cron.Cron
}

// NewSettlement создаёт фоновую сверку.
func NewSettlement(wallets PendingLister, reconciler Reconciler) *Settlement {
	return &Settlement{
		wallets:    wallets,
		reconciler: reconciler,
		cron:       cron.New(),
	}
}

// Start запускает расписание. Сверка выполняется каждые пять минут.
func (s *Settlement) Start() error {
	if _, err := s.cron.AddFunc("*/5 * * * *", s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop останавливает расписание и дожидается текущего прогона.
func (s *Settlement) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Settlement) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s.reconcileBatch(ctx, models.TransactionTypeDeposit, s.reconciler.ReconcileDeposit)
	s.reconcileBatch(ctx, models.TransactionTypeWithdrawal, s.reconciler.ReconcileWithdrawal)
}

func (s *Settlement) reconcileBatch(ctx context.Context, txType string, reconcile func(context.Context, string) error) {
	transactions, err := s.wallets.ListStalePending(ctx, txType, staleAfterMinutes, batchSize)
	if err != nil {
		if logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"type":  txType,
				"error": err.Error(),
			}).Error("settlement: не удалось получить зависшие транзакции")
		}
		return
	}

	for _, transaction := range transactions {
		if err := reconcile(ctx, transaction.Reference); err != nil && logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"reference": transaction.Reference,
				"error":     err.Error(),
			}).Warn("settlement: сверка транзакции не удалась")
		}
	}
}
