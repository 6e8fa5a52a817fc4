package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/au-lex/safeqly-backend/internal/models"
)

func newMockWalletRepo(t *testing.T) (*WalletRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	return NewWalletRepository(sqlx.NewDb(db, "postgres")), mock, func() { db.Close() }
}

func emptyTransactionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "escrow_id", "type", "amount", "fee",
		"status", "reference", "description", "created_at", "completed_at",
	})
}

func transactionRow(tx models.Transaction) *sqlmock.Rows {
	return emptyTransactionRows().AddRow(
		tx.ID, tx.UserID, tx.EscrowID, tx.Type, tx.Amount, tx.Fee,
		tx.Status, tx.Reference, tx.Description, tx.CreatedAt, tx.CompletedAt,
	)
}

func TestWalletRepository_GetBalance_CreatesZeroRow(t *testing.T) {
	repo, mock, closeDB := newMockWalletRepo(t)
	defer closeDB()

	userID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO balances`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "available", "held", "updated_at"}).
			AddRow(userID, 0.0, 0.0, time.Now()))

	balance, err := repo.GetBalance(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, userID, balance.UserID)
	assert.Equal(t, 0.0, balance.Available)
	assert.Equal(t, 0.0, balance.Held)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_CompleteDeposit_Success(t *testing.T) {
	repo, mock, closeDB := newMockWalletRepo(t)
	defer closeDB()

	userID := uuid.New()
	now := time.Now()
	settled := models.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        models.TransactionTypeDeposit,
		Amount:      5000,
		Status:      models.TransactionStatusSuccess,
		Reference:   "SQ-DEP-abc",
		CreatedAt:   now,
		CompletedAt: &now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE transactions`)).
		WithArgs("SQ-DEP-abc").
		WillReturnRows(transactionRow(settled))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE balances SET available = available + $2`)).
		WithArgs(userID, 5000.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transaction, err := repo.CompleteDeposit(context.Background(), "SQ-DEP-abc")
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, transaction.Status)
	assert.Equal(t, 5000.0, transaction.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_CompleteDeposit_NotPending(t *testing.T) {
	repo, mock, closeDB := newMockWalletRepo(t)
	defer closeDB()

	// Guarded UPDATE не находит pending строку: транзакция уже зачислена.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE transactions`)).
		WithArgs("SQ-DEP-settled").
		WillReturnRows(emptyTransactionRows())
	mock.ExpectRollback()

	_, err := repo.CompleteDeposit(context.Background(), "SQ-DEP-settled")
	assert.ErrorIs(t, err, ErrTransactionNotPending)
}

func TestWalletRepository_CreateWithdrawal_DebitsUpfront(t *testing.T) {
	repo, mock, closeDB := newMockWalletRepo(t)
	defer closeDB()

	userID := uuid.New()
	transaction := &models.Transaction{
		UserID:    userID,
		Amount:    2000,
		Fee:       50,
		Reference: "SQ-WDR-abc",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT available FROM balances WHERE user_id = $1 FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(5000.0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE balances SET available = available - $2`)).
		WithArgs(userID, 2050.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WithArgs(userID, 2000.0, 50.0, "SQ-WDR-abc", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "created_at"}).
			AddRow(uuid.New(), models.TransactionStatusPending, time.Now()))
	mock.ExpectCommit()

	err := repo.CreateWithdrawal(context.Background(), transaction)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, transaction.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_CreateWithdrawal_InsufficientFunds(t *testing.T) {
	repo, mock, closeDB := newMockWalletRepo(t)
	defer closeDB()

	userID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT available FROM balances WHERE user_id = $1 FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(100.0))
	mock.ExpectRollback()

	err := repo.CreateWithdrawal(context.Background(), &models.Transaction{
		UserID:    userID,
		Amount:    2000,
		Fee:       50,
		Reference: "SQ-WDR-poor",
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_RefundWithdrawal_ReturnsAmountWithFee(t *testing.T) {
	repo, mock, closeDB := newMockWalletRepo(t)
	defer closeDB()

	userID := uuid.New()
	now := time.Now()
	failed := models.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        models.TransactionTypeWithdrawal,
		Amount:      2000,
		Fee:         50,
		Status:      models.TransactionStatusFailed,
		Reference:   "SQ-WDR-fail",
		CreatedAt:   now,
		CompletedAt: &now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE transactions`)).
		WithArgs("SQ-WDR-fail").
		WillReturnRows(transactionRow(failed))
	// Возврат включает удержанную комиссию.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE balances SET available = available + $2`)).
		WithArgs(userID, 2050.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transaction, err := repo.RefundWithdrawal(context.Background(), "SQ-WDR-fail")
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, transaction.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_GetTransactionByReference_NotFound(t *testing.T) {
	repo, mock, closeDB := newMockWalletRepo(t)
	defer closeDB()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs("SQ-DEP-missing").
		WillReturnRows(emptyTransactionRows())

	_, err := repo.GetTransactionByReference(context.Background(), "SQ-DEP-missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestWalletRepository_ListTransactions_Filters(t *testing.T) {
	repo, mock, closeDB := newMockWalletRepo(t)
	defer closeDB()

	userID := uuid.New()
	row := models.Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      models.TransactionTypeDeposit,
		Amount:    1000,
		Status:    models.TransactionStatusSuccess,
		Reference: "SQ-DEP-1",
		CreatedAt: time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta(`AND type = $2 AND status = $3 ORDER BY created_at DESC LIMIT $4 OFFSET $5`)).
		WithArgs(userID, models.TransactionTypeDeposit, models.TransactionStatusSuccess, 20, 0).
		WillReturnRows(transactionRow(row))

	transactions, err := repo.ListTransactions(context.Background(), userID, models.TransactionTypeDeposit, models.TransactionStatusSuccess, 20, 0)
	assert.NoError(t, err)
	assert.Len(t, transactions, 1)
	assert.Equal(t, "SQ-DEP-1", transactions[0].Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_ListStalePending(t *testing.T) {
	repo, mock, closeDB := newMockWalletRepo(t)
	defer closeDB()

	stale := models.Transaction{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Type:      models.TransactionTypeWithdrawal,
		Amount:    3000,
		Status:    models.TransactionStatusPending,
		Reference: "SQ-WDR-stale",
		CreatedAt: time.Now().Add(-time.Hour),
	}

	mock.ExpectQuery(regexp.QuoteMeta(`AND status = 'pending' AND created_at < NOW()`)).
		WithArgs(models.TransactionTypeWithdrawal, 15, 50).
		WillReturnRows(transactionRow(stale))

	transactions, err := repo.ListStalePending(context.Background(), models.TransactionTypeWithdrawal, 15, 50)
	assert.NoError(t, err)
	assert.Len(t, transactions, 1)
	assert.Equal(t, "SQ-WDR-stale", transactions[0].Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_TotalVolume(t *testing.T) {
	repo, mock, closeDB := newMockWalletRepo(t)
	defer closeDB()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(amount), 0) FROM transactions`)).
		WithArgs(models.TransactionTypeDeposit).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(123456.78))

	total, err := repo.TotalVolume(context.Background(), models.TransactionTypeDeposit)
	assert.NoError(t, err)
	assert.Equal(t, 123456.78, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
