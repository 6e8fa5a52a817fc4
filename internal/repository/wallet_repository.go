package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/au-lex/safeqly-backend/internal/models"
)

var (
	// ErrTransactionNotFound возвращается, когда транзакция не найдена.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionNotPending возвращается при попытке завершить
	// транзакцию, которая уже не в статусе pending. Повторное
	// зачисление по тому же reference попадает сюда.
	ErrTransactionNotPending = errors.New("transaction is not pending")
)

const transactionColumns = `id, user_id, escrow_id, type, amount, fee, status, reference, description, created_at, completed_at`

// WalletRepository отвечает за таблицы balances и transactions.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository создаёт экземпляр репозитория.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetBalance возвращает баланс пользователя, создаёт нулевой если не существует.
func (r *WalletRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Balance, error) {
	var balance models.Balance
	query := `
		INSERT INTO balances (user_id, available, held)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = balances.updated_at
		RETURNING user_id, available, held, updated_at
	`
	if err := r.db.GetContext(ctx, &balance, query, userID); err != nil {
		return nil, fmt.Errorf("wallet repository: get balance %w", err)
	}
	return &balance, nil
}

// CreatePendingDeposit создаёт запись о пополнении в статусе pending.
// Баланс не меняется до подтверждения провайдером.
func (r *WalletRepository) CreatePendingDeposit(ctx context.Context, transaction *models.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, type, amount, fee, status, reference, description)
		VALUES ($1, 'deposit', $2, 0, 'pending', $3, $4)
		RETURNING id, status, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		transaction.UserID, transaction.Amount, transaction.Reference, transaction.Description,
	).Scan(&transaction.ID, &transaction.Status, &transaction.CreatedAt); err != nil {
		return fmt.Errorf("wallet repository: create pending deposit %w", err)
	}

	return nil
}

// CompleteDeposit зачисляет подтверждённое пополнение. Guarded UPDATE по
// статусу гарантирует, что по одному reference средства зачисляются
// не более одного раза.
func (r *WalletRepository) CompleteDeposit(ctx context.Context, reference string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var transaction models.Transaction
	query := `
		UPDATE transactions
		SET status = 'success', completed_at = NOW()
		WHERE reference = $1 AND status = 'pending'
		RETURNING ` + transactionColumns

	if err := tx.GetContext(ctx, &transaction, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotPending
		}
		return nil, fmt.Errorf("wallet repository: complete deposit %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET available = available + $2, updated_at = NOW()
		WHERE user_id = $1
	`, transaction.UserID, transaction.Amount); err != nil {
		return nil, fmt.Errorf("wallet repository: complete deposit credit %w", err)
	}

	return &transaction, tx.Commit()
}

// FailTransaction помечает pending транзакцию неуспешной.
func (r *WalletRepository) FailTransaction(ctx context.Context, reference string) (*models.Transaction, error) {
	var transaction models.Transaction
	query := `
		UPDATE transactions
		SET status = 'failed', completed_at = NOW()
		WHERE reference = $1 AND status = 'pending'
		RETURNING ` + transactionColumns

	if err := r.db.GetContext(ctx, &transaction, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotPending
		}
		return nil, fmt.Errorf("wallet repository: fail transaction %w", err)
	}

	return &transaction, nil
}

// CreateWithdrawal списывает средства и создаёт pending запись о выводе.
// Списание происходит сразу, чтобы пользователь не вывел одни и те же
// средства дважды, пока провайдер обрабатывает перевод.
func (r *WalletRepository) CreateWithdrawal(ctx context.Context, transaction *models.Transaction) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var available float64
	err = tx.GetContext(ctx, &available, `SELECT available FROM balances WHERE user_id = $1 FOR UPDATE`, transaction.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("wallet repository: create withdrawal lock balance %w", err)
	}

	total := transaction.Amount + transaction.Fee
	if available < total {
		return ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET available = available - $2, updated_at = NOW()
		WHERE user_id = $1
	`, transaction.UserID, total); err != nil {
		return fmt.Errorf("wallet repository: create withdrawal debit %w", err)
	}

	query := `
		INSERT INTO transactions (user_id, type, amount, fee, status, reference, description)
		VALUES ($1, 'withdrawal', $2, $3, 'pending', $4, $5)
		RETURNING id, status, created_at
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		transaction.UserID, transaction.Amount, transaction.Fee, transaction.Reference, transaction.Description,
	).Scan(&transaction.ID, &transaction.Status, &transaction.CreatedAt); err != nil {
		return fmt.Errorf("wallet repository: create withdrawal %w", err)
	}

	return tx.Commit()
}

// CompleteWithdrawal помечает вывод успешным. Средства уже списаны.
func (r *WalletRepository) CompleteWithdrawal(ctx context.Context, reference string) (*models.Transaction, error) {
	var transaction models.Transaction
	query := `
		UPDATE transactions
		SET status = 'success', completed_at = NOW()
		WHERE reference = $1 AND status = 'pending'
		RETURNING ` + transactionColumns

	if err := r.db.GetContext(ctx, &transaction, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotPending
		}
		return nil, fmt.Errorf("wallet repository: complete withdrawal %w", err)
	}

	return &transaction, nil
}

// RefundWithdrawal помечает вывод неуспешным и возвращает списанные средства.
func (r *WalletRepository) RefundWithdrawal(ctx context.Context, reference string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var transaction models.Transaction
	query := `
		UPDATE transactions
		SET status = 'failed', completed_at = NOW()
		WHERE reference = $1 AND status = 'pending'
		RETURNING ` + transactionColumns

	if err := tx.GetContext(ctx, &transaction, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotPending
		}
		return nil, fmt.Errorf("wallet repository: refund withdrawal %w", err)
	}

	total := transaction.Amount + transaction.Fee
	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET available = available + $2, updated_at = NOW()
		WHERE user_id = $1
	`, transaction.UserID, total); err != nil {
		return nil, fmt.Errorf("wallet repository: refund withdrawal credit %w", err)
	}

	return &transaction, tx.Commit()
}

// GetTransactionByReference возвращает транзакцию по reference.
func (r *WalletRepository) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var transaction models.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	if err := r.db.GetContext(ctx, &transaction, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("wallet repository: get transaction by reference %w", err)
	}

	return &transaction, nil
}

// ListTransactions возвращает журнал транзакций пользователя с фильтрами.
func (r *WalletRepository) ListTransactions(ctx context.Context, userID uuid.UUID, txType, status string, limit, offset int) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`
	args := []interface{}{userID}
	argNum := 2

	if txType != "" {
		query += fmt.Sprintf(` AND type = $%d`, argNum)
		args = append(args, txType)
		argNum++
	}
	if status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argNum)
		args = append(args, status)
		argNum++
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, limit, offset)

	var transactions []models.Transaction
	if err := r.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, fmt.Errorf("wallet repository: list transactions %w", err)
	}

	return transactions, nil
}

// ListAllTransactions возвращает журнал транзакций всех пользователей для админки.
func (r *WalletRepository) ListAllTransactions(ctx context.Context, txType, status string, limit, offset int) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if txType != "" {
		query += fmt.Sprintf(` AND type = $%d`, argNum)
		args = append(args, txType)
		argNum++
	}
	if status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argNum)
		args = append(args, status)
		argNum++
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, limit, offset)

	var transactions []models.Transaction
	if err := r.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, fmt.Errorf("wallet repository: list all transactions %w", err)
	}

	return transactions, nil
}

// ListStalePending возвращает pending транзакции указанного типа старше
// отсечки. Используется фоновым опросом провайдера.
func (r *WalletRepository) ListStalePending(ctx context.Context, txType string, olderThanMinutes, limit int) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM transactions
		WHERE type = $1 AND status = 'pending' AND created_at < NOW() - ($2 || ' minutes')::interval
		ORDER BY created_at ASC
		LIMIT $3
	`

	var transactions []models.Transaction
	if err := r.db.SelectContext(ctx, &transactions, query, txType, olderThanMinutes, limit); err != nil {
		return nil, fmt.Errorf("wallet repository: list stale pending %w", err)
	}

	return transactions, nil
}

// TotalVolume возвращает суммарный объём успешных транзакций по типу.
func (r *WalletRepository) TotalVolume(ctx context.Context, txType string) (float64, error) {
	var total float64
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = $1 AND status = 'success'`
	if err := r.db.GetContext(ctx, &total, query, txType); err != nil {
		return 0, fmt.Errorf("wallet repository: total volume %w", err)
	}
	return total, nil
}
