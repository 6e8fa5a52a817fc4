package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/au-lex/safeqly-backend/internal/models"
)

var (
	// ErrEscrowNotFound возвращается, когда сделка не найдена.
	ErrEscrowNotFound = errors.New("escrow not found")
	// ErrInsufficientFunds возвращается при нехватке доступных средств.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidEscrowStatus возвращается, когда переход невозможен из
	// текущего статуса сделки. Повторная отправка той же операции
	// попадает сюда же и не двигает средства второй раз.
	ErrInvalidEscrowStatus = errors.New("invalid escrow status")
)

const escrowColumns = `id, buyer_id, seller_id, amount, items, delivery_date, status, rejection_reason, attached_file_url, attached_file_name, created_at, updated_at, accepted_at, completed_at, released_at`

// EscrowRepository отвечает за таблицу escrows и связанные движения средств.
// Каждый метод, двигающий деньги, выполняется в одной транзакции БД:
// условный UPDATE по статусу, изменения балансов и запись в журнал.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository создаёт экземпляр репозитория.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create создаёт сделку и замораживает средства покупателя.
func (r *EscrowRepository) Create(ctx context.Context, escrow *models.Escrow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Проверяем баланс покупателя под блокировкой
	var available float64
	err = tx.GetContext(ctx, &available, `SELECT available FROM balances WHERE user_id = $1 FOR UPDATE`, escrow.BuyerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("escrow repository: create lock balance %w", err)
	}
	if available < escrow.Amount {
		return ErrInsufficientFunds
	}

	// Замораживаем средства
	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET available = available - $2, held = held + $2, updated_at = NOW()
		WHERE user_id = $1
	`, escrow.BuyerID, escrow.Amount); err != nil {
		return fmt.Errorf("escrow repository: create hold funds %w", err)
	}

	query := `
		INSERT INTO escrows (buyer_id, seller_id, amount, items, delivery_date, status, attached_file_url, attached_file_name)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7)
		RETURNING id, status, created_at, updated_at
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		escrow.BuyerID, escrow.SellerID, escrow.Amount, escrow.Items, escrow.DeliveryDate,
		escrow.AttachedFileURL, escrow.AttachedFileName,
	).Scan(&escrow.ID, &escrow.Status, &escrow.CreatedAt, &escrow.UpdatedAt); err != nil {
		return fmt.Errorf("escrow repository: create %w", err)
	}

	if err := insertLedgerEntry(ctx, tx, escrow.BuyerID, &escrow.ID,
		models.TransactionTypeEscrowFunding, escrow.Amount, 0,
		"Заморозка средств по сделке"); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID возвращает сделку по идентификатору.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE id = $1`
	if err := r.db.GetContext(ctx, &escrow, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by id %w", err)
	}

	return &escrow, nil
}

// ListByUser возвращает сделки, где пользователь выступает любой из сторон.
func (r *EscrowRepository) ListByUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]*models.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE (buyer_id = $1 OR seller_id = $1)`
	args := []interface{}{userID}
	argNum := 2

	if status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argNum)
		args = append(args, status)
		argNum++
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, limit, offset)

	var escrows []*models.Escrow
	if err := r.db.SelectContext(ctx, &escrows, query, args...); err != nil {
		return nil, fmt.Errorf("escrow repository: list by user %w", err)
	}

	return escrows, nil
}

// Accept переводит сделку pending -> accepted.
func (r *EscrowRepository) Accept(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `
		UPDATE escrows
		SET status = 'accepted', accepted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + escrowColumns

	if err := r.db.GetContext(ctx, &escrow, query, escrowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidEscrowStatus
		}
		return nil, fmt.Errorf("escrow repository: accept %w", err)
	}

	return &escrow, nil
}

// Reject переводит сделку pending -> rejected и возвращает средства покупателю.
func (r *EscrowRepository) Reject(ctx context.Context, escrowID uuid.UUID, reason string) (*models.Escrow, error) {
	return r.refundTransition(ctx, escrowID, models.EscrowStatusRejected, &reason,
		"Возврат средств по отклонённой сделке")
}

// Cancel переводит сделку pending -> cancelled и возвращает средства покупателю.
func (r *EscrowRepository) Cancel(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	return r.refundTransition(ctx, escrowID, models.EscrowStatusCancelled, nil,
		"Возврат средств по отменённой сделке")
}

// refundTransition завершает сделку из pending с полным возвратом средств покупателю.
func (r *EscrowRepository) refundTransition(ctx context.Context, escrowID uuid.UUID, toStatus string, reason *string, description string) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var escrow models.Escrow
	query := `
		UPDATE escrows
		SET status = $2, rejection_reason = COALESCE($3, rejection_reason), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + escrowColumns

	if err := tx.GetContext(ctx, &escrow, query, escrowID, toStatus, reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidEscrowStatus
		}
		return nil, fmt.Errorf("escrow repository: refund transition %w", err)
	}

	// Возвращаем замороженные средства покупателю
	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET available = available + $2, held = held - $2, updated_at = NOW()
		WHERE user_id = $1
	`, escrow.BuyerID, escrow.Amount); err != nil {
		return nil, fmt.Errorf("escrow repository: refund funds %w", err)
	}

	if err := insertLedgerEntry(ctx, tx, escrow.BuyerID, &escrow.ID,
		models.TransactionTypeEscrowRefund, escrow.Amount, 0, description); err != nil {
		return nil, err
	}

	return &escrow, tx.Commit()
}

// Complete переводит сделку accepted -> completed.
func (r *EscrowRepository) Complete(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `
		UPDATE escrows
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'accepted'
		RETURNING ` + escrowColumns

	if err := r.db.GetContext(ctx, &escrow, query, escrowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidEscrowStatus
		}
		return nil, fmt.Errorf("escrow repository: complete %w", err)
	}

	return &escrow, nil
}

// Release переводит сделку completed -> released и выплачивает продавцу
// сумму за вычетом комиссии.
func (r *EscrowRepository) Release(ctx context.Context, escrowID uuid.UUID, fee float64) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var escrow models.Escrow
	query := `
		UPDATE escrows
		SET status = 'released', released_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'completed'
		RETURNING ` + escrowColumns

	if err := tx.GetContext(ctx, &escrow, query, escrowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidEscrowStatus
		}
		return nil, fmt.Errorf("escrow repository: release %w", err)
	}

	if err := payoutSeller(ctx, tx, &escrow, fee,
		models.TransactionTypeEscrowRelease, "Выплата по завершённой сделке"); err != nil {
		return nil, err
	}

	return &escrow, tx.Commit()
}

// CountByStatus возвращает количество сделок по статусам.
func (r *EscrowRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM escrows GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: count by status %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("escrow repository: count by status scan %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// TotalHeldAmount возвращает суммарный объём средств в активных сделках.
func (r *EscrowRepository) TotalHeldAmount(ctx context.Context) (float64, error) {
	var total float64
	query := `
		SELECT COALESCE(SUM(amount), 0) FROM escrows
		WHERE status IN ('pending', 'accepted', 'completed', 'disputed')
	`
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("escrow repository: total held amount %w", err)
	}
	return total, nil
}

// resolveTransition выполняет guarded переход disputed -> resolved.
func resolveTransition(ctx context.Context, tx *sqlx.Tx, escrowID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `
		UPDATE escrows
		SET status = 'resolved', released_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'disputed'
		RETURNING ` + escrowColumns

	if err := tx.GetContext(ctx, &escrow, query, escrowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidEscrowStatus
		}
		return nil, fmt.Errorf("escrow repository: resolve transition %w", err)
	}

	return &escrow, nil
}

// payoutSeller снимает заморозку с покупателя и начисляет продавцу
// сумму за вычетом комиссии.
func payoutSeller(ctx context.Context, tx *sqlx.Tx, escrow *models.Escrow, fee float64, txType, description string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET held = held - $2, updated_at = NOW()
		WHERE user_id = $1
	`, escrow.BuyerID, escrow.Amount); err != nil {
		return fmt.Errorf("escrow repository: payout unhold %w", err)
	}

	payout := escrow.Amount - fee
	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET available = available + $2, updated_at = NOW()
		WHERE user_id = $1
	`, escrow.SellerID, payout); err != nil {
		return fmt.Errorf("escrow repository: payout credit %w", err)
	}

	return insertLedgerEntry(ctx, tx, escrow.SellerID, &escrow.ID, txType, payout, fee, description)
}

// insertLedgerEntry добавляет завершённую запись в журнал транзакций.
func insertLedgerEntry(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, escrowID *uuid.UUID, txType string, amount, fee float64, description string) error {
	reference := fmt.Sprintf("SQ-ESC-%s", uuid.NewString())
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, escrow_id, type, amount, fee, status, reference, description, completed_at)
		VALUES ($1, $2, $3, $4, $5, 'success', $6, $7, $8)
	`, userID, escrowID, txType, amount, fee, reference, description, time.Now()); err != nil {
		return fmt.Errorf("escrow repository: insert ledger entry %w", err)
	}
	return nil
}
