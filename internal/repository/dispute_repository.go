package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/au-lex/safeqly-backend/internal/models"
)

var (
	// ErrDisputeNotFound возвращается, когда спор не найден.
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrDisputeAlreadyExists возвращается при попытке открыть второй
	// активный спор по той же сделке.
	ErrDisputeAlreadyExists = errors.New("dispute already exists")
	// ErrDisputeAlreadyResolved возвращается при повторном разрешении спора.
	ErrDisputeAlreadyResolved = errors.New("dispute already resolved")
)

const disputeColumns = `id, escrow_id, raised_by, reason, description, evidence_url, evidence_file_name, status, resolution, winner, resolved_by, created_at, updated_at, resolved_at`

// DisputeRepository отвечает за таблицу disputes.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт экземпляр репозитория.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Open открывает спор и переводит сделку в disputed одной транзакцией:
// либо появляются и запись спора, и заморозка сделки, либо ничего.
// Guarded UPDATE по статусу сделки служит воротами для одновременных
// попыток, частичный уникальный индекс в БД страхует от второго
// активного спора по той же сделке.
func (r *DisputeRepository) Open(ctx context.Context, dispute *models.Dispute) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var escrow models.Escrow
	freezeQuery := `
		UPDATE escrows
		SET status = 'disputed', updated_at = NOW()
		WHERE id = $1 AND status IN ('accepted', 'completed')
		RETURNING ` + escrowColumns

	if err := tx.GetContext(ctx, &escrow, freezeQuery, dispute.EscrowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidEscrowStatus
		}
		return nil, fmt.Errorf("dispute repository: open freeze escrow %w", err)
	}

	query := `
		INSERT INTO disputes (escrow_id, raised_by, reason, description, evidence_url, evidence_file_name, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'open')
		RETURNING id, status, created_at, updated_at
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		dispute.EscrowID, dispute.RaisedBy, dispute.Reason, dispute.Description,
		dispute.EvidenceURL, dispute.EvidenceFileName,
	).Scan(&dispute.ID, &dispute.Status, &dispute.CreatedAt, &dispute.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDisputeAlreadyExists
		}
		return nil, fmt.Errorf("dispute repository: open %w", err)
	}

	return &escrow, tx.Commit()
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	if err := r.db.GetContext(ctx, &dispute, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}

	return &dispute, nil
}

// GetActiveByEscrow возвращает незавершённый спор по сделке.
func (r *DisputeRepository) GetActiveByEscrow(ctx context.Context, escrowID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE escrow_id = $1 AND status IN ('open', 'in_review')`
	if err := r.db.GetContext(ctx, &dispute, query, escrowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get active by escrow %w", err)
	}

	return &dispute, nil
}

// ListByUser возвращает споры по сделкам, где пользователь — одна из сторон.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Dispute, error) {
	query := `
		SELECT d.` + disputeColumnsPrefixed() + `
		FROM disputes d
		INNER JOIN escrows e ON e.id = d.escrow_id
		WHERE e.buyer_id = $1 OR e.seller_id = $1
		ORDER BY d.created_at DESC
		LIMIT $2 OFFSET $3
	`

	var disputes []*models.Dispute
	if err := r.db.SelectContext(ctx, &disputes, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}

	return disputes, nil
}

// ListAll возвращает все споры для админки с фильтром по статусу.
func (r *DisputeRepository) ListAll(ctx context.Context, status string, limit, offset int) ([]*models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes`
	args := []interface{}{}
	argNum := 1

	if status != "" {
		query += fmt.Sprintf(` WHERE status = $%d`, argNum)
		args = append(args, status)
		argNum++
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, limit, offset)

	var disputes []*models.Dispute
	if err := r.db.SelectContext(ctx, &disputes, query, args...); err != nil {
		return nil, fmt.Errorf("dispute repository: list all %w", err)
	}

	return disputes, nil
}

// MarkInReview переводит спор open -> in_review.
func (r *DisputeRepository) MarkInReview(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	query := `
		UPDATE disputes
		SET status = 'in_review', updated_at = NOW()
		WHERE id = $1 AND status = 'open'
		RETURNING ` + disputeColumns

	if err := r.db.GetContext(ctx, &dispute, query, disputeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeAlreadyResolved
		}
		return nil, fmt.Errorf("dispute repository: mark in review %w", err)
	}

	return &dispute, nil
}

// ResolveWithPayout завершает спор решением администратора. Статус спора,
// переход сделки disputed -> resolved и движение средств победителю
// выполняются в одной транзакции БД: сбой на любом шаге откатывает всё,
// и решение можно повторить. Guarded UPDATE по активным статусам
// защищает от двойного разрешения и двойной выплаты.
func (r *DisputeRepository) ResolveWithPayout(ctx context.Context, disputeID, adminID uuid.UUID, status, resolution, winner string, fee float64) (*models.Dispute, *models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var dispute models.Dispute
	query := `
		UPDATE disputes
		SET status = $2, resolution = $3, winner = $4, resolved_by = $5, resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('open', 'in_review')
		RETURNING ` + disputeColumns

	if err := tx.GetContext(ctx, &dispute, query, disputeID, status, resolution, winner, adminID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrDisputeAlreadyResolved
		}
		return nil, nil, fmt.Errorf("dispute repository: resolve %w", err)
	}

	escrow, err := resolveTransition(ctx, tx, dispute.EscrowID)
	if err != nil {
		return nil, nil, err
	}

	if winner == models.DisputeWinnerBuyer {
		// Покупателю возвращается полная сумма, комиссия не удерживается.
		if _, err := tx.ExecContext(ctx, `
			UPDATE balances SET available = available + $2, held = held - $2, updated_at = NOW()
			WHERE user_id = $1
		`, escrow.BuyerID, escrow.Amount); err != nil {
			return nil, nil, fmt.Errorf("dispute repository: resolve refund %w", err)
		}
		if err := insertLedgerEntry(ctx, tx, escrow.BuyerID, &escrow.ID,
			models.TransactionTypeDisputePayout, escrow.Amount, 0,
			"Возврат средств по решению спора"); err != nil {
			return nil, nil, err
		}
	} else {
		if err := payoutSeller(ctx, tx, escrow, fee,
			models.TransactionTypeDisputePayout, "Выплата по решению спора"); err != nil {
			return nil, nil, err
		}
	}

	return &dispute, escrow, tx.Commit()
}

// AttachEvidence добавляет файл доказательства к активному спору.
func (r *DisputeRepository) AttachEvidence(ctx context.Context, disputeID uuid.UUID, evidenceURL, fileName string) (*models.Dispute, error) {
	var dispute models.Dispute
	query := `
		UPDATE disputes
		SET evidence_url = $2, evidence_file_name = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('open', 'in_review')
		RETURNING ` + disputeColumns

	if err := r.db.GetContext(ctx, &dispute, query, disputeID, evidenceURL, fileName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeAlreadyResolved
		}
		return nil, fmt.Errorf("dispute repository: attach evidence %w", err)
	}

	return &dispute, nil
}

// CountByStatus возвращает количество споров по статусам.
func (r *DisputeRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM disputes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: count by status %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("dispute repository: count by status scan %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// disputeColumnsPrefixed возвращает колонки спора с префиксом d. для join-запросов.
func disputeColumnsPrefixed() string {
	return `id, d.escrow_id, d.raised_by, d.reason, d.description, d.evidence_url, d.evidence_file_name, d.status, d.resolution, d.winner, d.resolved_by, d.created_at, d.updated_at, d.resolved_at`
}

// isUniqueViolation проверяет ошибку нарушения уникальности Postgres.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
