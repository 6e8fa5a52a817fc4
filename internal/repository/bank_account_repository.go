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

// ErrBankAccountNotFound возвращается, когда банковский счёт не найден.
var ErrBankAccountNotFound = errors.New("bank account not found")

const bankAccountColumns = `id, user_id, bank_name, bank_code, account_number, account_name, recipient_code, is_default, created_at`

// BankAccountRepository отвечает за таблицу bank_accounts.
type BankAccountRepository struct {
	db *sqlx.DB
}

// NewBankAccountRepository создаёт экземпляр репозитория.
func NewBankAccountRepository(db *sqlx.DB) *BankAccountRepository {
	return &BankAccountRepository{db: db}
}

// Create добавляет банковский счёт. Первый счёт пользователя становится
// счётом по умолчанию.
func (r *BankAccountRepository) Create(ctx context.Context, account *models.BankAccount) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing int
	if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM bank_accounts WHERE user_id = $1`, account.UserID); err != nil {
		return fmt.Errorf("bank account repository: create count %w", err)
	}
	account.IsDefault = existing == 0

	query := `
		INSERT INTO bank_accounts (user_id, bank_name, bank_code, account_number, account_name, recipient_code, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		account.UserID, account.BankName, account.BankCode, account.AccountNumber,
		account.AccountName, account.RecipientCode, account.IsDefault,
	).Scan(&account.ID, &account.CreatedAt); err != nil {
		return fmt.Errorf("bank account repository: create %w", err)
	}

	return tx.Commit()
}

// GetByID возвращает счёт пользователя по идентификатору.
func (r *BankAccountRepository) GetByID(ctx context.Context, accountID, userID uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &account, query, accountID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBankAccountNotFound
		}
		return nil, fmt.Errorf("bank account repository: get by id %w", err)
	}

	return &account, nil
}

// List возвращает все счета пользователя.
func (r *BankAccountRepository) List(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error) {
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`

	var accounts []models.BankAccount
	if err := r.db.SelectContext(ctx, &accounts, query, userID); err != nil {
		return nil, fmt.Errorf("bank account repository: list %w", err)
	}

	return accounts, nil
}

// SetDefault делает счёт пользователя счётом по умолчанию.
func (r *BankAccountRepository) SetDefault(ctx context.Context, accountID, userID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE bank_accounts SET is_default = FALSE WHERE user_id = $1 AND is_default
	`, userID); err != nil {
		return fmt.Errorf("bank account repository: set default clear %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE bank_accounts SET is_default = TRUE WHERE id = $1 AND user_id = $2
	`, accountID, userID)
	if err != nil {
		return fmt.Errorf("bank account repository: set default %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("bank account repository: set default rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrBankAccountNotFound
	}

	return tx.Commit()
}

// Delete удаляет счёт пользователя.
func (r *BankAccountRepository) Delete(ctx context.Context, accountID, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bank_accounts WHERE id = $1 AND user_id = $2`, accountID, userID)
	if err != nil {
		return fmt.Errorf("bank account repository: delete %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("bank account repository: delete rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrBankAccountNotFound
	}

	return nil
}
