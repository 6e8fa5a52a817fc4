package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы транзакций
const (
	TransactionTypeDeposit       = "deposit"
	TransactionTypeWithdrawal    = "withdrawal"
	TransactionTypeEscrowFunding = "escrow_funding"
	TransactionTypeEscrowRefund  = "escrow_refund"
	TransactionTypeEscrowRelease = "escrow_release"
	TransactionTypeDisputePayout = "dispute_payout"
)

// Статусы транзакций
const (
	TransactionStatusPending = "pending"
	TransactionStatusSuccess = "success"
	TransactionStatusFailed  = "failed"
)

// Balance представляет баланс кошелька пользователя.
// Held — средства, замороженные в активных escrow-сделках.
type Balance struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Available float64   `db:"available" json:"available"`
	Held      float64   `db:"held" json:"held"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction — запись в журнале кошелька. Журнал append-only:
// запись создаётся в pending и дальше меняет только статус.
type Transaction struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	EscrowID    *uuid.UUID `db:"escrow_id" json:"escrow_id,omitempty"`
	Type        string     `db:"type" json:"type"`
	Amount      float64    `db:"amount" json:"amount"`
	Fee         float64    `db:"fee" json:"fee"`
	Status      string     `db:"status" json:"status"`
	Reference   string     `db:"reference" json:"reference"`
	Description *string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// BankAccount — привязанный банковский счёт для вывода средств.
// recipient_code выдаётся платёжным провайдером при привязке.
type BankAccount struct {
	ID            uuid.UUID `db:"id" json:"id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	BankName      string    `db:"bank_name" json:"bank_name"`
	BankCode      string    `db:"bank_code" json:"bank_code"`
	AccountNumber string    `db:"account_number" json:"account_number"`
	AccountName   string    `db:"account_name" json:"account_name"`
	RecipientCode string    `db:"recipient_code" json:"recipient_code"`
	IsDefault     bool      `db:"is_default" json:"is_default"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
