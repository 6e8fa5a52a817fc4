package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы escrow-сделки
const (
	EscrowStatusPending   = "pending"
	EscrowStatusAccepted  = "accepted"
	EscrowStatusRejected  = "rejected"
	EscrowStatusCompleted = "completed"
	EscrowStatusReleased  = "released"
	EscrowStatusDisputed  = "disputed"
	EscrowStatusCancelled = "cancelled"
	EscrowStatusResolved  = "resolved"
)

// ValidEscrowStatuses — допустимые значения статуса сделки.
var ValidEscrowStatuses = map[string]bool{
	EscrowStatusPending:   true,
	EscrowStatusAccepted:  true,
	EscrowStatusRejected:  true,
	EscrowStatusCompleted: true,
	EscrowStatusReleased:  true,
	EscrowStatusDisputed:  true,
	EscrowStatusCancelled: true,
	EscrowStatusResolved:  true,
}

// Escrow представляет защищённую сделку между покупателем и продавцом.
// Средства покупателя замораживаются при создании и двигаются дальше
// только по переходам жизненного цикла.
type Escrow struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	BuyerID          uuid.UUID  `db:"buyer_id" json:"buyer_id"`
	SellerID         uuid.UUID  `db:"seller_id" json:"seller_id"`
	Amount           float64    `db:"amount" json:"amount"`
	Items            string     `db:"items" json:"items"`
	DeliveryDate     string     `db:"delivery_date" json:"delivery_date"`
	Status           string     `db:"status" json:"status"`
	RejectionReason  *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	AttachedFileURL  *string    `db:"attached_file_url" json:"attached_file_url,omitempty"`
	AttachedFileName *string    `db:"attached_file_name" json:"attached_file_name,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	AcceptedAt       *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ReleasedAt       *time.Time `db:"released_at" json:"released_at,omitempty"`
}

// IsParticipant проверяет, что пользователь — сторона сделки.
func (e *Escrow) IsParticipant(userID uuid.UUID) bool {
	return e.BuyerID == userID || e.SellerID == userID
}
