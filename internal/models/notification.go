package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы уведомлений
const (
	NotificationEscrowCreated     = "escrow_created"
	NotificationEscrowAccepted    = "escrow_accepted"
	NotificationEscrowRejected    = "escrow_rejected"
	NotificationEscrowCancelled   = "escrow_cancelled"
	NotificationEscrowCompleted   = "escrow_completed"
	NotificationEscrowReleased    = "escrow_released"
	NotificationDisputeRaised     = "dispute_raised"
	NotificationDisputeResolved   = "dispute_resolved"
	NotificationDepositSuccess    = "deposit_success"
	NotificationDepositFailed     = "deposit_failed"
	NotificationWithdrawalSuccess = "withdrawal_success"
	NotificationWithdrawalFailed  = "withdrawal_failed"
	NotificationAccountSuspended  = "account_suspended"
)

// Notification — уведомление пользователя. Создаётся сервисами при событиях
// жизненного цикла, клиент может только отмечать прочитанным и удалять.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Type      string          `db:"type" json:"type"`
	Title     string          `db:"title" json:"title"`
	Message   string          `db:"message" json:"message"`
	Data      json.RawMessage `db:"data" json:"data,omitempty"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	ReadAt    *time.Time      `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
