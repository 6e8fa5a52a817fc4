package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы спора
const (
	DisputeStatusOpen     = "open"
	DisputeStatusInReview = "in_review"
	DisputeStatusResolved = "resolved"
	DisputeStatusRejected = "rejected"
	DisputeStatusClosed   = "closed"
)

// Причины спора
const (
	DisputeReasonNotReceived    = "item_not_received"
	DisputeReasonNotAsDescribed = "item_significantly_not_as_described"
	DisputeReasonDamaged        = "item_arrived_damaged"
	DisputeReasonIncorrectItem  = "incorrect_item_received"
	DisputeReasonOther          = "other"
)

// Победители спора
const (
	DisputeWinnerBuyer  = "buyer"
	DisputeWinnerSeller = "seller"
)

// ValidDisputeStatuses — допустимые значения статуса спора.
var ValidDisputeStatuses = map[string]bool{
	DisputeStatusOpen:     true,
	DisputeStatusInReview: true,
	DisputeStatusResolved: true,
	DisputeStatusRejected: true,
	DisputeStatusClosed:   true,
}

// ValidDisputeReasons — допустимые значения причины спора.
var ValidDisputeReasons = map[string]bool{
	DisputeReasonNotReceived:    true,
	DisputeReasonNotAsDescribed: true,
	DisputeReasonDamaged:        true,
	DisputeReasonIncorrectItem:  true,
	DisputeReasonOther:          true,
}

// Dispute представляет претензию одной из сторон по активной сделке.
// Разрешается только администратором.
type Dispute struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	EscrowID         uuid.UUID  `db:"escrow_id" json:"escrow_id"`
	RaisedBy         uuid.UUID  `db:"raised_by" json:"raised_by"`
	Reason           string     `db:"reason" json:"reason"`
	Description      string     `db:"description" json:"description"`
	EvidenceURL      *string    `db:"evidence_url" json:"evidence_url,omitempty"`
	EvidenceFileName *string    `db:"evidence_file_name" json:"evidence_file_name,omitempty"`
	Status           string     `db:"status" json:"status"`
	Resolution       *string    `db:"resolution" json:"resolution,omitempty"`
	Winner           *string    `db:"winner" json:"winner,omitempty"`
	ResolvedBy       *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	ResolvedAt       *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsTerminal сообщает, завершён ли спор.
func (d *Dispute) IsTerminal() bool {
	return d.Status == DisputeStatusResolved || d.Status == DisputeStatusRejected || d.Status == DisputeStatusClosed
}
