package entities

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is one seat of admission, minted exclusively inside the Complete transition.
type Ticket struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderID      uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index"`
	EventID      uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	TierID       uuid.UUID `json:"tier_id" gorm:"type:uuid;not null"`
	TierName     string    `json:"tier_name"`
	Price        int64     `json:"price" gorm:"not null"`
	QRCode       string    `json:"qr_code" gorm:"uniqueIndex;not null"`
	Status       string    `json:"status" gorm:"not null;index;check:status IN ('valid', 'used', 'cancelled', 'transferred')"`
	CheckedInAt  *time.Time `json:"checked_in_at"`
	CheckedInBy  *uuid.UUID `json:"checked_in_by" gorm:"type:uuid"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for the Ticket entity.
func (Ticket) TableName() string {
	return "tickets"
}

const (
	TicketStatusValid       = "valid"
	TicketStatusUsed        = "used"
	TicketStatusCancelled   = "cancelled"
	TicketStatusTransferred = "transferred"
)

// IsValid reports whether the ticket is still admissible.
func (t *Ticket) IsValid() bool {
	return t.Status == TicketStatusValid
}

// IsUsed reports whether the ticket has already been checked in.
func (t *Ticket) IsUsed() bool {
	return t.Status == TicketStatusUsed
}

// IsCancelled reports whether the ticket was cancelled (e.g. by a full refund).
func (t *Ticket) IsCancelled() bool {
	return t.Status == TicketStatusCancelled
}

// CheckIn marks the ticket used by scanner at the given time. Callers are responsible for
// performing this as a compare-and-set against the prior status to guarantee single-use.
func (t *Ticket) CheckIn(scanner uuid.UUID, at time.Time) {
	t.Status = TicketStatusUsed
	t.CheckedInAt = &at
	t.CheckedInBy = &scanner
}

// Cancel marks the ticket cancelled, used on full-refund of its order.
func (t *Ticket) Cancel() {
	t.Status = TicketStatusCancelled
}

// IsValidTicketStatus checks if the given status is a recognized ticket status.
func IsValidTicketStatus(status string) bool {
	switch status {
	case TicketStatusValid, TicketStatusUsed, TicketStatusCancelled, TicketStatusTransferred:
		return true
	}
	return false
}
