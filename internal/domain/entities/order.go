package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order is the buyer's purchase intent for a ticket tier.
type Order struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID        uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	EventID       uuid.UUID      `json:"event_id" gorm:"type:uuid;not null;index"`
	TierID        uuid.UUID      `json:"tier_id" gorm:"type:uuid;not null"`
	TierName      string         `json:"tier_name"`
	Quantity      int            `json:"quantity" gorm:"not null;check:quantity BETWEEN 1 AND 10"`
	UnitPrice     int64          `json:"unit_price" gorm:"not null"`
	TotalAmount   int64          `json:"total_amount" gorm:"not null"`
	PaymentStatus string         `json:"payment_status" gorm:"not null;index;check:payment_status IN ('pending', 'completed', 'failed', 'refunded')"`
	TicketIDs     []uuid.UUID    `json:"ticket_ids" gorm:"serializer:json"`

	PlatformAmount  int64  `json:"platform_amount"`
	OrganizerAmount int64  `json:"organizer_amount"`

	GatewayProvider  string `json:"gateway_provider"`
	GatewayReference string `json:"gateway_reference" gorm:"index"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for the Order entity.
func (Order) TableName() string {
	return "orders"
}

const (
	OrderPaymentStatusPending   = "pending"
	OrderPaymentStatusCompleted = "completed"
	OrderPaymentStatusFailed    = "failed"
	OrderPaymentStatusRefunded  = "refunded"
)

// IsPending returns true if the order has not yet been paid.
func (o *Order) IsPending() bool {
	return o.PaymentStatus == OrderPaymentStatusPending
}

// IsCompleted returns true if the order's payment completed and tickets were minted.
func (o *Order) IsCompleted() bool {
	return o.PaymentStatus == OrderPaymentStatusCompleted
}

// SetCompleted marks the order as paid and attaches the minted ticket ids, satisfying
// the invariant that paymentStatus=completed implies len(tickets) = quantity.
func (o *Order) SetCompleted(ticketIDs []uuid.UUID) {
	o.PaymentStatus = OrderPaymentStatusCompleted
	o.TicketIDs = ticketIDs
}

// SetFailed marks the order's payment as failed.
func (o *Order) SetFailed() {
	o.PaymentStatus = OrderPaymentStatusFailed
}

// SetRefunded marks the order as fully refunded.
func (o *Order) SetRefunded() {
	o.PaymentStatus = OrderPaymentStatusRefunded
}

// IsValidOrderPaymentStatus checks if the given status is a recognized order payment status.
func IsValidOrderPaymentStatus(status string) bool {
	switch status {
	case OrderPaymentStatusPending, OrderPaymentStatusCompleted, OrderPaymentStatusFailed, OrderPaymentStatusRefunded:
		return true
	}
	return false
}
