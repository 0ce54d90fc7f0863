package entities

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is the ledger row for a single ticket purchase attempt.
type Transaction struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	IdempotencyKey string    `json:"idempotency_key" gorm:"uniqueIndex;not null"`
	Status         string    `json:"status" gorm:"not null;index;check:status IN ('initiated', 'processing', 'completed', 'failed', 'refunded', 'partially_refunded')"`
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	OrderID        uuid.UUID `json:"order_id" gorm:"type:uuid;not null;uniqueIndex"`
	EventID        uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	Amount         int64     `json:"amount" gorm:"not null"`
	Currency       string    `json:"currency" gorm:"not null;default:'NGN'"`

	GatewayProvider       string  `json:"gateway_provider"`
	GatewayReference      string  `json:"gateway_reference" gorm:"index"`
	GatewayTransactionID  *string `json:"gateway_transaction_id"`
	GatewayChannel        *string `json:"gateway_channel"`
	GatewayAuthMeta       *string `json:"gateway_auth_meta" gorm:"type:text"`
	GatewayResponse       *string `json:"gateway_response" gorm:"type:text"`
	GatewayFees           int64   `json:"gateway_fees"`

	PlatformAmount          int64  `json:"platform_amount"`
	OrganizerAmount         int64  `json:"organizer_amount"`
	OrganizerSubaccountCode string `json:"organizer_subaccount_code"`

	RetryCount  int        `json:"retry_count" gorm:"not null;default:0"`
	MaxRetries  int        `json:"max_retries" gorm:"not null;default:3"`
	LastRetryAt *time.Time `json:"last_retry_at"`
	NextRetryAt *time.Time `json:"next_retry_at" gorm:"index"`

	FailureReason  *string `json:"failure_reason"`
	FailureCode    *string `json:"failure_code"`
	FailureDetails *string `json:"failure_details"`

	TotalRefunded int64 `json:"total_refunded" gorm:"not null;default:0"`

	InitiatedAt  time.Time  `json:"initiated_at" gorm:"not null"`
	ProcessingAt *time.Time `json:"processing_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	FailedAt     *time.Time `json:"failed_at"`

	MetaIP        string `json:"meta_ip"`
	MetaUserAgent string `json:"meta_user_agent"`
	MetaTierName  string `json:"meta_tier_name"`
	MetaQuantity  int    `json:"meta_quantity"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Refunds []Refund `json:"refunds" gorm:"foreignKey:TransactionID"`
}

// TableName returns the table name for the Transaction entity.
func (Transaction) TableName() string {
	return "transactions"
}

const (
	TransactionStatusInitiated         = "initiated"
	TransactionStatusProcessing        = "processing"
	TransactionStatusCompleted         = "completed"
	TransactionStatusFailed            = "failed"
	TransactionStatusRefunded          = "refunded"
	TransactionStatusPartiallyRefunded = "partially_refunded"
)

// IsInitiated returns true if the transaction has not yet been sent to the gateway for completion.
func (t *Transaction) IsInitiated() bool {
	return t.Status == TransactionStatusInitiated
}

// IsCompleted returns true if the transaction reached the completed state.
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

// IsFailed returns true if the transaction is currently failed.
func (t *Transaction) IsFailed() bool {
	return t.Status == TransactionStatusFailed
}

// IsRefundable returns true if the transaction can accept a further refund.
func (t *Transaction) IsRefundable() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusPartiallyRefunded
}

// NetRefundable returns the amount still eligible for refund.
func (t *Transaction) NetRefundable() int64 {
	return t.Amount - t.TotalRefunded
}

// allowedTransactionTransitions is the exhaustive state machine of §4.1.1.
var allowedTransactionTransitions = map[string]map[string]bool{
	TransactionStatusInitiated:         {TransactionStatusProcessing: true, TransactionStatusFailed: true},
	TransactionStatusProcessing:        {TransactionStatusCompleted: true, TransactionStatusFailed: true},
	TransactionStatusCompleted:         {TransactionStatusPartiallyRefunded: true, TransactionStatusRefunded: true},
	TransactionStatusPartiallyRefunded: {TransactionStatusRefunded: true},
	TransactionStatusFailed:            {TransactionStatusProcessing: true},
}

// CanTransitionTo reports whether moving from the transaction's current status to target is allowed.
func (t *Transaction) CanTransitionTo(target string) bool {
	next, ok := allowedTransactionTransitions[t.Status]
	if !ok {
		return false
	}
	return next[target]
}

// IsValidTransactionStatus checks if the given status is one of the recognized transaction states.
func IsValidTransactionStatus(status string) bool {
	switch status {
	case TransactionStatusInitiated, TransactionStatusProcessing, TransactionStatusCompleted,
		TransactionStatusFailed, TransactionStatusRefunded, TransactionStatusPartiallyRefunded:
		return true
	}
	return false
}

// Refund is one append-only entry against a Transaction's refunds[].
type Refund struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TransactionID   uuid.UUID `json:"transaction_id" gorm:"type:uuid;not null;index"`
	Amount          int64     `json:"amount" gorm:"not null"`
	Reason          string    `json:"reason"`
	ProcessedBy     string    `json:"processed_by"`
	ProcessedAt     time.Time `json:"processed_at" gorm:"not null"`
	GatewayRefundID *string   `json:"gateway_refund_id"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name for the Refund entity.
func (Refund) TableName() string {
	return "refunds"
}

// RefundOutboxEntry records an oversold-at-completion refund intent for an out-of-core payout process to drain.
type RefundOutboxEntry struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TransactionID uuid.UUID `json:"transaction_id" gorm:"type:uuid;not null;index"`
	Reason        string    `json:"reason"`
	Amount        int64     `json:"amount" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name for the RefundOutboxEntry entity.
func (RefundOutboxEntry) TableName() string {
	return "refund_outbox_entries"
}
