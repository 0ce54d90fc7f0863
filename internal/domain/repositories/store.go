package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/concertforge/ticket-engine/internal/domain/entities"
)

// Sentinel not-found errors, one per aggregate, in the style of the teacher's repositories.ErrPaymentNotFound.
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrTierNotFound        = errors.New("ticket tier not found")
	ErrTicketNotFound      = errors.New("ticket not found")
)

// TransactionRepository persists the Transaction ledger row (§3).
type TransactionRepository interface {
	Create(ctx context.Context, txn *entities.Transaction) error
	Update(ctx context.Context, txn *entities.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error)
	GetByGatewayReference(ctx context.Context, reference string) (*entities.Transaction, error)
	ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]*entities.Transaction, error)
}

// OrderRepository persists buyer purchase intent rows (§3).
type OrderRepository interface {
	Create(ctx context.Context, order *entities.Order) error
	Update(ctx context.Context, order *entities.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Order, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Order, error)
}

// EventRepository reads and updates the subset of Event state the engine owns: tier
// inventory counters and aggregate revenue/sold totals (§3).
type EventRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Event, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Event, error)
	Update(ctx context.Context, event *entities.Event) error
}

// TicketRepository persists minted Tickets and performs the compare-and-set single-use
// check-in required by §4.3 step 6.
type TicketRepository interface {
	Create(ctx context.Context, ticket *entities.Ticket) error
	GetByQRCode(ctx context.Context, qrCode string) (*entities.Ticket, error)
	// ListByOrderID returns every ticket minted for orderID, used to re-hydrate
	// CompleteOutput.Tickets on the idempotent already-completed path.
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entities.Ticket, error)
	// CompareAndSetCheckIn atomically transitions a ticket from status=valid to status=used,
	// stamping checkedInAt/checkedInBy. It returns ok=false (no error) if the row was not in
	// the expected prior status, signalling RACE_CONDITION to the caller without a held lock.
	CompareAndSetCheckIn(ctx context.Context, ticketID uuid.UUID, scanner uuid.UUID, now time.Time) (ok bool, err error)
	CancelAllForOrder(ctx context.Context, orderID uuid.UUID) error
	// CountNonCancelledByUserTier supports the per-user tier limit precondition of §4.1.2
	// step 4: tickets already held by userID in (eventID, tierID), excluding cancelled ones.
	CountNonCancelledByUserTier(ctx context.Context, userID, eventID, tierID uuid.UUID) (int64, error)
}

// RefundOutboxRepository appends oversold-at-completion refund intents for an
// out-of-core payout process to drain (§4.1.3 step 4). The engine only writes it.
type RefundOutboxRepository interface {
	Create(ctx context.Context, entry *entities.RefundOutboxEntry) error
}

// Tx is the unit of work handed to the callback passed to Store.WithTx: every
// repository obtained from it participates in the same database transaction and, for
// the *ForUpdate accessors, the same row locks.
type Tx interface {
	Transactions() TransactionRepository
	Orders() OrderRepository
	Events() EventRepository
	Tickets() TicketRepository
	RefundOutbox() RefundOutboxRepository
}

// Store is the transactional persistence port of §2 item 3: snapshot-isolated
// read+write with ReadForUpdate on Transaction, Order, Event, and Ticket rows, modeled
// directly on the teacher's gorm `.Transaction(func(tx *gorm.DB) error {...})` idiom.
type Store interface {
	// WithTx runs fn inside a single database transaction, committing on nil error and
	// rolling back otherwise (or on panic, which it re-raises after rollback).
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Accessors usable outside of a WithTx callback, each call running on its own, for
	// work that needs no row lock: lookups (idempotency-key dedup check, webhook
	// reference lookup) and the gate scan's single-statement compare-and-set check-in.
	Transactions() TransactionRepository
	Orders() OrderRepository
	Events() EventRepository
	Tickets() TicketRepository
}
