package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/concertforge/ticket-engine/internal/domain/repositories"
	pgrepos "github.com/concertforge/ticket-engine/internal/infrastructure/database/postgres/repositories"
)

// tx is the repositories.Tx implementation handed to Store.WithTx callbacks: every
// repository obtained from it is bound to the same *gorm.DB transaction handle.
type tx struct {
	transactions *pgrepos.TransactionRepository
	orders       *pgrepos.OrderRepository
	events       *pgrepos.EventRepository
	tickets      *pgrepos.TicketRepository
	refundOutbox *pgrepos.RefundOutboxRepository
}

func newTx(db *gorm.DB) *tx {
	return &tx{
		transactions: pgrepos.NewTransactionRepository(db),
		orders:       pgrepos.NewOrderRepository(db),
		events:       pgrepos.NewEventRepository(db),
		tickets:      pgrepos.NewTicketRepository(db),
		refundOutbox: pgrepos.NewRefundOutboxRepository(db),
	}
}

func (t *tx) Transactions() repositories.TransactionRepository { return t.transactions }
func (t *tx) Orders() repositories.OrderRepository             { return t.orders }
func (t *tx) Events() repositories.EventRepository              { return t.events }
func (t *tx) Tickets() repositories.TicketRepository            { return t.tickets }
func (t *tx) RefundOutbox() repositories.RefundOutboxRepository { return t.refundOutbox }

// Store is the gorm-backed implementation of repositories.Store (§2 item 3), modeled
// directly on the teacher's `db.Transaction(func(tx *gorm.DB) error {...})` idiom.
type Store struct {
	db *gorm.DB

	transactions *pgrepos.TransactionRepository
	orders       *pgrepos.OrderRepository
	events       *pgrepos.EventRepository
	tickets      *pgrepos.TicketRepository
}

// NewStore constructs a Store over an already-connected gorm.DB (see
// database/postgres.Database.GetDB()).
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		transactions: pgrepos.NewTransactionRepository(db),
		orders:       pgrepos.NewOrderRepository(db),
		events:       pgrepos.NewEventRepository(db),
		tickets:      pgrepos.NewTicketRepository(db),
	}
}

// WithTx runs fn inside a single database transaction, committing on nil error and
// rolling back (including on panic, which gorm re-raises after rollback) otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(ctx, newTx(gtx))
	})
}

func (s *Store) Transactions() repositories.TransactionRepository { return s.transactions }
func (s *Store) Orders() repositories.OrderRepository             { return s.orders }
func (s *Store) Events() repositories.EventRepository              { return s.events }
func (s *Store) Tickets() repositories.TicketRepository            { return s.tickets }
