package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/concertforge/ticket-engine/internal/domain/entities"
	"github.com/concertforge/ticket-engine/internal/domain/repositories"
)

// errDuplicateQRCode stands in for the Postgres unique-constraint violation mintTicket
// retries against (§4.1.3 step 7).
var errDuplicateQRCode = errors.New("duplicate qrCode")

// memStore is an in-memory stand-in for repositories.Store, grounded in the teacher's
// sqlmock-backed repository tests but built as a real (if coarse-grained) data store so
// the engine's concurrency properties (§8) can be exercised with actual goroutines
// instead of pre-programmed mock expectations. WithTx holds a single store-wide mutex
// for the duration of the callback, which is a stronger lock than the spec's per-row
// FOR UPDATE but yields the same serializability guarantee the engine's correctness
// depends on; CompareAndSetCheckIn takes its own short-lived lock so ticket check-in
// races are exercised independently of any WithTx caller.
type memStore struct {
	mu sync.Mutex

	txns      map[uuid.UUID]*entities.Transaction
	idemIndex map[string]uuid.UUID
	refIndex  map[string]uuid.UUID

	orders map[uuid.UUID]*entities.Order

	events map[uuid.UUID]*entities.Event

	tickets map[uuid.UUID]*entities.Ticket
	qrIndex map[string]uuid.UUID

	refundOutbox []*entities.RefundOutboxEntry
}

func newMemStore() *memStore {
	return &memStore{
		txns:      make(map[uuid.UUID]*entities.Transaction),
		idemIndex: make(map[string]uuid.UUID),
		refIndex:  make(map[string]uuid.UUID),
		orders:    make(map[uuid.UUID]*entities.Order),
		events:    make(map[uuid.UUID]*entities.Event),
		tickets:   make(map[uuid.UUID]*entities.Ticket),
		qrIndex:   make(map[string]uuid.UUID),
	}
}

func cloneTransaction(t *entities.Transaction) *entities.Transaction {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Refunds = append([]entities.Refund(nil), t.Refunds...)
	return &cp
}

func cloneOrder(o *entities.Order) *entities.Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.TicketIDs = append([]uuid.UUID(nil), o.TicketIDs...)
	return &cp
}

func cloneEvent(e *entities.Event) *entities.Event {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Tiers = append([]entities.TicketTier(nil), e.Tiers...)
	return &cp
}

func cloneTicket(t *entities.Ticket) *entities.Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// seedEvent installs an Event directly into the store, bypassing any engine operation.
func (s *memStore) seedEvent(e *entities.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = cloneEvent(e)
}

func (s *memStore) snapshotTicketByQR(qr string) *entities.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.qrIndex[qr]
	if !ok {
		return nil
	}
	return cloneTicket(s.tickets[id])
}

// --- Store ---

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, &memTx{s: s})
}

func (s *memStore) Transactions() repositories.TransactionRepository { return &storeTxnRepo{s} }
func (s *memStore) Orders() repositories.OrderRepository             { return &storeOrderRepo{s} }
func (s *memStore) Events() repositories.EventRepository              { return &storeEventRepo{s} }
func (s *memStore) Tickets() repositories.TicketRepository            { return &storeTicketRepo{s} }

// --- Tx ---

type memTx struct{ s *memStore }

func (t *memTx) Transactions() repositories.TransactionRepository { return &txTxnRepo{t.s} }
func (t *memTx) Orders() repositories.OrderRepository             { return &txOrderRepo{t.s} }
func (t *memTx) Events() repositories.EventRepository              { return &txEventRepo{t.s} }
func (t *memTx) Tickets() repositories.TicketRepository            { return &txTicketRepo{t.s} }
func (t *memTx) RefundOutbox() repositories.RefundOutboxRepository { return &txOutboxRepo{t.s} }

// --- transaction repo (locked variants for Tx use; re-locking variants for Store use) ---

func (s *memStore) createTxnLocked(txn *entities.Transaction) error {
	if _, exists := s.idemIndex[txn.IdempotencyKey]; exists {
		return repositories.ErrTransactionNotFound // unique constraint lost the race (§5)
	}
	s.txns[txn.ID] = cloneTransaction(txn)
	s.idemIndex[txn.IdempotencyKey] = txn.ID
	s.refIndex[txn.GatewayReference] = txn.ID
	return nil
}

func (s *memStore) updateTxnLocked(txn *entities.Transaction) error {
	if _, ok := s.txns[txn.ID]; !ok {
		return repositories.ErrTransactionNotFound
	}
	s.refIndex[txn.GatewayReference] = txn.ID
	s.txns[txn.ID] = cloneTransaction(txn)
	return nil
}

func (s *memStore) getTxnLocked(id uuid.UUID) (*entities.Transaction, error) {
	txn, ok := s.txns[id]
	if !ok {
		return nil, repositories.ErrTransactionNotFound
	}
	return cloneTransaction(txn), nil
}

func (s *memStore) getTxnByIdemLocked(key string) (*entities.Transaction, error) {
	id, ok := s.idemIndex[key]
	if !ok {
		return nil, repositories.ErrTransactionNotFound
	}
	return cloneTransaction(s.txns[id]), nil
}

func (s *memStore) getTxnByRefLocked(ref string) (*entities.Transaction, error) {
	id, ok := s.refIndex[ref]
	if !ok {
		return nil, repositories.ErrTransactionNotFound
	}
	return cloneTransaction(s.txns[id]), nil
}

type txTxnRepo struct{ s *memStore }

func (r *txTxnRepo) Create(ctx context.Context, txn *entities.Transaction) error {
	return r.s.createTxnLocked(txn)
}
func (r *txTxnRepo) Update(ctx context.Context, txn *entities.Transaction) error {
	return r.s.updateTxnLocked(txn)
}
func (r *txTxnRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	return r.s.getTxnLocked(id)
}
func (r *txTxnRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	return r.s.getTxnLocked(id)
}
func (r *txTxnRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error) {
	return r.s.getTxnByIdemLocked(key)
}
func (r *txTxnRepo) GetByGatewayReference(ctx context.Context, ref string) (*entities.Transaction, error) {
	return r.s.getTxnByRefLocked(ref)
}
func (r *txTxnRepo) ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]*entities.Transaction, error) {
	var out []*entities.Transaction
	for _, t := range r.s.txns {
		if t.Status == entities.TransactionStatusFailed && t.NextRetryAt != nil && !t.NextRetryAt.After(now) && t.RetryCount < t.MaxRetries {
			out = append(out, cloneTransaction(t))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

type storeTxnRepo struct{ s *memStore }

func (r *storeTxnRepo) Create(ctx context.Context, txn *entities.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createTxnLocked(txn)
}
func (r *storeTxnRepo) Update(ctx context.Context, txn *entities.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.updateTxnLocked(txn)
}
func (r *storeTxnRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getTxnLocked(id)
}
func (r *storeTxnRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getTxnLocked(id)
}
func (r *storeTxnRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getTxnByIdemLocked(key)
}
func (r *storeTxnRepo) GetByGatewayReference(ctx context.Context, ref string) (*entities.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getTxnByRefLocked(ref)
}
func (r *storeTxnRepo) ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]*entities.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&txTxnRepo{r.s}).ListDueForRetry(ctx, now, limit)
}

// --- order repo ---

func (s *memStore) createOrderLocked(o *entities.Order) error {
	s.orders[o.ID] = cloneOrder(o)
	return nil
}
func (s *memStore) updateOrderLocked(o *entities.Order) error {
	if _, ok := s.orders[o.ID]; !ok {
		return repositories.ErrOrderNotFound
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}
func (s *memStore) getOrderLocked(id uuid.UUID) (*entities.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, repositories.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

type txOrderRepo struct{ s *memStore }

func (r *txOrderRepo) Create(ctx context.Context, o *entities.Order) error { return r.s.createOrderLocked(o) }
func (r *txOrderRepo) Update(ctx context.Context, o *entities.Order) error { return r.s.updateOrderLocked(o) }
func (r *txOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	return r.s.getOrderLocked(id)
}
func (r *txOrderRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	return r.s.getOrderLocked(id)
}

type storeOrderRepo struct{ s *memStore }

func (r *storeOrderRepo) Create(ctx context.Context, o *entities.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createOrderLocked(o)
}
func (r *storeOrderRepo) Update(ctx context.Context, o *entities.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.updateOrderLocked(o)
}
func (r *storeOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getOrderLocked(id)
}
func (r *storeOrderRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getOrderLocked(id)
}

// --- event repo ---

func (s *memStore) getEventLocked(id uuid.UUID) (*entities.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	return cloneEvent(e), nil
}
func (s *memStore) updateEventLocked(e *entities.Event) error {
	if _, ok := s.events[e.ID]; !ok {
		return repositories.ErrEventNotFound
	}
	s.events[e.ID] = cloneEvent(e)
	return nil
}

type txEventRepo struct{ s *memStore }

func (r *txEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Event, error) {
	return r.s.getEventLocked(id)
}
func (r *txEventRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Event, error) {
	return r.s.getEventLocked(id)
}
func (r *txEventRepo) Update(ctx context.Context, e *entities.Event) error { return r.s.updateEventLocked(e) }

type storeEventRepo struct{ s *memStore }

func (r *storeEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getEventLocked(id)
}
func (r *storeEventRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getEventLocked(id)
}
func (r *storeEventRepo) Update(ctx context.Context, e *entities.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.updateEventLocked(e)
}

// --- ticket repo ---

func (s *memStore) createTicketLocked(t *entities.Ticket) error {
	if _, exists := s.qrIndex[t.QRCode]; exists {
		return errDuplicateQRCode
	}
	s.tickets[t.ID] = cloneTicket(t)
	s.qrIndex[t.QRCode] = t.ID
	return nil
}

func (s *memStore) getTicketByQRLocked(qr string) (*entities.Ticket, error) {
	id, ok := s.qrIndex[qr]
	if !ok {
		return nil, repositories.ErrTicketNotFound
	}
	return cloneTicket(s.tickets[id]), nil
}

func (s *memStore) listByOrderIDLocked(orderID uuid.UUID) ([]*entities.Ticket, error) {
	var out []*entities.Ticket
	for _, t := range s.tickets {
		if t.OrderID == orderID {
			out = append(out, cloneTicket(t))
		}
	}
	return out, nil
}

func (s *memStore) cancelAllForOrderLocked(orderID uuid.UUID) error {
	for id, t := range s.tickets {
		if t.OrderID == orderID && t.Status != entities.TicketStatusUsed {
			cp := cloneTicket(t)
			cp.Cancel()
			s.tickets[id] = cp
		}
	}
	return nil
}

func (s *memStore) countNonCancelledLocked(userID, eventID, tierID uuid.UUID) (int64, error) {
	var n int64
	for _, t := range s.tickets {
		if t.UserID == userID && t.EventID == eventID && t.TierID == tierID && t.Status != entities.TicketStatusCancelled {
			n++
		}
	}
	return n, nil
}

// compareAndSetCheckIn takes its own lock, independent of any WithTx caller, matching
// §4.3 step 6's "no global lock held across the decision" contract.
func (s *memStore) compareAndSetCheckIn(ticketID, scanner uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return false, repositories.ErrTicketNotFound
	}
	if t.Status != entities.TicketStatusValid {
		return false, nil
	}
	cp := cloneTicket(t)
	cp.CheckIn(scanner, now)
	s.tickets[ticketID] = cp
	return true, nil
}

type txTicketRepo struct{ s *memStore }

func (r *txTicketRepo) Create(ctx context.Context, t *entities.Ticket) error { return r.s.createTicketLocked(t) }
func (r *txTicketRepo) GetByQRCode(ctx context.Context, qr string) (*entities.Ticket, error) {
	return r.s.getTicketByQRLocked(qr)
}
func (r *txTicketRepo) CompareAndSetCheckIn(ctx context.Context, ticketID, scanner uuid.UUID, now time.Time) (bool, error) {
	panic("CompareAndSetCheckIn must not be called from within a WithTx callback in tests")
}
func (r *txTicketRepo) CancelAllForOrder(ctx context.Context, orderID uuid.UUID) error {
	return r.s.cancelAllForOrderLocked(orderID)
}
func (r *txTicketRepo) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entities.Ticket, error) {
	return r.s.listByOrderIDLocked(orderID)
}
func (r *txTicketRepo) CountNonCancelledByUserTier(ctx context.Context, userID, eventID, tierID uuid.UUID) (int64, error) {
	return r.s.countNonCancelledLocked(userID, eventID, tierID)
}

type storeTicketRepo struct{ s *memStore }

func (r *storeTicketRepo) Create(ctx context.Context, t *entities.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createTicketLocked(t)
}
func (r *storeTicketRepo) GetByQRCode(ctx context.Context, qr string) (*entities.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getTicketByQRLocked(qr)
}
func (r *storeTicketRepo) CompareAndSetCheckIn(ctx context.Context, ticketID, scanner uuid.UUID, now time.Time) (bool, error) {
	return r.s.compareAndSetCheckIn(ticketID, scanner, now)
}
func (r *storeTicketRepo) CancelAllForOrder(ctx context.Context, orderID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.cancelAllForOrderLocked(orderID)
}
func (r *storeTicketRepo) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entities.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.listByOrderIDLocked(orderID)
}
func (r *storeTicketRepo) CountNonCancelledByUserTier(ctx context.Context, userID, eventID, tierID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.countNonCancelledLocked(userID, eventID, tierID)
}

// --- refund outbox repo (Tx-only) ---

type txOutboxRepo struct{ s *memStore }

func (r *txOutboxRepo) Create(ctx context.Context, e *entities.RefundOutboxEntry) error {
	r.s.refundOutbox = append(r.s.refundOutbox, e)
	return nil
}
