package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/concertforge/ticket-engine/internal/domain/engineerr"
	"github.com/concertforge/ticket-engine/internal/domain/entities"
	"github.com/concertforge/ticket-engine/internal/domain/repositories"
	"github.com/concertforge/ticket-engine/internal/domain/services"
)

// Config is the subset of the ticketing configuration the engine needs at runtime,
// sourced from Config.Ticketing (PAYMENT_SECRET_KEY's derived gateway, QR_SECRET_KEY's
// derived codec, and these scalar knobs).
type Config struct {
	OrganizerPercent int
	MaxRetries       int
	RetryBaseMs      int64
	RetryMaxMs       int64
	GatewayTimeout   time.Duration
}

// TransactionEngine owns the purchase/payment/ticket state machine (§4.1). It talks to
// storage only through repositories.Store and to the provider only through
// services.PaymentGateway; every dependency is injected, mirroring §9's rejection of
// global singletons.
type TransactionEngine struct {
	store   repositories.Store
	gateway services.PaymentGateway
	codec   *services.TicketTokenCodec
	splits  *services.SplitsCalculator
	clock   services.Clock
	ids     services.IDSource
	audit   AuditEmitter
	cfg     Config
}

// NewTransactionEngine constructs a TransactionEngine from its collaborators.
func NewTransactionEngine(
	store repositories.Store,
	gateway services.PaymentGateway,
	codec *services.TicketTokenCodec,
	splits *services.SplitsCalculator,
	clock services.Clock,
	ids services.IDSource,
	audit AuditEmitter,
	cfg Config,
) *TransactionEngine {
	return &TransactionEngine{
		store:   store,
		gateway: gateway,
		codec:   codec,
		splits:  splits,
		clock:   clock,
		ids:     ids,
		audit:   audit,
		cfg:     cfg,
	}
}

// InitiateInput is the input to Initiate (§4.1.2).
type InitiateInput struct {
	Actor           entities.Actor
	EventID         uuid.UUID
	TierID          uuid.UUID
	Quantity        int
	IdempotencyKey  string
	ClientIP        string
	ClientUserAgent string
}

// InitiateOutput is the output of Initiate.
type InitiateOutput struct {
	Order          *entities.Order
	Transaction    *entities.Transaction
	PaymentURL     string
	IdempotencyKey string
	IsIdempotent   bool
}

// Initiate opens a purchase: validates capacity and per-user limits, writes
// Order(pending)+Transaction(initiated) in one Tx, commits, then calls the gateway
// (§4.1.2). The gateway is never called before the Tx holding its reference commits.
func (e *TransactionEngine) Initiate(ctx context.Context, in InitiateInput) (*InitiateOutput, error) {
	if in.Quantity < 1 || in.Quantity > 10 {
		return nil, engineerr.ErrInvalidQuantity
	}

	now := e.clock.Now()
	idempotencyKey := in.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = fmt.Sprintf("txn_%s_%s_%s_%d", in.Actor.UserID, in.EventID, in.TierID, now.UnixNano())
	}

	existing, err := e.store.Transactions().GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil && !errors.Is(err, repositories.ErrTransactionNotFound) {
		return nil, err
	}
	if existing != nil {
		order, err := e.store.Orders().GetByID(ctx, existing.OrderID)
		if err != nil {
			return nil, err
		}
		return &InitiateOutput{
			Order:          order,
			Transaction:    existing,
			IdempotencyKey: idempotencyKey,
			IsIdempotent:   true,
		}, nil
	}

	var (
		order     *entities.Order
		txn       *entities.Transaction
		reference string
	)

	err = e.store.WithTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		event, err := tx.Events().GetByIDForUpdate(ctx, in.EventID)
		if err != nil {
			if errors.Is(err, repositories.ErrEventNotFound) {
				return engineerr.ErrEventNotFound
			}
			return err
		}
		if !event.IsPurchasable() {
			return engineerr.ErrEventNotPurchasable
		}

		tier := event.TierByID(in.TierID)
		if tier == nil {
			return engineerr.ErrTierNotFound
		}
		if !tier.HasCapacityFor(in.Quantity) {
			return engineerr.ErrTierLimit
		}

		held, err := tx.Tickets().CountNonCancelledByUserTier(ctx, in.Actor.UserID, in.EventID, in.TierID)
		if err != nil {
			return err
		}
		if held+int64(in.Quantity) > tier.MaxPerUser {
			return engineerr.ErrTierLimit
		}

		reference = fmt.Sprintf("order_%d_%s", now.UnixNano(), in.Actor.UserID)

		order = &entities.Order{
			ID:               e.ids.NewID(),
			UserID:           in.Actor.UserID,
			EventID:          in.EventID,
			TierID:           in.TierID,
			TierName:         tier.Name,
			Quantity:         in.Quantity,
			UnitPrice:        tier.Price,
			TotalAmount:      tier.Price * int64(in.Quantity),
			PaymentStatus:    entities.OrderPaymentStatusPending,
			GatewayProvider:  "paystack",
			GatewayReference: reference,
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		txn = &entities.Transaction{
			ID:               e.ids.NewID(),
			IdempotencyKey:   idempotencyKey,
			Status:           entities.TransactionStatusInitiated,
			UserID:           in.Actor.UserID,
			OrderID:          order.ID,
			EventID:          in.EventID,
			Amount:           order.TotalAmount,
			Currency:         "NGN",
			GatewayProvider:  "paystack",
			GatewayReference: reference,
			MaxRetries:       e.cfg.MaxRetries,
			InitiatedAt:      now,
			MetaIP:           in.ClientIP,
			MetaUserAgent:    in.ClientUserAgent,
			MetaTierName:     tier.Name,
			MetaQuantity:     in.Quantity,
		}
		return tx.Transactions().Create(ctx, txn)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			// idempotencyKey unique constraint lost the race; reload the winning row (§5).
			winner, werr := e.store.Transactions().GetByIdempotencyKey(ctx, idempotencyKey)
			if werr == nil && winner != nil {
				winOrder, oerr := e.store.Orders().GetByID(ctx, winner.OrderID)
				if oerr == nil {
					return &InitiateOutput{Order: winOrder, Transaction: winner, IdempotencyKey: idempotencyKey, IsIdempotent: true}, nil
				}
			}
		}
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	defer cancel()
	result, gerr := e.gateway.Initialize(gctx, services.InitializeRequest{
		Email:       in.Actor.Email,
		AmountMinor: order.TotalAmount,
		Reference:   reference,
	})
	if gerr != nil || !result.OK {
		next := now
		if _, ferr := e.failWithBackoff(ctx, txn.ID, "init failed", &next); ferr != nil {
			return nil, ferr
		}
		return nil, engineerr.ErrGatewayInit
	}

	txn, err = e.markProcessing(ctx, txn.ID)
	if err != nil {
		return nil, err
	}

	e.audit.Emit(ctx, AuditEvent{Type: AuditTransactionInitiated, TransactionID: txn.ID, OrderID: order.ID, UserID: in.Actor.UserID})

	return &InitiateOutput{
		Order:          order,
		Transaction:    txn,
		PaymentURL:     result.AuthorizationURL,
		IdempotencyKey: idempotencyKey,
		IsIdempotent:   false,
	}, nil
}

// GatewayCompletionData is the verified-success payload Complete applies, sourced
// either from the synchronous verify call or from a webhook (§4.1.3).
type GatewayCompletionData struct {
	Channel       string
	TransactionID string
	AuthMeta      string
	FeesMinor     int64
	Subaccount    *services.Subaccount
}

// CompleteOutput is the output of Complete.
type CompleteOutput struct {
	Transaction      *entities.Transaction
	Order            *entities.Order
	Tickets          []*entities.Ticket
	AlreadyCompleted bool
}

// Complete applies a verified gateway success to a Transaction: mints tickets,
// reserves tier capacity, and computes splits (§4.1.3). It is idempotent at the
// completion boundary: calling it again on an already-completed Transaction returns
// the existing result unchanged, since both the verifier and a webhook may call it.
func (e *TransactionEngine) Complete(ctx context.Context, transactionID uuid.UUID, data GatewayCompletionData) (*CompleteOutput, error) {
	var (
		out      CompleteOutput
		oversold bool
	)

	err := e.store.WithTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		txn, err := tx.Transactions().GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			if errors.Is(err, repositories.ErrTransactionNotFound) {
				return engineerr.ErrTransactionNotFound
			}
			return err
		}

		if txn.IsCompleted() {
			order, err := tx.Orders().GetByID(ctx, txn.OrderID)
			if err != nil {
				return err
			}
			tickets, err := tx.Tickets().ListByOrderID(ctx, order.ID)
			if err != nil {
				return err
			}
			out = CompleteOutput{Transaction: txn, Order: order, Tickets: tickets, AlreadyCompleted: true}
			return nil
		}

		if !txn.CanTransitionTo(entities.TransactionStatusCompleted) {
			return engineerr.ErrInvalidTransition
		}

		order, err := tx.Orders().GetByIDForUpdate(ctx, txn.OrderID)
		if err != nil {
			return err
		}
		event, err := tx.Events().GetByIDForUpdate(ctx, txn.EventID)
		if err != nil {
			return err
		}
		tier := event.TierByID(order.TierID)
		if tier == nil {
			return engineerr.ErrTierNotFound
		}

		now := e.clock.Now()

		if !tier.HasCapacityFor(order.Quantity) {
			reason := "oversold at completion"
			txn.Status = entities.TransactionStatusFailed
			txn.FailureReason = &reason
			txn.FailedAt = &now
			if err := tx.Transactions().Update(ctx, txn); err != nil {
				return err
			}
			order.SetFailed()
			if err := tx.Orders().Update(ctx, order); err != nil {
				return err
			}
			if err := tx.RefundOutbox().Create(ctx, &entities.RefundOutboxEntry{
				ID:            e.ids.NewID(),
				TransactionID: txn.ID,
				Reason:        reason,
				Amount:        txn.Amount,
			}); err != nil {
				return err
			}
			out = CompleteOutput{Transaction: txn, Order: order}
			oversold = true
			return nil
		}

		tier.Reserve(order.Quantity)
		event.TotalTicketsSold += int64(order.Quantity)
		event.TotalRevenue += order.TotalAmount

		var splits services.Splits
		if data.Subaccount != nil {
			splits = services.Splits{
				OrganizerAmount: order.TotalAmount - data.Subaccount.SharedAmount,
				PlatformAmount:  data.Subaccount.SharedAmount,
			}
		} else {
			splits = e.splits.Compute(order.TotalAmount, e.cfg.OrganizerPercent)
		}
		if data.FeesMinor > 0 {
			splits.OrganizerAmount -= data.FeesMinor
		}

		txn.Status = entities.TransactionStatusCompleted
		txn.CompletedAt = &now
		txn.PlatformAmount = splits.PlatformAmount
		txn.OrganizerAmount = splits.OrganizerAmount
		txn.GatewayFees = data.FeesMinor
		if data.Channel != "" {
			channel := data.Channel
			txn.GatewayChannel = &channel
		}
		if data.TransactionID != "" {
			gatewayTxnID := data.TransactionID
			txn.GatewayTransactionID = &gatewayTxnID
		}
		if data.AuthMeta != "" {
			authMeta := data.AuthMeta
			txn.GatewayAuthMeta = &authMeta
		}

		order.PlatformAmount = splits.PlatformAmount
		order.OrganizerAmount = splits.OrganizerAmount

		tickets := make([]*entities.Ticket, 0, order.Quantity)
		ticketIDs := make([]uuid.UUID, 0, order.Quantity)
		for i := 0; i < order.Quantity; i++ {
			ticket, err := e.mintTicket(ctx, tx, order)
			if err != nil {
				return err
			}
			tickets = append(tickets, ticket)
			ticketIDs = append(ticketIDs, ticket.ID)
		}
		order.SetCompleted(ticketIDs)

		if err := tx.Events().Update(ctx, event); err != nil {
			return err
		}
		if err := tx.Transactions().Update(ctx, txn); err != nil {
			return err
		}
		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		out = CompleteOutput{Transaction: txn, Order: order, Tickets: tickets}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if oversold {
		e.audit.Emit(ctx, AuditEvent{
			Type: AuditTransactionFailed, TransactionID: out.Transaction.ID, OrderID: out.Order.ID, UserID: out.Transaction.UserID,
			Fields: map[string]interface{}{"reason": "oversold at completion"},
		})
		return &out, nil
	}
	if !out.AlreadyCompleted {
		e.audit.Emit(ctx, AuditEvent{Type: AuditTransactionCompleted, TransactionID: out.Transaction.ID, OrderID: out.Order.ID, UserID: out.Transaction.UserID})
	}
	return &out, nil
}

// mintTicket signs a fresh qrCode and inserts the Ticket, retrying with a new iat up to
// 3 times total if the store rejects qrCode as a uniqueness violation (§4.1.3 step 7).
func (e *TransactionEngine) mintTicket(ctx context.Context, tx repositories.Tx, order *entities.Order) (*entities.Ticket, error) {
	ticketID := e.ids.NewID()
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		qr, err := e.codec.Sign(services.TicketPayload{
			TicketID: ticketID.String(),
			EventID:  order.EventID.String(),
			IssuedAt: e.clock.Now().UnixMilli(),
		})
		if err != nil {
			return nil, err
		}
		ticket := &entities.Ticket{
			ID:       ticketID,
			OrderID:  order.ID,
			EventID:  order.EventID,
			UserID:   order.UserID,
			TierID:   order.TierID,
			TierName: order.TierName,
			Price:    order.UnitPrice,
			QRCode:   qr,
			Status:   entities.TicketStatusValid,
		}
		if err := tx.Tickets().Create(ctx, ticket); err == nil {
			return ticket, nil
		} else {
			lastErr = err
		}
	}
	return nil, fmt.Errorf("%w: %v", engineerr.ErrQRCodeCollision, lastErr)
}

// Fail transitions a Transaction to failed, failing its Order alongside it (§4.1.4).
// It is idempotent: calling Fail on an already-failed Transaction is a no-op that
// returns the current row. Transactions with retry attempts remaining are given an
// immediately-due nextRetryAt so the RetryScheduler picks them up automatically.
func (e *TransactionEngine) Fail(ctx context.Context, transactionID uuid.UUID, reason, code, details string) (*entities.Transaction, error) {
	var result *entities.Transaction
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		txn, err := tx.Transactions().GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			if errors.Is(err, repositories.ErrTransactionNotFound) {
				return engineerr.ErrTransactionNotFound
			}
			return err
		}
		if txn.IsFailed() {
			result = txn
			return nil
		}
		if !txn.CanTransitionTo(entities.TransactionStatusFailed) {
			return engineerr.ErrInvalidTransition
		}

		now := e.clock.Now()
		txn.Status = entities.TransactionStatusFailed
		txn.FailureReason = &reason
		if code != "" {
			txn.FailureCode = &code
		}
		if details != "" {
			txn.FailureDetails = &details
		}
		txn.FailedAt = &now
		if txn.RetryCount < txn.MaxRetries {
			txn.NextRetryAt = &now
		}
		if err := tx.Transactions().Update(ctx, txn); err != nil {
			return err
		}

		order, err := tx.Orders().GetByIDForUpdate(ctx, txn.OrderID)
		if err != nil {
			return err
		}
		order.SetFailed()
		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.audit.Emit(ctx, AuditEvent{Type: AuditTransactionFailed, TransactionID: result.ID, OrderID: result.OrderID, UserID: result.UserID, Fields: map[string]interface{}{"reason": reason}})
	return result, nil
}

// failWithBackoff is the failure transition Initiate and Retry use after a failed
// gateway call, stamping the given nextRetryAt in the same Tx. The public Fail runs its
// own transition and does not go through it.
func (e *TransactionEngine) failWithBackoff(ctx context.Context, transactionID uuid.UUID, reason string, nextRetryAt *time.Time) (*entities.Transaction, error) {
	var result *entities.Transaction
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		txn, err := tx.Transactions().GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.IsFailed() {
			result = txn
			return nil
		}
		if !txn.CanTransitionTo(entities.TransactionStatusFailed) {
			return engineerr.ErrInvalidTransition
		}

		now := e.clock.Now()
		txn.Status = entities.TransactionStatusFailed
		txn.FailureReason = &reason
		txn.FailedAt = &now
		txn.NextRetryAt = nextRetryAt
		if err := tx.Transactions().Update(ctx, txn); err != nil {
			return err
		}

		order, err := tx.Orders().GetByIDForUpdate(ctx, txn.OrderID)
		if err != nil {
			return err
		}
		order.SetFailed()
		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}

		result = txn
		return nil
	})
	return result, err
}

// markProcessing transitions a freshly-initiated Transaction to processing once the
// gateway has accepted it (§4.1.1's initiated──→processing step), stamping
// ProcessingAt. Used by Initiate after its gateway call succeeds, so that Complete's
// transition check (processing──→completed) is reachable; Retry moves its Transaction
// to processing itself, inside the Tx that precedes its gateway call.
func (e *TransactionEngine) markProcessing(ctx context.Context, transactionID uuid.UUID) (*entities.Transaction, error) {
	var result *entities.Transaction
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		txn, err := tx.Transactions().GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if !txn.CanTransitionTo(entities.TransactionStatusProcessing) {
			return engineerr.ErrInvalidTransition
		}

		now := e.clock.Now()
		txn.Status = entities.TransactionStatusProcessing
		txn.ProcessingAt = &now
		if err := tx.Transactions().Update(ctx, txn); err != nil {
			return err
		}

		result = txn
		return nil
	})
	return result, err
}

// RefundInput is the input to Refund (§4.1.5). Amount of 0 means "refund the full
// remaining net balance".
type RefundInput struct {
	TransactionID uuid.UUID
	Amount        int64
	Reason        string
	ProcessedBy   string
}

// Refund appends a refund record, requests the money movement from the gateway, and
// cancels the order's tickets if and only if the refund is full (§4.1.5).
func (e *TransactionEngine) Refund(ctx context.Context, in RefundInput) (*entities.Transaction, error) {
	txn, err := e.store.Transactions().GetByID(ctx, in.TransactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, engineerr.ErrTransactionNotFound
		}
		return nil, err
	}
	if !txn.IsRefundable() {
		return nil, engineerr.ErrNotRefundable
	}
	net := txn.NetRefundable()
	if net <= 0 {
		return nil, engineerr.ErrNotRefundable
	}
	amount := in.Amount
	if amount <= 0 {
		amount = net
	}
	if amount > net {
		return nil, engineerr.ErrRefundExceedsNet
	}

	gctx, cancel := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	defer cancel()
	gresult, gerr := e.gateway.Refund(gctx, services.RefundRequest{TransactionReference: txn.GatewayReference, AmountMinor: amount})
	if gerr != nil || !gresult.OK {
		return nil, engineerr.ErrGatewayRefund
	}

	var (
		result *entities.Transaction
		full   bool
	)
	err = e.store.WithTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		txn, err := tx.Transactions().GetByIDForUpdate(ctx, in.TransactionID)
		if err != nil {
			return err
		}

		now := e.clock.Now()
		refundID := gresult.GatewayRefundID
		txn.Refunds = append(txn.Refunds, entities.Refund{
			ID:              e.ids.NewID(),
			TransactionID:   txn.ID,
			Amount:          amount,
			Reason:          in.Reason,
			ProcessedBy:     in.ProcessedBy,
			ProcessedAt:     now,
			GatewayRefundID: &refundID,
		})
		txn.TotalRefunded += amount
		full = txn.TotalRefunded >= txn.Amount
		target := entities.TransactionStatusPartiallyRefunded
		if full {
			target = entities.TransactionStatusRefunded
		}
		if target != txn.Status && !txn.CanTransitionTo(target) {
			return engineerr.ErrInvalidTransition
		}
		txn.Status = target
		if err := tx.Transactions().Update(ctx, txn); err != nil {
			return err
		}

		order, err := tx.Orders().GetByIDForUpdate(ctx, txn.OrderID)
		if err != nil {
			return err
		}
		if full {
			order.SetRefunded()
			if err := tx.Orders().Update(ctx, order); err != nil {
				return err
			}
			if err := tx.Tickets().CancelAllForOrder(ctx, order.ID); err != nil {
				return err
			}
		}

		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.audit.Emit(ctx, AuditEvent{Type: AuditTransactionRefunded, TransactionID: result.ID, UserID: result.UserID, Fields: map[string]interface{}{"amount": amount, "full": full}})
	return result, nil
}

// RetryOutput is the output of Retry.
type RetryOutput struct {
	Transaction *entities.Transaction
	PaymentURL  string
}

// Retry re-initiates a failed Transaction with a fresh gateway reference (§4.1.6).
func (e *TransactionEngine) Retry(ctx context.Context, transactionID uuid.UUID, email string) (*RetryOutput, error) {
	var (
		txn       *entities.Transaction
		reference string
	)
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		txn, err = tx.Transactions().GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			if errors.Is(err, repositories.ErrTransactionNotFound) {
				return engineerr.ErrTransactionNotFound
			}
			return err
		}
		if !txn.IsFailed() {
			return engineerr.ErrNotRetryable
		}
		if txn.RetryCount >= txn.MaxRetries {
			return engineerr.ErrRetryExhausted
		}
		if !txn.CanTransitionTo(entities.TransactionStatusProcessing) {
			return engineerr.ErrInvalidTransition
		}

		order, err := tx.Orders().GetByIDForUpdate(ctx, txn.OrderID)
		if err != nil {
			return err
		}

		now := e.clock.Now()
		txn.RetryCount++
		reference = fmt.Sprintf("retry_%d_%d_%s", txn.RetryCount, now.UnixNano(), txn.UserID)
		txn.Status = entities.TransactionStatusProcessing
		txn.ProcessingAt = &now
		txn.LastRetryAt = &now
		txn.GatewayReference = reference
		txn.NextRetryAt = nil
		if err := tx.Transactions().Update(ctx, txn); err != nil {
			return err
		}

		order.GatewayReference = reference
		return tx.Orders().Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	defer cancel()
	result, gerr := e.gateway.Initialize(gctx, services.InitializeRequest{Email: email, AmountMinor: txn.Amount, Reference: reference})
	if gerr != nil || !result.OK {
		next := e.clock.Now().Add(backoff(txn.RetryCount, e.cfg.RetryBaseMs, e.cfg.RetryMaxMs))
		if _, ferr := e.failWithBackoff(ctx, txn.ID, "retry gateway init failed", &next); ferr != nil {
			return nil, ferr
		}
		return nil, engineerr.ErrGatewayInit
	}

	e.audit.Emit(ctx, AuditEvent{Type: AuditTransactionInitiated, TransactionID: txn.ID, OrderID: txn.OrderID, UserID: txn.UserID, Fields: map[string]interface{}{"retry_count": txn.RetryCount}})
	return &RetryOutput{Transaction: txn, PaymentURL: result.AuthorizationURL}, nil
}

// TransactionByReference looks up the Transaction opened under a gateway reference,
// the lookup the synchronous verify path needs before calling Complete.
func (e *TransactionEngine) TransactionByReference(ctx context.Context, reference string) (*entities.Transaction, error) {
	txn, err := e.store.Transactions().GetByGatewayReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, engineerr.ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

// backoff computes delay_ms = min(base*2^retryCount, max) ± 10% jitter (§4.1.6).
func backoff(retryCount int, baseMs, maxMs int64) time.Duration {
	delay := baseMs * (1 << uint(retryCount))
	if delay <= 0 || delay > maxMs {
		delay = maxMs
	}
	jitter := float64(delay) * 0.10
	delta := (rand.Float64()*2 - 1) * jitter
	final := float64(delay) + delta
	if final < 0 {
		final = 0
	}
	return time.Duration(final) * time.Millisecond
}
