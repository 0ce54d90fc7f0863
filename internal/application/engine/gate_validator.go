package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/concertforge/ticket-engine/internal/domain/entities"
	"github.com/concertforge/ticket-engine/internal/domain/repositories"
	"github.com/concertforge/ticket-engine/internal/domain/services"
)

// ScanOutcome is the result classification of a gate scan (§4.3). Every instance of the
// engine must reach the same classification under N concurrent scanners for one ticket,
// with exactly one VALID.
type ScanOutcome string

const (
	ScanInvalid      ScanOutcome = "INVALID"
	ScanNotFound     ScanOutcome = "NOT_FOUND"
	ScanWrongEvent   ScanOutcome = "WRONG_EVENT"
	ScanNotAssigned  ScanOutcome = "NOT_ASSIGNED"
	ScanAlreadyUsed  ScanOutcome = "ALREADY_USED"
	ScanCancelled    ScanOutcome = "CANCELLED"
	ScanRaceLost     ScanOutcome = "RACE_CONDITION"
	ScanValid        ScanOutcome = "VALID"
)

// ScanInput is the request to GateValidator.Validate.
type ScanInput struct {
	Token          string
	Scanner        entities.Actor
	ClaimedEventID *uuid.UUID
}

// ScanResult is the outcome of a gate scan, carrying the ticket when relevant so the
// caller can render a holder summary on VALID, or the prior check-in time on ALREADY_USED.
type ScanResult struct {
	Outcome ScanOutcome
	Ticket  *entities.Ticket
}

// GateValidator verifies ticket tokens and enforces single check-in via compare-and-set
// (§2 item 8, §4.3). It holds no lock across the check-in decision: the CAS at step 6 is
// the entire concurrency contract.
type GateValidator struct {
	store repositories.Store
	codec *services.TicketTokenCodec
	clock services.Clock
	audit AuditEmitter
}

// NewGateValidator constructs a GateValidator from its injected dependencies.
func NewGateValidator(store repositories.Store, codec *services.TicketTokenCodec, clock services.Clock, audit AuditEmitter) *GateValidator {
	return &GateValidator{store: store, codec: codec, clock: clock, audit: audit}
}

// Validate runs the short-circuiting scan pipeline of §4.3 and returns exactly one
// outcome, writing a single check-in on VALID.
func (g *GateValidator) Validate(ctx context.Context, in ScanInput) (*ScanResult, error) {
	verified := g.codec.Verify(in.Token)
	if !verified.Valid {
		return &ScanResult{Outcome: ScanInvalid}, nil
	}

	ticket, err := g.store.Tickets().GetByQRCode(ctx, in.Token)
	if err != nil {
		if errors.Is(err, repositories.ErrTicketNotFound) {
			return &ScanResult{Outcome: ScanNotFound}, nil
		}
		return nil, err
	}

	if in.ClaimedEventID != nil && *in.ClaimedEventID != ticket.EventID {
		return &ScanResult{Outcome: ScanWrongEvent, Ticket: ticket}, nil
	}

	if in.Scanner.Role == entities.ActorRoleValidator && !in.Scanner.IsAssignedTo(ticket.EventID) {
		return &ScanResult{Outcome: ScanNotAssigned, Ticket: ticket}, nil
	}

	switch {
	case ticket.IsUsed():
		return &ScanResult{Outcome: ScanAlreadyUsed, Ticket: ticket}, nil
	case ticket.IsCancelled():
		return &ScanResult{Outcome: ScanCancelled, Ticket: ticket}, nil
	}

	now := g.clock.Now()
	ok, err := g.store.Tickets().CompareAndSetCheckIn(ctx, ticket.ID, in.Scanner.UserID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ScanResult{Outcome: ScanRaceLost, Ticket: ticket}, nil
	}

	ticket.CheckIn(in.Scanner.UserID, now)
	g.audit.Emit(ctx, AuditEvent{
		Type:   AuditTicketCheckedIn,
		UserID: ticket.UserID,
		Fields: map[string]interface{}{"ticket_id": ticket.ID, "event_id": ticket.EventID, "scanned_by": in.Scanner.UserID},
	})

	return &ScanResult{Outcome: ScanValid, Ticket: ticket}, nil
}
