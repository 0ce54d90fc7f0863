// Package engine implements the transaction state machine and the components wired
// directly around it (webhook dispatch, scan validation, retry scheduling), grounded
// on the teacher's usecase/service layer but rebuilt for the ticketing domain.
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/concertforge/ticket-engine/pkg/logger"
)

// AuditEvent is one fire-and-forget domain event emitted at a well-defined transition
// point (§9: "middleware audit chains → AuditEmitter called at well-defined transition
// points"). Failures to emit MUST NOT surface to the caller (§7 propagation rule 1).
type AuditEvent struct {
	Type          string
	TransactionID uuid.UUID
	OrderID       uuid.UUID
	UserID        uuid.UUID
	Fields        map[string]interface{}
}

const (
	AuditTransactionInitiated = "transaction.initiated"
	AuditTransactionCompleted = "transaction.completed"
	AuditTransactionFailed    = "transaction.failed"
	AuditTransactionRefunded  = "transaction.refunded"
	AuditTicketCheckedIn      = "ticket.checked_in"
	AuditSystemError          = "system.error"
)

// AuditEmitter records AuditEvents. Implementations must never block writers or
// return an error the caller is expected to act on.
type AuditEmitter interface {
	Emit(ctx context.Context, event AuditEvent)
}

// LoggingAuditEmitter emits audit events as structured log lines, grounded in the
// teacher's AlertingService logging calls but stripped of its in-memory alert-rule
// engine, which has no equivalent in this domain.
type LoggingAuditEmitter struct{}

// NewLoggingAuditEmitter constructs the default AuditEmitter.
func NewLoggingAuditEmitter() *LoggingAuditEmitter {
	return &LoggingAuditEmitter{}
}

// Emit logs event at info level, or warn for system.error, and never returns an error.
func (LoggingAuditEmitter) Emit(_ context.Context, event AuditEvent) {
	fields := map[string]interface{}{
		"event_type":     event.Type,
		"transaction_id": event.TransactionID,
		"order_id":       event.OrderID,
		"user_id":        event.UserID,
	}
	for k, v := range event.Fields {
		fields[k] = v
	}

	if event.Type == AuditSystemError {
		logger.Warn("audit: system error", fields)
		return
	}
	logger.Info("audit: "+event.Type, fields)
}
