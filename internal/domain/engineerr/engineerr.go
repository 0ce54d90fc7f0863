// Package engineerr defines the sentinel errors the transaction engine returns
// (§7: Validation, NotFound, Conflict, GatewayFailure, Integrity, Fatal). Each
// sentinel is a *errors.AppError so a thin HTTP layer can map StatusCode()
// without the engine itself importing net/http.
package engineerr

import (
	appErrors "github.com/concertforge/ticket-engine/pkg/errors"
)

// Validation — malformed or out-of-policy input, rejected before any state change.
var (
	ErrInvalidQuantity     = appErrors.ErrInvalidQuantity
	ErrTierLimit           = appErrors.ErrTierLimit
	ErrEventNotPurchasable = appErrors.ErrEventNotPurchasable
	ErrRefundExceedsNet    = appErrors.ErrRefundExceedsNet
)

// NotFound — the referenced aggregate does not exist.
var (
	ErrTransactionNotFound = appErrors.ErrTransactionNotFound
	ErrOrderNotFound       = appErrors.ErrOrderNotFound
	ErrEventNotFound       = appErrors.ErrEventNotFound
	ErrTierNotFound        = appErrors.ErrTierNotFound
	ErrTicketNotFound      = appErrors.ErrTicketNotFound
)

// Conflict — the operation is well-formed but the aggregate's current state forbids it.
var (
	ErrInvalidTransition = appErrors.ErrInvalidTransition
	ErrNotRefundable     = appErrors.ErrNotRefundable
	ErrNotRetryable      = appErrors.ErrNotRetryable
	ErrRetryExhausted    = appErrors.ErrRetryExhausted
)

// GatewayFailure — the external payment provider rejected or could not complete the call.
var (
	ErrGatewayInit    = appErrors.ErrGatewayInit
	ErrGatewayVerify  = appErrors.ErrGatewayVerify
	ErrGatewayRefund  = appErrors.ErrGatewayRefund
	ErrGatewayTimeout = appErrors.ErrGatewayTimeout
)

// Integrity — a recoverable surprise at the storage boundary: a unique constraint fired,
// or a capacity invariant that should have been caught earlier was violated anyway.
// Oversold is the one case the engine routes to a recovery path (a RefundOutbox entry
// written inside Complete's Tx) rather than simply surfacing to the caller — see
// application/engine.
var (
	ErrOversold        = appErrors.ErrOversold
	ErrQRCodeCollision = appErrors.ErrQRCodeCollision
)

// Fatal — the engine itself reached a state it considers a bug: an operation attempted
// an undeclared transition, or a downstream dependency misbehaved in a way no retry or
// recovery path covers. Callers should log-and-500 and emit a system.error audit event;
// never present this to an end user as a business outcome.
var (
	ErrInternal = appErrors.ErrInternalServer
)

// IsAppError reports whether err carries an engine AppError.
func IsAppError(err error) bool {
	return appErrors.IsAppError(err)
}
