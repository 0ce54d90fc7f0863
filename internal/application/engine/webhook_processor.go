package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/concertforge/ticket-engine/internal/domain/repositories"
	"github.com/concertforge/ticket-engine/internal/domain/services"
)

// WebhookResult is always rendered as a 2xx response to the gateway (§4.4 step 1, 3):
// gateways interpret a non-2xx response as a retry signal, so the processor never
// surfaces an error status to its caller — every outcome, including a bad signature or
// an unrecognized event, is reported through this struct instead.
type WebhookResult struct {
	Success bool
	Handled bool
	Message string
}

// webhookPayload is the subset of the gateway's webhook envelope the processor reads to
// dispatch and complete: `event`, `data.reference`, and the channel, id, fees,
// authorization and subaccount fields Complete records. Other gateway fields are ignored.
type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference     string `json:"reference"`
		Channel       string `json:"channel"`
		TransactionID string `json:"id"`
		Fees          int64  `json:"fees"`
		AuthMeta      string `json:"authorization"`
		Subaccount    *struct {
			SubaccountCode string `json:"subaccount_code"`
			Share          int64  `json:"share"`
		} `json:"subaccount"`
	} `json:"data"`
}

const (
	webhookEventChargeSuccess    = "charge.success"
	webhookEventChargeFailed     = "charge.failed"
	webhookEventTransferSuccess  = "transfer.success"
	webhookEventTransferFailed   = "transfer.failed"
	webhookEventRefundProcessed  = "refund.processed"
)

// WebhookProcessor ingests gateway webhooks: signature verification, JSON parsing, and
// dispatch into the TransactionEngine or AuditEmitter (§2 item 7, §4.4).
type WebhookProcessor struct {
	store   repositories.Store
	gateway services.PaymentGateway
	engine  *TransactionEngine
	audit   AuditEmitter
}

// NewWebhookProcessor constructs a WebhookProcessor from its injected dependencies.
func NewWebhookProcessor(store repositories.Store, gateway services.PaymentGateway, engine *TransactionEngine, audit AuditEmitter) *WebhookProcessor {
	return &WebhookProcessor{store: store, gateway: gateway, engine: engine, audit: audit}
}

// Ingest verifies rawBody against signatureHeader and, on success, dispatches the parsed
// event. It never returns an error to its HTTP caller: every path, including a bad
// signature, a malformed body, or an internal engine failure, is reported through the
// returned WebhookResult so the handler can always answer 200 (§4.4 step 1, 3).
func (w *WebhookProcessor) Ingest(ctx context.Context, rawBody []byte, signatureHeader string) WebhookResult {
	if !w.gateway.VerifySignature(rawBody, signatureHeader) {
		return WebhookResult{Success: false, Message: "Invalid signature"}
	}

	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		w.emitSystemError(ctx, "webhook: malformed body", err)
		return WebhookResult{Success: false, Handled: false, Message: "malformed payload"}
	}

	switch payload.Event {
	case webhookEventChargeSuccess:
		return w.handleChargeSuccess(ctx, payload)
	case webhookEventChargeFailed:
		return w.handleChargeFailed(ctx, payload)
	case webhookEventTransferSuccess, webhookEventTransferFailed, webhookEventRefundProcessed:
		w.audit.Emit(ctx, AuditEvent{Type: payload.Event, Fields: map[string]interface{}{"reference": payload.Data.Reference}})
		return WebhookResult{Success: true, Handled: true}
	default:
		return WebhookResult{Success: true, Handled: false, Message: "unrecognized event"}
	}
}

func (w *WebhookProcessor) handleChargeSuccess(ctx context.Context, payload webhookPayload) WebhookResult {
	txn, err := w.store.Transactions().GetByGatewayReference(ctx, payload.Data.Reference)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return WebhookResult{Success: true, Handled: false, Message: "unknown reference"}
		}
		w.emitSystemError(ctx, "webhook: lookup by reference failed", err)
		return WebhookResult{Success: true, Handled: false, Message: "internal error"}
	}

	data := GatewayCompletionData{
		Channel:       payload.Data.Channel,
		TransactionID: payload.Data.TransactionID,
		AuthMeta:      payload.Data.AuthMeta,
		FeesMinor:     payload.Data.Fees,
	}
	if payload.Data.Subaccount != nil {
		data.Subaccount = &services.Subaccount{
			Code:         payload.Data.Subaccount.SubaccountCode,
			SharedAmount: payload.Data.Subaccount.Share,
		}
	}

	if _, err := w.engine.Complete(ctx, txn.ID, data); err != nil {
		w.emitSystemError(ctx, "webhook: complete failed", err)
		return WebhookResult{Success: true, Handled: false, Message: "processing error"}
	}
	return WebhookResult{Success: true, Handled: true}
}

func (w *WebhookProcessor) handleChargeFailed(ctx context.Context, payload webhookPayload) WebhookResult {
	txn, err := w.store.Transactions().GetByGatewayReference(ctx, payload.Data.Reference)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return WebhookResult{Success: true, Handled: false, Message: "unknown reference"}
		}
		w.emitSystemError(ctx, "webhook: lookup by reference failed", err)
		return WebhookResult{Success: true, Handled: false, Message: "internal error"}
	}

	if _, err := w.engine.Fail(ctx, txn.ID, "gateway reported charge.failed", "gateway_failed", ""); err != nil {
		w.emitSystemError(ctx, "webhook: fail failed", err)
		return WebhookResult{Success: true, Handled: false, Message: "processing error"}
	}
	return WebhookResult{Success: true, Handled: true}
}

func (w *WebhookProcessor) emitSystemError(ctx context.Context, message string, err error) {
	w.audit.Emit(ctx, AuditEvent{
		Type:   AuditSystemError,
		Fields: map[string]interface{}{"message": message, "error": err.Error()},
	})
}
