// Package handlers adapts the engine's narrow Go API onto HTTP, translating JSON bodies
// into engine inputs and engine outputs (or *errors.AppError sentinels) into responses.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/concertforge/ticket-engine/internal/application/engine"
	"github.com/concertforge/ticket-engine/internal/interfaces/http/middleware"
	"github.com/concertforge/ticket-engine/internal/domain/services"
	"github.com/concertforge/ticket-engine/pkg/errors"
	"github.com/concertforge/ticket-engine/pkg/logger"
	"github.com/concertforge/ticket-engine/pkg/utils"
	"github.com/concertforge/ticket-engine/pkg/validator"
)

// TicketHandler exposes the engine's purchase/verify/scan/retry/refund operations
// over HTTP (§6.1). It holds no business logic of its own: every decision is made by
// the injected engine components.
type TicketHandler struct {
	txEngine *engine.TransactionEngine
	gate     *engine.GateValidator
	webhooks *engine.WebhookProcessor
	gateway  services.PaymentGateway
}

// NewTicketHandler constructs a TicketHandler from its injected collaborators.
func NewTicketHandler(
	txEngine *engine.TransactionEngine,
	gate *engine.GateValidator,
	webhooks *engine.WebhookProcessor,
	gateway services.PaymentGateway,
) *TicketHandler {
	return &TicketHandler{txEngine: txEngine, gate: gate, webhooks: webhooks, gateway: gateway}
}

// purchaseRequest is the body of POST /tickets/purchase (§6.1).
type purchaseRequest struct {
	EventID  uuid.UUID `json:"eventId" validate:"required"`
	TierID   uuid.UUID `json:"tierId" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1,max=10"`
}

// Purchase handles POST /tickets/purchase.
func (h *TicketHandler) Purchase(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "authentication required")
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		utils.ValidationError(c, err.Error())
		return
	}

	out, err := h.txEngine.Initiate(c.Request.Context(), engine.InitiateInput{
		Actor:           actor,
		EventID:         req.EventID,
		TierID:          req.TierID,
		Quantity:        req.Quantity,
		IdempotencyKey:  c.GetHeader("Idempotency-Key"),
		ClientIP:        c.ClientIP(),
		ClientUserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		logger.Error("purchase failed", err)
		utils.Error(c, err)
		return
	}

	utils.Success(c, http.StatusOK, gin.H{
		"order":          out.Order,
		"transaction":    out.Transaction,
		"paymentUrl":     out.PaymentURL,
		"isIdempotent":   out.IsIdempotent,
		"idempotencyKey": out.IdempotencyKey,
	})
}

// verifyRequest is the body of POST /tickets/verify (§6.1).
type verifyRequest struct {
	Reference string `json:"reference" validate:"required"`
}

// Verify handles POST /tickets/verify: it synchronously checks the gateway's settled
// state for reference and, on success, applies it through Complete.
func (h *TicketHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		utils.ValidationError(c, err.Error())
		return
	}

	txn, err := h.txEngine.TransactionByReference(c.Request.Context(), req.Reference)
	if err != nil {
		utils.Error(c, err)
		return
	}

	result, gerr := h.gateway.Verify(c.Request.Context(), req.Reference)
	if gerr != nil || !result.OK || result.Status != "success" {
		if _, ferr := h.txEngine.Fail(c.Request.Context(), txn.ID, "gateway verify reported non-success", "verify_failed", ""); ferr != nil {
			logger.Error("verify: fail transition also failed", ferr)
		}
		utils.ErrorWithStatus(c, http.StatusBadRequest, "payment verification failed")
		return
	}

	data := engine.GatewayCompletionData{
		Channel:   result.Channel,
		FeesMinor: result.FeesMinor,
	}
	if result.Authorization != nil {
		data.AuthMeta = result.Authorization.CardType + ":" + result.Authorization.Last4
	}
	if result.Subaccount != nil {
		data.Subaccount = result.Subaccount
	}

	out, err := h.txEngine.Complete(c.Request.Context(), txn.ID, data)
	if err != nil {
		utils.Error(c, err)
		return
	}

	utils.Success(c, http.StatusOK, gin.H{
		"order": gin.H{
			"id":      out.Order.ID,
			"status":  out.Order.PaymentStatus,
			"tickets": out.Tickets,
		},
	})
}

// Webhook handles POST /webhooks/paystack. It always answers 200: a gateway interprets
// any non-2xx response as a retry signal (§4.4).
func (h *TicketHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "handled": false})
		return
	}

	result := h.webhooks.Ingest(c.Request.Context(), body, c.GetHeader("x-paystack-signature"))
	c.JSON(http.StatusOK, gin.H{"success": result.Success, "handled": result.Handled})
}

// scanRequest is the body of POST /validate/scan (§6.1).
type scanRequest struct {
	QRCode  string     `json:"qrCode" validate:"required"`
	EventID *uuid.UUID `json:"eventId"`
}

// scanStatusCode maps a ScanOutcome to its HTTP status per §6.1.
func scanStatusCode(outcome engine.ScanOutcome) int {
	switch outcome {
	case engine.ScanValid:
		return http.StatusOK
	case engine.ScanNotAssigned:
		return http.StatusForbidden
	case engine.ScanNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// Scan handles POST /validate/scan.
func (h *TicketHandler) Scan(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "authentication required")
		return
	}

	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		utils.ValidationError(c, err.Error())
		return
	}

	result, err := h.gate.Validate(c.Request.Context(), engine.ScanInput{
		Token:          req.QRCode,
		Scanner:        actor,
		ClaimedEventID: req.EventID,
	})
	if err != nil {
		logger.Error("scan failed", err)
		utils.Error(c, errors.ErrInternalServer)
		return
	}

	c.JSON(scanStatusCode(result.Outcome), gin.H{
		"status": result.Outcome,
		"ticket": result.Ticket,
	})
}

// Retry handles POST /transactions/:id/retry.
func (h *TicketHandler) Retry(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "authentication required")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorWithStatus(c, http.StatusBadRequest, "invalid transaction id")
		return
	}

	out, err := h.txEngine.Retry(c.Request.Context(), id, actor.Email)
	if err != nil {
		utils.Error(c, err)
		return
	}

	utils.Success(c, http.StatusOK, gin.H{
		"transaction": out.Transaction,
		"paymentUrl":  out.PaymentURL,
	})
}

// refundRequest is the body of POST /transactions/:id/refund (§6.1).
type refundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason" validate:"required"`
}

// Refund handles POST /transactions/:id/refund. Restricted to organizer/admin actors:
// a buyer-initiated refund flow is out of scope (§1 Non-goals).
func (h *TicketHandler) Refund(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "authentication required")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorWithStatus(c, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		utils.ValidationError(c, err.Error())
		return
	}

	txn, err := h.txEngine.Refund(c.Request.Context(), engine.RefundInput{
		TransactionID: id,
		Amount:        req.Amount,
		Reason:        req.Reason,
		ProcessedBy:   actor.UserID.String(),
	})
	if err != nil {
		utils.Error(c, err)
		return
	}

	utils.Success(c, http.StatusOK, gin.H{"transaction": txn})
}
