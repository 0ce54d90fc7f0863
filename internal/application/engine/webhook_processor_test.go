package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concertforge/ticket-engine/internal/domain/entities"
	"github.com/concertforge/ticket-engine/internal/domain/services"
)

func newWebhookHarness(t *testing.T) (*WebhookProcessor, *TransactionEngine, *memStore, *fakeGateway, uuid.UUID, uuid.UUID) {
	t.Helper()
	store := newMemStore()
	gw := newFakeGateway()
	clock := newFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	codec := services.NewTicketTokenCodec([]byte("qr-secret"))
	splits := services.NewSplitsCalculator()
	audit := newFakeAudit()

	eventID := uuid.New()
	tierID := uuid.New()
	store.seedEvent(&entities.Event{
		ID:     eventID,
		Status: entities.EventStatusPublished,
		Tiers:  []entities.TicketTier{{ID: tierID, EventID: eventID, Name: "General", Price: 5000, Quantity: 50, MaxPerUser: 4}},
	})

	engine := NewTransactionEngine(store, gw, codec, splits, clock, services.UUIDSource{}, audit, testConfig())
	processor := NewWebhookProcessor(store, gw, engine, audit)
	return processor, engine, store, gw, eventID, tierID
}

func TestWebhookProcessor_InvalidSignatureAlways200(t *testing.T) {
	processor, _, _, gw, _, _ := newWebhookHarness(t)
	gw.validSignature = false

	result := processor.Ingest(context.Background(), []byte(`{"event":"charge.success"}`), "bad-sig")
	assert.False(t, result.Success)
	assert.Equal(t, "Invalid signature", result.Message)
}

func TestWebhookProcessor_ChargeSuccessCompletesTransaction(t *testing.T) {
	processor, engine, store, _, eventID, tierID := newWebhookHarness(t)

	out, err := engine.Initiate(context.Background(), InitiateInput{
		Actor: buyer(), EventID: eventID, TierID: tierID, Quantity: 1, IdempotencyKey: "K-webhook",
	})
	require.NoError(t, err)

	payload := map[string]interface{}{
		"event": "charge.success",
		"data":  map[string]interface{}{"reference": out.Transaction.GatewayReference, "channel": "card"},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	result := processor.Ingest(context.Background(), body, "sig")
	assert.True(t, result.Success)
	assert.True(t, result.Handled)

	txn, err := store.Transactions().GetByID(context.Background(), out.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusCompleted, txn.Status)
}

func TestWebhookProcessor_ChargeFailedFailsTransaction(t *testing.T) {
	processor, engine, store, _, eventID, tierID := newWebhookHarness(t)

	out, err := engine.Initiate(context.Background(), InitiateInput{
		Actor: buyer(), EventID: eventID, TierID: tierID, Quantity: 1, IdempotencyKey: "K-webhook-fail",
	})
	require.NoError(t, err)

	payload := map[string]interface{}{
		"event": "charge.failed",
		"data":  map[string]interface{}{"reference": out.Transaction.GatewayReference},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	result := processor.Ingest(context.Background(), body, "sig")
	assert.True(t, result.Success)
	assert.True(t, result.Handled)

	txn, err := store.Transactions().GetByID(context.Background(), out.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusFailed, txn.Status)
}

func TestWebhookProcessor_UnknownEventAcksUnhandled(t *testing.T) {
	processor, _, _, _, _, _ := newWebhookHarness(t)
	result := processor.Ingest(context.Background(), []byte(`{"event":"some.unmapped.event"}`), "sig")
	assert.True(t, result.Success)
	assert.False(t, result.Handled)
}

func TestWebhookProcessor_TransferAndRefundEventsForwardToAudit(t *testing.T) {
	processor, _, _, _, _, _ := newWebhookHarness(t)
	for _, event := range []string{"transfer.success", "transfer.failed", "refund.processed"} {
		body, err := json.Marshal(map[string]interface{}{"event": event, "data": map[string]interface{}{"reference": "ref"}})
		require.NoError(t, err)
		result := processor.Ingest(context.Background(), body, "sig")
		assert.True(t, result.Success)
		assert.True(t, result.Handled)
	}
}

func TestWebhookProcessor_MalformedBodyNeverErrorsOut(t *testing.T) {
	processor, _, _, _, _, _ := newWebhookHarness(t)
	result := processor.Ingest(context.Background(), []byte(`not json`), "sig")
	assert.False(t, result.Success)
	assert.False(t, result.Handled)
}

func TestWebhookProcessor_DuplicateChargeSuccessIsAbsorbed(t *testing.T) {
	processor, engine, store, _, eventID, tierID := newWebhookHarness(t)

	out, err := engine.Initiate(context.Background(), InitiateInput{
		Actor: buyer(), EventID: eventID, TierID: tierID, Quantity: 2, IdempotencyKey: "K-dup",
	})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data":  map[string]interface{}{"reference": out.Transaction.GatewayReference},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		result := processor.Ingest(context.Background(), body, "sig")
		assert.True(t, result.Success)
		assert.True(t, result.Handled)
	}

	order, err := store.Orders().GetByID(context.Background(), out.Order.ID)
	require.NoError(t, err)
	assert.Len(t, order.TicketIDs, 2, "three duplicate webhooks mint tickets exactly once")
}
