package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concertforge/ticket-engine/internal/domain/entities"
	"github.com/concertforge/ticket-engine/internal/domain/services"
)

func newGateHarness(t *testing.T) (*GateValidator, *memStore, *services.TicketTokenCodec, *fakeClock) {
	t.Helper()
	store := newMemStore()
	codec := services.NewTicketTokenCodec([]byte("qr-secret"))
	clock := newFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	validator := NewGateValidator(store, codec, clock, newFakeAudit())
	return validator, store, codec, clock
}

func seedTicket(t *testing.T, store *memStore, codec *services.TicketTokenCodec, eventID uuid.UUID, status string) *entities.Ticket {
	t.Helper()
	ticketID := uuid.New()
	token, err := codec.Sign(services.TicketPayload{TicketID: ticketID.String(), EventID: eventID.String(), IssuedAt: 1000})
	require.NoError(t, err)
	ticket := &entities.Ticket{
		ID: ticketID, OrderID: uuid.New(), EventID: eventID, UserID: uuid.New(), TierID: uuid.New(),
		TierName: "General", Price: 5000, QRCode: token, Status: status,
	}
	require.NoError(t, store.Tickets().Create(context.Background(), ticket))
	return ticket
}

func TestGateValidator_HappyScan(t *testing.T) {
	validator, store, codec, _ := newGateHarness(t)
	eventID := uuid.New()
	ticket := seedTicket(t, store, codec, eventID, entities.TicketStatusValid)

	scanner := entities.Actor{UserID: uuid.New(), Role: entities.ActorRoleOrganizer}
	result, err := validator.Validate(context.Background(), ScanInput{Token: ticket.QRCode, Scanner: scanner, ClaimedEventID: &eventID})
	require.NoError(t, err)
	assert.Equal(t, ScanValid, result.Outcome)

	stored, err := store.Tickets().GetByQRCode(context.Background(), ticket.QRCode)
	require.NoError(t, err)
	assert.Equal(t, entities.TicketStatusUsed, stored.Status)
	require.NotNil(t, stored.CheckedInBy)
	assert.Equal(t, scanner.UserID, *stored.CheckedInBy)
}

func TestGateValidator_InvalidToken(t *testing.T) {
	validator, _, _, _ := newGateHarness(t)
	result, err := validator.Validate(context.Background(), ScanInput{Token: "not-a-real-token", Scanner: entities.Actor{UserID: uuid.New()}})
	require.NoError(t, err)
	assert.Equal(t, ScanInvalid, result.Outcome)
}

func TestGateValidator_NotFound(t *testing.T) {
	validator, _, codec, _ := newGateHarness(t)
	token, err := codec.Sign(services.TicketPayload{TicketID: uuid.NewString(), EventID: uuid.NewString(), IssuedAt: 1})
	require.NoError(t, err)
	result, err := validator.Validate(context.Background(), ScanInput{Token: token, Scanner: entities.Actor{UserID: uuid.New()}})
	require.NoError(t, err)
	assert.Equal(t, ScanNotFound, result.Outcome)
}

func TestGateValidator_WrongEvent(t *testing.T) {
	validator, store, codec, _ := newGateHarness(t)
	eventID := uuid.New()
	ticket := seedTicket(t, store, codec, eventID, entities.TicketStatusValid)
	claimed := uuid.New()

	result, err := validator.Validate(context.Background(), ScanInput{Token: ticket.QRCode, Scanner: entities.Actor{UserID: uuid.New()}, ClaimedEventID: &claimed})
	require.NoError(t, err)
	assert.Equal(t, ScanWrongEvent, result.Outcome)
}

func TestGateValidator_NotAssigned(t *testing.T) {
	validator, store, codec, _ := newGateHarness(t)
	eventID := uuid.New()
	ticket := seedTicket(t, store, codec, eventID, entities.TicketStatusValid)

	scanner := entities.Actor{UserID: uuid.New(), Role: entities.ActorRoleValidator, AssignedEvents: []uuid.UUID{uuid.New()}}
	result, err := validator.Validate(context.Background(), ScanInput{Token: ticket.QRCode, Scanner: scanner})
	require.NoError(t, err)
	assert.Equal(t, ScanNotAssigned, result.Outcome)
}

func TestGateValidator_AlreadyUsedAndCancelled(t *testing.T) {
	validator, store, codec, _ := newGateHarness(t)
	eventID := uuid.New()

	used := seedTicket(t, store, codec, eventID, entities.TicketStatusUsed)
	result, err := validator.Validate(context.Background(), ScanInput{Token: used.QRCode, Scanner: entities.Actor{UserID: uuid.New()}})
	require.NoError(t, err)
	assert.Equal(t, ScanAlreadyUsed, result.Outcome)

	cancelled := seedTicket(t, store, codec, eventID, entities.TicketStatusCancelled)
	result, err = validator.Validate(context.Background(), ScanInput{Token: cancelled.QRCode, Scanner: entities.Actor{UserID: uuid.New()}})
	require.NoError(t, err)
	assert.Equal(t, ScanCancelled, result.Outcome)
}

// S5 — scan race: 10 concurrent scans of one valid ticket produce exactly one VALID,
// the rest ALREADY_USED or RACE_CONDITION, and the ticket ends up used by the winner.
func TestGateValidator_ConcurrentScanRace(t *testing.T) {
	validator, store, codec, _ := newGateHarness(t)
	eventID := uuid.New()
	ticket := seedTicket(t, store, codec, eventID, entities.TicketStatusValid)

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	scanners := make([]uuid.UUID, n)
	outcomes := make([]ScanOutcome, n)
	for i := 0; i < n; i++ {
		i := i
		scanners[i] = uuid.New()
		go func() {
			defer wg.Done()
			result, err := validator.Validate(context.Background(), ScanInput{
				Token: ticket.QRCode, Scanner: entities.Actor{UserID: scanners[i], Role: entities.ActorRoleOrganizer},
			})
			require.NoError(t, err)
			outcomes[i] = result.Outcome
		}()
	}
	wg.Wait()

	validCount := 0
	for _, o := range outcomes {
		assert.Contains(t, []ScanOutcome{ScanValid, ScanAlreadyUsed, ScanRaceLost}, o)
		if o == ScanValid {
			validCount++
		}
	}
	assert.Equal(t, 1, validCount, "exactly one scan reports VALID")

	stored, err := store.Tickets().GetByQRCode(context.Background(), ticket.QRCode)
	require.NoError(t, err)
	assert.Equal(t, entities.TicketStatusUsed, stored.Status)
}
