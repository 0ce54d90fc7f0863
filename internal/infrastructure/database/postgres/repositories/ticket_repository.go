package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/concertforge/ticket-engine/internal/domain/entities"
	"github.com/concertforge/ticket-engine/internal/domain/repositories"
)

// TicketRepository is the gorm-backed implementation of repositories.TicketRepository.
type TicketRepository struct {
	db *gorm.DB
}

// NewTicketRepository constructs a TicketRepository bound to db.
func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) Create(ctx context.Context, ticket *entities.Ticket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *TicketRepository) GetByQRCode(ctx context.Context, qrCode string) (*entities.Ticket, error) {
	var ticket entities.Ticket
	if err := r.db.WithContext(ctx).First(&ticket, "qr_code = ?", qrCode).Error; err != nil {
		return nil, mapNotFound(err, repositories.ErrTicketNotFound)
	}
	return &ticket, nil
}

// ListByOrderID returns every ticket minted for orderID, in mint order.
func (r *TicketRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entities.Ticket, error) {
	var tickets []*entities.Ticket
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at asc").Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

// CompareAndSetCheckIn implements the single-use gate-scan guarantee of §4.3 step 6 as
// a conditional UPDATE: it only writes the row if its status is still "valid", and
// reports whether it did. No row lock is held around this call — the WHERE clause and
// Postgres's row-level update atomicity are the entire concurrency contract.
func (r *TicketRepository) CompareAndSetCheckIn(ctx context.Context, ticketID uuid.UUID, scanner uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.Ticket{}).
		Where("id = ? AND status = ?", ticketID, entities.TicketStatusValid).
		Updates(map[string]interface{}{
			"status":        entities.TicketStatusUsed,
			"checked_in_at": now,
			"checked_in_by": scanner,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *TicketRepository) CancelAllForOrder(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entities.Ticket{}).
		Where("order_id = ? AND status <> ?", orderID, entities.TicketStatusCancelled).
		Update("status", entities.TicketStatusCancelled).Error
}

func (r *TicketRepository) CountNonCancelledByUserTier(ctx context.Context, userID, eventID, tierID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.Ticket{}).
		Where("user_id = ? AND event_id = ? AND tier_id = ? AND status <> ?", userID, eventID, tierID, entities.TicketStatusCancelled).
		Count(&count).Error
	return count, err
}
