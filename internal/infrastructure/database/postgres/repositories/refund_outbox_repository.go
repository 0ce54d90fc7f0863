package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/concertforge/ticket-engine/internal/domain/entities"
)

// RefundOutboxRepository is the gorm-backed implementation of
// repositories.RefundOutboxRepository. The engine only appends to this table; a
// payout process outside the core is responsible for draining it.
type RefundOutboxRepository struct {
	db *gorm.DB
}

// NewRefundOutboxRepository constructs a RefundOutboxRepository bound to db.
func NewRefundOutboxRepository(db *gorm.DB) *RefundOutboxRepository {
	return &RefundOutboxRepository{db: db}
}

func (r *RefundOutboxRepository) Create(ctx context.Context, entry *entities.RefundOutboxEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
