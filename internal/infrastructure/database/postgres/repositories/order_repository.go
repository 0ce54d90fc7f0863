package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/concertforge/ticket-engine/internal/domain/entities"
	"github.com/concertforge/ticket-engine/internal/domain/repositories"
)

// OrderRepository is the gorm-backed implementation of repositories.OrderRepository.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository constructs an OrderRepository bound to db.
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entities.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) Update(ctx context.Context, order *entities.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	var order entities.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, repositories.ErrOrderNotFound)
	}
	return &order, nil
}

func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	var order entities.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err, repositories.ErrOrderNotFound)
	}
	return &order, nil
}
