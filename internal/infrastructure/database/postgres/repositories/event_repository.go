package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/concertforge/ticket-engine/internal/domain/entities"
	"github.com/concertforge/ticket-engine/internal/domain/repositories"
)

// EventRepository is the gorm-backed implementation of repositories.EventRepository.
// It always loads the event's tiers: the engine locates a tier by id via
// Event.TierByID and cannot operate on a tier-less Event.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository constructs an EventRepository bound to db.
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Event, error) {
	var event entities.Event
	if err := r.db.WithContext(ctx).Preload("Tiers").First(&event, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, repositories.ErrEventNotFound)
	}
	return &event, nil
}

// GetByIDForUpdate locks the Event row for update and loads its tiers. Postgres does
// not extend FOR UPDATE across a preloaded has-many association, so the tier rows
// themselves are locked explicitly in the same call, matching §4.1.7's row-lock
// requirement for the Complete transition's oversell check.
func (r *EventRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Event, error) {
	var event entities.Event
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&event, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err, repositories.ErrEventNotFound)
	}

	var tiers []entities.TicketTier
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("event_id = ?", id).
		Order("created_at ASC").
		Find(&tiers).Error; err != nil {
		return nil, err
	}
	event.Tiers = tiers
	return &event, nil
}

func (r *EventRepository) Update(ctx context.Context, event *entities.Event) error {
	if err := r.db.WithContext(ctx).Omit("Tiers").Save(event).Error; err != nil {
		return err
	}
	for i := range event.Tiers {
		if err := r.db.WithContext(ctx).Save(&event.Tiers[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
