package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is the product definition a tier of tickets is sold against.
// The engine only reads and updates the subset of Event relevant to ticket sales;
// full event CRUD is owned upstream.
type Event struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizerID      uuid.UUID      `json:"organizer_id" gorm:"type:uuid;not null;index"`
	Status           string         `json:"status" gorm:"not null;check:status IN ('draft', 'published', 'cancelled', 'completed')"`
	EventDate        time.Time      `json:"event_date"`
	TotalTicketsSold int64          `json:"total_tickets_sold" gorm:"not null;default:0"`
	TotalRevenue     int64          `json:"total_revenue" gorm:"not null;default:0"`
	Validators       []uuid.UUID    `json:"validators" gorm:"serializer:json"`

	Tiers []TicketTier `json:"ticket_tiers" gorm:"foreignKey:EventID"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName returns the table name for the Event entity.
func (Event) TableName() string {
	return "events"
}

const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusCancelled = "cancelled"
	EventStatusCompleted = "completed"
)

// IsPurchasable reports whether tickets may currently be bought for this event.
func (e *Event) IsPurchasable() bool {
	return e.Status == EventStatusPublished && e.DeletedAt.Time.IsZero() && !e.DeletedAt.Valid
}

// TierByID returns a pointer into e.Tiers matching id, or nil.
func (e *Event) TierByID(id uuid.UUID) *TicketTier {
	for i := range e.Tiers {
		if e.Tiers[i].ID == id {
			return &e.Tiers[i]
		}
	}
	return nil
}

// TicketTier is one priced inventory bucket of an Event.
type TicketTier struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventID    uuid.UUID  `json:"event_id" gorm:"type:uuid;not null;index"`
	Name       string     `json:"name" gorm:"not null"`
	Price      int64      `json:"price" gorm:"not null;check:price >= 0"`
	Quantity   int64      `json:"quantity" gorm:"not null;check:quantity >= 1"`
	SoldCount  int64      `json:"sold_count" gorm:"not null;default:0;check:sold_count >= 0"`
	MaxPerUser int64      `json:"max_per_user" gorm:"not null;default:4"`
	SaleStart  *time.Time `json:"sale_start"`
	SaleEnd    *time.Time `json:"sale_end"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for the TicketTier entity.
func (TicketTier) TableName() string {
	return "ticket_tiers"
}

// HasCapacityFor reports whether quantity more tickets can be sold without exceeding tier.Quantity.
func (t *TicketTier) HasCapacityFor(quantity int) bool {
	return t.Quantity-t.SoldCount >= int64(quantity)
}

// Reserve increments SoldCount by quantity. Callers must hold a row lock on the parent Event.
func (t *TicketTier) Reserve(quantity int) {
	t.SoldCount += int64(quantity)
}
