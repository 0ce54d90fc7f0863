package services

import "github.com/google/uuid"

// IDSource mints entity identifiers, injectable so tests can assert on deterministic ids
// (§2 item 1: "ULID/UUID minting; injectable for tests").
type IDSource interface {
	NewID() uuid.UUID
}

// UUIDSource is the production IDSource backed by google/uuid's random (v4) generator,
// matching every entity's `gorm:"type:uuid;...default:gen_random_uuid()"` tag.
type UUIDSource struct{}

// NewID returns a new random UUID.
func (UUIDSource) NewID() uuid.UUID {
	return uuid.New()
}
